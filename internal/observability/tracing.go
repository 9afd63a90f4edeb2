package observability

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// InitTracerProvider installs a global tracer provider. With toStdout the
// spans are pretty-printed; otherwise they are sampled but not exported.
func InitTracerProvider(toStdout bool, logger *zap.Logger) (*trace.TracerProvider, error) {
	var opts []trace.TracerProviderOption

	if toStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			logger.Error("failed to create trace exporter", zap.Error(err))
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// ShutdownTracerProvider flushes pending spans and stops the provider
func ShutdownTracerProvider(ctx context.Context, tp *trace.TracerProvider, logger *zap.Logger) {
	if err := tp.ForceFlush(ctx); err != nil {
		logger.Error("failed to flush traces", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", zap.Error(err))
	}
}

// GRPCStatsHandler returns the server option that traces every RPC through tp.
func GRPCStatsHandler(tp *trace.TracerProvider) grpc.ServerOption {
	return grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tp)))
}
