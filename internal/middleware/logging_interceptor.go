package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryLoggingInterceptor logs unary RPC calls with timing and errors
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logCall(ctx, logger, "unary RPC", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs streaming RPC calls with timing and errors
func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		logger.Debug("stream RPC started",
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID(ss.Context())),
			zap.Bool("is_client_stream", info.IsClientStream),
			zap.Bool("is_server_stream", info.IsServerStream),
		)

		err := handler(srv, ss)

		logCall(ss.Context(), logger, "stream RPC", info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger *zap.Logger, msg, method string, start time.Time, err error) {
	code := status.Code(err)

	fields := []zap.Field{
		zap.String("method", method),
		zap.String("request_id", requestID(ctx)),
		zap.Duration("duration", time.Since(start)),
		zap.String("code", code.String()),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		fields = append(fields, zap.String("user_id", actor.UserID), zap.String("role", string(actor.Role)))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := logger.Check(levelFor(code), msg); ce != nil {
		ce.Write(fields...)
	}
}

// levelFor keeps caller mistakes out of the error log.
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.Canceled, codes.InvalidArgument, codes.NotFound,
		codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition,
		codes.ResourceExhausted:
		return zapcore.InfoLevel
	default:
		return zapcore.ErrorLevel
	}
}

func requestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
