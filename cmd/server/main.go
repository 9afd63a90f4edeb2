package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/config"
	"github.com/PaulBabatuyi/projectfiles/internal/database"
	"github.com/PaulBabatuyi/projectfiles/internal/middleware"
	"github.com/PaulBabatuyi/projectfiles/internal/observability"
	"github.com/PaulBabatuyi/projectfiles/internal/preview"
	"github.com/PaulBabatuyi/projectfiles/internal/server"
	"github.com/PaulBabatuyi/projectfiles/internal/service"
	"github.com/PaulBabatuyi/projectfiles/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Logger
	logger, err := observability.InitLogger(cfg.Dev, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// 3. Tracing
	tp, err := observability.InitTracerProvider(cfg.TraceStdout, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		observability.ShutdownTracerProvider(shutdownCtx, tp, logger)
	}()

	// 4. Database and migrations
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(logger); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// 5. Storage, file service and previews
	store, err := storage.NewFilesystemStorage(cfg.UploadRoot)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	svc := service.NewFileService(store, db,
		service.WithLogger(logger.Named("service")),
		service.WithMetrics(metrics),
		service.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	renderer := preview.NewRenderer(cfg.PreviewRoot, preview.NewSofficeConverter(cfg.ConverterPath),
		preview.WithTimeout(cfg.ConverterTimeout),
		preview.WithThumbnailWidth(cfg.ThumbnailWidth),
		preview.WithLogger(logger.Named("preview")),
		preview.WithMetrics(metrics),
	)

	// 6. gRPC server
	serverMetrics, err := observability.NewServerMetrics(reg)
	if err != nil {
		return fmt.Errorf("register grpc metrics: %w", err)
	}
	auth := middleware.NewAuth(cfg.APIKeys)

	grpcServer := grpc.NewServer(
		observability.GRPCStatsHandler(tp),
		grpc.ChainUnaryInterceptor(
			serverMetrics.UnaryServerInterceptor(),
			auth.UnaryInterceptor,
			middleware.UnaryLoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			serverMetrics.StreamServerInterceptor(),
			auth.StreamInterceptor,
			middleware.StreamLoggingInterceptor(logger),
		),
	)
	server.RegisterFileServiceServer(grpcServer, server.NewFileServer(svc, renderer,
		server.WithLogger(logger.Named("grpc")),
		server.WithMaxConcurrentUploads(cfg.MaxConcurrentUploads),
	))
	serverMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// 7. Metrics endpoint
	metricsServer := observability.NewMetricsServer(fmt.Sprintf(":%d", cfg.MetricsPort), reg, db.Ping)
	observability.StartMetricsServer(metricsServer, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting gRPC server",
			zap.String("addr", cfg.GRPCAddr),
			zap.String("upload_root", cfg.UploadRoot),
			zap.String("preview_root", cfg.PreviewRoot),
		)
		serveErr <- grpcServer.Serve(lis)
	}()

	// 8. Wait for a signal, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("grpc server: %w", err)
	}

	healthServer.Shutdown()
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("graceful stop timed out, forcing")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}
	return nil
}
