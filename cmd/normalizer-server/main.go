package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/internal/api"
	"github.com/signalsfoundry/astrometry-normalizer/internal/config"
	"github.com/signalsfoundry/astrometry-normalizer/internal/export"
	"github.com/signalsfoundry/astrometry-normalizer/internal/logging"
	"github.com/signalsfoundry/astrometry-normalizer/internal/observability"
	"github.com/signalsfoundry/astrometry-normalizer/kb"
)

func main() {
	configPath := flag.String("config", "", "Path to a normalizer YAML config file")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the gRPC server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	log := logging.New(cfg.LoggingConfig())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "normalizer server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the normalizer on lis until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewNormalizerCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	readerOpts, err := cfg.ReaderOptions()
	if err != nil {
		return err
	}

	store := kb.NewDatasetStore()
	unsubscribe := store.Subscribe(func(e kb.Event) {
		collector.SetDatasetCount(e.Count)
	})
	defer unsubscribe()

	if cfg.Export.SQLitePath != "" {
		sink, err := export.OpenSQLite(cfg.Export.SQLitePath)
		if err != nil {
			return err
		}
		defer sink.Close()
		defer store.Subscribe(mirrorToSQLite(sink, log))()
		log.Info(ctx, "mirroring datasets to sqlite", logging.String("path", cfg.Export.SQLitePath))
	}

	normalizer := core.NewNormalizer(log, core.WithMetricsRecorder(collector))

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	api.RegisterNormalizerServiceServer(server, api.NewNormalizerService(
		normalizer,
		store,
		log,
		api.WithReaderOptions(readerOpts),
		api.WithMaxContentBytes(cfg.Server.MaxContentBytes),
	))

	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting normalizer gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		serveErr <- server.Serve(lis)
	}()

	var result error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down normalizer server")
		server.GracefulStop()
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			result = fmt.Errorf("serve gRPC: %w", err)
		}
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return result
}

// mirrorToSQLite copies stored datasets into sink and removes deleted ones.
func mirrorToSQLite(sink *export.SQLiteSink, log logging.Logger) func(kb.Event) {
	return func(e kb.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		switch e.Type {
		case kb.EventDatasetStored:
			err = sink.WriteDataset(ctx, export.DatasetRecord{
				ID:        e.Dataset.ID,
				Name:      e.Dataset.Name,
				Source:    "grpc",
				CreatedAt: e.Dataset.CreatedAt,
			}, e.Dataset.Table)
		case kb.EventDatasetDeleted:
			err = sink.DeleteDataset(ctx, e.Dataset.ID)
		}
		if err != nil {
			log.Warn(ctx, "sqlite mirror failed",
				logging.DatasetID(e.Dataset.ID),
				logging.String("event", e.Type.String()),
				logging.Err(err),
			)
		}
	}
}

func serveMetrics(addr string, collector *observability.NormalizerCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
