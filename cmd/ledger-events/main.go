package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/config"
	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/internal/storage"
	"github.com/mmynk/messbook/internal/storage/postgres"
	"github.com/mmynk/messbook/internal/storage/sqlite"
	"github.com/mmynk/messbook/internal/worker"
	"github.com/mmynk/messbook/pkg/logging"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat))

	slog.Info("Starting ledger-events")

	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		slog.Error("AMQP_URL is required for ledger-events")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("ledger-events failed", "error", err)
		os.Exit(1)
	}
	slog.Info("ledger-events stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		store storage.Store
		err   error
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store, err = postgres.New(ctx, cfg.DatabaseURL)
	default:
		store, err = sqlite.New(cfg.SQLiteDBPath)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	registry := prometheus.NewRegistry()
	summaries := worker.NewSummaryWorker(ledger.New(store), registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, summaries.HandleEvent)
	})
	g.Go(func() error {
		slog.Info("Metrics server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
