// Package main provides the prescription API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mediflow/go-rxdraft/internal/ai"
	"github.com/mediflow/go-rxdraft/internal/api/handlers"
	"github.com/mediflow/go-rxdraft/internal/api/middleware"
	"github.com/mediflow/go-rxdraft/internal/config"
	"github.com/mediflow/go-rxdraft/internal/infrastructure/redpanda"
	"github.com/mediflow/go-rxdraft/internal/observability/metrics"
	"github.com/mediflow/go-rxdraft/internal/observability/tracing"
	"github.com/mediflow/go-rxdraft/internal/persist"
	"github.com/mediflow/go-rxdraft/internal/remote"
	"github.com/mediflow/go-rxdraft/internal/store"
	"github.com/mediflow/go-rxdraft/pkg/workerpool"
)

const serviceName = "prescription-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()

	ctx := context.Background()

	// Tracing is optional; the rest of the service works without a collector.
	if cfg.Tracing.Enabled {
		provider, err := tracing.Init(ctx, serviceName, cfg.Tracing)
		if err != nil {
			logger.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("tracing shutdown error", zap.Error(err))
			}
		}()
	}

	m := metrics.New()

	// Storage
	records := store.NewRecordStore(cfg.Storage.RecordsDir, cfg.Storage.LearningDir, logger)
	index := store.NewIndex(cfg.Storage.RecordsDir, cfg.Storage.IndexLimit, logger)

	// Remote prescription registry
	registry, err := remote.NewClient(
		cfg.Registry.BaseURL,
		cfg.Registry.APIKey,
		cfg.Registry.SaveTimeout,
		cfg.Registry.LearningTimeout,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create registry client", zap.Error(err))
	}

	// Event stream is optional: without brokers, saves still work but no
	// events are published.
	var producer *redpanda.Producer
	var publisher persist.EventPublisher
	if cfg.Kafka.Enabled() {
		admin, err := redpanda.NewAdmin(cfg.Kafka.BrokerList(), logger)
		if err != nil {
			logger.Fatal("failed to create topic admin", zap.Error(err))
		}
		if err := admin.EnsureTopics(ctx); err != nil {
			logger.Warn("topic setup failed", zap.Error(err))
		}
		admin.Close()

		producer, err = redpanda.NewProducer(redpanda.DefaultProducerConfig(cfg.Kafka.BrokerList()), logger)
		if err != nil {
			logger.Fatal("failed to create producer", zap.Error(err))
		}
		defer producer.Close()
		publisher = producer
	}

	// Background workers for learning feedback emission
	pool := workerpool.New(workerpool.DefaultConfig(), logger)
	pool.Start()
	defer pool.Stop()

	// AI draft generation
	llm, err := ai.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		logger.Fatal("failed to create gemini client", zap.Error(err))
	}
	generator := ai.NewGenerator(llm, m, logger)

	coordinator := persist.New(registry, records, index, pool, publisher, m, logger)
	prescriptionHandler := handlers.NewPrescriptionHandler(generator, coordinator, logger)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(serviceName))

	// Health check (no auth)
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes (with auth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.Auth.KeyMap()))
		r.Mount("/prescriptions", prescriptionHandler.Routes())
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting prescription API",
		zap.String("port", cfg.Server.Port),
		zap.Bool("events_enabled", publisher != nil),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"%s","version":"1.0.0"}`, serviceName)
}
