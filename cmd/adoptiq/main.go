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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/adoptiq/internal/adapter/fsm"
	"github.com/neomorfeo/adoptiq/internal/adapter/memory"
	oteladapter "github.com/neomorfeo/adoptiq/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/adoptiq/internal/adapter/river"
	"github.com/neomorfeo/adoptiq/internal/adapter/sqlite"
	"github.com/neomorfeo/adoptiq/internal/app"
	"github.com/neomorfeo/adoptiq/internal/domain"
	"github.com/neomorfeo/adoptiq/internal/store"

	handler "github.com/neomorfeo/adoptiq/internal/adapter/http"
)

const serviceName = "adoptiq"

func main() {
	if err := run(); err != nil {
		slog.Error("adoptiq exited", "error", err)
		os.Exit(1)
	}
}

// run wires the adapters, serves HTTP until SIGINT/SIGTERM, then shuts
// everything down in reverse order.
func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.DatabasePath, cfg.StoreTimeout)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	var records domain.RecordStore
	switch cfg.StoreDriver {
	case "memory":
		records = memory.New()
	default:
		s, err := sqlite.NewFromDB(db, sqlite.WithTimeout(cfg.StoreTimeout))
		if err != nil {
			return fmt.Errorf("record store: %w", err)
		}
		records = s
	}

	traced, err := oteladapter.NewTracingRecordStore(records)
	if err != nil {
		return fmt.Errorf("record store instrumentation: %w", err)
	}

	queue, err := riveradapter.Setup(ctx, db, riveradapter.LogDeliverer{})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	// River outlives the signal context so queued notifications drain on Stop.
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			logger.Error("river stop", "error", err)
		}
	}()

	sink := oteladapter.NewTracingSink(riveradapter.NewSink(queue))

	// --- Application ---
	pets := store.NewPetCatalog(traced)
	engine := app.NewEngine(
		pets,
		store.NewRequestStore(traced),
		traced,
		sink,
		fsm.New(),
		app.WithRetryPolicy(cfg.Retry),
		app.WithLogger(logger),
	)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, "0.1.0"))
	handler.Register(api, engine, pets, pets)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("adoptiq listening", "port", cfg.Port, "store", cfg.StoreDriver, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}
