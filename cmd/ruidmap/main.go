package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	rmhttp "github.com/ruidmap/ruidmap/internal/adapter/http"
	rmnats "github.com/ruidmap/ruidmap/internal/adapter/nats"
	"github.com/ruidmap/ruidmap/internal/adapter/natskv"
	"github.com/ruidmap/ruidmap/internal/adapter/otel"
	"github.com/ruidmap/ruidmap/internal/adapter/postgres"
	"github.com/ruidmap/ruidmap/internal/adapter/ristretto"
	"github.com/ruidmap/ruidmap/internal/adapter/tiered"
	"github.com/ruidmap/ruidmap/internal/adapter/ws"
	"github.com/ruidmap/ruidmap/internal/config"
	"github.com/ruidmap/ruidmap/internal/logger"
	"github.com/ruidmap/ruidmap/internal/middleware"
	"github.com/ruidmap/ruidmap/internal/port/cache"
	"github.com/ruidmap/ruidmap/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	holder := config.NewHolder(cfg, cfgPath)

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"cache_enabled", cfg.Cache.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := otel.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	// --- PostgreSQL ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("postgres ready")

	// --- NATS ---
	queue, err := rmnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	// --- Query cache (in-process L1 over a NATS KV L2) ---
	var queryCache cache.Cache
	if cfg.Cache.Enabled {
		l1, err := ristretto.New(int64(cfg.Cache.L1MaxSizeMB) << 20)
		if err != nil {
			return fmt.Errorf("cache l1: %w", err)
		}
		defer l1.Close()

		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("cache l2: %w", err)
		}
		queryCache = tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)
		slog.Info("query cache enabled", "l1_mb", cfg.Cache.L1MaxSizeMB, "l2_bucket", cfg.Cache.L2Bucket)
	}

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	taskSvc := service.NewTaskService(store, queue, hub, queryCache, cfg.Cache.TTL, metrics)
	projectSvc := service.NewProjectService(store, queue, hub, queryCache, cfg.Cache.TTL)
	stateSvc := service.NewStateService(store, queue, hub)
	transferSvc := service.NewTransferService(store, queue, hub, queryCache, metrics)

	archiver := service.NewArchiver(store, queue, hub, queryCache, metrics, cfg.Archive)
	if err := archiver.Start(ctx); err != nil {
		return fmt.Errorf("archiver: %w", err)
	}
	defer archiver.Stop()

	// --- HTTP ---
	handlers := &rmhttp.Handlers{
		Tasks:    taskSvc,
		Projects: projectSvc,
		State:    stateSvc,
		Transfer: transferSvc,
		Hub:      hub,
		Queue:    queue,
	}

	r := chi.NewRouter()
	r.Use(rmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(rmhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(rmhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.BasicAuth(cfg.Server.AuthUser, cfg.Server.AuthHash))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	rmhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SIGHUP reloads the config file; SIGINT/SIGTERM shut down.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			slog.Info("config reloaded", "path", cfgPath)
		}
	}()

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return queue.Drain()
}
