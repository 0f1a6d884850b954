package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/user/webmonitor/internal/adapter/postgres"
	redis_adapter "github.com/user/webmonitor/internal/adapter/redis"
	"github.com/user/webmonitor/internal/adapter/sqlite"
	"github.com/user/webmonitor/internal/auth"
	"github.com/user/webmonitor/internal/delivery/http/handler"
	"github.com/user/webmonitor/internal/delivery/http/router"
	"github.com/user/webmonitor/internal/repository"
	"github.com/user/webmonitor/internal/usecase"
	"github.com/user/webmonitor/pkg/config"
	"github.com/user/webmonitor/pkg/logger"
	"github.com/user/webmonitor/pkg/metrics"
)

type stores struct {
	sites  repository.SiteRepository
	users  repository.UserRepository
	events repository.EventRepository
	ping   handler.Pinger
	close  func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sites := sqlite.NewSiteRepo(db)
		return &stores{
			sites:  sites,
			users:  sqlite.NewUserRepo(db),
			events: sqlite.NewEventRepo(db),
			ping:   sites,
			close:  func() { db.Close() },
		}, nil
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		sites := postgres.NewSiteRepo(pool)
		return &stores{
			sites:  sites,
			users:  postgres.NewUserRepo(pool),
			events: postgres.NewEventRepo(pool),
			ping:   sites,
			close:  pool.Close,
		}, nil
	}
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// --- Metrics ---
	m := metrics.New(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()
	slog.Info("Storage ready", "driver", cfg.StorageDriver)

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	markers := redis_adapter.NewMarkerRepo(rdb)
	if err := markers.Ping(ctx); err != nil {
		// Suppression degrades to the cookie alone; ingestion keeps working.
		slog.Warn("Redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	// --- Use Cases ---
	collector := usecase.NewCollector(st.sites, st.users, st.events, markers, m, usecase.CollectorConfig{
		DedupWindow:       cfg.DedupWindow,
		SuppressionWindow: cfg.SuppressionWindow(),
		DefaultOwnerEmail: cfg.DefaultOwnerEmail,
	})

	// --- HTTP Server ---
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty; dashboard reads will be rejected")
	}
	apiHandler := handler.NewHandler(collector, map[string]handler.Pinger{
		cfg.StorageDriver: st.ping,
		"redis":           markers,
	}, cfg.SuppressionWindow())
	httpRouter := router.New(apiHandler, router.Options{
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Metrics:  m,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}
