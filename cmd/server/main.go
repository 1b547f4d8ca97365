package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/linepulse/linepulse/internal/alerts"
	"github.com/linepulse/linepulse/internal/api"
	"github.com/linepulse/linepulse/internal/auth"
	"github.com/linepulse/linepulse/internal/config"
	"github.com/linepulse/linepulse/internal/metrics"
	"github.com/linepulse/linepulse/internal/store"
	"github.com/linepulse/linepulse/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("linepulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"default_schema", cfg.Server.Alerts.DefaultSchema,
		"stale_seconds", cfg.Server.Alerts.StaleSeconds,
		"slow_duration", cfg.Server.Alerts.SlowDuration,
		"window_minutes", cfg.Server.Alerts.WindowMinutes,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Shared connection pool for the read-only event store. Every query
	// borrows a connection and returns it; connect attempts fail fast.
	pool, err := store.Connect(ctx, cfg.Server.Database.EffectiveURL())
	if err != nil {
		slog.Error("failed to create database pool", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("event store unreachable", "err", err)
		os.Exit(1)
	}

	m := metrics.New()

	st := store.New(pool)
	st.OnQuery = m.ObserveQuery

	engine := alerts.New(st, alerts.Params{
		StaleSeconds:  cfg.Server.Alerts.StaleSeconds,
		SlowDuration:  cfg.Server.Alerts.SlowDuration,
		WindowMinutes: cfg.Server.Alerts.WindowMinutes,
	}, cfg.Server.Alerts.MinSamples)
	engine.OnFire = m.AlertFired

	// Threshold edits in config.yaml apply without a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			engine.SetDefaults(alerts.Params{
				StaleSeconds:  next.Server.Alerts.StaleSeconds,
				SlowDuration:  next.Server.Alerts.SlowDuration,
				WindowMinutes: next.Server.Alerts.WindowMinutes,
			})
		})
		if err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	// WebSocket hub — re-evaluates and broadcasts the alert set on a ticker.
	hub := ws.New(engine, cfg.Server.Alerts.DefaultSchema, cfg.Server.Stream.Interval, m)
	go hub.Run(ctx)

	apiHandler := api.New(st, engine, cfg.Server.Alerts.DefaultSchema, m)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.Middleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		apiHandler,
	))
	httpMux.Handle("/ws/alerts", hub)
	httpMux.Handle("/metrics", m.Handler())
	httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "linepulse MES telemetry API"}) //nolint:errcheck
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.CORS(cfg.Server.CORS.AllowedOrigins, httpMux),
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("linepulse-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
