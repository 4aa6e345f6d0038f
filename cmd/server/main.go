package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/pulsewire/pulsewire/internal/api"
	"github.com/pulsewire/pulsewire/internal/auth"
	"github.com/pulsewire/pulsewire/internal/bridge"
	"github.com/pulsewire/pulsewire/internal/config"
	"github.com/pulsewire/pulsewire/internal/history"
	"github.com/pulsewire/pulsewire/internal/hub"
	"github.com/pulsewire/pulsewire/internal/metrics"
	"github.com/pulsewire/pulsewire/internal/registry"
	"github.com/pulsewire/pulsewire/internal/router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("pulsewire-server starting", "config", *configPath)

	// Secrets like the auth token come from the environment; a .env
	// file is a convenience for local runs.
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(logLevel(cfg.Server.LogLevel))

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"max_message_chars", cfg.Server.Limits.MaxMessageChars,
		"history_retention", cfg.Server.History.Retention,
		"cluster", cfg.Server.Cluster.Enabled(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()
	met := metrics.New()
	rt := router.New(reg, met)

	// Chat history with background retention sweeps.
	hist := history.New(cfg.Server.History.MaxPerRoom, cfg.Server.History.Retention)
	go hist.Run(ctx)

	guard := auth.New(cfg.Server.Auth.Mode, cfg.Server.Auth.Token())

	h, err := hub.New(reg, rt, hist, met, guard, cfg.Server.Limits)
	if err != nil {
		slog.Error("failed to build hub", "err", err)
		os.Exit(1)
	}

	// Optional Redis bridge — links instances into one cluster.
	if cfg.Server.Cluster.Enabled() {
		br := bridge.New(cfg.Server.Cluster, rt, met)
		rt.SetRelay(br)
		go br.Run(ctx)
		slog.Info("cluster bridge enabled",
			"redis_addr", cfg.Server.Cluster.RedisAddr,
			"channel", cfg.Server.Cluster.EffectiveChannel(),
			"origin", br.Origin(),
		)
	}

	// Watch config file for hot-reload: connection limits and log level.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			h.UpdateLimits(updated.Server.Limits)
			level.Set(logLevel(updated.Server.LogLevel))
			slog.Info("config hot-reloaded",
				"max_message_chars", updated.Server.Limits.MaxMessageChars,
				"log_level", updated.Server.LogLevel,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Combined HTTP server: WebSocket routes + REST API + metrics.
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws/chat/{room}", h.ServeChat)
	r.Get("/ws/notifications", h.ServeNotifications)
	r.Get("/ws/counter", h.ServeCounter)
	r.Mount("/api/v1", api.New(reg, hist, rt, met, guard))
	r.Method(http.MethodGet, "/metrics", met)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: r,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("pulsewire-server shutting down")

	// Close the sockets first so their handler goroutines drain, then
	// stop the HTTP listener.
	h.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
