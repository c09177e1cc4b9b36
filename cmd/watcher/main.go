// Watcher - ambient activity observation daemon
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ambientlearn/watcher/internal/api"
	"github.com/ambientlearn/watcher/internal/backend"
	"github.com/ambientlearn/watcher/internal/config"
	"github.com/ambientlearn/watcher/internal/fusion"
	"github.com/ambientlearn/watcher/internal/middleware"
	"github.com/ambientlearn/watcher/internal/relay"
	"github.com/ambientlearn/watcher/internal/session"
	"github.com/ambientlearn/watcher/internal/store"
	"github.com/ambientlearn/watcher/internal/surface"
	"github.com/ambientlearn/watcher/internal/vision"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting watcher", "port", cfg.Port, "backend", cfg.BackendURL)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := relay.NewRouter()
	feed := api.NewPanelFeed(router)
	go feed.Run(ctx)

	// The monitored surface is optional at startup: without a browser every
	// vision tick degrades to an acquisition-failure status note.
	var surf session.Surface
	watcher, err := surface.Connect(ctx, surface.Options{
		DebuggerURL:  cfg.DebuggerURL,
		FrameWidth:   cfg.FrameWidth,
		FrameHeight:  cfg.FrameHeight,
		FrameQuality: cfg.FrameQuality,
	}, router, logger)
	if err != nil {
		slog.Warn("No monitored surface attached", "error", err)
	} else {
		surf = watcher
		defer func() {
			if closeErr := watcher.Close(); closeErr != nil {
				slog.Debug("Failed to detach surface", "error", closeErr)
			}
		}()
	}

	analyzer := vision.NewGeminiClient(cfg.ProviderAPIKey, cfg.ProviderModel)
	pushClient := backend.NewClient(cfg.BackendURL, logger)
	state := fusion.NewState(cfg.UserID)

	sup := session.NewSupervisor(cfg, analyzer, surf, state, pushClient, router, repo, logger)
	go sup.Run(ctx)

	// Control surface.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler := api.NewHandler(router, sup, feed)
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Control surface listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Stop an active session first so loop teardown is clean.
	if sup.Phase() == session.PhaseActive {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := sup.Toggle(shutdownCtx); err != nil {
			slog.Warn("Failed to stop session during shutdown", "error", err)
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Watcher stopped successfully")
}
