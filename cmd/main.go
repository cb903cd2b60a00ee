/*
Package main is the entry point for the planning poker server.

It is responsible for loading configuration, initializing the global logging system and
tracing, wiring the game registry, identity resolver, broadcast hub and coordinator,
setting up the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"planpoker/internal/app/eventbus"
	"planpoker/internal/app/game"
	"planpoker/internal/app/room"
	"planpoker/internal/app/user"
	"planpoker/internal/configs"
	"planpoker/internal/handler"
	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("pong_wait", cfg.PongWait).
		Str("default_card_preset", cfg.DefaultCardPreset).
		Dur("game_idle_ttl", cfg.GameIdleTTL).
		Bool("event_mirror", cfg.NATSURL != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: "planpoker",
		Endpoint:    cfg.OTELEndpoint,
		Enabled:     cfg.OTELEnabled,
	})
	if err != nil {
		logx.Fatal(err, "Failed to set up tracing")
	}

	presets, err := game.LoadPresets(cfg.CardPresetsFile, cfg.DefaultCardPreset)
	if err != nil {
		logx.Fatal(err, "Failed to load card presets")
	}

	publisher, err := eventbus.NewPublisher(eventbus.Config{
		URL:           cfg.NATSURL,
		SubjectPrefix: cfg.NATSSubjectPrefix,
	})
	if err != nil {
		logx.Fatal(err, "Failed to connect event mirror")
	}

	registry := game.NewRegistry(presets, game.WithIdleTTL(cfg.GameIdleTTL))
	resolver := user.NewResolver(user.NewMemoryProfileStore(), nil)
	hub := room.NewHub(publisher)
	coordinator := room.NewCoordinator(registry, resolver, hub, tracing.Tracer())

	deps := &handler.AppDeps{
		Config:         cfg,
		Registry:       registry,
		Coordinator:    coordinator,
		CreateLimiter:  handler.NewCreateLimiter(),
		ConnectLimiter: handler.NewConnectLimiter(),
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logx.Info(fmt.Sprintf("Planning poker server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	group.Go(func() error { return registry.Run(groupCtx, cfg.GameSweepInterval) })
	group.Go(func() error { return deps.CreateLimiter.Run(groupCtx) })
	group.Go(func() error { return deps.ConnectLimiter.Run(groupCtx) })

	group.Go(func() error {
		<-groupCtx.Done()
		logx.Info("Received shutdown signal. Starting graceful shutdown...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		hub.Shutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logx.Error(err, "Server stopped with error")
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelFlush()

	if err := publisher.Close(); err != nil {
		logx.Error(err, "Failed to close event mirror")
	}

	if err := shutdownTracing(flushCtx); err != nil {
		logx.Error(err, "Failed to flush traces")
	}

	logx.Info("Server gracefully stopped.")
}
