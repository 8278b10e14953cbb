/*
Package main is the entry point for the GeoChat server.

It loads configuration, initializes logging and the database pool, wires the
hub, coordinator, matchmaker and messenger together, and handles graceful
shutdown on SIGINT/SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geochat/internal/app/chat"
	"geochat/internal/app/db"
	"geochat/internal/app/notify"
	"geochat/internal/app/user"
	"geochat/internal/configs"
	"geochat/internal/handler"
	"geochat/internal/pkg/limiter"
	"geochat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool and migrations
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	users := user.NewPGStore(pool)
	chatStore := chat.NewPGChatStore(pool)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.PushEndpoint != "" {
		notifier = notify.NewHTTPNotifier(cfg.PushEndpoint, cfg.PushServerKey)
	}

	// Wire the real-time core
	hub := chat.NewHub()
	joins := limiter.NewJoinLimiter(limiter.JoinWindow, limiter.MaxJoinAttempts)
	coordinator := chat.NewCoordinator(hub, users, chatStore, joins)
	matchmaker := chat.NewMatchmaker(hub)
	messenger := chat.NewMessenger(hub, users, chatStore, chatStore.Reports(), notifier)
	gateway := chat.NewGateway(hub, coordinator, matchmaker, messenger)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Gateway: gateway,
		Users:   users,
		Config:  cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("GeoChat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	gateway.Shutdown()

	logx.Info("Server gracefully stopped.")
}
