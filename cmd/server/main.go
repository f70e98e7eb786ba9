package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/liverelay/liverelay/internal/observability"
	"github.com/liverelay/liverelay/internal/relay"
	"github.com/liverelay/liverelay/internal/server"
)

const (
	serverShutdownTimeout = 10 * time.Second
	hubShutdownTimeout    = 5 * time.Second
)

func main() {
	// A missing .env file is fine; the environment itself still applies.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting live relay server")

	registry := relay.NewRegistry()
	defer registry.Close()

	hub := server.NewHub(registry, logger)
	go hub.Run()

	mux := server.SetupRoutes(hub, cfg, logger)
	httpServer := server.CreateServer(cfg.Addr(), mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}

	if err := server.ShutdownServer(httpServer, serverShutdownTimeout, logger); err != nil {
		logger.Warn("HTTP shutdown did not complete cleanly", zap.Error(err))
	}
	if err := hub.Shutdown(hubShutdownTimeout); err != nil {
		logger.Warn("hub shutdown did not complete cleanly", zap.Error(err))
	}
}
