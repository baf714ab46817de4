package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportstore/internal/config"
	"sportstore/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(logger.Options{Environment: logger.ParseEnvironment(cfg.AppEnv)})

	app, cleanup, err := NewApp(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	defer cleanup()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.AppPort).Msg("starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Error().Err(err).Msg("server stopped")
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during Fiber shutdown")
	}

	log.Info().Msg("server gracefully stopped")
}
