// Command servicehub runs the ServiceHub API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jkdigital/servicehub/internal/app/runtime"
	"github.com/jkdigital/servicehub/internal/config"
	"github.com/jkdigital/servicehub/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault("servicehub").WithError(err).Fatal("load config")
	}
	log := logging.New("servicehub", cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.WithError(runErr).Error("server stopped unexpectedly")
	} else {
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
	log.Info("servicehub stopped")
}
