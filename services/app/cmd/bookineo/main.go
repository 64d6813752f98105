package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookineo/bookineo/pkg/logger"
	"github.com/bookineo/bookineo/services/app/internal/app"
	"github.com/bookineo/bookineo/services/app/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookineo: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logger.NewFile("bookineo", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookineo: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	log.Info("starting bookineo", slog.String("api_url", cfg.APIURL))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewApp(ctx, cfg, log, os.Stdin, os.Stdout)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "bookineo: %v\n", err)
		os.Exit(1)
	}

	runErr := application.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	if runErr != nil {
		log.Error("application error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	log.Info("bookineo stopped")
}
