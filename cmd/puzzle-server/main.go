package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/app"
	appcfg "github.com/park285/cheese-puzzle/internal/config"
	"github.com/park285/cheese-puzzle/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	deps, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("init_failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("puzzle_server_start",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("events_addr", cfg.EventsAddr),
		zap.String("source", cfg.PuzzleSource),
		zap.Bool("redis", deps.Store != nil),
		zap.Bool("postgres", deps.Postgres != nil),
	)
	if err := deps.Run(ctx); err != nil {
		logger.Error("server_error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := deps.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown_incomplete", zap.Error(err))
	}
	logger.Info("puzzle_server_stopped")
}
