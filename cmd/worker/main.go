package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fxcore-service/internal/bootstrap"
	"fxcore-service/internal/config"
	"fxcore-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, store, closeStore, err := bootstrap.BuildStore(ctx, cfg)
	if err != nil {
		log.Fatal("bootstrap store", zap.Error(err))
	}
	defer closeStore()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	log.Info("retention worker started",
		zap.String("schedule", cfg.CleanupSchedule),
		zap.Int("retention_days", cfg.RetentionDays),
	)
	bootstrap.BuildCleanup(cfg, store).Start(ctx)
	log.Info("retention worker stopped")
}
