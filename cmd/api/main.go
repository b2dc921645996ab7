package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fxcore-service/internal/bootstrap"
	"fxcore-service/internal/config"
	infraconfig "fxcore-service/internal/infrastructure/config"
	httpserver "fxcore-service/internal/infrastructure/http"
	"fxcore-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	cfg := config.Load()
	addr := ":" + cfg.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, store, closeStore, err := bootstrap.BuildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("bootstrap store", zap.Error(err))
	}
	defer closeStore()

	idem, closeRedis := bootstrap.BuildIdempotency(cfg)
	defer closeRedis()

	sink := bootstrap.BuildConvlog(cfg, store)
	eng, err := bootstrap.BuildEngine(cfg, bootstrap.BuildProviders(cfg), store, sink, idem)
	if err != nil {
		logger.Fatal("bootstrap engine", zap.Error(err))
	}

	sinkDone := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(sinkDone)
	}()
	go bootstrap.BuildRefresher(cfg, eng).Start(ctx)

	srv := httpserver.NewServer(eng, db.Ping)
	server := &http.Server{
		Addr:    addr,
		Handler: httpserver.NewRouter(srv),
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shCancel := context.WithTimeout(context.Background(), infraconfig.DefaultShutdownTimeout)
	defer shCancel()
	_ = server.Shutdown(shutdownCtx)

	// Stop background loops; the conversion logger drains its queue
	// before exiting.
	cancel()
	<-sinkDone
	logger.Info("server stopped")
}
