package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/config"
	"github.com/UnaBiz/unatoilet/internal/service"
	"github.com/UnaBiz/unatoilet/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "unatoilet-presence")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting unatoilet-presence service",
		zap.String("rearm_stream", cfg.Presence.Stream),
		zap.String("consumer_group", cfg.Presence.ConsumerGroup),
		zap.Int("timeout_min_sec", cfg.Presence.TimeoutMinSec),
		zap.Int("timeout_max_sec", cfg.Presence.TimeoutMaxSec),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel 同时是关闭信号终态的进程退出钩子
	presenceService, err := service.NewPresenceService(cfg, cancel, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create presence service", zap.Error(err))
	}

	// 在 goroutine 中启动消费循环
	errChan := make(chan error, 1)
	go func() {
		errChan <- presenceService.Start(ctx)
	}()

	// 等待中断信号或消费循环退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		zapLogger.Info("Session loop terminated, shutting down")
	case err := <-errChan:
		if err != nil {
			zapLogger.Error("Consumer exited with error", zap.Error(err))
		}
	}

	// 优雅关闭
	cancel()
	if err := presenceService.Stop(context.Background()); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
