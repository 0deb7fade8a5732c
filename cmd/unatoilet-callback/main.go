package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/config"
	httpapi "github.com/UnaBiz/unatoilet/internal/http"
	"github.com/UnaBiz/unatoilet/internal/normalizer"
	"github.com/UnaBiz/unatoilet/internal/service"
	"github.com/UnaBiz/unatoilet/pkg/logger"
	rediscommon "github.com/UnaBiz/unatoilet/pkg/redis"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "unatoilet-callback")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting unatoilet-callback service",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("ingest_url", cfg.Relay.IngestURL),
		zap.String("rearm_stream", cfg.Presence.Stream),
	)

	// 初始化Redis（重新武装队列的发布端）
	redisClient := rediscommon.NewClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}

	// 组装编排链
	timeout := time.Duration(cfg.Relay.TimeoutSec) * time.Second
	norm := normalizer.New(cfg.Normalizer.MagnetStrict, zapLogger)
	statusClient := service.NewStatusClient(cfg.Relay.StatusURL, timeout, zapLogger)
	ingestClient := service.NewIngestClient(cfg.Relay.IngestURL, timeout, zapLogger)
	broadcastClient := service.NewBroadcastClient(cfg.Relay.BroadcastURL, timeout, zapLogger)
	armer := service.NewRearmPublisher(redisClient, cfg.Presence.Stream, zapLogger)

	orchestrator := service.NewOrchestrator(
		norm,
		statusClient,
		ingestClient,
		broadcastClient,
		armer,
		cfg.Presence.OpenMessage,
		cfg.Presence.CloseMessage,
		zapLogger,
	)

	// 路由
	handler := httpapi.NewCallbackHandler(orchestrator, zapLogger)
	router := httpapi.NewRouter(zapLogger)
	router.RegisterCallbackRoutes(handler)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if err := rediscommon.Close(redisClient); err != nil {
		zapLogger.Error("Error closing redis", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
