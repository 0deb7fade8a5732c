package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/config"
	"github.com/UnaBiz/unatoilet/internal/consumer"
	"github.com/UnaBiz/unatoilet/internal/presence"
	rediscommon "github.com/UnaBiz/unatoilet/pkg/redis"
)

// PresenceService presence 保活服务
//
// 组装 Redis、保活状态机和重新武装队列消费者。
type PresenceService struct {
	config   *config.Config
	logger   *zap.Logger
	redis    *redis.Client
	consumer *consumer.StreamConsumer
}

// NewPresenceService 创建 presence 服务
// shutdown 在收到关闭信号终态后被调用，让进程走正常退出路径
func NewPresenceService(cfg *config.Config, shutdown context.CancelFunc, logger *zap.Logger) (*PresenceService, error) {
	redisClient := rediscommon.NewClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	armer := NewRearmPublisher(redisClient, cfg.Presence.Stream, logger)

	keeper := presence.NewKeeper(presence.Options{
		ConnectURL:    cfg.Presence.ConnectURL,
		Token:         cfg.Presence.Token,
		ClosingSignal: cfg.Presence.CloseMessage,
		TimeoutMin:    time.Duration(cfg.Presence.TimeoutMinSec) * time.Second,
		TimeoutMax:    time.Duration(cfg.Presence.TimeoutMaxSec) * time.Second,
		HTTPTimeout:   time.Duration(cfg.Relay.TimeoutSec) * time.Second,
	}, armer, logger)

	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, keeper, shutdown, logger)

	return &PresenceService{
		config:   cfg,
		logger:   logger,
		redis:    redisClient,
		consumer: streamConsumer,
	}, nil
}

// Start 启动服务
func (s *PresenceService) Start(ctx context.Context) error {
	s.logger.Info("Starting presence service components")
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start re-arm consumer: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *PresenceService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping presence service")
	if s.redis != nil {
		if err := rediscommon.Close(s.redis); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
	}
	s.logger.Info("Presence service stopped")
	return nil
}
