package service

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "github.com/UnaBiz/unatoilet/pkg/redis"
)

// rearmMessage 重新武装消息体
type rearmMessage struct {
	Status string `json:"status"`
}

// RearmPublisher 把重新武装触发发到持久化的 Redis Stream
//
// presence 会话的每次武装都经由这条队列，会话循环因此不依赖
// 任何单个进程的生命周期。
type RearmPublisher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewRearmPublisher 创建重新武装发布器
func NewRearmPublisher(redisClient *redis.Client, stream string, logger *zap.Logger) *RearmPublisher {
	return &RearmPublisher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// Arm 发布一条重新武装消息
func (p *RearmPublisher) Arm(ctx context.Context) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.stream, rearmMessage{Status: "waiting"})
	if err != nil {
		return fmt.Errorf("failed to publish re-arm message: %w", err)
	}

	p.logger.Info("Re-arm message published",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
	)
	return nil
}
