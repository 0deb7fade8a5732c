// Package consumer 消费持久化的重新武装队列
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/config"
	"github.com/UnaBiz/unatoilet/internal/presence"
	rediscommon "github.com/UnaBiz/unatoilet/pkg/redis"
)

// 单次读取的消息上限；重新武装消息本来就稀疏
const readBatchSize = 4

// 消费循环的读阻塞时长
const readBlock = 5 * time.Second

// SessionRunner 一次 presence 会话的入口
type SessionRunner interface {
	Run(ctx context.Context) (presence.Outcome, error)
}

// StreamConsumer 重新武装消息的 Redis Streams 消费者
//
// 每条消息触发一次 presence 会话。处理错误一律吞掉并确认消息，
// 避免毒消息反复投递；会话失败由下一次外部触发重新发起。
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	runner      SessionRunner
	shutdown    context.CancelFunc // ClosedByPeer 终态的进程退出钩子
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	runner SessionRunner,
	shutdown context.CancelFunc,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		runner:      runner,
		shutdown:    shutdown,
		logger:      logger,
	}
}

// Start 启动消费循环，直到上下文取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Presence.Stream
	group := c.config.Presence.ConsumerGroup

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Re-arm consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Presence.ConsumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeOnce(ctx); err != nil {
				c.logger.Error("Failed to consume re-arm stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)
				// 指数退避后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeOnce 读一批消息并逐条处理
func (c *StreamConsumer) consumeOnce(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Presence.Stream,
		c.config.Presence.ConsumerGroup,
		c.config.Presence.ConsumerName,
		readBatchSize,
		readBlock,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		// 先确认再处理：队列契约是永不向基础设施报失败
		if err := rediscommon.AckMessage(ctx, c.redisClient, c.config.Presence.Stream, c.config.Presence.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack re-arm message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		c.handleMessage(ctx, msg)
	}
	return nil
}

// handleMessage 处理一条重新武装消息：跑一次 presence 会话
func (c *StreamConsumer) handleMessage(ctx context.Context, msg rediscommon.StreamMessage) {
	c.logger.Info("Re-arm message received",
		zap.String("message_id", msg.ID),
	)

	outcome, err := c.runner.Run(ctx)
	if err != nil {
		// 吞掉错误：presence 失败不回传队列，等下一次触发
		c.logger.Error("Presence session failed",
			zap.String("kind", "presence_failure"),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("Presence session finished",
		zap.String("outcome", string(outcome)),
	)

	if outcome == presence.OutcomeClosedByPeer {
		// 关闭信号是终态：留出日志冲刷时间后退出进程
		grace := time.Duration(c.config.Presence.ExitGraceSec) * time.Second
		c.logger.Info("Scheduling shutdown after closing signal",
			zap.Duration("grace", grace),
		)
		time.Sleep(grace)
		if c.shutdown != nil {
			c.shutdown()
		}
	}
}
