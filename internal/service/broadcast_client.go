package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// broadcastCommand 广播频道的请求体
type broadcastCommand struct {
	Text string `json:"text"`
}

// BroadcastClient 广播频道客户端（频道 webhook）
type BroadcastClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewBroadcastClient 创建广播客户端
func NewBroadcastClient(url string, timeout time.Duration, logger *zap.Logger) *BroadcastClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &BroadcastClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Broadcast 向频道广播一条可读消息
func (c *BroadcastClient) Broadcast(ctx context.Context, text string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(broadcastCommand{Text: text}).
		Post(c.url)

	if err != nil {
		return fmt.Errorf("failed to broadcast message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("broadcast channel returned %s", resp.Status())
	}

	c.logger.Info("Broadcast sent", zap.String("text", text))
	return nil
}
