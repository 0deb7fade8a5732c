package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// StatusClient 状态更新 ping 客户端
//
// 按设备 ID 和门磁字段 GET 外部状态服务，让 bot 状态变绿。
// 纯粹的次级信号，失败由编排器记录后继续。
type StatusClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewStatusClient 创建状态 ping 客户端
func NewStatusClient(url string, timeout time.Duration, logger *zap.Logger) *StatusClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &StatusClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Ping 发送状态更新 ping
func (c *StatusClient) Ping(ctx context.Context, device, magnetDate, magnetStatus string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"device":        device,
			"magnet_date":   magnetDate,
			"magnet_status": magnetStatus,
		}).
		Get(c.url)

	if err != nil {
		return fmt.Errorf("failed to ping status service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("status service returned %s", resp.Status())
	}

	c.logger.Debug("Status ping sent",
		zap.String("device", device),
		zap.String("magnet_status", magnetStatus),
	)
	return nil
}
