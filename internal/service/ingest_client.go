package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
)

// IngestClient 下游摄取端点客户端
//
// 把归一化记录连同原始回调体一起 POST 给下游。摄取端没有幂等去重，
// 重试会制造重复的追踪记录，所以只发一次，失败交给调用方记录。
type IngestClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewIngestClient 创建下游摄取客户端
func NewIngestClient(url string, timeout time.Duration, logger *zap.Logger) *IngestClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &IngestClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Relay 转发归一化记录到下游摄取端点
//
// 请求体是记录本身外加 text 字段，text 携带原始回调体的逐字序列化，
// 供下游审计。
func (c *IngestClient) Relay(ctx context.Context, record models.NormalizedRecord, rawBody []byte) error {
	payload := make(map[string]interface{}, len(record)+1)
	for k, v := range record {
		payload[k] = v
	}
	payload["text"] = string(rawBody)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)

	if err != nil {
		return fmt.Errorf("failed to relay record: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ingest endpoint returned %s", resp.Status())
	}

	c.logger.Info("Record relayed to ingest endpoint",
		zap.String("uuid", record.StringField("uuid")),
		zap.String("device", record.Device()),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
