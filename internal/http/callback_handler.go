// Package httpapi 承载 Sensit 回调的入站 HTTP 接口
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
	"github.com/UnaBiz/unatoilet/internal/service"
)

// 入站协议把非 200 或异常当作重试信号，这里永远回 200，
// 失败只体现在响应体的 "OK" / "Error" 上
const (
	responseOK    = `"OK"`
	responseError = `"Error"`
)

// CallbackHandler Sensit 回调处理器
type CallbackHandler struct {
	orchestrator *service.Orchestrator
	logger       *zap.Logger
}

// NewCallbackHandler 创建回调处理器
func NewCallbackHandler(orchestrator *service.Orchestrator, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// HandleCallback 处理一次回调 POST
func (h *CallbackHandler) HandleCallback(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		h.logger.Warn("Failed to read callback body", zap.Error(err))
		writeResponse(w, responseError)
		return
	}

	h.logger.Debug("Received callback",
		zap.Int("payload_size", len(body)),
	)

	// 解析失败按空回调处理，走校验丢弃路径
	var raw models.RawCallback
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			h.logger.Warn("Failed to unmarshal callback body", zap.Error(err))
			raw = nil
		}
	}

	outcome := h.orchestrator.HandleCallback(req.Context(), raw, body)
	if outcome.OK() {
		writeResponse(w, responseOK)
		return
	}
	writeResponse(w, responseError)
}

func writeResponse(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
