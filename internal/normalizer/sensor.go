package normalizer

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
)

// 门磁传感器的判别值，只有该类型的 data 字段需要解码
const sensorTypeMagnet = "magnet"

// SensorBuilder 单个传感器上报 → 带前缀扁平字段
//
// magnet 类型的样本 data 是 "<status>:<updates>" 复合串，
// 解码成合成的整数字段 status / updates 后再压平。
type SensorBuilder struct {
	strict bool // true 时整数段解析失败丢弃该样本的全部合成字段
	logger *zap.Logger
}

// NewSensorBuilder 创建传感器字段构造器
func NewSensorBuilder(strict bool, logger *zap.Logger) *SensorBuilder {
	return &SensorBuilder{
		strict: strict,
		logger: logger,
	}
}

// SensorFields 构造单个传感器的扁平字段
//
// 输入:
//
//	{ "id": "29270", "sensor_type": "magnet",
//	  "history": [{ "date": "...", "signal_level": "good", "data": "0:1" }],
//	  "config": { "threshold": 0 } }
//
// 输出:
//
//	{ "magnet_id": "29270", "magnet_date": "...", "magnet_signal_level": "good",
//	  "magnet_data": "0:1", "magnet_status": 0, "magnet_updates": 1 }
//
// history 为空时只输出 id 字段；sensor_type 为空时前缀为空，照常输出。
func (b *SensorBuilder) SensorFields(report models.SensorReport) map[string]interface{} {
	sensorType := report.Type()
	result := make(map[string]interface{})

	if id := report.ID(); id != "" {
		result[sensorType+"_id"] = id
	}

	sample := report.FirstSample()
	if sample == nil {
		return result
	}

	// 拷贝样本再追加合成字段，不改动原始回调
	entry := make(map[string]interface{}, len(sample)+2)
	for k, v := range sample {
		entry[k] = v
	}

	if sensorType == sensorTypeMagnet {
		if data, ok := entry["data"].(string); ok && data != "" {
			b.decodeMagnetData(data, entry)
		}
	}

	for k, v := range Flatten(entry, sensorType+"_") {
		result[k] = v
	}
	return result
}

// decodeMagnetData 把 "0:1" 解码成 entry 的 status / updates 整数字段
//
// 原始数据源偶发畸形段。宽松模式下畸形段只告警并省略对应合成字段，
// 原始 data 串仍会随样本压平带出；严格模式下任一段畸形则两个合成字段都不产出。
func (b *SensorBuilder) decodeMagnetData(data string, entry map[string]interface{}) {
	parts := strings.Split(data, ":")

	status, statusErr := strconv.Atoi(parts[0])
	var updates int
	var updatesErr error
	hasUpdates := len(parts) >= 2
	if hasUpdates {
		updates, updatesErr = strconv.Atoi(parts[1])
	}

	if statusErr != nil || updatesErr != nil {
		b.logger.Warn("Malformed magnet data segment",
			zap.String("data", data),
			zap.Bool("strict", b.strict),
		)
		if b.strict {
			return
		}
	}

	if statusErr == nil {
		entry["status"] = status
	}
	if hasUpdates && updatesErr == nil {
		entry["updates"] = updates
	}
}
