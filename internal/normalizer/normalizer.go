package normalizer

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
)

// datetime / localdatetime 的文本格式（UTC / UTC+8）
const datetimeLayout = "2006-01-02 15:04:05"

// localdatetime 相对 UTC 的固定偏移
const localOffset = 8 * time.Hour

// Normalizer 原始回调 → 归一化扁平记录
type Normalizer struct {
	sensors *SensorBuilder
	logger  *zap.Logger
	now     func() time.Time // 可注入时钟，测试用
}

// New 创建归一化器
// strict 控制 magnet data 畸形段的处理（见 SensorBuilder）
func New(strict bool, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		sensors: NewSensorBuilder(strict, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Normalize 把原始回调归一化为扁平记录
//
// 回调缺失或没有 serial_number 时返回 nil，整条回调作废（无下游副作用）。
//
// 时钟只读一次，timestamp / datetime / localdatetime 三个字段保证来自
// 同一瞬间；uuid 每次调用都重新生成，只用于追踪，从不去重。
//
// 合并顺序：固定字段 → 根级标量 → 各传感器字段（按上报顺序），
// 后写的键覆盖先写的。重复 sensor_type 以最后一个上报为准，这是
// 既有约定，不是缺陷。
func (n *Normalizer) Normalize(raw models.RawCallback) models.NormalizedRecord {
	if raw == nil {
		return nil
	}
	device := raw.SerialNumber()
	if device == "" {
		return nil
	}

	now := n.now().UTC()
	record := models.NormalizedRecord{
		"uuid":          uuid.New().String(),
		"device":        device,
		"timestamp":     now.UnixMilli(),
		"datetime":      now.Format(datetimeLayout),
		"localdatetime": now.Add(localOffset).Format(datetimeLayout),
	}

	// 根级标量，无前缀
	for k, v := range Flatten(map[string]interface{}(raw), "") {
		record[k] = v
	}

	// 传感器字段，按上报顺序合并
	for _, report := range raw.Sensors() {
		for k, v := range n.sensors.SensorFields(report) {
			record[k] = v
		}
	}

	return record
}

// WithClock 替换时钟来源，返回自身方便链式调用（测试用）
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}
