package models

import "fmt"

// RawCallback Sensit 回调的原始 POST 体
//
// 回调是嵌套 JSON，形状随设备固件变化，因此保留为动态结构，
// 由 normalizer 负责压平。根级必须带 serial_number，否则整条回调作废。
type RawCallback map[string]interface{}

// SerialNumber 返回设备序列号（缺失时为空串）
func (c RawCallback) SerialNumber() string {
	if c == nil {
		return ""
	}
	if sn, ok := c["serial_number"].(string); ok {
		return sn
	}
	return ""
}

// Sensors 返回回调中的传感器上报列表（保持上报顺序）
func (c RawCallback) Sensors() []SensorReport {
	if c == nil {
		return nil
	}
	items, ok := c["sensors"].([]interface{})
	if !ok {
		return nil
	}
	reports := make([]SensorReport, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			reports = append(reports, SensorReport(m))
		}
	}
	return reports
}

// SensorReport 单个传感器的上报
//
// 结构: { id, sensor_type, history: [样本...], config: {...} }
// 下游只消费 history 的第一个样本；config 目前不下发。
type SensorReport map[string]interface{}

// Type 返回传感器类型判别字段（如 "magnet", "temperature_humidity"）
func (s SensorReport) Type() string {
	if t, ok := s["sensor_type"].(string); ok {
		return t
	}
	return ""
}

// ID 返回传感器 ID（缺失时为空串）
func (s SensorReport) ID() string {
	if id, ok := s["id"].(string); ok {
		return id
	}
	return ""
}

// FirstSample 返回 history 中的第一个样本，没有则返回 nil
func (s SensorReport) FirstSample() map[string]interface{} {
	history, ok := s["history"].([]interface{})
	if !ok || len(history) == 0 {
		return nil
	}
	sample, ok := history[0].(map[string]interface{})
	if !ok {
		return nil
	}
	return sample
}

// NormalizedRecord 压平后的回调记录，可直接序列化成下游摄取体
//
// 固定字段: uuid, device, timestamp, datetime, localdatetime；
// 其余字段来自根级标量（无前缀）和各传感器样本（sensor_type 前缀）。
// 值只会是字符串或数字，不含嵌套结构。
type NormalizedRecord map[string]interface{}

// Device 返回归一化记录中的设备 ID
func (r NormalizedRecord) Device() string {
	if d, ok := r["device"].(string); ok {
		return d
	}
	return ""
}

// MagnetStatus 返回门磁状态字段（0=开, 1=关）
// 第二个返回值表示字段是否存在且可解释为整数
func (r NormalizedRecord) MagnetStatus() (int, bool) {
	switch v := r["magnet_status"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// StringField 返回记录中的字符串化字段值（缺失时为空串）
func (r NormalizedRecord) StringField(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
