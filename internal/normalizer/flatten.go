// Package normalizer 把 Sensit 回调的嵌套体压平成扁平记录
//
// 转换流程：
// 1. 校验 serial_number（缺失则整条回调作废）
// 2. 生成追踪 uuid 和统一时间字段
// 3. 压平根级标量字段（无前缀）
// 4. 逐个压平传感器样本（sensor_type 前缀），magnet 类型额外解码 data 字段
package normalizer

import "encoding/json"

// Flatten 把单层对象压平为带前缀的扁平键值
//
// 只拷贝标量值（字符串、数字），嵌套对象、数组、布尔、nil 一律丢弃，
// 不递归也不报错。输入:
//
//	{ "date": "2018-01-29T01:55Z", "signal_level": "good", "data": "1:1" }
//
// prefix="magnet_" 时输出:
//
//	{ "magnet_date": ..., "magnet_signal_level": ..., "magnet_data": ... }
func Flatten(obj map[string]interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{}, len(obj))
	for key, val := range obj {
		switch val.(type) {
		case string, float64, int, int32, int64, json.Number:
			result[prefix+key] = val
		}
	}
	return result
}
