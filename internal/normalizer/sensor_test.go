package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
)

func magnetReport(data string) models.SensorReport {
	return models.SensorReport{
		"id":          "29270",
		"sensor_type": "magnet",
		"history": []interface{}{
			map[string]interface{}{
				"date":         "D",
				"signal_level": "good",
				"data":         data,
			},
		},
		"config": map[string]interface{}{"threshold": float64(0)},
	}
}

func TestSensorFields_MagnetDecoding(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	result := builder.SensorFields(magnetReport("0:1"))

	assert.Equal(t, map[string]interface{}{
		"magnet_id":           "29270",
		"magnet_date":         "D",
		"magnet_signal_level": "good",
		"magnet_data":         "0:1",
		"magnet_status":       0,
		"magnet_updates":      1,
	}, result)
}

func TestSensorFields_MagnetStatusOnly(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	// data 没有第二段时只产出 status
	result := builder.SensorFields(magnetReport("1"))

	assert.Equal(t, 1, result["magnet_status"])
	assert.NotContains(t, result, "magnet_updates")
}

func TestSensorFields_NonMagnetOpaqueData(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	report := models.SensorReport{
		"id":          "29266",
		"sensor_type": "temperature_humidity",
		"history": []interface{}{
			map[string]interface{}{
				"date":         "D",
				"signal_level": "good",
				"data":         "25.4",
			},
		},
	}

	result := builder.SensorFields(report)

	// 非 magnet 类型的 data 保持原串，不做解码
	assert.Equal(t, "25.4", result["temperature_humidity_data"])
	assert.NotContains(t, result, "temperature_humidity_status")
	assert.Equal(t, "29266", result["temperature_humidity_id"])
}

func TestSensorFields_NoHistory(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	result := builder.SensorFields(models.SensorReport{
		"id":          "29270",
		"sensor_type": "magnet",
	})

	assert.Equal(t, map[string]interface{}{"magnet_id": "29270"}, result)
}

func TestSensorFields_NoHistoryNoID(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	result := builder.SensorFields(models.SensorReport{"sensor_type": "magnet"})

	assert.Empty(t, result)
}

func TestSensorFields_EmptySensorType(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	report := models.SensorReport{
		"id": "1",
		"history": []interface{}{
			map[string]interface{}{"date": "D"},
		},
	}

	result := builder.SensorFields(report)

	// sensor_type 缺失时前缀为空，照常输出
	assert.Equal(t, "1", result["_id"])
	assert.Equal(t, "D", result["_date"])
}

func TestSensorFields_MalformedData_Lenient(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())

	result := builder.SensorFields(magnetReport("abc:1"))

	// 宽松模式：畸形段省略对应合成字段，其余照常
	assert.NotContains(t, result, "magnet_status")
	assert.Equal(t, 1, result["magnet_updates"])
	assert.Equal(t, "abc:1", result["magnet_data"])
}

func TestSensorFields_MalformedData_Strict(t *testing.T) {
	builder := NewSensorBuilder(true, zap.NewNop())

	result := builder.SensorFields(magnetReport("0:xyz"))

	// 严格模式：任一段畸形则整个样本的合成字段都不产出
	assert.NotContains(t, result, "magnet_status")
	assert.NotContains(t, result, "magnet_updates")
	// 原始 data 串仍随样本压平带出
	assert.Equal(t, "0:xyz", result["magnet_data"])
}

func TestSensorFields_InputNotMutated(t *testing.T) {
	builder := NewSensorBuilder(false, zap.NewNop())
	report := magnetReport("0:1")

	_ = builder.SensorFields(report)

	sample := report.FirstSample()
	assert.NotContains(t, sample, "status")
	assert.NotContains(t, sample, "updates")
}
