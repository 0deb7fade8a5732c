package config

import (
	"os"
	"strconv"

	rediscommon "github.com/UnaBiz/unatoilet/pkg/redis"
)

// Config unatoilet 服务配置
// callback 和 presence 两个进程共用同一份配置
type Config struct {
	HTTP struct {
		Addr string // callback 服务监听地址
	}

	Redis rediscommon.Config

	// 下游转发相关
	Relay struct {
		IngestURL    string // 下游摄取端点（AWS sigfoxCallback）
		StatusURL    string // 状态更新 ping 端点（bot 状态置绿）
		BroadcastURL string // 广播频道 webhook
		TimeoutSec   int    // 单次外呼超时（秒）
	}

	// presence 保活相关
	Presence struct {
		ConnectURL    string // RTM connect 端点，返回 websocket URL
		Token         string // presence 服务令牌
		Stream        string // 重新武装消息的 Redis Stream
		ConsumerGroup string // Stream 消费者组
		ConsumerName  string // Stream 消费者名
		OpenMessage   string // 门开广播文案
		CloseMessage  string // 门关广播文案，也是关闭信号的匹配串
		TimeoutMinSec int    // 会话超时下限（秒）
		TimeoutMaxSec int    // 会话超时上限（秒）
		ExitGraceSec  int    // 收到关闭信号后退出前的日志冲刷等待（秒）
	}

	Normalizer struct {
		MagnetStrict bool // true 时 magnet data 畸形段丢弃整个样本的合成字段
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Relay.IngestURL = getEnv("INGEST_URL", "https://91r65moej0.execute-api.ap-southeast-1.amazonaws.com/prod/sigfoxCallback?comment=Sensit_Callback")
	cfg.Relay.StatusURL = getEnv("STATUS_URL", "https://task-dot-unabiz-unago.appspot.com/enqueue")
	cfg.Relay.BroadcastURL = getEnv("BROADCAST_URL", "")
	cfg.Relay.TimeoutSec = getEnvInt("RELAY_TIMEOUT_SEC", 30)

	cfg.Presence.ConnectURL = getEnv("PRESENCE_CONNECT_URL", "https://slack.com/api/rtm.connect")
	cfg.Presence.Token = getEnv("PRESENCE_TOKEN", "")
	cfg.Presence.Stream = getEnv("PRESENCE_STREAM", "presence:rearm:stream")
	cfg.Presence.ConsumerGroup = getEnv("PRESENCE_CONSUMER_GROUP", "unatoilet-presence")
	cfg.Presence.ConsumerName = getEnv("PRESENCE_CONSUMER_NAME", defaultConsumerName())
	cfg.Presence.OpenMessage = getEnv("OPEN_MESSAGE", "*** T O I L E T  I S  O P E N  ! ! ! ***")
	cfg.Presence.CloseMessage = getEnv("CLOSE_MESSAGE", "toilet closed")
	cfg.Presence.TimeoutMinSec = getEnvInt("PRESENCE_TIMEOUT_MIN_SEC", 400)
	cfg.Presence.TimeoutMaxSec = getEnvInt("PRESENCE_TIMEOUT_MAX_SEC", 500)
	cfg.Presence.ExitGraceSec = getEnvInt("PRESENCE_EXIT_GRACE_SEC", 5)

	cfg.Normalizer.MagnetStrict = getEnvBool("MAGNET_STRICT", false)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func defaultConsumerName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "unatoilet-presence-1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
