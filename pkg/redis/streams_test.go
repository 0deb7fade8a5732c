package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStream(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestPublishJSONToStream(t *testing.T) {
	mr, client := setupStream(t)
	ctx := context.Background()

	id, err := PublishJSONToStream(ctx, client, "test:stream", map[string]string{"status": "waiting"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := mr.Stream("test:stream")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// data 字段携带 JSON 消息体（miniredis 把字段摊平成 key,value 列表）
	values := map[string]string{}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		values[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(values["data"]), &payload))
	assert.Equal(t, "waiting", payload["status"])
	assert.NotEmpty(t, values["timestamp"])
}

func TestConsumerGroupRoundTrip(t *testing.T) {
	_, client := setupStream(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "test-group"))
	// 组已存在时重复创建不是错误
	require.NoError(t, CreateConsumerGroup(ctx, client, "test:stream", "test-group"))

	_, err := PublishJSONToStream(ctx, client, "test:stream", map[string]string{"status": "waiting"})
	require.NoError(t, err)

	messages, err := ReadFromStream(ctx, client, "test:stream", "test-group", "consumer-1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "test:stream", messages[0].Stream)

	require.NoError(t, AckMessage(ctx, client, "test:stream", "test-group", messages[0].ID))

	// 已消费的消息不会再次投递给同组
	messages, err = ReadFromStream(ctx, client, "test:stream", "test-group", "consumer-1", 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
