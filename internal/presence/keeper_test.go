package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingArmer struct {
	mu    sync.Mutex
	count int
}

func (a *countingArmer) Arm(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	return nil
}

func (a *countingArmer) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// newWSServer 起一个 websocket 对端
// frames 在收到 hello 帧后逐条下发，之后保持连接直到对方关闭
func newWSServer(t *testing.T, frames ...string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// 等 hello 帧
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// 保持连接，读到错误（对方关闭）为止
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newConnectServer 起 connect 端点，返回指向 wsURL 的响应
func newConnectServer(t *testing.T, wsURL string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":  true,
			"url": wsURL,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestKeeper(connectURL string, timeoutMin, timeoutMax time.Duration, armer Armer) *Keeper {
	return NewKeeper(Options{
		ConnectURL:    connectURL,
		Token:         "test-token",
		ClosingSignal: "toilet closed",
		TimeoutMin:    timeoutMin,
		TimeoutMax:    timeoutMax,
		HTTPTimeout:   5 * time.Second,
	}, armer, zap.NewNop())
}

func TestRun_ClosingSignalBeforeTimeout(t *testing.T) {
	ws := newWSServer(t, `{"text":"the toilet closed just now"}`)
	connect := newConnectServer(t, wsURL(ws))
	armer := &countingArmer{}

	// 超时远大于信号到达时间
	keeper := newTestKeeper(connect.URL, 30*time.Second, 40*time.Second, armer)

	outcome, err := keeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeClosedByPeer, outcome)
	// 关闭信号是终态，从不重新武装
	assert.Equal(t, 0, armer.Count())
}

func TestRun_UnrelatedFramesIgnored(t *testing.T) {
	ws := newWSServer(t,
		`{"text":"hello there"}`,
		`not even json`,
		`{"type":"presence_change"}`,
		`{"text":"ok: toilet closed"}`,
	)
	connect := newConnectServer(t, wsURL(ws))
	armer := &countingArmer{}

	keeper := newTestKeeper(connect.URL, 30*time.Second, 40*time.Second, armer)

	outcome, err := keeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeClosedByPeer, outcome)
}

func TestRun_TimeoutRearmsExactlyOnce(t *testing.T) {
	ws := newWSServer(t) // 对端沉默
	connect := newConnectServer(t, wsURL(ws))
	armer := &countingArmer{}

	keeper := newTestKeeper(connect.URL, 40*time.Millisecond, 60*time.Millisecond, armer)

	outcome, err := keeper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	// 超时恰好发布一次重新武装
	assert.Equal(t, 1, armer.Count())
}

func TestRun_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	armer := &countingArmer{}

	keeper := newTestKeeper(srv.URL, time.Second, 2*time.Second, armer)

	outcome, err := keeper.Run(context.Background())

	// 连接失败：本次激活不重试、不武装，等下一次触发
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 0, armer.Count())
}

func TestRun_ConnectRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	t.Cleanup(srv.Close)
	armer := &countingArmer{}

	keeper := newTestKeeper(srv.URL, time.Second, 2*time.Second, armer)

	outcome, err := keeper.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_MissingWebsocketURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	armer := &countingArmer{}

	keeper := newTestKeeper(srv.URL, time.Second, 2*time.Second, armer)

	outcome, err := keeper.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing websocket URL")
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestSessionTimeout_WithinJitterWindow(t *testing.T) {
	keeper := newTestKeeper("http://unused", 400*time.Second, 500*time.Second, &countingArmer{})

	for i := 0; i < 100; i++ {
		timeout := keeper.sessionTimeout()
		assert.GreaterOrEqual(t, timeout, 400*time.Second)
		assert.Less(t, timeout, 500*time.Second)
	}
}
