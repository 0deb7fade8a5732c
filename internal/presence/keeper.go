// Package presence 维持对外可见的"在线"状态
//
// 一次会话：向 presence 服务换取 websocket 端点 → 建立长连接 →
// 等待关闭信号帧和抖动超时二者先到者。超时则发布一条重新武装
// 消息开启下一个会话；收到关闭信号则终止且不再武装。
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Outcome 一次会话的终态
type Outcome string

const (
	// OutcomeClosedByPeer 收到关闭信号帧，终止且不再武装
	OutcomeClosedByPeer Outcome = "closed-by-peer"
	// OutcomeTimedOut 超时先到，已发布重新武装消息
	OutcomeTimedOut Outcome = "timed-out"
	// OutcomeFailed 连接或套接字错误，会话终止，等待下一次外部触发
	OutcomeFailed Outcome = "failed"
)

// Armer 重新武装触发器（由持久化队列的发布端实现）
type Armer interface {
	Arm(ctx context.Context) error
}

// connectResponse presence 服务 connect 端点的响应
type connectResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	URL   string `json:"url"`
}

// frame 长连接上的文本帧，只关心 text 字段
type frame struct {
	Text string `json:"text"`
}

// Options Keeper 的配置
type Options struct {
	ConnectURL    string        // connect 端点，返回 websocket URL
	Token         string        // presence 服务令牌
	ClosingSignal string        // 关闭信号匹配串（子串匹配）
	TimeoutMin    time.Duration // 会话超时下限
	TimeoutMax    time.Duration // 会话超时上限
	HTTPTimeout   time.Duration // connect 外呼超时
}

// Keeper 单会话保活状态机
//
// 状态流转：Connecting → Live → {ClosedByPeer, TimedOut}。
// 会话之间不共享任何进程内状态，重新武装经由持久化队列。
type Keeper struct {
	opts       Options
	httpClient *resty.Client
	dialer     *websocket.Dialer
	armer      Armer
	logger     *zap.Logger
}

// NewKeeper 创建保活状态机
func NewKeeper(opts Options, armer Armer, logger *zap.Logger) *Keeper {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(opts.HTTPTimeout).
		SetHeader("Accept", "application/json")

	return &Keeper{
		opts:       opts,
		httpClient: client,
		dialer:     websocket.DefaultDialer,
		armer:      armer,
		logger:     logger,
	}
}

// Run 执行一次完整的 presence 会话
//
// Connecting 失败时返回 OutcomeFailed 和错误，不在本次激活内重试，
// 下一次武装自然会重连。
func (k *Keeper) Run(ctx context.Context) (Outcome, error) {
	endpoint, err := k.connect(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	return k.live(ctx, endpoint)
}

// connect 向 presence 服务换取 websocket 端点
func (k *Keeper) connect(ctx context.Context) (string, error) {
	var result connectResponse
	resp, err := k.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"token":  k.opts.Token,
			"pretty": "1",
		}).
		SetResult(&result).
		Get(k.opts.ConnectURL)

	if err != nil {
		return "", fmt.Errorf("failed to reach presence service: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("presence service returned %s", resp.Status())
	}
	if !result.OK && result.Error != "" {
		return "", fmt.Errorf("presence connect rejected: %s", result.Error)
	}
	if result.URL == "" {
		return "", errors.New("missing websocket URL")
	}

	k.logger.Info("Presence endpoint obtained")
	return result.URL, nil
}

// live 打开长连接并等待关闭信号与超时的单胜者竞赛
func (k *Keeper) live(ctx context.Context, endpoint string) (Outcome, error) {
	conn, _, err := k.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to open live connection: %w", err)
	}
	defer conn.Close()

	// 打开即发一帧，让对端看到连接活跃
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to send hello frame: %w", err)
	}

	closed := make(chan struct{})
	readerDone := make(chan struct{})
	go k.watchFrames(conn, closed, readerDone)

	timeout := k.sessionTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	k.logger.Info("Waiting for closing signal",
		zap.Duration("timeout", timeout),
	)

	select {
	case <-closed:
		// 关闭信号先到：作废超时，关连接，不再武装
		timer.Stop()
		conn.Close()
		<-readerDone
		k.logger.Info("Closing signal received, session terminated")
		return OutcomeClosedByPeer, nil

	case <-timer.C:
		// 超时先到：关连接，恰好发布一次重新武装
		conn.Close()
		<-readerDone
		k.logger.Info("Session timed out, re-arming")
		if err := k.armer.Arm(ctx); err != nil {
			return OutcomeTimedOut, fmt.Errorf("failed to re-arm: %w", err)
		}
		return OutcomeTimedOut, nil

	case <-ctx.Done():
		conn.Close()
		<-readerDone
		return OutcomeFailed, ctx.Err()
	}
}

// watchFrames 读取入站帧，匹配到关闭信号时关闭 closed 通道
// 连接被任何一方关闭后结束
func (k *Keeper) watchFrames(conn *websocket.Conn, closed chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if f.Text == "" {
			continue
		}

		k.logger.Debug("Frame received", zap.String("text", f.Text))
		if strings.Contains(f.Text, k.opts.ClosingSignal) {
			close(closed)
			return
		}
	}
}

// sessionTimeout 在 [TimeoutMin, TimeoutMax] 内均匀取超时
// 抖动用于避免并发武装的会话同步重连
func (k *Keeper) sessionTimeout() time.Duration {
	if k.opts.TimeoutMax <= k.opts.TimeoutMin {
		return k.opts.TimeoutMin
	}
	jitter := time.Duration(rand.Int63n(int64(k.opts.TimeoutMax - k.opts.TimeoutMin)))
	return k.opts.TimeoutMin + jitter
}
