// Package service 实现回调编排与对外客户端
//
// 编排器对入站回调执行固定顺序的外呼链：状态 ping → 下游转发 →
// 频道广播 → 按需武装 presence 会话。入站协议没有可用的重试语义，
// 任何一步失败都只记日志，对回调方永远报告成功。
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/UnaBiz/unatoilet/internal/models"
	"github.com/UnaBiz/unatoilet/internal/normalizer"
)

// FailureKind 编排链的失败种类
type FailureKind string

const (
	// FailureValidationSkip 回调缺少设备 ID，整条静默丢弃
	FailureValidationSkip FailureKind = "validation_skip"
	// FailureDownstream 下游摄取端点外呼失败
	FailureDownstream FailureKind = "downstream_failure"
	// FailureNotification 状态 ping 或广播失败
	FailureNotification FailureKind = "notification_failure"
	// FailurePresence presence 武装触发发布失败
	FailurePresence FailureKind = "presence_failure"
)

// 门磁状态值：0 表示门开
const magnetStatusOpen = 0

// Armer 武装 presence 会话的触发器
type Armer interface {
	Arm(ctx context.Context) error
}

// Outcome 编排链的执行结果
//
// Err 记录第一个中断链条的失败（转发/广播/武装）；
// 尽力而为的状态 ping 失败不计入。
type Outcome struct {
	Record  models.NormalizedRecord // nil 表示回调被校验丢弃
	Relayed bool
	Armed   bool
	Kind    FailureKind
	Err     error
}

// OK 整条链是否对外视为成功完成
// 校验丢弃也算成功：入站方不需要、也不应该重试
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Orchestrator 回调编排器
type Orchestrator struct {
	normalizer   *normalizer.Normalizer
	status       *StatusClient
	ingest       *IngestClient
	broadcast    *BroadcastClient
	armer        Armer
	openMessage  string
	closeMessage string
	logger       *zap.Logger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	norm *normalizer.Normalizer,
	status *StatusClient,
	ingest *IngestClient,
	broadcast *BroadcastClient,
	armer Armer,
	openMessage string,
	closeMessage string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		normalizer:   norm,
		status:       status,
		ingest:       ingest,
		broadcast:    broadcast,
		armer:        armer,
		openMessage:  openMessage,
		closeMessage: closeMessage,
		logger:       logger,
	}
}

// HandleCallback 处理一条入站回调
//
// 步骤（每步依赖前一步成功）：
// 1. 归一化；nil 直接按成功返回，无下游副作用
// 2. 状态 ping，尽力而为，失败只告警不中断
// 3. 转发到下游摄取端点；失败中断链条（广播未确认持久化的状态没有意义）
// 4. 按 magnet_status 广播门开/门关文案
// 5. 门开时武装 presence 会话；门关到此为止
func (o *Orchestrator) HandleCallback(ctx context.Context, raw models.RawCallback, rawBody []byte) Outcome {
	record := o.normalizer.Normalize(raw)
	if record == nil {
		o.logger.Debug("Callback skipped: missing device id",
			zap.String("kind", string(FailureValidationSkip)),
		)
		return Outcome{Kind: FailureValidationSkip}
	}

	o.logger.Debug("Callback normalized",
		zap.String("uuid", record.StringField("uuid")),
		zap.String("device", record.Device()),
		zap.Int("field_count", len(record)),
	)

	// 步骤2：状态 ping（尽力而为）
	if err := o.status.Ping(ctx,
		record.Device(),
		record.StringField("magnet_date"),
		record.StringField("magnet_status"),
	); err != nil {
		o.logFailure(FailureNotification, "Status ping failed", record, err)
	}

	// 步骤3：下游转发
	if err := o.ingest.Relay(ctx, record, rawBody); err != nil {
		o.logFailure(FailureDownstream, "Downstream relay failed", record, err)
		return Outcome{Record: record, Kind: FailureDownstream, Err: err}
	}

	// 步骤4：广播门状态
	status, hasStatus := record.MagnetStatus()
	doorIsOpen := hasStatus && status == magnetStatusOpen
	message := o.closeMessage
	if doorIsOpen {
		message = o.openMessage
	}
	if err := o.broadcast.Broadcast(ctx, message); err != nil {
		o.logFailure(FailureNotification, "Broadcast failed", record, err)
		return Outcome{Record: record, Relayed: true, Kind: FailureNotification, Err: err}
	}

	// 步骤5：门开才武装 presence 会话
	if !doorIsOpen {
		return Outcome{Record: record, Relayed: true}
	}
	if err := o.armer.Arm(ctx); err != nil {
		o.logFailure(FailurePresence, "Presence arming failed", record, err)
		return Outcome{Record: record, Relayed: true, Kind: FailurePresence, Err: err}
	}

	return Outcome{Record: record, Relayed: true, Armed: true}
}

// logFailure 记录被吞掉的步骤失败，唯一的对外可见症状
func (o *Orchestrator) logFailure(kind FailureKind, msg string, record models.NormalizedRecord, err error) {
	o.logger.Error(msg,
		zap.String("kind", string(kind)),
		zap.String("uuid", record.StringField("uuid")),
		zap.String("device", record.Device()),
		zap.Error(err),
	)
}
