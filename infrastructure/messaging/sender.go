// Package messaging 事件发送端：日志、邮件、redis 队列
package messaging

import (
	"context"

	"recordhub/domain/shared"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
)

const (
	VariantLog   = "log"
	VariantMail  = "mail"
	VariantQueue = "queue"
	VariantNoop  = "noop"
)

// snapshot 聚合没有实现 Snapshotter 时只输出标识
func snapshot(agg shared.AggregateRoot) map[string]any {
	if s, ok := agg.(shared.Snapshotter); ok {
		return s.Snapshot()
	}
	return map[string]any{"id": agg.ID()}
}

// LogSender writes each event as a structured log entry.
type LogSender struct {
	log  *zap.Logger
	kind shared.EventKind
}

func NewLogSender(log *zap.Logger, kind shared.EventKind) *LogSender {
	if log == nil {
		log = logger.Get()
	}
	return &LogSender{log: log.Named("events"), kind: kind}
}

func (s *LogSender) Send(ctx context.Context, agg shared.AggregateRoot) bool {
	logger.WithRequestIDFrom(s.log, ctx).Info("Domain event",
		zap.String("event", agg.AggregateType()+"."+string(s.kind)),
		zap.String("aggregate_id", agg.ID()),
		zap.Any("payload", snapshot(agg)),
	)
	return true
}

// NoOpSender accepts and drops every event.
type NoOpSender struct{}

func (NoOpSender) Send(context.Context, shared.AggregateRoot) bool { return true }

var (
	_ shared.EventSender = (*LogSender)(nil)
	_ shared.EventSender = NoOpSender{}
)
