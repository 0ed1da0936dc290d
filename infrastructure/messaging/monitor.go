package messaging

import (
	"context"

	"recordhub/domain/shared"
	"recordhub/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FailureRecorder keeps dispatch failures for later redelivery.
type FailureRecorder interface {
	Save(ctx context.Context, derr *shared.DispatchError) error
}

// DispatchMonitor 发送结果的观察者：计数、日志，失败时交给 FailureRecorder
type DispatchMonitor struct {
	log      *zap.Logger
	recorder FailureRecorder
	sent     metric.Int64Counter
	failed   metric.Int64Counter
}

type MonitorOption func(*DispatchMonitor)

// WithFailureRecorder persists every failure.
func WithFailureRecorder(r FailureRecorder) MonitorOption {
	return func(m *DispatchMonitor) { m.recorder = r }
}

// WithMeter 默认使用全局 MeterProvider
func WithMeter(meter metric.Meter) MonitorOption {
	return func(m *DispatchMonitor) { m.initCounters(meter) }
}

func NewDispatchMonitor(log *zap.Logger, opts ...MonitorOption) *DispatchMonitor {
	if log == nil {
		log = logger.Get()
	}
	m := &DispatchMonitor{log: log.Named("dispatch")}
	m.initCounters(otel.Meter("recordhub/messaging"))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *DispatchMonitor) initCounters(meter metric.Meter) {
	sent, err := meter.Int64Counter("recordhub.events.dispatched",
		metric.WithDescription("Domain events delivered after commit"))
	if err != nil {
		m.log.Warn("Failed to create metric", zap.String("metric", "recordhub.events.dispatched"), zap.Error(err))
	}
	failed, err := meter.Int64Counter("recordhub.events.dispatch_failures",
		metric.WithDescription("Domain events whose sender failed after commit"))
	if err != nil {
		m.log.Warn("Failed to create metric", zap.String("metric", "recordhub.events.dispatch_failures"), zap.Error(err))
	}
	m.sent, m.failed = sent, failed
}

func (m *DispatchMonitor) EventDispatched(ctx context.Context, ev shared.PendingEvent) {
	if m.sent != nil {
		m.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("event", ev.Name())))
	}
	logger.WithRequestIDFrom(m.log, ctx).Debug("Event dispatched",
		zap.String("event", ev.Name()),
		zap.String("aggregate_id", ev.AggregateID()),
	)
}

func (m *DispatchMonitor) DispatchFailed(ctx context.Context, derr *shared.DispatchError) {
	if m.failed != nil {
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("event", derr.Event.Name())))
	}
	log := logger.WithRequestIDFrom(m.log, ctx)
	log.Error("Event dispatch failed after commit",
		zap.String("event", derr.Event.Name()),
		zap.String("aggregate_id", derr.Event.AggregateID()),
		zap.Error(derr.Err),
	)
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Save(ctx, derr); err != nil {
		log.Error("Failed to record dispatch failure",
			zap.String("event", derr.Event.Name()),
			zap.String("aggregate_id", derr.Event.AggregateID()),
			zap.Error(err),
		)
	}
}

var _ shared.DispatchObserver = (*DispatchMonitor)(nil)
