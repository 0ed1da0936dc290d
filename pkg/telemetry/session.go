package telemetry

import (
	"context"

	"recordhub/domain/shared"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "recordhub/unit_of_work"

// TracingOpener wraps every session in a span that lives until Release.
type TracingOpener struct {
	next   shared.SessionOpener
	tracer trace.Tracer
	store  string
}

// NewTracingOpener tp 为 nil 时使用全局 TracerProvider
func NewTracingOpener(next shared.SessionOpener, store string, tp trace.TracerProvider) *TracingOpener {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingOpener{next: next, tracer: tp.Tracer(tracerName), store: store}
}

func (o *TracingOpener) Open(ctx context.Context) (shared.Session, error) {
	ctx, span := o.tracer.Start(ctx, "unit_of_work",
		trace.WithAttributes(attribute.String("store", o.store)))
	s, err := o.next.Open(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open session failed")
		span.End()
		return nil, err
	}
	return &tracingSession{Session: s, span: span}, nil
}

type tracingSession struct {
	shared.Session
	span trace.Span
}

func (s *tracingSession) Unwrap() shared.Session { return s.Session }

// Context 让 Unit of Work 内的查询和日志挂在 unit_of_work span 下
func (s *tracingSession) Context(ctx context.Context) context.Context {
	return trace.ContextWithSpan(ctx, s.span)
}

func (s *tracingSession) Flush(ctx context.Context) error {
	s.span.AddEvent("flush")
	err := s.Session.Flush(s.Context(ctx))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, "flush failed")
		return err
	}
	s.span.SetAttributes(attribute.Bool("committed", true))
	return nil
}

func (s *tracingSession) Rollback(ctx context.Context) error {
	s.span.AddEvent("rollback")
	err := s.Session.Rollback(s.Context(ctx))
	if err != nil {
		s.span.RecordError(err)
	}
	return err
}

func (s *tracingSession) Release() {
	s.Session.Release()
	s.span.End()
}

var (
	_ shared.SessionOpener  = (*TracingOpener)(nil)
	_ shared.ContextSession = (*tracingSession)(nil)
)
