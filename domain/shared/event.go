package shared

import (
	"fmt"
	"sync"
	"time"
)

// EventKind 领域生命周期事件类型
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
)

func (k EventKind) Valid() bool {
	return k == EventCreated || k == EventUpdated
}

// DefaultEventQueueCapacity bounds how many events one repository may hold
// between two drains.
const DefaultEventQueueCapacity = 1024

// PendingEvent 待发送的领域事件
// Aggregate 保存的是聚合引用而不是快照：提交前对聚合的原地修改会反映在发送的内容里。
type PendingEvent struct {
	Kind       EventKind
	Aggregate  AggregateRoot
	RecordedAt time.Time
}

// NewPendingEvent builds an event for agg recorded now.
func NewPendingEvent(kind EventKind, agg AggregateRoot) PendingEvent {
	return PendingEvent{Kind: kind, Aggregate: agg, RecordedAt: time.Now().UTC()}
}

func (e PendingEvent) AggregateType() string {
	if e.Aggregate == nil {
		return ""
	}
	return e.Aggregate.AggregateType()
}

func (e PendingEvent) AggregateID() string {
	if e.Aggregate == nil {
		return ""
	}
	return e.Aggregate.ID()
}

// Name returns "<aggregate type>.<kind>", e.g. "user.created".
func (e PendingEvent) Name() string {
	return fmt.Sprintf("%s.%s", e.AggregateType(), e.Kind)
}

// ValidateEvent 校验事件的基本字段
func ValidateEvent(e PendingEvent) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Aggregate == nil {
		return fmt.Errorf("event %s has no aggregate", e.Kind)
	}
	if e.AggregateID() == "" {
		return fmt.Errorf("event %s has empty aggregate id", e.Name())
	}
	return nil
}

// EventSource is what a Unit of Work sees of a repository: its pending
// events and nothing else.
type EventSource interface {
	// DrainEvents moves every queued event out in FIFO order.
	DrainEvents() []PendingEvent
	// DiscardEvents drops queued events without returning them.
	DiscardEvents()
}

// EventQueue is a bounded, append-only FIFO owned by one repository value.
// It is embedded by repository implementations; the zero value uses
// DefaultEventQueueCapacity.
type EventQueue struct {
	mu       sync.Mutex
	events   []PendingEvent
	capacity int
}

// NewEventQueue returns a queue holding at most capacity events.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultEventQueueCapacity
	}
	return &EventQueue{capacity: capacity}
}

// Record appends an event. It fails with ErrEventQueueFull once the bound is
// reached; callers surface that as a persistence failure.
func (q *EventQueue) Record(kind EventKind, agg AggregateRoot) error {
	ev := NewPendingEvent(kind, agg)
	if err := ValidateEvent(ev); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	limit := q.capacity
	if limit <= 0 {
		limit = DefaultEventQueueCapacity
	}
	if len(q.events) >= limit {
		return fmt.Errorf("%w: %d events pending", ErrEventQueueFull, len(q.events))
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *EventQueue) DrainEvents() []PendingEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.events
	q.events = nil
	return out
}

func (q *EventQueue) DiscardEvents() {
	q.mu.Lock()
	q.events = nil
	q.mu.Unlock()
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

var _ EventSource = (*EventQueue)(nil)
