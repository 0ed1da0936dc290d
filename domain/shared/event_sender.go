package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSendRejected is reported when a sender returns false.
	ErrSendRejected = errors.New("sender reported failure")

	// ErrNoEventSender is reported when no sender is routed for an event.
	ErrNoEventSender = errors.New("no event sender registered")
)

// EventSender delivers one committed event to an external consumer.
// Implementations report failure through the return value and must not panic;
// a panic is still contained by the dispatch loop.
type EventSender interface {
	Send(ctx context.Context, aggregate AggregateRoot) bool
}

// SenderFunc adapts a function to EventSender.
type SenderFunc func(ctx context.Context, aggregate AggregateRoot) bool

func (f SenderFunc) Send(ctx context.Context, aggregate AggregateRoot) bool {
	return f(ctx, aggregate)
}

// EventDispatcher hands a drained event to whatever delivers it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event PendingEvent) error
}

// DispatchObserver is notified about every dispatch outcome. It is the
// monitoring hook for failures that would otherwise be silent.
type DispatchObserver interface {
	EventDispatched(ctx context.Context, event PendingEvent)
	DispatchFailed(ctx context.Context, err *DispatchError)
}

// NopObserver ignores dispatch outcomes.
type NopObserver struct{}

func (NopObserver) EventDispatched(context.Context, PendingEvent)  {}
func (NopObserver) DispatchFailed(context.Context, *DispatchError) {}

// ObserverChain fans out to several observers in order.
type ObserverChain []DispatchObserver

func (c ObserverChain) EventDispatched(ctx context.Context, event PendingEvent) {
	for _, o := range c {
		o.EventDispatched(ctx, event)
	}
}

func (c ObserverChain) DispatchFailed(ctx context.Context, err *DispatchError) {
	for _, o := range c {
		o.DispatchFailed(ctx, err)
	}
}

type routeKey struct {
	aggregateType string
	kind          EventKind
}

// EventRouter picks the sender for each (aggregate type, kind) pair.
// Routes are normally registered once at start-up; lookups are safe for
// concurrent use.
type EventRouter struct {
	mu     sync.RWMutex
	routes map[routeKey]EventSender
}

func NewEventRouter() *EventRouter {
	return &EventRouter{routes: make(map[routeKey]EventSender)}
}

// Register sets the sender for aggregateType/kind, replacing any previous one.
func (r *EventRouter) Register(aggregateType string, kind EventKind, sender EventSender) *EventRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeKey{aggregateType, kind}] = sender
	return r
}

// Sender returns the sender routed for aggregateType/kind.
func (r *EventRouter) Sender(aggregateType string, kind EventKind) (EventSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.routes[routeKey{aggregateType, kind}]
	return s, ok
}

// Dispatch sends event through its routed sender. A false return, a missing
// route or a panic inside the sender all come back as errors.
func (r *EventRouter) Dispatch(ctx context.Context, event PendingEvent) (err error) {
	sender, ok := r.Sender(event.AggregateType(), event.Kind)
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoEventSender, event.Name())
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sender panicked: %v", rec)
		}
	}()

	if !sender.Send(ctx, event.Aggregate) {
		return ErrSendRejected
	}
	return nil
}

// DispatchReport summarises one PublishEvents call.
type DispatchReport struct {
	Sent   int
	Failed []*DispatchError
}

func (r DispatchReport) Total() int {
	return r.Sent + len(r.Failed)
}

var _ EventDispatcher = (*EventRouter)(nil)
