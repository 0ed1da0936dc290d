package shared

import (
	"context"
	"errors"
	"fmt"
)

// Session 事务资源端口
// 一个 Session 在 Unit of Work 的整个作用域内被独占使用，不能跨并发操作共享。
type Session interface {
	// Flush 把暂存的写入落到后端并提交事务
	Flush(ctx context.Context) error
	// Rollback 放弃未提交的写入；提交之后调用必须是无害的空操作
	Rollback(ctx context.Context) error
	// Release 归还底层资源（连接、锁），在每条退出路径上都会被调用
	Release()
}

// ContextSession 会话可以给 Unit of Work 内的调用附加上下文，例如 trace span
type ContextSession interface {
	Session
	Context(ctx context.Context) context.Context
}

// SessionOpener 打开新的事务资源
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// SessionOpenerFunc adapts a function to SessionOpener.
type SessionOpenerFunc func(ctx context.Context) (Session, error)

func (f SessionOpenerFunc) Open(ctx context.Context) (Session, error) {
	return f(ctx)
}

// UnwrapSession walks decorator chains (anything with an Unwrap() Session
// method) until it finds a session of type T.
func UnwrapSession[T Session](s Session) (T, bool) {
	for s != nil {
		if t, ok := s.(T); ok {
			return t, true
		}
		w, ok := s.(interface{ Unwrap() Session })
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	var zero T
	return zero, false
}

// UnitOfWorkState Unit of Work 生命周期
//
//	Unset → Open → {Committed | RolledBack} → Closed
type UnitOfWorkState int

const (
	StateUnset UnitOfWorkState = iota
	StateOpen
	StateCommitted
	StateRolledBack
	StateClosed
)

func (s UnitOfWorkState) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UnitOfWork binds one Session to the event sources of its repositories.
// A UnitOfWork belongs to a single logical operation and is not safe for
// concurrent use. Obtain one through Factory.Begin or WithUnitOfWork.
type UnitOfWork struct {
	session     Session
	sources     []EventSource
	dispatcher  EventDispatcher
	observer    DispatchObserver
	state       UnitOfWorkState
	flushFailed bool
	report      DispatchReport
}

// NewUnitOfWork returns an unopened Unit of Work. A nil dispatcher routes
// nothing, so every event is reported as a dispatch failure.
func NewUnitOfWork(dispatcher EventDispatcher, observer DispatchObserver) *UnitOfWork {
	if dispatcher == nil {
		dispatcher = NewEventRouter()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &UnitOfWork{dispatcher: dispatcher, observer: observer}
}

func (u *UnitOfWork) State() UnitOfWorkState { return u.state }

// Context returns ctx as seen by work done inside this Unit of Work.
func (u *UnitOfWork) Context(ctx context.Context) context.Context {
	if cs, ok := u.session.(ContextSession); ok {
		return cs.Context(ctx)
	}
	return ctx
}

// Report returns the outcome of the last PublishEvents call.
func (u *UnitOfWork) Report() DispatchReport { return u.report }

func (u *UnitOfWork) begin(ctx context.Context, opener SessionOpener) (Session, error) {
	if u.state != StateUnset {
		return nil, fmt.Errorf("%w: cannot open a unit of work in state %s", ErrUnitOfWorkState, u.state)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := opener.Open(ctx)
	if err != nil {
		return nil, NewPersistenceError("", "open session", err)
	}
	u.session = session
	u.state = StateOpen
	return session, nil
}

// register appends sources in drain order.
func (u *UnitOfWork) register(sources ...EventSource) {
	for _, s := range sources {
		if s != nil {
			u.sources = append(u.sources, s)
		}
	}
}

// Commit flushes pending writes and, only if that succeeds, publishes the
// queued events. Dispatch failures never fail Commit; they are handed to the
// DispatchObserver.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.state != StateOpen || u.flushFailed {
		return fmt.Errorf("%w: cannot commit in state %s", ErrUnitOfWorkState, u.state)
	}
	if err := ctx.Err(); err != nil {
		u.discard()
		return fmt.Errorf("commit aborted: %w", err)
	}
	if err := u.session.Flush(ctx); err != nil {
		u.flushFailed = true
		u.discard()
		return NewPersistenceError("", "flush", err)
	}

	u.state = StateCommitted
	// the write is durable; dispatch must not be cut short by the caller
	u.PublishEvents(context.WithoutCancel(ctx))
	return nil
}

// Rollback discards queued events and rolls the session back. Once committed
// (or already rolled back) it is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	switch u.state {
	case StateCommitted, StateRolledBack:
		return nil
	case StateOpen:
		u.discard()
		u.state = StateRolledBack
		if err := u.session.Rollback(ctx); err != nil {
			return NewPersistenceError("", "rollback", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot roll back in state %s", ErrUnitOfWorkState, u.state)
	}
}

// PublishEvents drains every registered source in registration order (FIFO
// within each source) and dispatches the events. It does nothing unless the
// Unit of Work has committed.
func (u *UnitOfWork) PublishEvents(ctx context.Context) DispatchReport {
	var report DispatchReport
	if u.state != StateCommitted {
		return report
	}

	for _, src := range u.sources {
		for _, ev := range src.DrainEvents() {
			if err := u.dispatchOne(ctx, ev); err != nil {
				derr := &DispatchError{Event: ev, Err: err}
				report.Failed = append(report.Failed, derr)
				u.observer.DispatchFailed(ctx, derr)
				continue
			}
			report.Sent++
			u.observer.EventDispatched(ctx, ev)
		}
	}
	u.report = report
	return report
}

func (u *UnitOfWork) dispatchOne(ctx context.Context, ev PendingEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispatcher panicked: %v", rec)
		}
	}()
	return u.dispatcher.Dispatch(ctx, ev)
}

// Close ends the scope: an open Unit of Work is rolled back, every queue is
// emptied and the session released. Calling Close twice is harmless.
func (u *UnitOfWork) Close(ctx context.Context) error {
	if u.state == StateClosed || u.state == StateUnset {
		return nil
	}

	var err error
	if u.state == StateOpen {
		err = u.Rollback(context.WithoutCancel(ctx))
	}
	u.discard()
	u.session.Release()
	u.state = StateClosed
	return err
}

func (u *UnitOfWork) discard() {
	for _, src := range u.sources {
		src.DiscardEvents()
	}
}

// Binder constructs the repositories of one Unit of Work on top of its
// session. The returned sources are drained in the order given.
type Binder[R any] func(session Session) (R, []EventSource, error)

// Factory opens Units of Work with a fixed repository set R.
type Factory[R any] struct {
	opener     SessionOpener
	bind       Binder[R]
	dispatcher EventDispatcher
	observer   DispatchObserver
}

// FactoryOption customises a Factory.
type FactoryOption func(*factoryConfig)

type factoryConfig struct {
	observer DispatchObserver
}

// WithDispatchObserver sets the observer notified of dispatch outcomes.
func WithDispatchObserver(o DispatchObserver) FactoryOption {
	return func(c *factoryConfig) { c.observer = o }
}

func NewFactory[R any](opener SessionOpener, dispatcher EventDispatcher, bind Binder[R], opts ...FactoryOption) *Factory[R] {
	cfg := factoryConfig{observer: NopObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Factory[R]{
		opener:     opener,
		bind:       bind,
		dispatcher: dispatcher,
		observer:   cfg.observer,
	}
}

// Begin opens a Unit of Work and binds its repositories. The caller owns the
// scope and must defer Close. WithUnitOfWork does this for you.
func (f *Factory[R]) Begin(ctx context.Context) (*UnitOfWork, R, error) {
	var zero R
	uow := NewUnitOfWork(f.dispatcher, f.observer)
	session, err := uow.begin(ctx, f.opener)
	if err != nil {
		return nil, zero, err
	}

	repos, sources, err := f.bind(session)
	if err != nil {
		_ = uow.Close(ctx)
		return nil, zero, NewPersistenceError("", "bind repositories", err)
	}
	uow.register(sources...)
	return uow, repos, nil
}

// WithUnitOfWork runs fn inside a fresh Unit of Work.
//
// fn may call Commit itself; if it returns nil without doing so the Unit of
// Work is committed on its behalf. On an error, a panic or a cancelled
// context nothing is dispatched, the session is rolled back, and it is always
// released. Panics are re-raised after cleanup.
func WithUnitOfWork[R, T any](
	ctx context.Context,
	f *Factory[R],
	fn func(ctx context.Context, uow *UnitOfWork, repos R) (T, error),
) (result T, err error) {
	uow, repos, err := f.Begin(ctx)
	if err != nil {
		return result, err
	}
	ctx = uow.Context(ctx)

	defer func() {
		rec := recover()
		if cerr := uow.Close(ctx); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				err = errors.Join(err, cerr)
			}
		}
		if rec != nil {
			panic(rec)
		}
	}()

	result, err = fn(ctx, uow, repos)
	if err != nil {
		return result, err
	}
	if uow.State() == StateOpen {
		if err = uow.Commit(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return result, nil
}
