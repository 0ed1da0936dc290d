package shared_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"recordhub/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetType = "widget"

type widget struct {
	id    string
	label string
}

func (w *widget) ID() string            { return w.id }
func (w *widget) AggregateType() string { return widgetType }

// journal records session and sender activity in call order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeSession struct {
	log       *journal
	flushErr  error
	flushed   bool
	rollbacks int
	released  bool
}

func (s *fakeSession) Flush(ctx context.Context) error {
	s.log.add("flush")
	if s.flushErr != nil {
		return s.flushErr
	}
	s.flushed = true
	return nil
}

func (s *fakeSession) Rollback(ctx context.Context) error {
	s.log.add("rollback")
	s.rollbacks++
	return nil
}

func (s *fakeSession) Release() {
	s.log.add("release")
	s.released = true
}

type widgetRepo struct {
	shared.EventQueue
	name string
}

func (r *widgetRepo) Add(w *widget) error {
	return r.Record(shared.EventCreated, w)
}

func (r *widgetRepo) GetForUpdate(w *widget) error {
	return r.Record(shared.EventUpdated, w)
}

type widgetRepos struct {
	First  *widgetRepo
	Second *widgetRepo
}

type harness struct {
	log      *journal
	session  *fakeSession
	router   *shared.EventRouter
	observer *recordingObserver
	factory  *shared.Factory[widgetRepos]
	repos    widgetRepos
}

type recordingObserver struct {
	mu         sync.Mutex
	dispatched []shared.PendingEvent
	failed     []*shared.DispatchError
}

func (o *recordingObserver) EventDispatched(_ context.Context, ev shared.PendingEvent) {
	o.mu.Lock()
	o.dispatched = append(o.dispatched, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) DispatchFailed(_ context.Context, err *shared.DispatchError) {
	o.mu.Lock()
	o.failed = append(o.failed, err)
	o.mu.Unlock()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{log: &journal{}, router: shared.NewEventRouter(), observer: &recordingObserver{}}
	h.session = &fakeSession{log: h.log}

	send := func(kind string) shared.EventSender {
		return shared.SenderFunc(func(_ context.Context, agg shared.AggregateRoot) bool {
			w := agg.(*widget)
			h.log.add(kind + ":" + w.id + ":" + w.label)
			return true
		})
	}
	h.router.Register(widgetType, shared.EventCreated, send("created"))
	h.router.Register(widgetType, shared.EventUpdated, send("updated"))

	opener := shared.SessionOpenerFunc(func(ctx context.Context) (shared.Session, error) {
		h.log.add("open")
		return h.session, nil
	})
	h.factory = shared.NewFactory(opener, h.router, func(s shared.Session) (widgetRepos, []shared.EventSource, error) {
		h.repos = widgetRepos{First: &widgetRepo{name: "first"}, Second: &widgetRepo{name: "second"}}
		return h.repos, []shared.EventSource{h.repos.First, h.repos.Second}, nil
	}, shared.WithDispatchObserver(h.observer))
	return h
}

func TestWithUnitOfWork_CommitFlushesBeforeDispatch(t *testing.T) {
	h := newHarness(t)

	got, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (string, error) {
			w := &widget{id: "w1", label: "a"}
			return w.id, repos.First.Add(w)
		})

	require.NoError(t, err)
	assert.Equal(t, "w1", got)
	assert.Equal(t, []string{"open", "flush", "created:w1:a", "release"}, h.log.all())
	assert.Len(t, h.observer.dispatched, 1)
	assert.Empty(t, h.observer.failed)
	assert.Zero(t, h.repos.First.Len())
}

func TestWithUnitOfWork_FIFOWithinRepository(t *testing.T) {
	h := newHarness(t)

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			for _, id := range []string{"w1", "w2", "w3", "w4"} {
				if err := repos.First.Add(&widget{id: id}); err != nil {
					return struct{}{}, err
				}
			}
			return struct{}{}, uow.Commit(ctx)
		})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"open", "flush",
		"created:w1:", "created:w2:", "created:w3:", "created:w4:",
		"release",
	}, h.log.all())
}

func TestWithUnitOfWork_DrainsRepositoriesInRegistrationOrder(t *testing.T) {
	h := newHarness(t)

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			require.NoError(t, repos.Second.Add(&widget{id: "b1"}))
			require.NoError(t, repos.First.Add(&widget{id: "a1"}))
			require.NoError(t, repos.Second.Add(&widget{id: "b2"}))
			require.NoError(t, repos.First.Add(&widget{id: "a2"}))
			return struct{}{}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"open", "flush",
		"created:a1:", "created:a2:", "created:b1:", "created:b2:",
		"release",
	}, h.log.all())
}

func TestWithUnitOfWork_UpdatedEventCarriesMutation(t *testing.T) {
	h := newHarness(t)
	w := &widget{id: "w1", label: "before"}

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			require.NoError(t, repos.First.GetForUpdate(w))
			w.label = "after"
			return struct{}{}, nil
		})

	require.NoError(t, err)
	assert.Contains(t, h.log.all(), "updated:w1:after")
	assert.NotContains(t, h.log.all(), "updated:w1:before")
}

func TestWithUnitOfWork_FlushFailureDispatchesNothing(t *testing.T) {
	h := newHarness(t)
	h.session.flushErr = errors.New("duplicate key")

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			require.NoError(t, repos.First.Add(&widget{id: "w1"}))
			return struct{}{}, uow.Commit(ctx)
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	var pe *shared.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"open", "flush", "rollback", "release"}, h.log.all())
	assert.Empty(t, h.observer.dispatched)
	assert.Zero(t, h.repos.First.Len())
}

func TestWithUnitOfWork_CallbackErrorRollsBack(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (int, error) {
			require.NoError(t, repos.First.Add(&widget{id: "w1"}))
			return 0, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"open", "rollback", "release"}, h.log.all())
	assert.False(t, h.session.flushed)
	assert.Zero(t, h.repos.First.Len())
}

func TestWithUnitOfWork_PanicRollsBackAndReleases(t *testing.T) {
	h := newHarness(t)

	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = shared.WithUnitOfWork(context.Background(), h.factory,
			func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (int, error) {
				_ = repos.First.Add(&widget{id: "w1"})
				panic("kaboom")
			})
	})

	assert.Equal(t, []string{"open", "rollback", "release"}, h.log.all())
	assert.Empty(t, h.observer.dispatched)
	assert.Zero(t, h.repos.First.Len())
}

func TestWithUnitOfWork_CancelledContextNeverDispatches(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := shared.WithUnitOfWork(ctx, h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (int, error) {
			require.NoError(t, repos.First.Add(&widget{id: "w1"}))
			cancel()
			return 1, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"open", "rollback", "release"}, h.log.all())
	assert.Empty(t, h.observer.dispatched)
}

func TestWithUnitOfWork_OpenFailureIsPersistenceError(t *testing.T) {
	opener := shared.SessionOpenerFunc(func(ctx context.Context) (shared.Session, error) {
		return nil, errors.New("connection refused")
	})
	factory := shared.NewFactory(opener, shared.NewEventRouter(), func(s shared.Session) (widgetRepos, []shared.EventSource, error) {
		t.Fatal("binder must not run without a session")
		return widgetRepos{}, nil, nil
	})

	_, err := shared.WithUnitOfWork(context.Background(), factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (int, error) {
			t.Fatal("callback must not run without a session")
			return 0, nil
		})

	assert.ErrorIs(t, err, shared.ErrPersistence)
}

func TestUnitOfWork_DispatchFailuresAreObservedNotReturned(t *testing.T) {
	h := newHarness(t)
	h.router.Register(widgetType, shared.EventCreated, shared.SenderFunc(func(context.Context, shared.AggregateRoot) bool {
		return false
	}))
	h.router.Register(widgetType, shared.EventUpdated, shared.SenderFunc(func(context.Context, shared.AggregateRoot) bool {
		panic("sender exploded")
	}))

	var report shared.DispatchReport
	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			require.NoError(t, repos.First.Add(&widget{id: "w1"}))
			require.NoError(t, repos.First.GetForUpdate(&widget{id: "w2"}))
			if err := uow.Commit(ctx); err != nil {
				return struct{}{}, err
			}
			report = uow.Report()
			return struct{}{}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Sent)
	require.Len(t, report.Failed, 2)
	require.Len(t, h.observer.failed, 2)
	assert.ErrorIs(t, h.observer.failed[0], shared.ErrDispatch)
	assert.ErrorIs(t, h.observer.failed[0], shared.ErrSendRejected)
	assert.Equal(t, "w1", h.observer.failed[0].Event.AggregateID())
	assert.Contains(t, h.observer.failed[1].Error(), "sender exploded")
	assert.Equal(t, 0, h.session.rollbacks)
}

func TestUnitOfWork_MissingRouteIsDispatchError(t *testing.T) {
	h := newHarness(t)
	h.router = shared.NewEventRouter()
	h.factory = shared.NewFactory(shared.SessionOpenerFunc(func(ctx context.Context) (shared.Session, error) {
		return h.session, nil
	}), h.router, func(s shared.Session) (widgetRepos, []shared.EventSource, error) {
		r := widgetRepos{First: &widgetRepo{}, Second: &widgetRepo{}}
		return r, []shared.EventSource{r.First, r.Second}, nil
	}, shared.WithDispatchObserver(h.observer))

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			return struct{}{}, repos.First.Add(&widget{id: "w1"})
		})

	require.NoError(t, err)
	require.Len(t, h.observer.failed, 1)
	assert.ErrorIs(t, h.observer.failed[0], shared.ErrNoEventSender)
}

func TestUnitOfWork_StateMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	uow, repos, err := h.factory.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, shared.StateOpen, uow.State())

	// nothing leaves before commit
	require.NoError(t, repos.First.Add(&widget{id: "w1"}))
	assert.Zero(t, uow.PublishEvents(ctx).Total())
	assert.Equal(t, 1, repos.First.Len())

	require.NoError(t, uow.Commit(ctx))
	assert.Equal(t, shared.StateCommitted, uow.State())

	err = uow.Commit(ctx)
	assert.ErrorIs(t, err, shared.ErrUnitOfWorkState)

	// rollback after commit is a no-op
	require.NoError(t, uow.Rollback(ctx))
	assert.Equal(t, 0, h.session.rollbacks)
	assert.Equal(t, shared.StateCommitted, uow.State())

	require.NoError(t, uow.Close(ctx))
	require.NoError(t, uow.Close(ctx))
	assert.Equal(t, shared.StateClosed, uow.State())
	assert.True(t, h.session.released)

	assert.ErrorIs(t, uow.Commit(ctx), shared.ErrUnitOfWorkState)
	assert.ErrorIs(t, uow.Rollback(ctx), shared.ErrUnitOfWorkState)
}

func TestUnitOfWork_ExplicitRollbackThenReturn(t *testing.T) {
	h := newHarness(t)

	_, err := shared.WithUnitOfWork(context.Background(), h.factory,
		func(ctx context.Context, uow *shared.UnitOfWork, repos widgetRepos) (struct{}, error) {
			require.NoError(t, repos.First.Add(&widget{id: "w1"}))
			return struct{}{}, uow.Rollback(ctx)
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"open", "rollback", "release"}, h.log.all())
	assert.Empty(t, h.observer.dispatched)
}

func TestUnitOfWork_CommitAfterFailedFlushIsRejected(t *testing.T) {
	h := newHarness(t)
	h.session.flushErr = errors.New("disk full")
	ctx := context.Background()

	uow, _, err := h.factory.Begin(ctx)
	require.NoError(t, err)
	defer uow.Close(ctx)

	require.ErrorIs(t, uow.Commit(ctx), shared.ErrPersistence)
	assert.ErrorIs(t, uow.Commit(ctx), shared.ErrUnitOfWorkState)
}

type wrappedSession struct {
	shared.Session
}

func (w wrappedSession) Unwrap() shared.Session { return w.Session }

func TestUnwrapSession(t *testing.T) {
	inner := &fakeSession{log: &journal{}}
	var s shared.Session = wrappedSession{Session: wrappedSession{Session: inner}}

	got, ok := shared.UnwrapSession[*fakeSession](s)
	require.True(t, ok)
	assert.Same(t, inner, got)

	_, ok = shared.UnwrapSession[*fakeSession](wrappedSession{Session: nil})
	assert.False(t, ok)
}

type ctxKey struct{}

// taggingSession attaches a value to the context of work inside the Unit of Work.
type taggingSession struct {
	*fakeSession
}

func (s taggingSession) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, "tagged")
}

func TestWithUnitOfWork_SessionContextReachesCallback(t *testing.T) {
	inner := &fakeSession{log: &journal{}}
	opener := shared.SessionOpenerFunc(func(context.Context) (shared.Session, error) {
		return taggingSession{fakeSession: inner}, nil
	})
	f := shared.NewFactory(opener, shared.NewEventRouter(), func(shared.Session) (struct{}, []shared.EventSource, error) {
		return struct{}{}, nil, nil
	})

	got, err := shared.WithUnitOfWork(context.Background(), f, func(ctx context.Context, _ *shared.UnitOfWork, _ struct{}) (any, error) {
		return ctx.Value(ctxKey{}), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tagged", got)
	assert.True(t, inner.flushed)

	// 普通 Session 不改变 ctx
	plain := shared.NewUnitOfWork(nil, nil)
	ctx := context.Background()
	assert.Equal(t, ctx, plain.Context(ctx))
}
