package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"recordhub/config"
	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/infrastructure/persistence"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePusher struct {
	pushed  [][]byte
	trimmed []int64
	err     error
}

func (p *fakePusher) RPush(_ context.Context, _ string, values ...interface{}) *redis.IntCmd {
	if p.err != nil {
		return redis.NewIntResult(0, p.err)
	}
	for _, v := range values {
		p.pushed = append(p.pushed, v.([]byte))
	}
	return redis.NewIntResult(int64(len(p.pushed)), nil)
}

func (p *fakePusher) LTrim(_ context.Context, _ string, start, _ int64) *redis.StatusCmd {
	p.trimmed = append(p.trimmed, start)
	return redis.NewStatusResult("OK", nil)
}

type fakeRecorder struct {
	saved []*shared.DispatchError
	err   error
}

func (r *fakeRecorder) Save(_ context.Context, derr *shared.DispatchError) error {
	r.saved = append(r.saved, derr)
	return r.err
}

func testUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{Email: "Ann@Example.com", HashedPassword: "hash", Username: "ann"})
	require.NoError(t, err)
	return u
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core), shared.EventCreated)

	ctx := persistence.ContextWithRequestID(context.Background(), "req-9")
	assert.True(t, s.Send(ctx, testUser(t)))

	entries := logs.FilterMessage("Domain event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "user.created", fields["event"])
	assert.Equal(t, "req-9", fields["request_id"])
	payload, ok := fields["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", payload["email"])
	assert.NotContains(t, payload, "hashed_password")
}

func TestMailSenderAuthCode(t *testing.T) {
	mailer := &fakeMailer{}
	s := NewMailSender(mailer, 0, 1, shared.EventCreated, zap.NewNop())

	code, err := user.NewAuthCode("bob@example.com", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, s.Send(context.Background(), code))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "bob@example.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, code.Code())
}

func TestMailSenderFailures(t *testing.T) {
	s := NewMailSender(&fakeMailer{err: errors.New("connection refused")}, 0, 1, shared.EventCreated, zap.NewNop())
	assert.False(t, s.Send(context.Background(), testUser(t)))

	f, err := file.NewFile("avatar", "a.png", "", "")
	require.NoError(t, err)
	ok := NewMailSender(&fakeMailer{}, 0, 1, shared.EventCreated, zap.NewNop()).Send(context.Background(), f)
	assert.False(t, ok)

	code, err := user.NewAuthCode("bob@example.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, s.ForKind(shared.EventUpdated).Send(context.Background(), code))
}

func TestMailSenderThrottleFailsFastWithoutDeadline(t *testing.T) {
	mailer := &fakeMailer{}
	core, logs := observer.New(zap.WarnLevel)
	s := NewMailSender(mailer, 0.001, 1, shared.EventCreated, zap.New(core))
	u := testUser(t)
	require.True(t, s.Send(context.Background(), u))

	// 提交后的发送没有 deadline，也不能等到下一个配额
	start := time.Now()
	assert.False(t, s.Send(context.WithoutCancel(context.Background()), u))
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("Mail throttled").Len())
}

func TestMailSenderThrottleWaitsForShortDelay(t *testing.T) {
	mailer := &fakeMailer{}
	s := NewMailSender(mailer, 50, 1, shared.EventCreated, zap.NewNop())
	u := testUser(t)
	require.True(t, s.Send(context.Background(), u))
	assert.True(t, s.Send(context.Background(), u))
	assert.Len(t, mailer.sent, 2)
}

func TestMailSenderThrottleHonoursContext(t *testing.T) {
	mailer := &fakeMailer{}
	s := NewMailSender(mailer, 20, 1, shared.EventCreated, zap.NewNop())
	u := testUser(t)
	require.True(t, s.Send(context.Background(), u))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.Send(ctx, u))
	assert.Len(t, mailer.sent, 1)
}

func TestQueueSenderEnvelope(t *testing.T) {
	pusher := &fakePusher{}
	cfg := config.EventsConfig{QueueKey: "events", QueueMaxLen: 100}
	s := NewQueueSender(pusher, cfg, shared.EventUpdated, zap.NewNop())

	u := testUser(t)
	ctx := persistence.ContextWithRequestID(context.Background(), "req-1")
	require.True(t, s.Send(ctx, u))
	require.Len(t, pusher.pushed, 1)
	assert.Equal(t, []int64{-100}, pusher.trimmed)

	var env Envelope
	require.NoError(t, json.Unmarshal(pusher.pushed[0], &env))
	assert.Equal(t, "user.updated", env.Event)
	assert.Equal(t, u.ID(), env.AggregateID)
	assert.Equal(t, "req-1", env.RequestID)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "ann@example.com", env.Payload["email"])
}

func TestQueueSenderPushFailure(t *testing.T) {
	pusher := &fakePusher{err: errors.New("redis down")}
	s := NewQueueSender(pusher, config.EventsConfig{QueueKey: "events"}, shared.EventCreated, zap.NewNop())
	assert.False(t, s.Send(context.Background(), testUser(t)))
}

func TestBuildRouter(t *testing.T) {
	cfg := config.EventsConfig{
		QueueKey: "events",
		Routes: map[string]config.EventRoute{
			"user_auth_code": {Created: "mail", Updated: "noop"},
			"file":           {Created: "queue", Updated: "queue"},
		},
	}
	router, err := BuildRouter(cfg, SenderDeps{
		Log:   zap.NewNop(),
		Mail:  NewMailSender(&fakeMailer{}, 0, 1, shared.EventCreated, zap.NewNop()),
		Queue: &fakePusher{},
	})
	require.NoError(t, err)

	cases := []struct {
		aggregate string
		kind      shared.EventKind
		want      any
	}{
		{"user", shared.EventCreated, &LogSender{}},
		{"user", shared.EventUpdated, &LogSender{}},
		{"user_auth_code", shared.EventCreated, &MailSender{}},
		{"user_auth_code", shared.EventUpdated, NoOpSender{}},
		{"file", shared.EventCreated, &QueueSender{}},
	}
	for _, tc := range cases {
		t.Run(tc.aggregate+"."+string(tc.kind), func(t *testing.T) {
			s, ok := router.Sender(tc.aggregate, tc.kind)
			require.True(t, ok)
			assert.IsType(t, tc.want, s)
		})
	}

	_, err = BuildRouter(cfg, SenderDeps{Log: zap.NewNop()})
	assert.Error(t, err)

	_, err = BuildRouter(config.EventsConfig{Routes: map[string]config.EventRoute{"user": {Created: "pigeon"}}}, SenderDeps{})
	assert.ErrorContains(t, err, "unknown sender")
}

func TestDispatchMonitorRecordsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &fakeRecorder{err: errors.New("table missing")}
	m := NewDispatchMonitor(zap.New(core), WithFailureRecorder(rec), WithMeter(noop.NewMeterProvider().Meter("test")))

	u := testUser(t)
	m.EventDispatched(context.Background(), shared.NewPendingEvent(shared.EventCreated, u))
	m.DispatchFailed(context.Background(), &shared.DispatchError{
		Event: shared.NewPendingEvent(shared.EventUpdated, u),
		Err:   shared.ErrSendRejected,
	})

	require.Len(t, rec.saved, 1)
	assert.Equal(t, "user.updated", rec.saved[0].Event.Name())
	assert.Equal(t, 1, logs.FilterMessage("Event dispatched").Len())
	assert.Equal(t, 1, logs.FilterMessage("Event dispatch failed after commit").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to record dispatch failure").Len())
}

func TestRejectedSendIsRecorded(t *testing.T) {
	router := shared.NewEventRouter().
		Register("user", shared.EventCreated, shared.SenderFunc(func(context.Context, shared.AggregateRoot) bool { return false }))
	rec := &fakeRecorder{}
	m := NewDispatchMonitor(zap.NewNop(), WithFailureRecorder(rec))

	err := router.Dispatch(context.Background(), shared.NewPendingEvent(shared.EventCreated, testUser(t)))
	require.ErrorIs(t, err, shared.ErrSendRejected)
	m.DispatchFailed(context.Background(), &shared.DispatchError{Event: shared.NewPendingEvent(shared.EventCreated, testUser(t)), Err: err})
	assert.Len(t, rec.saved, 1)
}
