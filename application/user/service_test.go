package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recordhub/domain/shared"
	"recordhub/domain/user"
	"recordhub/infrastructure/persistence/memory"
	apperrors "recordhub/pkg/errors"
	"recordhub/pkg/hashing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) Dispatch(_ context.Context, ev shared.PendingEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Name())
	return nil
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fixture struct {
	store  *memory.Store
	events *eventLog
	users  *ApplicationService
	codes  *AuthCodeService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	events := &eventLog{}
	cfg := memory.FactoryConfig{Opener: store, Dispatcher: events}
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return &fixture{
		store:  store,
		events: events,
		users:  NewApplicationService(memory.NewUserFactory(cfg), hashing.NewBcrypt(bcrypt.MinCost), opts...),
		codes:  NewAuthCodeService(memory.NewAuthCodeFactory(cfg), opts...),
	}
}

func TestCreateAndRetrieve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.Create(ctx, CreateUserRequest{
		Email:       " Alice@Example.com ",
		Password:    "secret",
		DateOfBirth: "1990-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, string(user.StatusApplied), created.Status)
	assert.Equal(t, string(user.RoleUser), created.Role)

	got, err := f.users.Retrieve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []string{"user.created"}, f.events.names())
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = f.users.Create(ctx, CreateUserRequest{Email: "BOB@example.com", Password: "pw"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.ErrorIs(t, err, user.ErrEmailAlreadyExists)
	assert.Len(t, f.events.names(), 1)
	assert.Equal(t, 1, f.store.Len(user.EntityName))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateUserRequest
	}{
		{"bad email", CreateUserRequest{Email: "nope", Password: "pw"}},
		{"missing password", CreateUserRequest{Email: "a@example.com"}},
		{"bad date of birth", CreateUserRequest{Email: "a@example.com", Password: "pw", DateOfBirth: "02/01/1990"}},
		{"bad role", CreateUserRequest{Email: "a@example.com", Password: "pw", Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Create(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), err.Error())
		})
	}
	assert.Empty(t, f.events.names())
}

func TestCreateWithMissingResume(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Create(context.Background(), CreateUserRequest{
		Email:        "c@example.com",
		Password:     "pw",
		ResumeFileID: "file-missing",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.Zero(t, f.store.Len(user.EntityName))
}

func TestValidateCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.ValidateCreate(ctx, CreateUserRequest{Email: "dana@example.com", DateOfBirth: "2000-12-31"}))

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "dana@example.com", Password: "pw"})
	require.NoError(t, err)

	err = f.users.ValidateCreate(ctx, CreateUserRequest{Email: "dana@example.com"})
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	err = f.users.ValidateCreate(ctx, CreateUserRequest{Email: "eve@example.com", DateOfBirth: "2000-13-40"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	err = f.users.ValidateCreate(ctx, CreateUserRequest{Email: "eve@example.com", ResumeFileID: "file-gone"})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRegisterWithResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.users.Register(ctx, RegisterRequest{
		CreateUserRequest: CreateUserRequest{Email: "frank@example.com", Password: "pw"},
		Resume:            &ResumeUpload{Name: "cv.PDF"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ResumeFileID)
	assert.Equal(t, "/resume/"+resp.ResumeFileID+".pdf", resp.ResumeURL)

	// user 事件先于 file 事件
	assert.Equal(t, []string{"user.created", "file.created"}, f.events.names())

	got, err := f.users.Retrieve(ctx, "frank@example.com")
	require.NoError(t, err)
	assert.Equal(t, resp.ResumeURL, got.ResumeURL)
}

func TestRegisterRejectsAvatarAsResume(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Register(context.Background(), RegisterRequest{
		CreateUserRequest: CreateUserRequest{Email: "gina@example.com", Password: "pw"},
		Resume:            &ResumeUpload{Name: "me.png"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	assert.Empty(t, f.events.names())
}

func TestRegisterIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "hank@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = f.users.Register(ctx, RegisterRequest{
		CreateUserRequest: CreateUserRequest{Email: "hank@example.com", Password: "pw"},
		Resume:            &ResumeUpload{Name: "cv.docx"},
	})
	require.Error(t, err)
	assert.Zero(t, f.store.Len("file"))
	assert.Equal(t, []string{"user.created"}, f.events.names())
}

func TestListAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, req := range []CreateUserRequest{
		{Email: "ann@corp.com", Password: "pw", Status: "active"},
		{Email: "ben@corp.com", Password: "pw"},
		{Email: "root@admin.com", Password: "pw", Role: "admin", Status: "inactive"},
	} {
		_, err := f.users.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := f.users.List(ctx, ListUsersRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := f.users.List(ctx, ListUsersRequest{Status: "active"})
	require.NoError(t, err)
	require.Len(t, active, 2)

	admins, err := f.users.List(ctx, ListUsersRequest{Role: "admin"})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "active", admins[0].Status)

	_, err = f.users.List(ctx, ListUsersRequest{Status: "sleeping"})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	found, err := f.users.Search(ctx, "corp")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "ivy@example.com", Password: "old"})
	require.NoError(t, err)

	pw, status := "new", "active"
	resp, err := f.users.Update(ctx, "ivy@example.com", UpdateUserRequest{Password: &pw, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, []string{"user.created", "user.updated"}, f.events.names())

	_, err = f.users.Authenticate(ctx, "ivy@example.com", "new")
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, "ivy@example.com", "old")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))
}

func TestUpdateMissingUserQueuesNothing(t *testing.T) {
	f := newFixture(t)
	status := "active"

	_, err := f.users.Update(context.Background(), "ghost@example.com", UpdateUserRequest{Status: &status})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.Empty(t, f.events.names())
}

func TestUpdateAdminCannotBeDeactivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "boss@example.com", Password: "pw", Role: "admin"})
	require.NoError(t, err)

	status := "inactive"
	_, err = f.users.Update(ctx, "boss@example.com", UpdateUserRequest{Status: &status})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	assert.Equal(t, []string{"user.created"}, f.events.names())
}

func TestUpdateUsesRetrier(t *testing.T) {
	calls := 0
	retrier := func(ctx context.Context, fn func(ctx context.Context) error) error {
		var err error
		for i := 0; i < 3; i++ {
			calls++
			if err = fn(ctx); err == nil || !errors.Is(err, shared.ErrConflict) {
				return err
			}
		}
		return err
	}
	f := newFixture(t, WithRetrier(retrier))
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "jay@example.com", Password: "pw"})
	require.NoError(t, err)

	f.store.FailNextFlush(shared.NewStaleVersionError(user.EntityName, "jay"))
	status := "pending"
	resp, err := f.users.Update(ctx, "jay@example.com", UpdateUserRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 2, calls)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserRequest{Email: "kim@example.com", Password: "pw", Status: "inactive"})
	require.NoError(t, err)

	_, err = f.users.Authenticate(ctx, "kim@example.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, user.ErrUserNotActive)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestAuthCodeLifecycle(t *testing.T) {
	now := time.Now().UTC()
	f := newFixture(t, withClock(func() time.Time { return now }))
	ctx := context.Background()

	issued, err := f.codes.Issue(ctx, "Lee@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "lee@example.com", issued.Email)
	assert.Len(t, issued.Code, 6)
	assert.Equal(t, string(user.AuthCodePending), issued.Status)

	err = f.codes.Verify(ctx, "lee@example.com", "000000x")
	assert.ErrorIs(t, err, user.ErrInvalidAuthCode)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.codes.Verify(ctx, "lee@example.com", issued.Code))

	// 已使用的验证码不能再次使用
	err = f.codes.Verify(ctx, "lee@example.com", issued.Code)
	assert.ErrorIs(t, err, user.ErrAuthCodeExpired)

	got, err := f.codes.Retrieve(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, string(user.AuthCodeExpired), got.Status)
	assert.Equal(t, []string{"user_auth_code.created", "user_auth_code.updated"}, f.events.names())
}

func TestAuthCodeExpiresByTTL(t *testing.T) {
	now := time.Now().UTC()
	f := newFixture(t, WithAuthCodeTTL(time.Minute), withClock(func() time.Time { return now.Add(2 * time.Minute) }))
	ctx := context.Background()

	issued, err := f.codes.Issue(ctx, "max@example.com")
	require.NoError(t, err)

	err = f.codes.Verify(ctx, "max@example.com", issued.Code)
	assert.ErrorIs(t, err, user.ErrAuthCodeExpired)
	assert.Equal(t, []string{"user_auth_code.created"}, f.events.names())
}

func TestAuthCodeExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.codes.Issue(ctx, "ned@example.com")
	require.NoError(t, err)

	expired, err := f.codes.Expire(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, string(user.AuthCodeExpired), expired.Status)

	_, err = f.codes.Expire(ctx, "authcode-missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestAuthCodeByEmailAndCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.codes.Issue(ctx, "ola@example.com")
	require.NoError(t, err)

	got, err := f.codes.RetrieveByCode(ctx, "OLA@example.com", issued.Code)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, string(user.AuthCodePending), got.Status)

	_, err = f.codes.RetrieveByCode(ctx, "ola@example.com", "not-a-code")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	changed, err := f.codes.ChangeStatusByCode(ctx, "ola@example.com", issued.Code, string(user.AuthCodeExpired))
	require.NoError(t, err)
	assert.Equal(t, string(user.AuthCodeExpired), changed.Status)

	got, err = f.codes.Retrieve(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, string(user.AuthCodeExpired), got.Status)
	assert.Equal(t, []string{"user_auth_code.created", "user_auth_code.updated"}, f.events.names())

	_, err = f.codes.ChangeStatusByCode(ctx, "ola@example.com", issued.Code, "used")
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	_, err = f.codes.ChangeStatusByCode(ctx, "pat@example.com", issued.Code, string(user.AuthCodePending))
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.Len(t, f.events.names(), 2)
}
