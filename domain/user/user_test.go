package user

import (
	"errors"
	"strings"
	"testing"
	"time"

	"recordhub/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewUserParams {
	return NewUserParams{
		Email:          "  Alice@Example.COM ",
		HashedPassword: "$2a$10$hash",
		Username:       "alice",
		DateOfBirth:    "1990-04-01",
		Gender:         "Female",
	}
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(validParams())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u.ID(), "user-"))
	assert.Equal(t, "alice@example.com", u.Email().Value())
	assert.Equal(t, StatusApplied, u.Status())
	assert.Equal(t, RoleUser, u.Role())
	assert.Equal(t, GenderFemale, u.Gender())
	assert.Equal(t, "1990-04-01", u.DateOfBirth().String())
	assert.Equal(t, EntityName, u.AggregateType())
	assert.NotContains(t, u.Snapshot(), "hashed_password")
}

func TestNewUser_AdminIsAlwaysActive(t *testing.T) {
	p := validParams()
	p.Role = "admin"
	p.Status = "pending"

	u, err := NewUser(p)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status())
	assert.Error(t, u.ChangeStatus("inactive"))
}

func TestNewUser_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*NewUserParams)
		sentinel error
	}{
		{"bad email", func(p *NewUserParams) { p.Email = "not-an-email" }, ErrInvalidEmail},
		{"empty password", func(p *NewUserParams) { p.HashedPassword = " " }, ErrInvalidPassword},
		{"bad date", func(p *NewUserParams) { p.DateOfBirth = "01/04/1990" }, ErrInvalidDateOfBirth},
		{"future date", func(p *NewUserParams) { p.DateOfBirth = time.Now().AddDate(1, 0, 0).Format(DateLayout) }, ErrInvalidDateOfBirth},
		{"bad gender", func(p *NewUserParams) { p.Gender = "robot" }, ErrInvalidGender},
		{"bad status", func(p *NewUserParams) { p.Status = "banned" }, ErrInvalidStatus},
		{"bad role", func(p *NewUserParams) { p.Role = "root" }, ErrInvalidRole},
		{"long username", func(p *NewUserParams) { p.Username = strings.Repeat("x", 65) }, ErrInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := NewUser(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestUser_IdentityEquality(t *testing.T) {
	u, err := NewUser(validParams())
	require.NoError(t, err)

	clone := RebuildFromDTO(u.ToDTO())
	require.NoError(t, clone.ChangeStatus("inactive"))

	assert.True(t, u.Equals(clone))
	assert.True(t, shared.SameIdentity(u, clone))

	other, err := NewUser(validParams())
	require.NoError(t, err)
	assert.False(t, u.Equals(other))

	byID := map[string]*User{u.ID(): u}
	u.AttachResume("file-1")
	assert.Same(t, u, byID[clone.ID()])
}

func TestUser_ChangePasswordAndVersion(t *testing.T) {
	u, err := NewUser(validParams())
	require.NoError(t, err)

	assert.Error(t, u.ChangePassword(""))
	require.NoError(t, u.ChangePassword("new-hash"))
	assert.Equal(t, "new-hash", u.HashedPassword())

	at := time.Now().Add(time.Minute)
	u.IncrementVersionForSave(at)
	assert.Equal(t, 1, u.Version())
	assert.Equal(t, at, u.UpdatedAt())
}

func TestAuthCode(t *testing.T) {
	code, err := NewAuthCode("Bob@Example.com", 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code.ID(), "authcode-"))
	assert.Len(t, code.Code(), 6)
	assert.GreaterOrEqual(t, code.Code(), "100000")
	assert.Equal(t, AuthCodePending, code.Status())
	assert.WithinDuration(t, time.Now().Add(DefaultAuthCodeTTL), code.ExpiredAt(), 5*time.Second)
	assert.NotContains(t, code.Snapshot(), "code")

	now := time.Now()
	assert.NoError(t, code.Verify(code.Code(), now))
	assert.ErrorIs(t, code.Verify("000000", now), ErrInvalidAuthCode)
	assert.ErrorIs(t, code.Verify(code.Code(), code.ExpiredAt()), ErrAuthCodeExpired)

	code.Expire()
	err = code.Verify(code.Code(), now)
	assert.ErrorIs(t, err, ErrAuthCodeExpired)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	assert.ErrorIs(t, code.ChangeStatus("used"), shared.ErrValidation)
	require.NoError(t, code.ChangeStatus("pending"))
}

func TestErrorsCarryStack(t *testing.T) {
	err := NewUserNotFoundError("x@example.com")
	var st shared.Stacker
	require.True(t, errors.As(err, &st))
	assert.NotEmpty(t, st.Stack())
	assert.True(t, shared.IsNotFound(err))
}
