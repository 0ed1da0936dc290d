package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
	apperrors "recordhub/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestFromDomainError(t *testing.T) {
	_, badEmail := user.NewEmail("not-an-email")

	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
		wantType apperrors.ResponseType
	}{
		{"validation", badEmail, apperrors.CodeValidation, apperrors.ParametersError},
		{"not found", user.NewUserNotFoundError("u1"), apperrors.CodeNotFound, apperrors.ResourceError},
		{"wrapped not found", fmt.Errorf("load: %w", file.NewFileNotFoundError("f1")), apperrors.CodeNotFound, apperrors.ResourceError},
		{"conflict", user.NewEmailAlreadyExistsError("a@b.io"), apperrors.CodeConflict, apperrors.ResourceError},
		{"unauthorized", user.NewInvalidCredentialsError(), apperrors.CodeUnauthorized, apperrors.ResourceError},
		{"persistence", shared.NewPersistenceError("user", "flush", errors.New("disk full")), apperrors.CodeInternal, apperrors.SystemError},
		{"unknown", errors.New("boom"), apperrors.CodeInternal, apperrors.SystemError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apperrors.FromDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantType, got.Type)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, apperrors.FromDomainError(nil))
}

func TestFromDomainError_HidesInternalDetail(t *testing.T) {
	got := apperrors.FromDomainError(shared.NewPersistenceError("user", "flush", errors.New("password=hunter2")))
	assert.Equal(t, "internal server error", got.Message)
}

func TestFromDomainError_CarriesField(t *testing.T) {
	got := apperrors.FromDomainError(user.NewEmailAlreadyExistsError("a@b.io"))
	assert.Equal(t, "email", got.Field)

	got = apperrors.FromDomainError(shared.NewValidationError("file", "name", "empty"))
	assert.Equal(t, "name", got.Field)
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperrors.NotFound("missing"))
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	assert.False(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Same(t, apperrors.FromDomainError(err), apperrors.FromDomainError(err))
}
