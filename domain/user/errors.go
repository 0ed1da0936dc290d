/*
Package user 定义用户与验证码领域错误。
每个错误同时匹配具体哨兵和 shared 中的错误分类（校验、未找到、冲突）。
*/
package user

import (
	"errors"
	"fmt"

	"recordhub/domain/shared"
)

var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidPassword    = errors.New("password hash cannot be empty")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidDateOfBirth = errors.New("date of birth must be formatted as YYYY-MM-DD")
	ErrInvalidGender      = errors.New("unsupported gender")
	ErrInvalidStatus      = errors.New("unsupported user status")
	ErrInvalidRole        = errors.New("unsupported user role")
	ErrUserNotActive      = errors.New("user is not active")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidAuthCode   = errors.New("invalid authentication code")
	ErrAuthCodeExpired   = errors.New("authentication code expired")
	ErrInvalidAuthStatus = errors.New("unsupported authentication code status")
)

func NewUserNotFoundError(key string) error {
	return &userDomainError{
		sentinel: shared.ErrNotFound,
		entity:   EntityName,
		message:  "user not found: " + key,
		stack:    shared.CaptureStack(3),
	}
}

func NewAuthCodeNotFoundError(key string) error {
	return &userDomainError{
		sentinel: shared.ErrNotFound,
		entity:   AuthCodeEntityName,
		message:  "authentication code not found: " + key,
		stack:    shared.CaptureStack(3),
	}
}

func NewEmailAlreadyExistsError(email string) error {
	return &userDomainError{
		sentinel: ErrEmailAlreadyExists,
		kind:     shared.ErrConflict,
		entity:   EntityName,
		field:    "email",
		message:  "email already exists: " + email,
		stack:    shared.CaptureStack(3),
	}
}

func NewUserNotActiveError(email string) error {
	return &userDomainError{
		sentinel: ErrUserNotActive,
		kind:     shared.ErrUnauthorized,
		entity:   EntityName,
		message:  "user " + email + " is not active",
		stack:    shared.CaptureStack(3),
	}
}

func NewInvalidCredentialsError() error {
	return &userDomainError{
		sentinel: ErrInvalidCredentials,
		kind:     shared.ErrUnauthorized,
		entity:   EntityName,
		message:  ErrInvalidCredentials.Error(),
		stack:    shared.CaptureStack(3),
	}
}

func NewAuthCodeRejectedError(sentinel error, email string) error {
	return &userDomainError{
		sentinel: sentinel,
		kind:     shared.ErrUnauthorized,
		entity:   AuthCodeEntityName,
		field:    "auth_code",
		message:  fmt.Sprintf("%s for %s", sentinel, email),
		stack:    shared.CaptureStack(3),
	}
}

func newValidationError(entity, field string, sentinel error, detail string) error {
	msg := sentinel.Error()
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &userDomainError{
		sentinel: sentinel,
		kind:     shared.ErrValidation,
		entity:   entity,
		field:    field,
		message:  msg,
		stack:    shared.CaptureStack(3),
	}
}

type userDomainError struct {
	sentinel error
	kind     error
	entity   string
	field    string
	message  string
	stack    []uintptr
}

func (e *userDomainError) Error() string   { return e.message }
func (e *userDomainError) Stack() []string { return shared.FormatStack(e.stack) }
func (e *userDomainError) Field() string   { return e.field }

func (e *userDomainError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.kind}
}
