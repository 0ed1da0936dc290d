package errors

import (
	"errors"
	"fmt"

	"recordhub/domain/shared"
)

// ErrorCode 错误码
type ErrorCode string

const (
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
)

// ResponseType 错误响应类别，调用方据此选择展示方式
type ResponseType string

const (
	ParametersError ResponseType = "ParametersError"
	ResourceError   ResponseType = "ResourceError"
	SystemError     ResponseType = "SystemError"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Type    ResponseType `json:"type"`
	Message string       `json:"message"`
	Field   string       `json:"field,omitempty"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func typeOf(code ErrorCode) ResponseType {
	switch code {
	case CodeValidation:
		return ParametersError
	case CodeNotFound, CodeConflict, CodeUnauthorized:
		return ResourceError
	default:
		return SystemError
	}
}

// New 创建新错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Type: typeOf(code), Message: message}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Type: typeOf(code), Message: message, Err: err}
}

func NotFound(message string) *AppError     { return New(CodeNotFound, message) }
func Internal(message string) *AppError     { return New(CodeInternal, message) }
func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }
func Conflict(message string) *AppError     { return New(CodeConflict, message) }
func Validation(message string) *AppError   { return New(CodeValidation, message) }

// Is 检查是否为特定错误码
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

type fielder interface {
	Field() string
}

// FromDomainError 将领域错误按分类映射为应用错误
// 持久化与未知错误不向调用方暴露细节。
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var out *AppError
	switch {
	case errors.Is(err, shared.ErrValidation):
		out = Wrap(err, CodeValidation, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		out = Wrap(err, CodeNotFound, err.Error())
	case errors.Is(err, shared.ErrConflict):
		out = Wrap(err, CodeConflict, err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		out = Wrap(err, CodeUnauthorized, err.Error())
	default:
		return Wrap(err, CodeInternal, "internal server error")
	}

	var de *shared.DomainError
	var f fielder
	switch {
	case errors.As(err, &de):
		out.Field = de.Field
	case errors.As(err, &f):
		out.Field = f.Field()
	}
	return out
}
