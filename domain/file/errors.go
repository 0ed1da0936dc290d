/*
Package file 定义上传文件领域错误。
*/
package file

import (
	"errors"
	"fmt"

	"recordhub/domain/shared"
)

var (
	ErrUnsupportedCategory  = errors.New("unsupported file category")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrInvalidName          = errors.New("file name cannot be empty")
	ErrAlreadyDeleted       = errors.New("file is already deleted")
)

func NewFileNotFoundError(id string) error {
	return &fileDomainError{
		sentinel: shared.ErrNotFound,
		field:    "id",
		message:  "file not found: " + id,
		stack:    shared.CaptureStack(3),
	}
}

func newValidationError(field string, sentinel error, detail string) error {
	msg := sentinel.Error()
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &fileDomainError{
		sentinel: sentinel,
		kind:     shared.ErrValidation,
		field:    field,
		message:  msg,
		stack:    shared.CaptureStack(3),
	}
}

type fileDomainError struct {
	sentinel error
	kind     error
	field    string
	message  string
	stack    []uintptr
}

func (e *fileDomainError) Error() string   { return e.message }
func (e *fileDomainError) Stack() []string { return shared.FormatStack(e.stack) }
func (e *fileDomainError) Field() string   { return e.field }

func (e *fileDomainError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.kind}
}
