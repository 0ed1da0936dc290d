/*
Package shared - 领域层共享错误定义

设计原则:
1. 领域层定义哨兵错误(sentinel errors)，用于 errors.Is() 类型安全判断
2. DomainError 在创建时捕获堆栈，但延迟格式化（按需打印）
3. 领域错误不包含 HTTP 状态码等传输层概念
4. 使用标准库 errors，不依赖第三方包

错误分类:
- ErrValidation  实体工厂的输入校验失败，永远不会进入 Unit of Work
- ErrNotFound    读取不到记录，属于正常结果
- ErrPersistence 写入/flush 失败，中止提交并回滚
- ErrDispatch    提交后事件发送失败，只记录和告警，不回滚
*/
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// 哨兵错误 (Sentinel Errors)
// ============================================================================

var (
	// ErrNotFound 资源未找到
	ErrNotFound = errors.New("not found")

	// ErrConflict 资源冲突（唯一约束、并发修改）
	ErrConflict = errors.New("conflict")

	// ErrValidation 校验失败
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized 未授权
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistence 持久化失败
	ErrPersistence = errors.New("persistence failure")

	// ErrDispatch 事件发送失败
	ErrDispatch = errors.New("event dispatch failure")

	// ErrUnitOfWorkState Unit of Work 状态机拒绝的操作（重复进入、重复提交等）
	ErrUnitOfWorkState = errors.New("invalid unit of work state")

	// ErrEventQueueFull 仓储事件队列已满
	ErrEventQueueFull = errors.New("event queue full")

	// ErrStaleVersion 乐观锁版本不匹配，同时属于 ErrConflict
	ErrStaleVersion = fmt.Errorf("%w: aggregate was modified by another transaction", ErrConflict)
)

// ============================================================================
// 领域错误结构体 (Domain Error)
// ============================================================================

// DomainError 领域错误 - 携带业务上下文和堆栈的结构化错误
type DomainError struct {
	// Err 底层哨兵错误，用于 errors.Is() 判断
	Err error

	// Entity 发生错误的实体名称（如 "user", "file"）
	Entity string

	// Message 人类可读的错误描述
	Message string

	// Field 可选：发生错误的字段名（用于校验错误）
	Field string

	stack []uintptr
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Stack 按需格式化堆栈（只在打印日志时调用）
func (e *DomainError) Stack() []string {
	return FormatStack(e.stack)
}

// PersistenceError wraps a backing-store failure. It matches both
// ErrPersistence and its cause under errors.Is.
type PersistenceError struct {
	Entity string
	Op     string
	Err    error

	stack []uintptr
}

func (e *PersistenceError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func (e *PersistenceError) Stack() []string {
	return FormatStack(e.stack)
}

// DispatchError records a sender failure for an already committed event.
type DispatchError struct {
	Event PendingEvent
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for %s: %v", e.Event.Name(), e.Event.AggregateID(), e.Err)
}

func (e *DispatchError) Unwrap() []error {
	return []error{ErrDispatch, e.Err}
}

// ============================================================================
// 堆栈捕获辅助函数
// ============================================================================

// CaptureStack 捕获当前调用栈（导出供子领域包使用）
// skip: 跳过的帧数（通常为 3：Callers, CaptureStack, NewXxxError）
func CaptureStack(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack 格式化堆栈帧为字符串切片，过滤 runtime 内部帧，最多返回 10 帧
func FormatStack(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}

	frames := runtime.CallersFrames(stack)
	var result []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			result = append(result, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more || len(result) > 10 {
			break
		}
	}
	return result
}

// ============================================================================
// 领域错误构造函数
// ============================================================================

// NewNotFoundError 创建"未找到"领域错误
func NewNotFoundError(entity, key string) error {
	msg := entity + " not found"
	if key != "" {
		msg = fmt.Sprintf("%s %q not found", entity, key)
	}
	return &DomainError{
		Err:     ErrNotFound,
		Entity:  entity,
		Message: msg,
		stack:   CaptureStack(3),
	}
}

// NewConflictError 创建"冲突"领域错误
func NewConflictError(entity, message string) error {
	return &DomainError{
		Err:     ErrConflict,
		Entity:  entity,
		Message: message,
		stack:   CaptureStack(3),
	}
}

// NewValidationError 创建"校验失败"领域错误
func NewValidationError(entity, field, reason string) error {
	return &DomainError{
		Err:     ErrValidation,
		Entity:  entity,
		Field:   field,
		Message: reason,
		stack:   CaptureStack(3),
	}
}

// NewStaleVersionError 乐观锁冲突
func NewStaleVersionError(entity, id string) error {
	return &DomainError{
		Err:     ErrStaleVersion,
		Entity:  entity,
		Message: fmt.Sprintf("%s %q was modified by another transaction, please retry", entity, id),
		stack:   CaptureStack(3),
	}
}

// NewUnauthorizedError 创建"未授权"领域错误
func NewUnauthorizedError(entity, reason string) error {
	return &DomainError{
		Err:     ErrUnauthorized,
		Entity:  entity,
		Message: reason,
		stack:   CaptureStack(3),
	}
}

// NewPersistenceError 包装持久化失败；err 为 nil 时返回 nil
func NewPersistenceError(entity, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{
		Entity: entity,
		Op:     op,
		Err:    err,
		stack:  CaptureStack(3),
	}
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Stacker 可提供堆栈的错误接口
type Stacker interface {
	Stack() []string
}
