package po

import (
	"time"

	"recordhub/domain/shared"

	"github.com/google/uuid"
)

// DispatchFailurePO 提交后发送失败的事件，由 redelivery worker 重试
// 只保存聚合标识，重试时重新加载聚合的当前状态。
type DispatchFailurePO struct {
	ID            string    `gorm:"primaryKey;size:64"`
	AggregateType string    `gorm:"size:64;index;not null"`
	AggregateID   string    `gorm:"size:64;index;not null"`
	EventKind     string    `gorm:"size:16;not null"`
	LastError     string    `gorm:"size:1024"`
	Status        string    `gorm:"size:20;default:PENDING;index;not null"` // PENDING, PROCESSING, REDELIVERED, FAILED
	RetryCount    int       `gorm:"default:0;not null"`
	NextAttemptAt time.Time `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (DispatchFailurePO) TableName() string {
	return "dispatch_failures"
}

type FailureStatus string

const (
	FailureStatusPending     FailureStatus = "PENDING"
	FailureStatusProcessing  FailureStatus = "PROCESSING"
	FailureStatusRedelivered FailureStatus = "REDELIVERED"
	FailureStatusFailed      FailureStatus = "FAILED"
)

const maxErrorLength = 1024

// FromDispatchError 新记录立即可以重试
func FromDispatchError(derr *shared.DispatchError, now time.Time) *DispatchFailurePO {
	msg := ""
	if derr.Err != nil {
		msg = derr.Err.Error()
	}
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return &DispatchFailurePO{
		ID:            uuid.New().String(),
		AggregateType: derr.Event.AggregateType(),
		AggregateID:   derr.Event.AggregateID(),
		EventKind:     string(derr.Event.Kind),
		LastError:     msg,
		Status:        string(FailureStatusPending),
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
