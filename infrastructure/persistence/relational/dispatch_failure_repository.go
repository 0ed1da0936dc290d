package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recordhub/domain/shared"
	"recordhub/infrastructure/persistence/relational/po"

	"gorm.io/gorm"
)

var errAlreadyClaimed = errors.New("dispatch failure not found or already being processed")

// DispatchFailureRepository 记录提交后发送失败的事件
// 写入不参与业务事务：事件对应的数据已经提交。
type DispatchFailureRepository struct {
	db    *gorm.DB
	now   func() time.Time
	lease time.Duration
}

// DefaultClaimLease PROCESSING 超过这个时间没有更新就可以被重新领取
const DefaultClaimLease = 5 * time.Minute

type DispatchFailureOption func(*DispatchFailureRepository)

// WithClaimLease d <= 0 时使用 DefaultClaimLease
func WithClaimLease(d time.Duration) DispatchFailureOption {
	return func(r *DispatchFailureRepository) {
		if d > 0 {
			r.lease = d
		}
	}
}

func NewDispatchFailureRepository(db *gorm.DB, opts ...DispatchFailureOption) *DispatchFailureRepository {
	r := &DispatchFailureRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		lease: DefaultClaimLease,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// claimable PENDING 且已到期，或者 PROCESSING 但领取者已超过 lease 没有更新
func (r *DispatchFailureRepository) claimable(db *gorm.DB) *gorm.DB {
	now := r.now()
	return db.Where(
		"((status = ? AND next_attempt_at <= ?) OR (status = ? AND updated_at <= ?))",
		string(po.FailureStatusPending), now,
		string(po.FailureStatusProcessing), now.Add(-r.lease),
	)
}

// Save stores derr as PENDING and due immediately.
func (r *DispatchFailureRepository) Save(ctx context.Context, derr *shared.DispatchError) error {
	if err := shared.ValidateEvent(derr.Event); err != nil {
		return fmt.Errorf("invalid dispatch failure: %w", err)
	}
	row := po.FromDispatchError(derr, r.now())
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to save dispatch failure: %w", err)
	}
	return nil
}

// GetDue returns PENDING failures whose next attempt is not in the future,
// plus PROCESSING rows whose claim has outlived the lease.
func (r *DispatchFailureRepository) GetDue(ctx context.Context, limit int) ([]*po.DispatchFailurePO, error) {
	var rows []*po.DispatchFailurePO
	err := r.claimable(r.db.WithContext(ctx)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get due dispatch failures: %w", err)
	}
	return rows, nil
}

// MarkProcessing 条件更新，防止多个 worker 同时处理
func (r *DispatchFailureRepository) MarkProcessing(ctx context.Context, id string) error {
	result := r.claimable(r.db.WithContext(ctx).Model(&po.DispatchFailurePO{}).Where("id = ?", id)).
		Updates(map[string]any{
			"status":     string(po.FailureStatusProcessing),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", errAlreadyClaimed, id)
	}
	return nil
}

// ReleaseClaim PROCESSING 回到 PENDING，不计入重试次数
func (r *DispatchFailureRepository) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&po.DispatchFailurePO{}).
		Where("id = ? AND status = ?", id, string(po.FailureStatusProcessing)).
		Updates(map[string]any{
			"status":     string(po.FailureStatusPending),
			"updated_at": r.now(),
		}).Error
}

func (r *DispatchFailureRepository) MarkRedelivered(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&po.DispatchFailurePO{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(po.FailureStatusRedelivered),
			"updated_at": r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dispatch failure not found: %s", id)
	}
	return nil
}

// MarkFailed 增加重试次数；达到 maxRetries 后终止为 FAILED，否则回到 PENDING 等待 nextAttempt
func (r *DispatchFailureRepository) MarkFailed(ctx context.Context, id string, cause error, maxRetries int, nextAttempt time.Time) error {
	db := r.db.WithContext(ctx)

	var row po.DispatchFailurePO
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to find dispatch failure: %w", err)
	}

	retryCount := row.RetryCount + 1
	status := string(po.FailureStatusFailed)
	if retryCount < maxRetries {
		status = string(po.FailureStatusPending)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > 1024 {
		msg = msg[:1024]
	}

	return db.Model(&po.DispatchFailurePO{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"retry_count":     retryCount,
			"last_error":      msg,
			"next_attempt_at": nextAttempt,
			"updated_at":      r.now(),
		}).Error
}

// CountByStatus is used by the worker's status log and by tests.
func (r *DispatchFailureRepository) CountByStatus(ctx context.Context, status po.FailureStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&po.DispatchFailurePO{}).Where("status = ?", string(status)).Count(&n).Error
	return n, err
}
