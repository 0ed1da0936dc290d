package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recordhub/domain/shared"
	"recordhub/infrastructure/persistence/relational/po"
	"recordhub/infrastructure/persistence/retry"
	"recordhub/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WorkerConfig redelivery 参数
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	Rate         float64 // redeliveries per second, <= 0 means unlimited
	Backoff      retry.Config
}

// RedeliveryWorker 重新发送 dispatch failure
// 发送的是聚合的当前已提交状态，而不是失败时的状态。
type RedeliveryWorker struct {
	failures   *DispatchFailureRepository
	loader     AggregateLoader
	dispatcher shared.EventDispatcher
	limiter    *rate.Limiter
	cfg        WorkerConfig
	log        *zap.Logger
}

func NewRedeliveryWorker(
	failures *DispatchFailureRepository,
	loader AggregateLoader,
	dispatcher shared.EventDispatcher,
	cfg WorkerConfig,
	log *zap.Logger,
) (*RedeliveryWorker, error) {
	if failures == nil {
		return nil, fmt.Errorf("dispatch failure repository is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("aggregate loader is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be positive")
	}
	if log == nil {
		log = logger.Get()
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	return &RedeliveryWorker{
		failures:   failures,
		loader:     loader,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(limit, 1),
		cfg:        cfg,
		log:        log.Named("redelivery"),
	}, nil
}

func (w *RedeliveryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error("Redelivery batch processing failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch handles one batch of due failures and returns how many were
// redelivered.
func (w *RedeliveryWorker) ProcessBatch(ctx context.Context) (int, error) {
	rows, err := w.failures.GetDue(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, row := range rows {
		// 先限流再领取，取消时行仍是 PENDING
		if err := w.limiter.Wait(ctx); err != nil {
			return delivered, err
		}
		if err := w.failures.MarkProcessing(ctx, row.ID); err != nil {
			w.log.Warn("Skip dispatch failure due to lock contention",
				zap.String("failure_id", row.ID),
				zap.Error(err),
			)
			continue
		}

		// 领取之后的状态更新不能被取消打断
		bg := context.WithoutCancel(ctx)
		if err := w.redeliver(ctx, row); err != nil {
			if ctx.Err() != nil {
				w.release(bg, row)
				return delivered, ctx.Err()
			}
			w.markFailed(bg, row, err)
			continue
		}
		if err := w.failures.MarkRedelivered(bg, row.ID); err != nil {
			w.log.Error("Failed to mark dispatch failure as redelivered",
				zap.String("failure_id", row.ID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (w *RedeliveryWorker) release(ctx context.Context, row *po.DispatchFailurePO) {
	if err := w.failures.ReleaseClaim(ctx, row.ID); err != nil {
		w.log.Error("Failed to release dispatch failure claim",
			zap.String("failure_id", row.ID),
			zap.Error(err),
		)
	}
}

func (w *RedeliveryWorker) redeliver(ctx context.Context, row *po.DispatchFailurePO) (err error) {
	agg, err := w.loader.LoadAggregate(ctx, row.AggregateType, row.AggregateID)
	if err != nil {
		return err
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispatcher panicked: %v", rec)
		}
	}()
	return w.dispatcher.Dispatch(ctx, shared.NewPendingEvent(shared.EventKind(row.EventKind), agg))
}

func (w *RedeliveryWorker) markFailed(ctx context.Context, row *po.DispatchFailurePO, cause error) {
	maxRetries := w.cfg.MaxRetries
	if shared.IsNotFound(cause) {
		// 聚合已不存在，不再重试
		maxRetries = row.RetryCount + 1
	}
	next := time.Now().UTC().Add(retry.ExponentialBackoffWithJitter(row.RetryCount+1, w.cfg.Backoff))
	if err := w.failures.MarkFailed(ctx, row.ID, cause, maxRetries, next); err != nil {
		w.log.Error("Failed to mark dispatch failure as failed",
			zap.String("failure_id", row.ID),
			zap.Error(err),
		)
		return
	}
	w.log.Warn("Redelivery failed",
		zap.String("failure_id", row.ID),
		zap.String("event", row.AggregateType+"."+row.EventKind),
		zap.String("aggregate_id", row.AggregateID),
		zap.Int("retry_count", row.RetryCount+1),
		zap.Error(cause),
	)
}
