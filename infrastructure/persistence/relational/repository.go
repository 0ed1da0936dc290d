package relational

import (
	"context"
	"errors"
	"time"

	"recordhub/domain/shared"
	"recordhub/infrastructure/persistence/specification"

	"gorm.io/gorm"
)

type versioned interface {
	shared.AggregateRoot
	Version() int
	IncrementVersionForSave(at time.Time)
}

// persistent is the pointer-to-PO constraint: *P converts to and from T.
type persistent[T any, P any] interface {
	*P
	ToDomain() T
	Columns() map[string]any
}

// repository 各聚合仓储共用的实现
//
//   - 读取走 Session 的事务，结果进入 identity map，同一 Unit of Work 内重复读取返回同一实例
//   - Add 只暂存 insert，Flush 时执行
//   - GetForUpdate 跟踪聚合，Flush 时按乐观锁写回最终状态
type repository[T versioned, P any, PP persistent[T, P]] struct {
	*shared.EventQueue

	session    *Session
	entity     string
	toPO       func(T) PP
	translator *specification.Translator[T]
	notFound   func(key string) error

	loaded  map[string]T
	added   map[string]bool
	tracked map[string]bool
}

func newRepository[T versioned, P any, PP persistent[T, P]](
	session *Session,
	entity string,
	capacity int,
	toPO func(T) PP,
	translator *specification.Translator[T],
	notFound func(key string) error,
) *repository[T, P, PP] {
	if notFound == nil {
		notFound = func(key string) error { return shared.NewNotFoundError(entity, key) }
	}
	return &repository[T, P, PP]{
		EventQueue: shared.NewEventQueue(capacity),
		session:    session,
		entity:     entity,
		toPO:       toPO,
		translator: translator,
		notFound:   notFound,
		loaded:     make(map[string]T),
		added:      make(map[string]bool),
		tracked:    make(map[string]bool),
	}
}

func (r *repository[T, P, PP]) add(ctx context.Context, e T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Record(shared.EventCreated, e); err != nil {
		return shared.NewPersistenceError(r.entity, "add", err)
	}
	id := e.ID()
	r.loaded[id] = e
	r.added[id] = true
	r.session.stage(r.entity, "insert", id, func(tx *gorm.DB) error {
		return tx.Create(r.toPO(e)).Error
	}, nil)
	return nil
}

func (r *repository[T, P, PP]) get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if e, ok := r.loaded[id]; ok {
		return e, nil
	}
	var row P
	if err := r.session.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, r.notFound(id)
		}
		return zero, shared.NewPersistenceError(r.entity, "read", err)
	}
	return r.remember(PP(&row).ToDomain()), nil
}

func (r *repository[T, P, PP]) findOne(ctx context.Context, spec shared.Specification[T], key string) (T, error) {
	var zero T
	found, err := r.find(ctx, spec)
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, r.notFound(key)
	}
	return found[0], nil
}

// find 规格无法翻译成 SQL 时退回到内存过滤
func (r *repository[T, P, PP]) find(ctx context.Context, spec shared.Specification[T]) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scope, err := r.translator.Translate(spec)
	inMemory := false
	if err != nil {
		if !errors.Is(err, specification.ErrUnsupported) {
			return nil, shared.NewPersistenceError(r.entity, "query", err)
		}
		scope = func(db *gorm.DB) *gorm.DB { return db }
		inMemory = true
	}

	var rows []P
	if err := r.session.DB(ctx).Scopes(scope).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, shared.NewPersistenceError(r.entity, "query", err)
	}
	out := make([]T, 0, len(rows))
	for i := range rows {
		e := r.remember(PP(&rows[i]).ToDomain())
		if inMemory && !shared.Matches(ctx, spec, e) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// remember keeps the first instance seen for an id.
func (r *repository[T, P, PP]) remember(e T) T {
	if existing, ok := r.loaded[e.ID()]; ok {
		return existing
	}
	r.loaded[e.ID()] = e
	return e
}

func (r *repository[T, P, PP]) forUpdate(e T) (T, error) {
	var zero T
	if err := r.Record(shared.EventUpdated, e); err != nil {
		return zero, shared.NewPersistenceError(r.entity, "track", err)
	}
	r.track(e)
	return e, nil
}

// track 新增的聚合由 insert 带上最终状态，不需要 update
func (r *repository[T, P, PP]) track(e T) {
	id := e.ID()
	if r.added[id] || r.tracked[id] {
		return
	}
	r.tracked[id] = true
	var savedAt time.Time
	r.session.stage(r.entity, "update", id, func(tx *gorm.DB) error {
		at, err := r.update(tx, e)
		savedAt = at
		return err
	}, func() {
		e.IncrementVersionForSave(savedAt)
	})
}

// update 返回写入的 updated_at；内存中的版本在提交后才递增
func (r *repository[T, P, PP]) update(tx *gorm.DB, e T) (time.Time, error) {
	expected := e.Version()
	now := time.Now().UTC()

	// 严格乐观锁：必须使用聚合当前版本作为更新条件，避免静默覆盖并发写入。
	cols := r.toPO(e).Columns()
	cols["version"] = expected + 1
	cols["updated_at"] = now
	result := tx.Model(new(P)).
		Where("id = ? AND version = ?", e.ID(), expected).
		Updates(cols)
	if result.Error != nil {
		return now, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(new(P)).Where("id = ?", e.ID()).Count(&count).Error; err != nil {
			return now, err
		}
		if count == 0 {
			return now, r.notFound(e.ID())
		}
		return now, shared.NewStaleVersionError(r.entity, e.ID())
	}
	return now, nil
}
