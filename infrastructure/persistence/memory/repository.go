package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recordhub/domain/shared"
)

type versioned interface {
	shared.AggregateRoot
	Version() int
	CreatedAt() time.Time
	IncrementVersionForSave(at time.Time)
}

// codec 描述一种聚合在 tables 中的存储方式
type codec[T versioned, D any] struct {
	entity   string
	table    func(t *tables) map[string]D
	toDTO    func(T) D
	fromDTO  func(D) T
	version  func(D) int
	stamp    func(d D, version int, at time.Time) D
	unique   func(t *tables, d D) error
	notFound func(key string) error
}

// repository 与 relational 包的仓储语义一致：identity map、暂存写入、乐观锁
type repository[T versioned, D any] struct {
	*shared.EventQueue

	session *Session
	codec   codec[T, D]

	loaded  map[string]T
	added   map[string]bool
	tracked map[string]bool
}

func newRepository[T versioned, D any](session *Session, capacity int, c codec[T, D]) *repository[T, D] {
	return &repository[T, D]{
		EventQueue: shared.NewEventQueue(capacity),
		session:    session,
		codec:      c,
		loaded:     make(map[string]T),
		added:      make(map[string]bool),
		tracked:    make(map[string]bool),
	}
}

func (r *repository[T, D]) add(ctx context.Context, e T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Record(shared.EventCreated, e); err != nil {
		return shared.NewPersistenceError(r.codec.entity, "add", err)
	}
	id := e.ID()
	r.loaded[id] = e
	r.added[id] = true
	r.session.stage(stagedWrite{
		entity: r.codec.entity,
		op:     "insert",
		id:     id,
		apply: func(t *tables) error {
			rows := r.codec.table(t)
			if _, exists := rows[id]; exists {
				return fmt.Errorf("%w: %s", errDuplicate, id)
			}
			d := r.codec.toDTO(e)
			if r.codec.unique != nil {
				if err := r.codec.unique(t, d); err != nil {
					return err
				}
			}
			rows[id] = d
			return nil
		},
	})
	return nil
}

func (r *repository[T, D]) get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if e, ok := r.loaded[id]; ok {
		return e, nil
	}
	var (
		d  D
		ok bool
	)
	r.session.store.read(func(t *tables) {
		d, ok = r.codec.table(t)[id]
	})
	if !ok {
		return zero, r.codec.notFound(id)
	}
	return r.remember(r.codec.fromDTO(d)), nil
}

// find 按 created_at、id 排序，与 relational 的结果顺序一致
func (r *repository[T, D]) find(ctx context.Context, spec shared.Specification[T]) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []D
	r.session.store.read(func(t *tables) {
		for _, d := range r.codec.table(t) {
			rows = append(rows, d)
		}
	})

	out := make([]T, 0, len(rows))
	for _, d := range rows {
		e := r.remember(r.codec.fromDTO(d))
		if shared.Matches(ctx, spec, e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].CreatedAt(), out[j].CreatedAt()
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (r *repository[T, D]) findOne(ctx context.Context, spec shared.Specification[T], key string) (T, error) {
	var zero T
	found, err := r.find(ctx, spec)
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, r.codec.notFound(key)
	}
	return found[0], nil
}

func (r *repository[T, D]) remember(e T) T {
	if existing, ok := r.loaded[e.ID()]; ok {
		return existing
	}
	r.loaded[e.ID()] = e
	return e
}

func (r *repository[T, D]) forUpdate(e T) (T, error) {
	var zero T
	if err := r.Record(shared.EventUpdated, e); err != nil {
		return zero, shared.NewPersistenceError(r.codec.entity, "track", err)
	}
	id := e.ID()
	if r.added[id] || r.tracked[id] {
		return e, nil
	}
	r.tracked[id] = true

	now := time.Now().UTC()
	r.session.stage(stagedWrite{
		entity: r.codec.entity,
		op:     "update",
		id:     id,
		apply: func(t *tables) error {
			rows := r.codec.table(t)
			current, ok := rows[id]
			if !ok {
				return r.codec.notFound(id)
			}
			expected := e.Version()
			if r.codec.version(current) != expected {
				return shared.NewStaleVersionError(r.codec.entity, id)
			}
			d := r.codec.stamp(r.codec.toDTO(e), expected+1, now)
			if r.codec.unique != nil {
				if err := r.codec.unique(t, d); err != nil {
					return err
				}
			}
			rows[id] = d
			return nil
		},
		after: func() { e.IncrementVersionForSave(now) },
	})
	return e, nil
}
