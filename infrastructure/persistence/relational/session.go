package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recordhub/domain/shared"

	"gorm.io/gorm"
)

var errSessionDone = errors.New("session already finished")

type stagedWrite struct {
	entity string
	op     string
	id     string
	apply  func(tx *gorm.DB) error
	// after 只在事务提交成功后执行
	after func()
}

// Session 一个数据库事务加上暂存的写入
// 写入在 Flush 时按暂存顺序执行，全部成功后提交事务。
type Session struct {
	tx     *gorm.DB
	writes []stagedWrite
	done   bool
}

// DB is the transaction for reads inside the session.
func (s *Session) DB(ctx context.Context) *gorm.DB {
	return s.tx.WithContext(ctx)
}

func (s *Session) stage(entity, op, id string, apply func(tx *gorm.DB) error, after func()) {
	s.writes = append(s.writes, stagedWrite{entity: entity, op: op, id: id, apply: apply, after: after})
}

// Pending is the number of staged writes.
func (s *Session) Pending() int {
	return len(s.writes)
}

func (s *Session) Flush(ctx context.Context) error {
	if s.done {
		return shared.NewPersistenceError("", "flush", errSessionDone)
	}
	tx := s.tx.WithContext(ctx)
	for _, w := range s.writes {
		if err := w.apply(tx); err != nil {
			return writeError(w.entity, w.op, w.id, err)
		}
	}
	if err := s.tx.Commit().Error; err != nil {
		return shared.NewPersistenceError("", "commit", err)
	}
	for _, w := range s.writes {
		if w.after != nil {
			w.after()
		}
	}
	s.writes = nil
	s.done = true
	return nil
}

// Rollback 提交后调用是空操作
func (s *Session) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	s.writes = nil
	if err := s.tx.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (s *Session) Release() {
	if !s.done {
		_ = s.Rollback(context.Background())
	}
}

// Store opens sessions on one connection pool.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Open(ctx context.Context) (shared.Session, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	return &Session{tx: tx}, nil
}

// sessionOf finds the relational session behind any decorators.
func sessionOf(s shared.Session) (*Session, error) {
	rs, ok := shared.UnwrapSession[*Session](s)
	if !ok {
		return nil, fmt.Errorf("relational repositories need a *relational.Session, got %T", s)
	}
	return rs, nil
}

var (
	_ shared.Session       = (*Session)(nil)
	_ shared.SessionOpener = (*Store)(nil)
)
