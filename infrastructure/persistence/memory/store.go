// Package memory 进程内存储，写入暂存在 Session 中，Flush 时原子地落到 Store。
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"recordhub/domain/file"
	"recordhub/domain/shared"
	"recordhub/domain/user"
)

var errSessionDone = errors.New("session already finished")

// tables 一份已提交状态；Flush 在副本上执行全部写入，成功后整体替换
type tables struct {
	users map[string]user.ReconstructionDTO
	codes map[string]user.AuthCodeDTO
	files map[string]file.ReconstructionDTO
}

func (t *tables) clone() *tables {
	return &tables{
		users: maps.Clone(t.users),
		codes: maps.Clone(t.codes),
		files: maps.Clone(t.files),
	}
}

// Store 所有 Session 共享的已提交数据
// 读取只持有读锁，Flush 持有写锁。
type Store struct {
	mu       sync.RWMutex
	data     *tables
	failNext error
}

func NewStore() *Store {
	return &Store{data: &tables{
		users: make(map[string]user.ReconstructionDTO),
		codes: make(map[string]user.AuthCodeDTO),
		files: make(map[string]file.ReconstructionDTO),
	}}
}

// FailNextFlush makes the next Flush on any session fail with err before
// anything is written.
func (s *Store) FailNextFlush(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Len is the number of committed records of entity.
func (s *Store) Len(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch entity {
	case user.EntityName:
		return len(s.data.users)
	case user.AuthCodeEntityName:
		return len(s.data.codes)
	case file.EntityName:
		return len(s.data.files)
	}
	return 0
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) Open(ctx context.Context) (shared.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Session{store: s}, nil
}

type stagedWrite struct {
	entity string
	op     string
	id     string
	apply  func(t *tables) error
	// after 只在整批写入成功后执行
	after func()
}

// Session 暂存一个 Unit of Work 的写入
type Session struct {
	store  *Store
	writes []stagedWrite
	done   bool
}

func (s *Session) stage(w stagedWrite) {
	s.writes = append(s.writes, w)
}

func (s *Session) Pending() int {
	return len(s.writes)
}

func (s *Session) Flush(ctx context.Context) error {
	if s.done {
		return shared.NewPersistenceError("", "flush", errSessionDone)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := s.store
	st.mu.Lock()
	if err := st.failNext; err != nil {
		st.failNext = nil
		st.mu.Unlock()
		return shared.NewPersistenceError("", "flush", err)
	}
	next := st.data.clone()
	for _, w := range s.writes {
		if err := w.apply(next); err != nil {
			st.mu.Unlock()
			return writeError(w.entity, w.op, w.id, err)
		}
	}
	st.data = next
	st.mu.Unlock()

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
func (s *Session) Rollback(context.Context) error {
	s.writes = nil
	s.done = true
	return nil
}

func (s *Session) Release() {
	s.writes = nil
}

var errDuplicate = errors.New("duplicate key")

func writeError(entity, op, id string, err error) error {
	if errors.Is(err, errDuplicate) {
		err = errors.Join(shared.NewConflictError(entity, entity+" "+id+" already exists"), err)
	}
	return shared.NewPersistenceError(entity, op, err)
}

func sessionOf(s shared.Session) (*Session, error) {
	ms, ok := shared.UnwrapSession[*Session](s)
	if !ok {
		return nil, fmt.Errorf("memory repositories need a *memory.Session, got %T", s)
	}
	return ms, nil
}

var (
	_ shared.Session       = (*Session)(nil)
	_ shared.SessionOpener = (*Store)(nil)
)
