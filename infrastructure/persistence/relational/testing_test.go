package relational

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"recordhub/domain/shared"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "recordhub.db"), LogLevel: "silent"}
	db, err := cfg.Connect(zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []shared.PendingEvent
	fail   map[string]bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev shared.PendingEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[ev.Name()] {
		return shared.ErrSendRejected
	}
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.events))
	for _, ev := range d.events {
		out = append(out, ev.Name())
	}
	return out
}

func (d *recordingDispatcher) all() []shared.PendingEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shared.PendingEvent(nil), d.events...)
}
