package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"recordhub/config"
	"recordhub/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNilLoggerSafety(t *testing.T) {
	original := log
	defer Set(original)
	Set(nil)

	assert.NotPanics(t, func() {
		Debug("debug")
		Info("info")
		Warn("warn")
		Error("error")
		With(zap.String("key", "value")).Info("with")
		FromContext(context.Background()).Info("ctx")
	})
	assert.NoError(t, Sync())
}

func TestFromContextAddsRequestID(t *testing.T) {
	original := log
	defer Set(original)

	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))

	ctx := persistence.ContextWithRequestID(context.Background(), "req-1")
	FromContext(ctx).Info("handled")
	FromContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestDynamicLogLevel(t *testing.T) {
	original := log
	defer Set(original)

	require.NoError(t, Init(&config.LogConfig{Level: "debug", Output: "stdout"}, "development"))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))

	UpdateLevel("warn")
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
}

func TestNewDoesNotReplaceGlobal(t *testing.T) {
	original := log
	defer Set(original)
	Set(nil)

	l, err := New(&config.LogConfig{Level: "error", Format: "json", Output: "stdout"}, "production")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.Nil(t, log)
}

func TestFileOutput(t *testing.T) {
	original := log
	defer Set(original)

	path := filepath.Join(t.TempDir(), "logs", "recordhub.log")
	require.NoError(t, Init(&config.LogConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	}, "production"))

	for i := 0; i < 10; i++ {
		Info("entry", zap.Int("n", i))
	}
	require.NoError(t, Sync())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
