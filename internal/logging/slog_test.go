package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync/types"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestSlogLogger_ImplementsInterface(t *testing.T) {
	var _ types.Logger = (*SlogLogger)(nil)
}

func TestNewSlog_NilFallsBackToDefault(t *testing.T) {
	logger := NewSlog(nil)
	require.NotNil(t, logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelDebug)

	logger.Debug("syncing", "shard", "shard1")
	logger.Info("leading", "candidate_id", "c-1")
	logger.Warn("fallback", "peers", 0)
	logger.Error("claim failed", "error", "conflict")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "shard=shard1")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "candidate_id=c-1")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=conflict")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible")
}

func TestWith_BindsFields(t *testing.T) {
	base, buf := newBufferedSlog(slog.LevelDebug)

	logger := With(base, "collection", "c1", "shard", "shard1")
	logger = With(logger, "candidate_id", "cand-1")
	logger.Info("state changed", "to", "Leading")

	output := buf.String()
	assert.Contains(t, output, "collection=c1")
	assert.Contains(t, output, "shard=shard1")
	assert.Contains(t, output, "candidate_id=cand-1")
	assert.Contains(t, output, "to=Leading")
}

func TestWith_NilAndEmpty(t *testing.T) {
	require.NotPanics(t, func() {
		With(nil, "k", "v").Info("message")
	})

	base := NewNop()
	require.Same(t, types.Logger(base), With(base))
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	require.NotPanics(t, func() {
		logger.Debug("test message", "key", "value")
		logger.Info("test message", "key", "value")
		logger.Warn("test message", "key", "value")
		logger.Error("test message", "key", "value")
		logger.Fatal("test message", "key", "value") // must not exit
	})
}

func TestFormatKeyValues(t *testing.T) {
	require.Empty(t, formatKeyValues(nil))
	require.Equal(t, "a=1 b=2", formatKeyValues([]any{"a", 1, "b", 2}))
	require.Equal(t, "a=1 b=<missing>", formatKeyValues([]any{"a", 1, "b"}))
}
