package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_DefaultConfig(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(&Config{Level: "info", Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestContextFields_Correlation(t *testing.T) {
	ctx := context.Background()
	ctx = WithProjectID(ctx, "proj-1")
	ctx = WithTaskID(ctx, "task-9")
	ctx = WithSessionID(ctx, "sess-3")

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)
	assert.Equal(t, "project.id", fields[0].Key)
	assert.Equal(t, "task.id", fields[1].Key)
	assert.Equal(t, "session.id", fields[2].Key)
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestTestLogger_ObservesEntries(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithTaskID(context.Background(), "task-1")

	tl.Info(ctx, "dispatching task")

	entries := tl.FilterMessage("dispatching task").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "task.id", entries[0].Context[0].Key)
	tl.AssertLogged(t, zapcore.InfoLevel, "dispatching")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "dispatching")
}

func TestFromContext_Fallback(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}
