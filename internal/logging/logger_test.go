package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("not-a-level")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger, err := NewLogger(" DEBUG ")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	scoped := zap.New(core)
	fallback := zap.NewNop()

	ctx := WithLogger(context.Background(), scoped)
	FromContext(ctx, fallback).Info("scoped")
	assert.Equal(t, 1, logs.Len())

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))
}

func TestPrintfAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	adapter := NewPrintfAdapter(zap.New(core))

	adapter.Printf("\n%s rows=%d", "SELECT 1", 1)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SELECT 1 rows=1", logs.All()[0].Message)
}
