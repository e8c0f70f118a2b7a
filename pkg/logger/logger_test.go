package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestFromContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := WithCorrelation(context.Background(), "corr-1", "weather", "query")
	FromContext(ctx, base).Info("dispatching")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "weather", fields["connector"])
	assert.Equal(t, "query", fields["intent"])
}

func TestSetAndGet(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	nop := zap.NewNop()
	Set(nop)
	assert.Same(t, nop, Get())
}
