package logger

import (
	"context"
	"errors"
	"testing"

	"ChatRelay/config"
	"ChatRelay/pkg/ctxmeta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteAppendsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ReplaceGlobal(zap.New(core))
	defer ReplaceGlobal(nil)

	ctx := ctxmeta.WithUserID(ctxmeta.WithTraceID(context.Background(), "t1"), "u1")
	Warn(ctx, "relay failed", String("peer", "u2"), ErrorField("error", errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "relay failed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "t1", fields["trace_id"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "u2", fields["peer"])
	assert.Equal(t, "boom", fields["error"])
}

func TestWriteRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ReplaceGlobal(zap.New(core))
	defer ReplaceGlobal(nil)

	Debug(context.Background(), "hidden")
	Info(nil, "shown")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
}

func TestBuildFallsBackToInfo(t *testing.T) {
	l, err := Build(config.LoggerConfig{Level: "not-a-level", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNamedErrorField(t *testing.T) {
	f := ErrorField("kafka_error", errors.New("x"))
	assert.Equal(t, "kafka_error", f.Key)
}
