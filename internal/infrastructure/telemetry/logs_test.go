package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "erpbridge",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, lp)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_GetConfig(t *testing.T) {
	cfg := LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "collector:4317",
		ServiceName:       "erpbridge",
		Insecure:          true,
	}

	lp, err := NewLoggerProvider(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg, lp.GetConfig())
}

func TestLoggerProvider_ShutdownIdempotent(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, lp.Shutdown(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestNewZapOTELCore_NilOrDisabledProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  ZapBridgeConfig
	}{
		{name: "nil provider", cfg: ZapBridgeConfig{ServiceName: "erpbridge"}},
		{
			name: "disabled provider",
			cfg: ZapBridgeConfig{
				ServiceName:    "erpbridge",
				LoggerProvider: mustDisabledLoggerProvider(t),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := NewZapOTELCore(tt.cfg)
			require.NotNil(t, core)

			// Nop core: nothing is enabled, logging through it must not panic.
			assert.False(t, core.Enabled(zapcore.ErrorLevel))
			logger := zap.New(core)
			logger.Error("dropped")
		})
	}
}

func mustDisabledLoggerProvider(t *testing.T) *LoggerProvider {
	t.Helper()
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	return lp
}

func TestNewBridgedLogger_TeesToBothCores(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	otelCore, otelLogs := observer.New(zapcore.InfoLevel)

	logger := NewBridgedLogger(baseCore, otelCore)
	logger.Info("import started", zap.String("file", "orders.xlsx"))

	require.Equal(t, 1, baseLogs.Len())
	require.Equal(t, 1, otelLogs.Len())
	assert.Equal(t, "import started", baseLogs.All()[0].Message)
	assert.Equal(t, "import started", otelLogs.All()[0].Message)
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.DebugLevel))
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	logger := zap.New(core)
	logger.Info("filtered out")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestLevelFilterCore_WithPreservesLevel(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.ErrorLevel}

	child := core.With([]zapcore.Field{zap.String("job_id", "j-1")})
	assert.False(t, child.Enabled(zapcore.WarnLevel))
	assert.True(t, child.Enabled(zapcore.ErrorLevel))

	logger := zap.New(child)
	logger.Error("delivery failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "delivery failed", entry.Message)
	require.Len(t, entry.Context, 1)
	assert.Equal(t, "job_id", entry.Context[0].Key)
}
