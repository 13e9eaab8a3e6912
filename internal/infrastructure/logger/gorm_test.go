package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func observedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func jobsQuery() (string, int64) {
	return "SELECT * FROM import_jobs WHERE status = 'pending'", 3
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := observedGormLogger(gormlogger.Info)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, 200*time.Millisecond, gl.slowThreshold)
	assert.True(t, gl.ignoreRecordNotFoundError)
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := observedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogModeReturnsCopy(t *testing.T) {
	gl, _ := observedGormLogger(gormlogger.Info)

	lowered, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, lowered.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLogger_LeveledMessages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		logLevel gormlogger.LogLevel
		emit     func(*GormLogger)
		want     string
		wantLvl  zapcore.Level
	}{
		{
			name:     "info formats args",
			logLevel: gormlogger.Info,
			emit:     func(gl *GormLogger) { gl.Info(ctx, "migrated %s", "import_jobs") },
			want:     "migrated import_jobs",
			wantLvl:  zapcore.InfoLevel,
		},
		{
			name:     "warn formats args",
			logLevel: gormlogger.Warn,
			emit:     func(gl *GormLogger) { gl.Warn(ctx, "pool nearly exhausted: %d", 42) },
			want:     "pool nearly exhausted: 42",
			wantLvl:  zapcore.WarnLevel,
		},
		{
			name:     "error passes through",
			logLevel: gormlogger.Error,
			emit:     func(gl *GormLogger) { gl.Error(ctx, "connection refused") },
			want:     "connection refused",
			wantLvl:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := observedGormLogger(tt.logLevel)
			tt.emit(gl)

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.want, logs[0].Message)
			assert.Equal(t, tt.wantLvl, logs[0].Level)
		})
	}
}

func TestGormLogger_LevelSuppression(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Silent)

	gl.Info(context.Background(), "hidden")
	gl.Warn(context.Background(), "hidden")
	gl.Error(context.Background(), "hidden")

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceError(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), jobsQuery, assert.AnError)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "SQL Error", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
}

func TestGormLogger_TraceRecordNotFoundIgnored(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), jobsQuery, gormlogger.ErrRecordNotFound)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceRecordNotFoundReported(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))

	gl.Trace(context.Background(), time.Now(), jobsQuery, gormlogger.ErrRecordNotFound)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "SQL Error", logs[0].Message)
}

func TestGormLogger_TraceSlowQuery(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

	gl.Trace(context.Background(), time.Now().Add(-time.Second), jobsQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SLOW SQL")
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
}

func TestGormLogger_TraceSlowDisabledByZeroThreshold(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Warn, WithSlowThreshold(0))

	gl.Trace(context.Background(), time.Now().Add(-time.Second), jobsQuery, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceNormalQuery(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Info)

	gl.Trace(context.Background(), time.Now(), jobsQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "SQL Query", logs[0].Message)

	ctx := logs[0].ContextMap()
	assert.Equal(t, int64(3), ctx["rows"])
	assert.Contains(t, ctx["sql"], "import_jobs")
}

func TestGormLogger_TraceSilent(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), jobsQuery, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_TraceCarriesRequestID(t *testing.T) {
	gl, recorded := observedGormLogger(gormlogger.Info)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")

	gl.Trace(ctx, time.Now(), jobsQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-7", logs[0].ContextMap()["request_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
