package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"sync"
	"testing"

	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appliedLabel reads a pprof label from inside the wrapped function,
// verifying the labels were actually attached to the goroutine.
func appliedLabel(ctx context.Context, key string) (string, bool) {
	return pprof.Label(ctx, key)
}

func TestWithProfilingLabels_AppliesLabels(t *testing.T) {
	labels := map[string]string{
		telemetry.ProfilingLabelController: "imports",
		telemetry.ProfilingLabelMethod:     "POST",
		telemetry.ProfilingLabelRoute:      "/api/v1/imports",
	}

	var called bool
	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		called = true
		for key, want := range labels {
			got, ok := appliedLabel(ctx, key)
			assert.True(t, ok, "label %s missing", key)
			assert.Equal(t, want, got)
		}
	})
	require.True(t, called)
}

func TestWithProfilingLabels_NoLabels(t *testing.T) {
	for _, labels := range []map[string]string{nil, {}} {
		var called bool
		telemetry.WithProfilingLabels(context.Background(), labels, func(context.Context) {
			called = true
		})
		assert.True(t, called)
	}
}

func TestWithProfilingLabels_DropsHighCardinalityKeys(t *testing.T) {
	labels := map[string]string{
		telemetry.ProfilingLabelController: "imports",
		"user_id":                          "user-123",
		"request_id":                       "req-abc",
		"job_id":                           "job-456",
	}

	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		_, ok := appliedLabel(ctx, telemetry.ProfilingLabelController)
		assert.True(t, ok)
		for _, dropped := range []string{"user_id", "request_id", "job_id"} {
			_, ok := appliedLabel(ctx, dropped)
			assert.False(t, ok, "high-cardinality label %s should be dropped", dropped)
		}
	})
}

func TestWithProfilingLabels_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", telemetry.MaxLabelValueLength+50)

	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		telemetry.ProfilingLabelController: long,
	}, func(ctx context.Context) {
		got, ok := appliedLabel(ctx, telemetry.ProfilingLabelController)
		require.True(t, ok)
		assert.Len(t, got, telemetry.MaxLabelValueLength)
	})
}

func TestWithProfilingLabels_SkipsEmptyEntries(t *testing.T) {
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		telemetry.ProfilingLabelController: "imports",
		telemetry.ProfilingLabelMethod:     "",
		"":                                 "value",
	}, func(ctx context.Context) {
		_, ok := appliedLabel(ctx, telemetry.ProfilingLabelController)
		assert.True(t, ok)
		_, ok = appliedLabel(ctx, telemetry.ProfilingLabelMethod)
		assert.False(t, ok, "empty values are skipped")
	})
}

func TestWithProfilingLabels_NormalizesKeys(t *testing.T) {
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		"My Custom-Key": "value",
	}, func(ctx context.Context) {
		got, ok := appliedLabel(ctx, "my_custom_key")
		require.True(t, ok, "key should be lowercased with separators mapped to underscores")
		assert.Equal(t, "value", got)
	})
}

func TestWithProfilingLabels_PreservesContextValues(t *testing.T) {
	type ctxKey string
	ctx := context.WithValue(context.Background(), ctxKey("k"), "v")

	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelController: "imports",
	}, func(inner context.Context) {
		assert.Equal(t, "v", inner.Value(ctxKey("k")))
	})
}

func TestWithProfilingLabels_Nested(t *testing.T) {
	outer := map[string]string{telemetry.ProfilingLabelController: "imports"}
	inner := telemetry.RegionLabels("erp_delivery", nil)

	telemetry.WithProfilingLabels(context.Background(), outer, func(outerCtx context.Context) {
		telemetry.WithProfilingLabels(outerCtx, inner, func(innerCtx context.Context) {
			got, ok := appliedLabel(innerCtx, telemetry.ProfilingLabelController)
			assert.True(t, ok, "outer label survives nesting")
			assert.Equal(t, "imports", got)

			got, ok = appliedLabel(innerCtx, telemetry.ProfilingLabelRegion)
			assert.True(t, ok)
			assert.Equal(t, "erp_delivery", got)
		})
	})
}

func TestWithProfilingLabels_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry.WithProfilingLabels(context.Background(), map[string]string{
				telemetry.ProfilingLabelOperation: "load_file",
			}, func(ctx context.Context) {
				got, _ := appliedLabel(ctx, telemetry.ProfilingLabelOperation)
				assert.Equal(t, "load_file", got)
			})
		}()
	}
	wg.Wait()
}

func TestHTTPRequestLabels(t *testing.T) {
	tests := []struct {
		name                            string
		controller, route, method, role string
		wantLen                         int
	}{
		{"all fields", "imports", "/api/v1/imports", "GET", "operator", 4},
		{"no role", "imports", "/api/v1/imports", "GET", "", 3},
		{"controller only", "imports", "", "", "", 1},
		{"all empty", "", "", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := telemetry.HTTPRequestLabels(tt.controller, tt.route, tt.method, tt.role)
			assert.Len(t, labels, tt.wantLen)
			if tt.controller != "" {
				assert.Equal(t, tt.controller, labels[telemetry.ProfilingLabelController])
			}
			if tt.role != "" {
				assert.Equal(t, tt.role, labels[telemetry.ProfilingLabelRole])
			}
		})
	}
}

func TestOperationLabels(t *testing.T) {
	labels := telemetry.OperationLabels("load_file", nil)
	assert.Equal(t, map[string]string{telemetry.ProfilingLabelOperation: "load_file"}, labels)

	labels = telemetry.OperationLabels("load_file", map[string]string{"source_type": "xlsx"})
	assert.Equal(t, "load_file", labels[telemetry.ProfilingLabelOperation])
	assert.Equal(t, "xlsx", labels["source_type"])
	assert.Len(t, labels, 2)
}

func TestRegionLabels(t *testing.T) {
	labels := telemetry.RegionLabels("transform", map[string]string{"stage": "validate"})
	assert.Equal(t, "transform", labels[telemetry.ProfilingLabelRegion])
	assert.Equal(t, "validate", labels["stage"])
	assert.Len(t, labels, 2)
}

func TestHighCardinalityLabels(t *testing.T) {
	for _, key := range []string{"user_id", "request_id", "job_id", "trace_id", "span_id", "session_id"} {
		assert.True(t, telemetry.HighCardinalityLabels[key], "%s should be high cardinality", key)
	}
	assert.False(t, telemetry.HighCardinalityLabels[telemetry.ProfilingLabelRole])
}
