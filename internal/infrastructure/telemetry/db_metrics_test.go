package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dbTestMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider.Meter("db-metrics-test"), reader
}

// collectMetric drains the reader and returns the named instrument's data,
// or false when nothing was recorded under that name.
func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics(t *testing.T) {
	meter, _ := dbTestMeter(t)

	t.Run("zero value config gets defaults", func(t *testing.T) {
		m, err := NewDBMetrics(meter, DBMetricsConfig{}, zap.NewNop())
		require.NoError(t, err)

		assert.Equal(t, 200*time.Millisecond, m.config.SlowQueryThreshold)
		assert.Equal(t, 15*time.Second, m.config.PoolStatsInterval)
	})

	t.Run("nil logger is replaced", func(t *testing.T) {
		m, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), nil)
		require.NoError(t, err)
		require.NotNil(t, m.logger)
	})
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	ctx := context.Background()
	meter, reader := dbTestMeter(t)

	m, err := NewDBMetrics(meter, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(ctx, "SELECT", "import_jobs", 12*time.Millisecond, nil)
	m.RecordQuery(ctx, "SELECT", "import_jobs", 8*time.Millisecond, nil)
	m.RecordQuery(ctx, "insert", "column_mappings", 5*time.Millisecond, nil)

	total, ok := collectMetric(t, reader, "db_query_total")
	require.True(t, ok)
	assert.Equal(t, int64(3), sumValue(t, total))

	// Operation casing is normalized before it becomes an attribute.
	ops := map[string]int64{}
	for _, dp := range total.Data.(metricdata.Sum[int64]).DataPoints {
		if v, found := dp.Attributes.Value(AttrDBOperation); found {
			ops[v.AsString()] = dp.Value
		}
	}
	assert.Equal(t, int64(2), ops["SELECT"])
	assert.Equal(t, int64(1), ops["INSERT"])

	dur, ok := collectMetric(t, reader, "db_query_duration_seconds")
	require.True(t, ok)
	hist := dur.Data.(metricdata.Histogram[float64])
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		assert.Equal(t, DBDurationBuckets, dp.Bounds)
	}
	assert.Equal(t, uint64(3), count)

	// Everything above was under the threshold.
	if slow, found := collectMetric(t, reader, "db_slow_query_total"); found {
		assert.Equal(t, int64(0), sumValue(t, slow))
	}
}

func TestDBMetrics_RecordQuery_SlowQueries(t *testing.T) {
	ctx := context.Background()
	meter, reader := dbTestMeter(t)

	m, err := NewDBMetrics(meter, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(ctx, "SELECT", "import_jobs", 250*time.Millisecond, nil)
	m.RecordQuery(ctx, "UPDATE", "", 300*time.Millisecond, nil)

	slow, ok := collectMetric(t, reader, "db_slow_query_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), sumValue(t, slow))

	tables := map[string]int64{}
	for _, dp := range slow.Data.(metricdata.Sum[int64]).DataPoints {
		if v, found := dp.Attributes.Value(AttrDBTable); found {
			tables[v.AsString()] = dp.Value
		}
	}
	assert.Equal(t, int64(1), tables["import_jobs"])
	assert.Equal(t, int64(1), tables["unknown"], "blank table names fall back to unknown")
}

func TestDBMetrics_RecordQuery_UnknownOperation(t *testing.T) {
	ctx := context.Background()
	meter, reader := dbTestMeter(t)

	m, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(ctx, "", "users", 5*time.Millisecond, nil)

	total, ok := collectMetric(t, reader, "db_query_total")
	require.True(t, ok)
	dp := total.Data.(metricdata.Sum[int64]).DataPoints[0]
	v, found := dp.Attributes.Value(AttrDBOperation)
	require.True(t, found)
	assert.Equal(t, "UNKNOWN", v.AsString())
}

func TestDBMetrics_PoolStats(t *testing.T) {
	ctx := context.Background()

	t.Run("samples pool gauges on the interval", func(t *testing.T) {
		meter, reader := dbTestMeter(t)

		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		m, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: 20 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		m.SetSQLDB(mockDB)
		m.StartPoolStatsCollection(ctx)
		time.Sleep(60 * time.Millisecond)
		m.Stop()

		_, ok := collectMetric(t, reader, "db_pool_connections_max")
		assert.True(t, ok)

		pool, ok := collectMetric(t, reader, "db_pool_connections")
		require.True(t, ok)

		states := map[string]bool{}
		for _, dp := range pool.Data.(metricdata.Gauge[int64]).DataPoints {
			if v, found := dp.Attributes.Value(AttrDBState); found {
				states[v.AsString()] = true
			}
		}
		assert.Equal(t, map[string]bool{"idle": true, "in_use": true, "open": true}, states)
	})

	t.Run("refuses to start without a sql.DB", func(t *testing.T) {
		meter, reader := dbTestMeter(t)

		m, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)

		m.StartPoolStatsCollection(ctx)
		m.Stop()

		_, ok := collectMetric(t, reader, "db_pool_connections")
		assert.False(t, ok, "no sampler goroutine should have run")
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		meter, _ := dbTestMeter(t)

		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		m, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: time.Second,
		}, zap.NewNop())
		require.NoError(t, err)

		m.SetSQLDB(mockDB)

		cctx, cancel := context.WithCancel(ctx)
		m.StartPoolStatsCollection(cctx)
		cancel()

		done := make(chan struct{})
		go func() {
			m.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Stop blocked after context cancellation")
		}
	})
}

func TestDBMetrics_StopIdempotent(t *testing.T) {
	meter, _ := dbTestMeter(t)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	m, err := NewDBMetrics(meter, DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	m.SetSQLDB(mockDB)
	m.StartPoolStatsCollection(context.Background())

	m.Stop()
	assert.NotPanics(t, func() { m.Stop() })
	assert.NotPanics(t, func() { m.Stop() })
}

func TestDBMetricsPlugin(t *testing.T) {
	meter, _ := dbTestMeter(t)

	m, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	plugin := NewDBMetricsPlugin(m, zap.NewNop())
	assert.Equal(t, "db_metrics", plugin.Name())

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, plugin.Initialize(gormDB))
}

func TestDetectOperationType(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM import_jobs", "SELECT"},
		{"  select id from users", "SELECT"},
		{"INSERT INTO column_mappings (name) VALUES ($1)", "INSERT"},
		{"update erp_connections set is_default = false", "UPDATE"},
		{"DELETE FROM import_jobs WHERE id = $1", "DELETE"},
		{"TRUNCATE TABLE import_jobs", "OTHER"},
		{"", "OTHER"},
	}
	for _, tc := range tests {
		t.Run(tc.want+"/"+tc.sql, func(t *testing.T) {
			assert.Equal(t, tc.want, detectOperationType(tc.sql))
		})
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	logger := zap.NewNop()

	openGorm := func(t *testing.T) *gorm.DB {
		t.Helper()
		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = mockDB.Close() })

		gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
		require.NoError(t, err)
		return gormDB
	}

	t.Run("disabled config is a no-op", func(t *testing.T) {
		m, err := RegisterDBMetrics(openGorm(t), nil, DBMetricsConfig{Enabled: false}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("nil meter provider is a no-op", func(t *testing.T) {
		m, err := RegisterDBMetrics(openGorm(t), nil, DBMetricsConfig{Enabled: true}, logger)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("registers plugin and pool sampler when enabled", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		sdkProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = sdkProvider.Shutdown(context.Background()) })

		mp := &MeterProvider{
			provider: sdkProvider,
			logger:   logger,
			config:   MetricsConfig{Enabled: true},
		}

		m, err := RegisterDBMetrics(openGorm(t), mp, DefaultDBMetricsConfig(), logger)
		require.NoError(t, err)
		require.NotNil(t, m)
		m.Stop()
	})
}

func TestDBMetrics_ConcurrentRecordQuery(t *testing.T) {
	ctx := context.Background()
	meter, reader := dbTestMeter(t)

	m, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	operations := []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	tables := []string{"users", "import_jobs", "column_mappings", "erp_connections"}

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(ctx, operations[i%4], tables[i%4], time.Duration(i)*time.Millisecond, nil)
		}()
	}
	wg.Wait()

	total, ok := collectMetric(t, reader, "db_query_total")
	require.True(t, ok)
	assert.Equal(t, int64(100), sumValue(t, total))
}
