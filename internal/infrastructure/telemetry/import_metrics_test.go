package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func newTestImportMetrics(t *testing.T, provider telemetry.JobStatsProvider) *telemetry.ImportMetrics {
	t.Helper()
	meter := noop.NewMeterProvider().Meter("test")

	im, err := telemetry.NewImportMetrics(telemetry.ImportMetricsConfig{
		Meter:         meter,
		Logger:        zap.NewNop(),
		StatsProvider: provider,
	})
	require.NoError(t, err)
	require.NotNil(t, im)
	return im
}

func finishedJob(t *testing.T) *importjob.ImportJob {
	t.Helper()
	job, err := importjob.NewImportJob(uuid.New(), "orders.csv", 1024, nil)
	require.NoError(t, err)
	require.NoError(t, job.Start(10))
	require.NoError(t, job.Complete(8, 2, 80.0, nil))
	return job
}

func TestNewImportMetrics(t *testing.T) {
	newTestImportMetrics(t, nil)
}

func TestNewImportMetrics_NilMeter(t *testing.T) {
	im, err := telemetry.NewImportMetrics(telemetry.ImportMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, im)
	assert.Equal(t, "NewImportMetrics: meter cannot be nil", err.Error())
}

func TestImportMetrics_JobUpdate(t *testing.T) {
	im := newTestImportMetrics(t, nil)

	// Should not panic for any lifecycle stage
	pending, err := importjob.NewImportJob(uuid.New(), "orders.csv", 1024, nil)
	require.NoError(t, err)
	im.JobUpdate(pending)

	im.JobUpdate(finishedJob(t))
	im.JobUpdate(nil)
}

func TestImportMetrics_JobUpdate_RecordsTerminalOnce(t *testing.T) {
	im := newTestImportMetrics(t, nil)

	job := finishedJob(t)

	// A repeated terminal update must not double count
	im.JobUpdate(job)
	im.JobUpdate(job)
}

func TestImportMetrics_JobFailed(t *testing.T) {
	im := newTestImportMetrics(t, nil)

	job, err := importjob.NewImportJob(uuid.New(), "orders.csv", 1024, nil)
	require.NoError(t, err)
	require.NoError(t, job.Start(5))
	require.NoError(t, job.Fail("mapping deleted", nil))

	// Should not panic
	im.JobFailed(job, "mapping deleted")
	im.JobFailed(nil, "no job")
}

type stubStatsProvider struct {
	counts map[importjob.Status]int64
	err    error
	calls  chan struct{}
}

func (s *stubStatsProvider) CountByStatus(ctx context.Context) (map[importjob.Status]int64, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return s.counts, s.err
}

func TestImportMetrics_PeriodicCollection(t *testing.T) {
	provider := &stubStatsProvider{
		counts: map[importjob.Status]int64{
			importjob.StatusPending:    3,
			importjob.StatusProcessing: 1,
		},
		calls: make(chan struct{}, 1),
	}
	im := newTestImportMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	im.StartPeriodicCollection(ctx, 10*time.Millisecond)
	defer im.Stop()

	select {
	case <-provider.calls:
	case <-time.After(time.Second):
		t.Fatal("stats provider was never queried")
	}
}

func TestImportMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	provider := &stubStatsProvider{
		err:   errors.New("database gone"),
		calls: make(chan struct{}, 1),
	}
	im := newTestImportMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collection errors are logged, not fatal
	im.StartPeriodicCollection(ctx, 10*time.Millisecond)
	defer im.Stop()

	select {
	case <-provider.calls:
	case <-time.After(time.Second):
		t.Fatal("stats provider was never queried")
	}
}

func TestImportMetrics_StopIsIdempotent(t *testing.T) {
	im := newTestImportMetrics(t, nil)

	im.Stop()
	im.Stop()
}
