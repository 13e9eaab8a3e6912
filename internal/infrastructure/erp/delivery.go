package erp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erpbridge/backend/internal/infrastructure/config"
	"github.com/erpbridge/backend/internal/infrastructure/engine"
	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
)

// defaultConcurrency bounds in-flight batch posts per delivery
const defaultConcurrency = 4

// BatchError reports one batch that could not be delivered
type BatchError struct {
	Batch   int    `json:"batch"`
	Records int    `json:"records"`
	Message string `json:"message"`
}

// Report summarizes one delivery run
type Report struct {
	Endpoint     string       `json:"endpoint"`
	TotalRecords int          `json:"total_records"`
	Delivered    int          `json:"delivered"`
	Failed       int          `json:"failed"`
	Batches      int          `json:"batches"`
	Errors       []BatchError `json:"errors,omitempty"`
}

// ProgressFunc receives cumulative delivered and failed counts as batches
// complete. Calls are serialized.
type ProgressFunc func(delivered, failed int)

// Deliverer splits mapped records into batches and posts them concurrently,
// with per-endpoint circuit breaking and retry on transient failures.
type Deliverer struct {
	client      *Client
	breakers    *BreakerSet
	batchSize   int
	maxRetries  int
	backoff     time.Duration
	concurrency int
	logger      *zap.Logger
}

// DelivererOption configures a Deliverer
type DelivererOption func(*Deliverer)

// WithDelivererLogger sets the logger
func WithDelivererLogger(l *zap.Logger) DelivererOption {
	return func(d *Deliverer) {
		d.logger = l
	}
}

// WithConcurrency bounds the number of in-flight batches
func WithConcurrency(n int) DelivererOption {
	return func(d *Deliverer) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithBreakers shares a breaker set across deliverers
func WithBreakers(b *BreakerSet) DelivererOption {
	return func(d *Deliverer) {
		d.breakers = b
	}
}

// NewDeliverer creates a Deliverer from delivery configuration
func NewDeliverer(client *Client, cfg config.ERPConfig, opts ...DelivererOption) *Deliverer {
	d := &Deliverer{
		client:      client,
		breakers:    NewBreakerSet(cfg.BreakerThreshold, cfg.BreakerCooldown),
		batchSize:   cfg.BatchSize,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.RetryBackoff,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	if d.batchSize <= 0 {
		d.batchSize = 50
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BreakerStates exposes per-endpoint breaker states for the health probe
func (d *Deliverer) BreakerStates() map[string]BreakerState {
	return d.breakers.States()
}

// Deliver posts all records to the endpoint in batches. Batch failures do
// not abort the run; the report accounts for every record. The returned
// error is non-nil only when nothing could be attempted.
func (d *Deliverer) Deliver(ctx context.Context, endpoint string, records []engine.MappedRecord, progress ProgressFunc) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "erp.deliver",
		telemetry.WithAttribute(telemetry.SpanAttrERPEndpoint, endpoint),
		telemetry.WithAttribute("record_count", len(records)),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	if _, ok := endpointPaths[endpoint]; !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &Report{Endpoint: endpoint, TotalRecords: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	batches := splitBatches(records, d.batchSize)
	report.Batches = len(batches)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.concurrency)
	)

	for i, batch := range batches {
		wg.Add(1)
		sem <- struct{}{}

		go func(num int, batch []engine.MappedRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			err := d.deliverBatch(ctx, endpoint, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed += len(batch)
				report.Errors = append(report.Errors, BatchError{
					Batch:   num,
					Records: len(batch),
					Message: err.Error(),
				})
				d.logger.Warn("batch delivery failed",
					zap.String("endpoint", endpoint),
					zap.Int("batch", num),
					zap.Error(err))
			} else {
				report.Delivered += len(batch)
			}
			if progress != nil {
				progress(report.Delivered, report.Failed)
			}
		}(i+1, batch)
	}
	wg.Wait()

	telemetry.SetAttributes(span,
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return report, nil
}

// deliverBatch posts one batch with retry and circuit breaking
func (d *Deliverer) deliverBatch(ctx context.Context, endpoint string, batch []engine.MappedRecord) error {
	breaker := d.breakers.For(endpoint)

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			telemetry.AddEvent(telemetry.SpanFromContext(ctx), "delivery_retry",
				telemetry.SpanAttrAttempt, attempt,
				telemetry.SpanAttrBatchSize, len(batch),
			)
			backoff := d.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if !breaker.Allow() {
			// No point waiting out retries against an open breaker
			return ErrCircuitOpen
		}

		_, err := d.client.PostBatch(ctx, endpoint, batch)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}

		breaker.RecordFailure()
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

// splitBatches partitions records into consecutive chunks of at most size
func splitBatches(records []engine.MappedRecord, size int) [][]engine.MappedRecord {
	batches := make([][]engine.MappedRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
