package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long an upload's Idempotency-Key stays
// claimed. A retry after this window is treated as a new upload.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore deduplicates retried upload requests by their
// Idempotency-Key.
type IdempotencyStore interface {
	// MarkProcessed claims the key for the given TTL. It returns true
	// when the key was newly claimed and false when an earlier request
	// already holds it.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key holds a live claim.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases the store's resources.
	Close() error
}
