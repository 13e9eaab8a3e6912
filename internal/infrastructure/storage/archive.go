// Package storage archives uploaded spreadsheet files so failed imports
// can be inspected and replayed.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the archive holds no object under the key
var ErrNotFound = errors.New("storage: object not found")

// Archive stores and retrieves raw upload payloads by key
type Archive interface {
	// Store writes the payload under the key, overwriting any previous object
	Store(ctx context.Context, key string, data []byte) error

	// Retrieve reads the payload stored under the key
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BuildKey derives the archive key for one upload. Keys shard by month so
// retention sweeps can drop whole prefixes.
func BuildKey(jobID uuid.UUID, fileName string, now time.Time) string {
	base := path.Base(fileName)
	base = unsafeKeyChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%s/%s-%s", now.UTC().Format("2006/01"), jobID, base)
}

// validKey rejects empty keys and path traversal
func validKey(key string) error {
	if key == "" {
		return errors.New("storage: key is required")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("storage: unsafe key %q", key)
	}
	return nil
}
