// Package persist owns durable storage of grid documents: explicit verified
// saves, debounced auto-save with retry/backoff, and export/import of
// self-contained documents.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Store.Load for missing keys.
var ErrKeyNotFound = errors.New("persist: key not found")

// QuotaError means a write exceeded the store's size limit. The save is
// aborted and surfaced to the user; retrying without shrinking the document
// cannot succeed.
type QuotaError struct {
	Key   string
	Size  int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("persist: document %q is %d bytes, exceeds quota of %d", e.Key, e.Size, e.Limit)
}

// VerificationError means the read-back after a write did not match what was
// written. Treated as a save failure: the auto-save path retries, an
// explicit save surfaces it immediately.
type VerificationError struct {
	Key string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("persist: read-back verification failed for %q", e.Key)
}

// Store is durable key/value storage for serialized documents. The file
// store backs single-user setups; the postgres profile store implements the
// same contract for the server.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
