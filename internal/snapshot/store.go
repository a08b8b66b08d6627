package snapshot

import "context"

// Store is a durable byte sink for the snapshot record. The engine owns
// the record shape; stores only move opaque bytes.
type Store interface {
	// Write replaces the stored record atomically.
	Write(ctx context.Context, data []byte) error
	// Read returns the stored record. A missing record reports ok=false
	// with a nil error.
	Read(ctx context.Context) (data []byte, ok bool, err error)
}
