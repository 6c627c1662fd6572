// Package blob defines the object store consumed by the table engine and its
// backends.
//
// A Store holds opaque blobs addressed by slash-separated paths. The only
// mutation is a full overwrite: either the complete new content is visible to
// the next read, or the previous content is. There is no append and no range
// read.
//
// Reads return a [Tag], an opaque precondition token describing the content
// that was read. Writes carry the Tag from the read they were computed from;
// a write whose Tag no longer matches the stored content fails with
// [ErrConflict] so the caller can re-read and recompute instead of silently
// discarding a concurrent writer's data.
package blob

import (
	"context"
	"errors"
)

// Tag is an opaque precondition token identifying one observed state of a
// blob. The zero Tag states that the blob did not exist at read time.
type Tag string

var (
	// ErrNotExist is returned by ReadAll for a path with no blob.
	ErrNotExist = errors.New("blob does not exist")

	// ErrConflict is returned by WriteAll when the blob changed after the
	// read that produced the expected Tag.
	ErrConflict = errors.New("blob changed since read")
)

// Store is an object store holding one opaque blob per path.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Exists reports whether a blob is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// ReadAll returns the full content of the blob at path and the Tag of
	// the returned content. It fails with an error wrapping [ErrNotExist]
	// when there is no blob at path.
	ReadAll(ctx context.Context, path string) ([]byte, Tag, error)

	// WriteAll atomically replaces the blob at path with data, provided the
	// stored content still matches expect. The zero Tag demands that no blob
	// exists at path yet. Fails with an error wrapping [ErrConflict] when
	// the precondition does not hold; the store is left unchanged.
	WriteAll(ctx context.Context, path string, data []byte, expect Tag) error
}
