package object

import (
	"context"
	"io"
)

// Object describes the raw bytes of one uploaded document.
type Object struct {
	OwnerID     string
	DocumentID  string
	FileName    string
	ContentType string
}

// ObjectStore keeps the raw bytes of uploads. Keys are produced by Key and are
// relative to the store root.
type ObjectStore interface {
	Put(ctx context.Context, obj Object, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
