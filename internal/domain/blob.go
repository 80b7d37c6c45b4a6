package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage. Used by the archive worker to
// ship settled bond records to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
