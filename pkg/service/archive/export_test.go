package archive

import (
	"context"
	"io"
)

// NewWithWriterForTest creates an Archiver that writes through newWriter instead of Cloud Storage
func NewWithWriterForTest(bucket string, newWriter func(ctx context.Context, bucket, key, contentType string) io.WriteCloser, opts ...Option) *Archiver {
	a := &Archiver{bucket: bucket, newWriter: newWriter}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
