// Package blob stores file bytes under opaque keys.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is the byte storage behind file records. Keys are slash separated and
// chosen by the caller.
type Store interface {
	// Put writes r under key and returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Locator returns a location a client can fetch the blob from directly.
	Locator(ctx context.Context, key string) (string, error)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
