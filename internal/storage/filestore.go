// Package storage provides the file store used for report attachments.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get and Delete when no object exists under the key.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes an object being written.
type ObjectInfo struct {
	FileName    string
	ContentType string
	// Size is the declared length, or -1 when unknown.
	Size int64
}

// FileStore stores opaque byte streams under keys it generates.
type FileStore interface {
	Put(ctx context.Context, r io.Reader, info ObjectInfo) (key string, written int64, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh storage key. Keys never contain caller-supplied names.
func NewKey(fileName string) string {
	id := uuid.NewString()
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "" {
		return "attachments/" + id[:2] + "/" + id
	}
	return "attachments/" + id[:2] + "/" + id + "." + ext
}

// ValidKey rejects keys that could escape the store root.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// ContextReader aborts reads once ctx is done.
func ContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
