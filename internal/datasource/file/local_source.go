// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source bound to one path. The zero value is not
// usable; construct with NewLocal.
type Local struct{ path string }

// NewLocal returns a Local data source for the given path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading. A context already canceled at
// call time short-circuits without touching the filesystem. Filesystem errors
// are wrapped with the path and remain errors.Is-compatible (e.g.
// errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
