package measure

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dirsize/dirsize-exporter/pkg/types"
)

// Walker measures directory trees. A Walker holds no per-walk state and is
// safe for concurrent use.
type Walker struct {
	logger   *slog.Logger
	maxDepth int

	// Filesystem hooks, replaced in tests to simulate failures.
	readDir func(name string) ([]fs.DirEntry, error)
	lstat   func(name string) (fs.FileInfo, error)
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxDepth limits the walk to n directory levels, the measured directory
// itself being level one. Deeper directories contribute nothing and are
// logged. n <= 0 means no limit.
func WithMaxDepth(n int) Option {
	return func(w *Walker) { w.maxDepth = n }
}

// New returns a Walker that logs skipped entries to logger. A nil logger
// means slog.Default().
func New(logger *slog.Logger, opts ...Option) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Walker{
		logger:  logger,
		readDir: os.ReadDir,
		lstat:   os.Lstat,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Measure returns the total size and count of regular files below path.
//
// The error is non-nil only when path itself cannot be listed or ctx is done
// before the walk finishes. Failures further down are absorbed into
// Usage.Errors.
func (w *Walker) Measure(ctx context.Context, path string) (types.Usage, error) {
	var u types.Usage
	entries, err := w.readDir(path)
	if err != nil {
		return u, fmt.Errorf("measure: read %s: %w", path, err)
	}
	if err := w.walk(ctx, path, entries, 0, &u); err != nil {
		return types.Usage{}, err
	}
	return u, nil
}

func (w *Walker) walk(ctx context.Context, dir string, entries []fs.DirEntry, depth int, u *types.Usage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("measure: %s: %w", dir, err)
	}

	for _, e := range entries {
		p := filepath.Join(dir, e.Name())

		switch {
		case e.IsDir():
			if w.maxDepth > 0 && depth+1 >= w.maxDepth {
				w.logger.Warn("measure: directory too deep, skipping", "path", p, "max_depth", w.maxDepth)
				continue
			}
			children, err := w.readDir(p)
			if err != nil {
				w.logger.Warn("measure: skipping directory", "path", p, "err", err)
				u.Errors++
				continue
			}
			if err := w.walk(ctx, p, children, depth+1, u); err != nil {
				return err
			}

		case e.Type().IsRegular():
			info, err := w.lstat(p)
			if err != nil {
				w.logger.Warn("measure: skipping file", "path", p, "err", err)
				u.Errors++
				continue
			}
			// Replaced by something else since the directory was listed.
			if !info.Mode().IsRegular() {
				continue
			}
			u.Bytes += info.Size()
			u.Files++

		default:
			// symlink, device, socket or pipe
		}
	}
	return nil
}
