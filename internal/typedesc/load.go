package typedesc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"dffi/internal/ffi"
	"dffi/internal/trace"
)

// DefaultFileName is the description looked up by Discover.
const DefaultFileName = "dffi.toml"

// LoadFiles decodes paths concurrently and applies them to rt in argument
// order.
func LoadFiles(ctx context.Context, rt *ffi.Runtime, paths ...string) (*Set, error) {
	ctx, span := trace.Start(ctx, rt.Tracer(), trace.ScopeLoad, "load descriptions")
	defer span.End("")
	span.WithExtra("files", strconv.Itoa(len(paths)))

	files := make([]*File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := DecodeFile(path)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, span.Fail(err)
	}
	set, err := Apply(rt, files...)
	return set, span.Fail(err)
}

// Discover walks up from startDir looking for dffi.toml.
func Discover(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}
