package entity

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/fsutil"
	"golang.org/x/sync/errgroup"
)

// FileExtension is the suffix of entity files.
const FileExtension = ".hcl"

// Load discovers entity files under the given roots and parses them with at
// most workers goroutines. Entities are returned in file path order. Parse
// errors from every file are collected and returned together, in the same
// order, so a run reports all broken files at once.
func Load(ctx context.Context, workers int, roots ...string) ([]*Entity, error) {
	logger := ctxlog.FromContext(ctx)
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	files, err := fsutil.FindAll(FileExtension, roots...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover entity files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s entity files found under %v", FileExtension, roots)
	}
	logger.Debug("Entity files discovered.", "count", len(files), "workers", workers)

	entities := make([]*Entity, len(files))
	parseErrs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each goroutine owns its own slot, so no locking is needed.
			entities[i], parseErrs[i] = ParseFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	out := make([]*Entity, 0, len(entities))
	for i, e := range entities {
		if parseErrs[i] != nil {
			errs = append(errs, parseErrs[i])
			continue
		}
		out = append(out, e)
	}
	if len(errs) > 0 {
		logger.Debug("Entity parsing failed.", "failed_files", len(errs), "total_files", len(files))
		return nil, errors.Join(errs...)
	}

	logger.Debug("Entities parsed.", "count", len(out))
	return out, nil
}
