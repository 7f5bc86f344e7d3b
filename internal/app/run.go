package app

import (
	"context"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/watch"
)

// Run executes the application: one pipeline run, or a watch loop that
// re-runs it after file changes until ctx is done. The status server runs
// alongside when a port is configured.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.StatusPort > 0 {
		if err := a.startStatusServer(ctx, a.config.StatusPort); err != nil {
			return err
		}
		defer a.stopStatusServer(ctx)
	}

	if !a.config.Watch {
		_, err := a.RunOnce(ctx)
		return err
	}

	exts := []string{entity.FileExtension}
	if a.config.FromConfig != "" {
		exts = []string{config.FileExtension}
	}
	err := watch.Loop(ctx, watch.Options{
		Roots:      a.config.watchRoots(),
		Extensions: exts,
		Ignore:     []string{a.config.OutDir},
	}, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	})
	a.logger.Debug("App.Run method finished.")
	return err
}
