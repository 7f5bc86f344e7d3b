// Package watch re-runs a function whenever entity or unit files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/fsutil"
)

// DefaultDebounce groups the events of one editor save into one run.
const DefaultDebounce = 200 * time.Millisecond

// RunFunc is called once at start and once per burst of changes. Its error
// is logged; the loop keeps going.
type RunFunc func(ctx context.Context) error

// Options configure Loop.
type Options struct {
	Roots      []string
	Extensions []string // only changes to these files trigger a run; empty means any
	Ignore     []string // changes under these paths never trigger a run
	Debounce   time.Duration
}

// Loop calls run, then watches the roots recursively and calls run again
// after every burst of relevant changes. It returns when ctx is done.
func Loop(ctx context.Context, opts Options, run RunFunc) error {
	logger := ctxlog.FromContext(ctx)
	if len(opts.Roots) == 0 {
		return errors.New("watch needs at least one path")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer w.Close()

	dirs, err := fsutil.Dirs(opts.Roots...)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	m, err := newMatcher(opts)
	if err != nil {
		return err
	}
	logger.Info("Watching for changes.", "directories", len(dirs))

	invoke := func(reason string) {
		logger.Debug("Running pipeline.", "reason", reason)
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Run failed; keeping the previous result.", "error", err)
		}
	}
	invoke("start")

	timer := time.NewTimer(opts.Debounce)
	timer.Stop()
	var pending string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.Add(event.Name); err != nil {
						logger.Warn("Cannot watch new directory.", "path", event.Name, "error", err)
					}
				}
			}
			if !m.relevant(event) {
				continue
			}
			pending = fmt.Sprintf("%s (%s)", event.Name, event.Op)
			timer.Reset(opts.Debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)

		case <-timer.C:
			invoke(pending)
		}
	}
}

// matcher decides which events trigger a run. A root that is a file only
// matches itself, not its siblings in the watched directory.
type matcher struct {
	extensions []string
	dirs       []string
	files      []string
	ignore     []string
}

func newMatcher(opts Options) (*matcher, error) {
	m := &matcher{extensions: opts.Extensions}
	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		if info.IsDir() {
			m.dirs = append(m.dirs, abs)
		} else {
			m.files = append(m.files, abs)
		}
	}
	for _, p := range opts.Ignore {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		m.ignore = append(m.ignore, abs)
	}
	return m, nil
}

func (m *matcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	for _, p := range m.ignore {
		if within(name, p) {
			return false
		}
	}
	if slices.Contains(m.files, name) {
		return true
	}
	inDir := slices.ContainsFunc(m.dirs, func(d string) bool { return within(name, d) })
	if !inDir {
		return false
	}
	return len(m.extensions) == 0 || slices.Contains(m.extensions, filepath.Ext(name))
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
