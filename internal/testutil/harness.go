package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/restore/internal/app"
	"github.com/specialistvlad/restore/internal/registry"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Result    *app.Result
	Dir       string // root of the written tree
	OutDir    string
}

// Options adjust the app config of a harness run. EntityPaths and UnitFiles
// are relative to the temporary tree; when EntityPaths is empty the
// "entities" directory is used.
type Options struct {
	Config  app.Config
	Modules []registry.Module
}

// RunPipelineTest provides a standardized harness for running integration
// tests using a default background context.
func RunPipelineTest(t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()
	return RunPipelineTestWithContext(context.Background(), t, files, opts)
}

// RunPipelineTestWithContext writes files into a temporary tree, builds an
// app on it, and runs the pipeline once. Startup panics and config errors
// are reported through Err.
func RunPipelineTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	dir := WriteTree(t, files)
	cfg := opts.Config
	if len(cfg.EntityPaths) == 0 && cfg.FromConfig == "" {
		cfg.EntityPaths = []string{"entities"}
	}
	cfg.EntityPaths = rooted(dir, cfg.EntityPaths)
	cfg.UnitFiles = rooted(dir, cfg.UnitFiles)
	if cfg.FromConfig != "" && !filepath.IsAbs(cfg.FromConfig) {
		cfg.FromConfig = filepath.Join(dir, cfg.FromConfig)
	}
	if cfg.OutDir == "" {
		cfg.OutDir = filepath.Join(dir, "out")
	}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"

	res := &HarnessResult{Dir: dir, OutDir: cfg.OutDir}
	checked, err := app.NewConfig(cfg)
	if err != nil {
		res.Err = err
		return res
	}

	logBuffer := &app.SafeBuffer{}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		res.App = app.NewApp(logBuffer, checked, opts.Modules...)
	}()

	if res.App != nil {
		res.Result, res.Err = res.App.RunOnce(ctx)
	}
	res.LogOutput = logBuffer.String()

	if os.Getenv("RESTORE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), res.LogOutput)
	}
	return res
}

// WriteTree writes files, keyed by slash-separated relative path, into a new
// temporary directory and returns it.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func rooted(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.FromSlash(p))
		}
		out = append(out, p)
	}
	return out
}
