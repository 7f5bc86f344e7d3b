package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/restore/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	storageHCL = `
entity "node" "fuel_storage" {
  parameter "capacity" {
    value   = 100
    unit    = "MWh"
    sources = ["Site survey"]
  }
}
`
	generatorHCL = `
entity "technology" "generator" {
  input "fuel_storage" {}
  parameter "output_capacity" {
    value   = 10000
    unit    = "kW"
    sources = ["Data sheet"]
  }
  parameter "cost_variable_om" {
    value   = 5
    unit    = "USD/MWh"
    sources = ["Cost survey"]
  }
}
`
)

func exampleTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range map[string]string{"fuel_storage.hcl": storageHCL, "generator.hcl": generatorHCL} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{EntityPaths: []string{"entities"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultOutDir, cfg.OutDir)
	assert.Equal(t, solver.SimplexName, cfg.Solver)
	assert.Equal(t, DefaultSolverTimeout, cfg.SolverTimeout)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = NewConfig(Config{FromConfig: "run/config.yaml", OutDir: "run/out", Watch: true})
	assert.NoError(t, err, "an output dir beside the input is fine")
	_, err = NewConfig(Config{FromConfig: "run/config.yaml", OutDir: "run"})
	assert.NoError(t, err, "without watch mode there is no loop")

	t.Run("error cases", func(t *testing.T) {
		testCases := []struct {
			name string
			cfg  Config
			want string
		}{
			{"no input", Config{}, "an entity path or --from-config is required"},
			{"both inputs", Config{EntityPaths: []string{"a"}, FromConfig: "c.yaml"}, "mutually exclusive"},
			{"units with compiled config", Config{FromConfig: "c.yaml", UnitFiles: []string{"u.hcl"}}, "--units has no effect"},
			{"unknown solver", Config{EntityPaths: []string{"a"}, Solver: "cplex"}, `unknown solver backend "cplex"`},
			{"negative timeout", Config{EntityPaths: []string{"a"}, SolverTimeout: -time.Second}, "must not be negative"},
			{"unknown retirement", Config{EntityPaths: []string{"a"}, Retirement: "linear"}, `unknown retirement policy "linear"`},
			{"bad port", Config{EntityPaths: []string{"a"}, StatusPort: 70000}, "status port"},
			{"bad log format", Config{EntityPaths: []string{"a"}, LogFormat: "xml"}, "invalid log-format"},
			{"bad log level", Config{EntityPaths: []string{"a"}, LogLevel: "trace"}, "invalid log-level"},
			{"watched config inside out", Config{FromConfig: "run/config.yaml", OutDir: "run", Watch: true}, "lies inside --out"},
			{"watched entities inside out", Config{EntityPaths: []string{"out/entities"}, OutDir: "out", Watch: true}, "lies inside --out"},
			{"watched out dir itself", Config{EntityPaths: []string{"out"}, OutDir: "out", Watch: true}, "lies inside --out"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewConfig(tc.cfg)
				assert.ErrorContains(t, err, tc.want)
			})
		}
	})
}

func TestRunOnce(t *testing.T) {
	a, logs := SetupAppTest(t, Config{EntityPaths: []string{exampleTree(t)}, Solve: true})
	assert.Nil(t, a.Last())

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, a.Last())

	out := a.config.OutDir
	assert.Equal(t, []string{
		filepath.Join(out, ConfigFile),
		filepath.Join(out, LPFile),
		filepath.Join(out, ProblemFile),
		filepath.Join(out, SolutionFile),
	}, res.Artifacts)
	for _, path := range res.Artifacts {
		assert.FileExists(t, path)
	}

	lp, err := os.ReadFile(filepath.Join(out, LPFile))
	require.NoError(t, err)
	assert.Contains(t, string(lp), "balance(node.fuel_storage,y")

	require.NotNil(t, res.Solution)
	assert.Equal(t, solver.StatusOptimal, res.Solution.Status)
	assert.InDelta(t, 0, res.Solution.Objective, 1e-9, "nothing forces the generator to run")
	assert.Contains(t, logs.String(), "Run finished.")
	assert.Regexp(t, `msg="Graph built\."[^\n]*fingerprint=`+res.Config.Fingerprint(), logs.String(), "stage logs carry the run's fingerprint")
}

func TestRunOnceFromConfigIsIdempotent(t *testing.T) {
	first, _ := SetupAppTest(t, Config{EntityPaths: []string{exampleTree(t)}})
	res, err := first.RunOnce(context.Background())
	require.NoError(t, err)

	second, _ := SetupAppTest(t, Config{FromConfig: res.Artifacts[0]})
	again, err := second.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, string(res.ConfigYAML), string(again.ConfigYAML))
	assert.Equal(t, res.Problem.Constraints, again.Problem.Constraints)
}

func TestRunOnceKeepsPreviousResult(t *testing.T) {
	dir := exampleTree(t)
	a, _ := SetupAppTest(t, Config{EntityPaths: []string{dir}})
	good, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.hcl"), []byte(`entity "node" {`), 0o644))
	_, err = a.RunOnce(context.Background())
	require.Error(t, err)
	assert.Same(t, good, a.Last())
}

func TestStatusHandler(t *testing.T) {
	a, _ := SetupAppTest(t, Config{EntityPaths: []string{exampleTree(t)}})
	srv := httptest.NewServer(a.statusHandler())
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var b strings.Builder
		_, err = io.Copy(&b, resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, b.String()
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, _ = get("/config")
	assert.Equal(t, http.StatusServiceUnavailable, code, "no run yet")

	res, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	code, body = get("/config")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(res.ConfigYAML), body)

	code, body = get("/problem")
	require.Equal(t, http.StatusOK, code)
	var status problemStatus
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, res.Config.Fingerprint(), status.Fingerprint)
	assert.Equal(t, len(res.Problem.Variables), status.Variables)
	assert.Nil(t, status.Objective)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `restore_pipeline_runs_total{result="success"} 1`)
	assert.Contains(t, body, `restore_problem_size{dimension="constraints"}`)

	code, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRunWatchStopsWithContext(t *testing.T) {
	a, logs := SetupAppTest(t, Config{EntityPaths: []string{exampleTree(t)}, Watch: true})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Last() != nil }, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
	assert.Contains(t, logs.String(), "Watching for changes.")
}

func TestNewAppPanicsOnBrokenModules(t *testing.T) {
	cfg, err := NewConfig(Config{EntityPaths: []string{"x"}})
	require.NoError(t, err)
	assert.Panics(t, func() {
		NewApp(&SafeBuffer{}, cfg, coreModules[0], coreModules[0])
	})
}
