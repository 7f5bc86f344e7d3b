package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/restore/internal/assembler"
	"github.com/specialistvlad/restore/internal/compiler"
	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/entity"
	"github.com/specialistvlad/restore/internal/graph"
	"github.com/specialistvlad/restore/internal/metrics"
	"github.com/specialistvlad/restore/internal/problem"
	"github.com/specialistvlad/restore/internal/solver"
	"github.com/specialistvlad/restore/internal/units"
	"github.com/specialistvlad/restore/internal/validate"
)

// Artifact file names in the output directory.
const (
	ConfigFile   = "config.yaml"
	LPFile       = "problem.lp"
	ProblemFile  = "problem.json"
	SolutionFile = "solution.yaml"
)

// RunOnce runs the pipeline once. On success the result becomes the one
// Last returns; on failure the previous result stays.
func (a *App) RunOnce(ctx context.Context) (res *Result, err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	defer func() { a.metrics.RecordRun(err) }()

	cfg, err := a.configuration(ctx)
	if err != nil {
		return nil, err
	}
	a.metrics.SetEntities(len(cfg.Entities()))
	ctx = ctxlog.With(ctx, "fingerprint", cfg.Fingerprint())

	res = &Result{Config: cfg}
	if res.ConfigYAML, err = config.Encode(cfg); err != nil {
		return nil, err
	}

	done := a.metrics.Stage(metrics.StageGraph)
	g, err := graph.Build(ctx, cfg, a.registry)
	done()
	if err != nil {
		return nil, err
	}

	done = a.metrics.Stage(metrics.StageAssemble)
	res.Problem, err = a.assemble(ctx, g, cfg)
	done()
	if err != nil {
		return nil, err
	}
	stats := res.Problem.Stats()
	a.metrics.SetProblem(stats.Variables, stats.Constraints, stats.NonZeros)

	done = a.metrics.Stage(metrics.StageWrite)
	res.Artifacts, err = a.writeArtifacts(res)
	done()
	if err != nil {
		return nil, err
	}

	if a.config.Solve {
		done = a.metrics.Stage(metrics.StageSolve)
		res.Solution, err = solver.Solve(ctx, a.backend, res.Problem, a.config.SolverTimeout)
		done()
		if err != nil {
			a.logger.Warn("Solve failed; the LP file is kept for debugging.", "path", filepath.Join(a.config.OutDir, LPFile))
			return nil, err
		}
		path := filepath.Join(a.config.OutDir, SolutionFile)
		if err := res.Solution.WriteFile(path); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		res.Artifacts = append(res.Artifacts, path)
		a.metrics.SetObjective(res.Solution.Objective)
	}

	res.Finished = time.Now()
	a.last.Store(res)
	a.logger.Info("Run finished.", "fingerprint", cfg.Fingerprint(), "artifacts", res.Artifacts)
	return res, nil
}

// configuration loads a compiled artifact or compiles the entity files.
func (a *App) configuration(ctx context.Context) (*config.Configuration, error) {
	if a.config.FromConfig != "" {
		defer a.metrics.Stage(metrics.StageLoad)()
		cfg, err := config.ReadFile(a.config.FromConfig)
		if err != nil {
			return nil, err
		}
		a.logger.Info("Configuration loaded.", "path", a.config.FromConfig, "fingerprint", cfg.Fingerprint())
		return cfg, nil
	}

	done := a.metrics.Stage(metrics.StageLoad)
	reg, err := a.units()
	if err != nil {
		done()
		return nil, err
	}
	entities, err := entity.Load(ctx, a.config.Workers, a.config.EntityPaths...)
	done()
	if err != nil {
		return nil, err
	}
	a.logger.Info("Entities loaded.", "count", len(entities))

	done = a.metrics.Stage(metrics.StageValidate)
	set, err := validate.Run(entities, reg)
	done()
	if err != nil {
		return nil, err
	}

	defer a.metrics.Stage(metrics.StageCompile)()
	return compiler.Compile(ctx, set)
}

func (a *App) units() (*units.Registry, error) {
	var defs []units.Definition
	for _, path := range a.config.UnitFiles {
		d, err := units.LoadFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d...)
	}
	return units.New(defs...)
}

func (a *App) assemble(ctx context.Context, g *graph.Graph, cfg *config.Configuration) (*problem.Problem, error) {
	decay, err := constraint.DecayByName(a.config.Retirement)
	if err != nil {
		return nil, err
	}
	lib, err := a.registry.Library(decay)
	if err != nil {
		return nil, err
	}
	return assembler.Assemble(ctx, g, cfg, lib)
}

// writeArtifacts writes the configuration and the problem. The LP file is
// written before solving so it survives a failed solve.
func (a *App) writeArtifacts(res *Result) ([]string, error) {
	dir := a.config.OutDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	write := func(name string, fill func(f *os.File) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := fill(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
		a.logger.Debug("Artifact written.", "path", path)
		return nil
	}

	if err := write(ConfigFile, func(f *os.File) error { _, err := f.Write(res.ConfigYAML); return err }); err != nil {
		return nil, err
	}
	if err := write(LPFile, func(f *os.File) error { return res.Problem.WriteLP(f) }); err != nil {
		return nil, err
	}
	if err := write(ProblemFile, func(f *os.File) error { return res.Problem.WriteJSON(f) }); err != nil {
		return nil, err
	}
	return written, nil
}
