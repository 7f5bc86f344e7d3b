package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/restore/internal/config"
	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/metrics"
	"github.com/specialistvlad/restore/internal/problem"
	"github.com/specialistvlad/restore/internal/registry"
	"github.com/specialistvlad/restore/internal/solver"
)

// Result is the output of one successful pipeline run.
type Result struct {
	Config     *config.Configuration
	ConfigYAML []byte
	Problem    *problem.Problem
	Solution   *solver.Solution // nil unless solving was requested
	Artifacts  []string         // paths written, in order
	Finished   time.Time
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	metrics    *metrics.Metrics
	backend    solver.Backend
	last       atomic.Pointer[Result]
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// metrics. With no modules given it loads every compiled-in sector module.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.Load(modules...)
	logger.Debug("Sector modules registered.", "count", len(modules))

	if err := reg.ValidateRegistry(ctx); err != nil {
		// A broken module set is a programmer error, so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	backend, err := solver.New(cfg.Solver)
	if err != nil {
		panic(err)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		metrics:  metrics.New(),
		backend:  backend,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Last returns the result of the latest successful run, or nil.
func (a *App) Last() *Result {
	return a.last.Load()
}
