package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/restore/internal/constraint"
	"github.com/specialistvlad/restore/internal/solver"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	EntityPaths []string // hcl files or directories
	UnitFiles   []string // custom unit definitions
	FromConfig  string   // compiled config.yaml used instead of entity files
	OutDir      string

	Solve         bool
	Solver        string
	SolverTimeout time.Duration
	Retirement    string

	Watch      bool
	StatusPort int
	Workers    int

	LogFormat string
	LogLevel  string
}

// Defaults for optional fields.
const (
	DefaultOutDir        = "out"
	DefaultSolverTimeout = 5 * time.Minute
)

var (
	logFormats = []string{"text", "json"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// NewConfig fills defaults and checks cfg.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.EntityPaths) == 0 && cfg.FromConfig == "" {
		return nil, errors.New("an entity path or --from-config is required")
	}
	if len(cfg.EntityPaths) > 0 && cfg.FromConfig != "" {
		return nil, errors.New("entity paths and --from-config are mutually exclusive")
	}
	if cfg.FromConfig != "" && len(cfg.UnitFiles) > 0 {
		return nil, errors.New("--units has no effect with --from-config")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}
	if cfg.Solver == "" {
		cfg.Solver = solver.SimplexName
	}
	if _, err := solver.New(cfg.Solver); err != nil {
		return nil, err
	}
	if cfg.SolverTimeout < 0 {
		return nil, fmt.Errorf("solver timeout must not be negative, got %s", cfg.SolverTimeout)
	}
	if cfg.SolverTimeout == 0 {
		cfg.SolverTimeout = DefaultSolverTimeout
	}
	if _, err := constraint.DecayByName(cfg.Retirement); err != nil {
		return nil, err
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port must be between 0 and 65535, got %d", cfg.StatusPort)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Watch {
		for _, root := range cfg.watchRoots() {
			if within(root, cfg.OutDir) {
				return nil, fmt.Errorf("watched input %q lies inside --out %q; each run would re-trigger watch mode", root, cfg.OutDir)
			}
		}
	}
	return &cfg, nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// watchRoots returns the paths watch mode observes.
func (c *Config) watchRoots() []string {
	if c.FromConfig != "" {
		return []string{c.FromConfig}
	}
	return append(slices.Clone(c.EntityPaths), c.UnitFiles...)
}
