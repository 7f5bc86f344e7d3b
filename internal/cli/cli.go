package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/specialistvlad/restore/internal/app"
	"github.com/specialistvlad/restore/internal/solver"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variable of every flag: --status-port
// reads RESTORE_STATUS_PORT.
const EnvPrefix = "RESTORE"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) *ExitError {
	return &ExitError{Code: 2, Message: err.Error()}
}

func newFlagSet(output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("restore", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	fs.Usage = func() {
		fmt.Fprint(output, `
RESTORE - compiles energy-system entity files into a linear optimization problem.

Usage:
  restore [options] [ENTITY_PATH...]

Arguments:
  ENTITY_PATH
    Path to a single .hcl entity file or a directory containing them.

Every option can also be set through RESTORE_<OPTION> in the environment,
e.g. RESTORE_LOG_LEVEL=debug, or in the file given by --config.

Options:
`)
		fs.PrintDefaults()
	}

	fs.StringSliceP("entities", "e", nil, "Entity files or directories. Repeatable.")
	fs.StringSlice("units", nil, "Unit definition files, e.g. exchange rates. Repeatable.")
	fs.StringP("out", "o", app.DefaultOutDir, "Directory for config.yaml, problem.lp, problem.json and solution.yaml.")
	fs.String("from-config", "", "Reuse a compiled config.yaml instead of entity files.")
	fs.Bool("solve", false, "Solve the problem after writing it.")
	fs.String("solver", solver.SimplexName, fmt.Sprintf("Solver backend. Options: %s.", strings.Join(solver.Names(), ", ")))
	fs.Duration("solver-timeout", app.DefaultSolverTimeout, "Abandon the solver after this long.")
	fs.String("retirement", "step", "Retirement policy for installed capacity. Options: 'step' or 'sigmoid'.")
	fs.BoolP("watch", "w", false, "Re-run whenever entity files change.")
	fs.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	fs.Int("workers", 0, "Number of entity files parsed in parallel. 0 uses every CPU.")
	fs.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	fs.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.String("config", "", "YAML or TOML file with option values.")
	fs.String("env-file", "", "Dotenv file loaded into the environment before options are read.")
	return fs
}

// Parse processes command-line arguments. Values come from flags, then the
// environment, then the --config file, then defaults. It returns a populated
// app.Config, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	fs := newFlagSet(output)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError(err)
	}
	slog.Debug("Arguments parsed successfully.")

	if path, _ := fs.GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, false, usageError(fmt.Errorf("failed to load env file %s: %w", path, err))
		}
		slog.Debug("Env file loaded.", "path", path)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, false, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, usageError(fmt.Errorf("failed to read config file %s: %w", path, err))
		}
		slog.Debug("Config file loaded.", "path", path)
	}

	entities := append(v.GetStringSlice("entities"), fs.Args()...)
	fromConfig := v.GetString("from-config")
	slog.Debug("Inputs determined.", "entities", entities, "fromConfig", fromConfig)

	if len(entities) == 0 && fromConfig == "" {
		slog.Debug("No entity path provided, printing usage and exiting.")
		fs.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		EntityPaths:   entities,
		UnitFiles:     v.GetStringSlice("units"),
		FromConfig:    fromConfig,
		OutDir:        v.GetString("out"),
		Solve:         v.GetBool("solve"),
		Solver:        v.GetString("solver"),
		SolverTimeout: v.GetDuration("solver-timeout"),
		Retirement:    strings.ToLower(v.GetString("retirement")),
		Watch:         v.GetBool("watch"),
		StatusPort:    v.GetInt("status-port"),
		Workers:       v.GetInt("workers"),
		LogFormat:     strings.ToLower(v.GetString("log-format")),
		LogLevel:      strings.ToLower(v.GetString("log-level")),
	})
	if err != nil {
		return nil, false, usageError(err)
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
