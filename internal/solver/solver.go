package solver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/restore/internal/ctxlog"
	"github.com/specialistvlad/restore/internal/problem"
)

// Backend optimizes a problem. Implementations should return an *Error for
// infeasible, unbounded, or failed solves.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *problem.Problem) (*Solution, error)
}

var backends = map[string]func() Backend{
	SimplexName: func() Backend { return Simplex{} },
}

// New returns the backend registered under name.
func New(name string) (Backend, error) {
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver backend %q (want one of %v)", name, Names())
	}
	return mk(), nil
}

// Names lists the registered backends.
func Names() []string {
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

type result struct {
	sol *Solution
	err error
}

// Solve runs backend on p and waits at most timeout for it. A timeout of zero
// or less waits until ctx is done. The backend goroutine is abandoned on
// timeout; it sees a cancelled context and may keep running until it checks
// it.
func Solve(ctx context.Context, backend Backend, p *problem.Problem, timeout time.Duration) (*Solution, error) {
	logger := ctxlog.FromContext(ctx)
	if backend == nil || p == nil {
		return nil, errors.New("solver backend and problem are required")
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stats := p.Stats()
	logger.Debug("Solving problem.", "backend", backend.Name(), "variables", stats.Variables, "constraints", stats.Constraints, "timeout", timeout)
	start := time.Now()

	done := make(chan result, 1)
	go func() {
		sol, err := backend.Solve(runCtx, p)
		done <- result{sol, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.sol == nil {
			return nil, &Error{Backend: backend.Name(), Status: StatusNumerical, Detail: "backend returned no solution", Constraints: stats.Constraints, Variables: stats.Variables}
		}
		r.sol.Elapsed = time.Since(start)
		logger.Info("Problem solved.", "backend", backend.Name(), "objective", r.sol.Objective, "elapsed", r.sol.Elapsed)
		return r.sol, nil
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			logger.Warn("Solver timed out.", "backend", backend.Name(), "timeout", timeout)
			return nil, &TimeoutError{Backend: backend.Name(), Timeout: timeout}
		}
		return nil, ctx.Err()
	}
}
