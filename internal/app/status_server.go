package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusHandler routes the status endpoints.
func (a *App) statusHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", a.healthHandler)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	r.Get("/config", a.configHandler)
	r.Get("/problem", a.problemHandler)
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) configHandler(w http.ResponseWriter, _ *http.Request) {
	res := a.Last()
	if res == nil {
		http.Error(w, "no successful run yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(res.ConfigYAML)
}

type problemStatus struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Variables   int       `json:"variables"`
	Constraints int       `json:"constraints"`
	NonZeros    int       `json:"nonZeros"`
	Objective   *float64  `json:"objective,omitempty"`
	Finished    time.Time `json:"finished"`
}

func (a *App) problemHandler(w http.ResponseWriter, _ *http.Request) {
	res := a.Last()
	if res == nil {
		http.Error(w, "no successful run yet", http.StatusServiceUnavailable)
		return
	}
	stats := res.Problem.Stats()
	status := problemStatus{
		Name:        res.Problem.Name,
		Fingerprint: res.Config.Fingerprint(),
		Variables:   stats.Variables,
		Constraints: stats.Constraints,
		NonZeros:    stats.NonZeros,
		Finished:    res.Finished,
	}
	if res.Solution != nil {
		status.Objective = &res.Solution.Objective
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logger.Error("Failed to encode problem status.", "error", err)
	}
}

// startStatusServer binds the port and serves the status endpoints in the
// background.
func (a *App) startStatusServer(ctx context.Context, port int) error {
	a.logger.Debug("Configuring status server.")
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to start status server: %w", err)
	}

	a.httpServer = &http.Server{
		Handler:           a.statusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		a.logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost:%d/health", port))
		// Serve returns http.ErrServerClosed on graceful shutdown.
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return nil
}

func (a *App) stopStatusServer(ctx context.Context) {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("Shutting down status server.")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	a.logger.Debug("Status server shut down gracefully.")
}
