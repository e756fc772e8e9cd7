// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 unless a required [Checker]
//     fails. Failing optional checkers mark the daemon "degraded".
//
// Responses are JSON objects with a top-level "status" field ("ok",
// "degraded" or "fail") and a "checks" map containing the result of each
// named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Overall statuses reported by [Handler.Readyz].
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "patches", "source:postgres").
	// It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error

	// Optional checks only degrade readiness. A patch source with an open
	// breaker is optional as long as another source can still serve.
	Optional bool
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. Checkers run concurrently.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: StatusOK})
}

// Readyz is a readiness probe. Each checker is given a context with a
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	status, checks := h.Evaluate(r.Context())

	code := http.StatusOK
	if status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, result{Status: status, Checks: checks})
}

// Evaluate runs every checker and returns the overall status together with
// the per-check results.
func (h *Handler) Evaluate(ctx context.Context) (string, map[string]string) {
	var (
		mu       sync.Mutex
		checks   = make(map[string]string, len(h.checkers))
		failed   bool
		degraded bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			err := c.Check(cctx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checks[c.Name] = StatusOK
				return nil
			}
			checks[c.Name] = "fail: " + err.Error()
			if c.Optional {
				degraded = true
			} else {
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case failed:
		return StatusFail, checks
	case degraded:
		return StatusDegraded, checks
	}
	return StatusOK, checks
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
