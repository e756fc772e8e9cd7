package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/internal/observe"
	"github.com/MrWong99/rebalance/internal/patchset"
	"github.com/MrWong99/rebalance/internal/resilience"
	"github.com/MrWong99/rebalance/internal/session"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// sessionResponse is the body of the /v1/session endpoints.
type sessionResponse struct {
	Active  bool                     `json:"active"`
	Session *SessionInfo             `json:"session,omitempty"`
	Sources []resilience.EntryStatus `json:"sources,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// transformerView renders one transformer.
type transformerView struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// itemResponse is the body of GET /v1/items/{namespace}/{name...}.
type itemResponse struct {
	Item    string            `json:"item"`
	Release string            `json:"release"`
	Current []transformerView `json:"current"`
	Patches []transformerView `json:"patches,omitempty"`
}

// Handler returns the admin API wrapped in [observe.Middleware].
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.currentConfig().Observability.Metrics {
		h := a.metricsH
		if h == nil {
			h = promhttp.Handler()
		}
		mux.Handle("GET /metrics", h)
	}
	mux.HandleFunc("GET /v1/session", a.handleSession)
	mux.HandleFunc("POST /v1/session/apply", a.handleApply)
	mux.HandleFunc("POST /v1/session/restore", a.handleRestore)
	mux.HandleFunc("GET /v1/items/{namespace}/{name...}", a.handleItem)
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) handleSession(w http.ResponseWriter, _ *http.Request) {
	res := sessionResponse{Sources: a.sourceGroup().Status()}
	if info, ok := a.sessions.Info(); ok {
		res.Active = true
		res.Session = &info
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleApply(w http.ResponseWriter, r *http.Request) {
	info, err := a.Apply(r.Context())
	a.writeSessionResult(w, r, info, err, http.StatusCreated)
}

func (a *App) handleRestore(w http.ResponseWriter, r *http.Request) {
	info, err := a.Restore(r.Context())
	a.writeSessionResult(w, r, info, err, http.StatusOK)
}

func (a *App) writeSessionResult(w http.ResponseWriter, r *http.Request, info SessionInfo, err error, okStatus int) {
	res := sessionResponse{}
	if info.SessionID != "" {
		res.Session = &info
	}
	res.Active = a.sessions.IsActive()
	if err == nil {
		writeJSON(w, okStatus, res)
		return
	}

	res.Error = err.Error()
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("session request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, res)
}

// errorStatus maps operation errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionActive),
		errors.Is(err, ErrNoSession),
		errors.Is(err, session.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, patchset.ErrInvalidDocument),
		errors.Is(err, patchset.ErrReleaseMismatch),
		errors.Is(err, session.ErrEmptyPatchSet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, patchset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resilience.ErrAllFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *App) handleItem(w http.ResponseWriter, r *http.Request) {
	id := item.New(r.PathValue("namespace"), r.PathValue("name"))
	if err := id.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	current, err := a.injector.Eject(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, inject.ErrItemNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		Item:    id.String(),
		Release: a.Release(),
		Current: views(current),
		Patches: views(a.sessions.Pending(id)),
	})
}

func views(ts []transform.Transformer) []transformerView {
	out := make([]transformerView, 0, len(ts))
	for _, t := range ts {
		out = append(out, transformerView{Kind: t.Kind().String(), Value: t.String()})
	}
	return out
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
