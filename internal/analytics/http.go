package analytics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quicktask/quicktask-api/internal/auth"
	"github.com/quicktask/quicktask-api/internal/httpx"
)

func RegisterRoutes(r chi.Router, client Client, logger *slog.Logger) {
	h := &handler{client: client, logger: logger}
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/user-stats/{userId}", h.userStats)
		r.Get("/productivity/{userId}", h.productivity)
	})
}

type handler struct {
	client Client
	logger *slog.Logger
}

func (h *handler) userStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	h.relay(w, r, func() (Response, error) {
		return h.client.UserStats(r.Context(), userID)
	})
}

func (h *handler) productivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	h.relay(w, r, func() (Response, error) {
		return h.client.Productivity(r.Context(), userID, start, end)
	})
}

// authorize enforces that the path id equals the authenticated subject. On
// mismatch nothing is forwarded upstream.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
		return "", false
	}
	requested := chi.URLParam(r, "userId")
	if requested != subject {
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "Forbidden: Cannot access other users stats")
		return "", false
	}
	return requested, true
}

// relay forwards a successful upstream reply verbatim and collapses every
// failure to 503 so clients cannot distinguish timeout from upstream error.
func (h *handler) relay(w http.ResponseWriter, r *http.Request, call func() (Response, error)) {
	resp, err := call()
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			h.logger.Error("analytics_proxy_error", slog.String("error", err.Error()))
		} else {
			h.logger.Warn("analytics_upstream_unavailable", slog.String("path", r.URL.Path))
		}
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeServiceUnavailable, "Analytics service unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
