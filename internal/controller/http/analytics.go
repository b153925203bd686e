package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/neo-dashboard/internal/domain/analytics/entity"
	"github.com/vadim/neo-dashboard/internal/domain/analytics/service"
	"github.com/vadim/neo-dashboard/internal/httpx/response"
)

// AnalyticsSessions defines the interface for analytics page sessions
type AnalyticsSessions interface {
	Mount(ctx context.Context, token, accountKey string) (*service.MountOutput, error)
	Refresh(ctx context.Context, token, id string) (entity.State, error)
	Get(token, id string) (entity.State, error)
	Unmount(token, id string) error
	LastState(ctx context.Context, token, accountKey string) (*entity.State, error)
}

// AnalyticsHandler handles HTTP requests for analytics dashboards
type AnalyticsHandler struct {
	sessions AnalyticsSessions
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(s AnalyticsSessions) *AnalyticsHandler {
	return &AnalyticsHandler{sessions: s}
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/state", h.LastState())
		r.Post("/sessions", h.Mount())
		r.Get("/sessions/{id}", h.Get())
		r.Post("/sessions/{id}/refresh", h.Refresh())
		r.Delete("/sessions/{id}", h.Unmount())
	})
}

// MountRequest represents the request body for mounting an analytics page
type MountRequest struct {
	AccountKey string `json:"account_key"`
}

// Mount handles POST /analytics/sessions
func (h *AnalyticsHandler) Mount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		out, err := h.sessions.Mount(r.Context(), TokenFrom(r.Context()), req.AccountKey)
		switch {
		case err == nil, errors.Is(err, entity.ErrQuotaExceeded):
			// A spent quota on mount is a displayable state, not a failure
			response.Created(w, out)
		case errors.Is(err, entity.ErrEmptyAccountKey):
			response.BadRequest(w, err.Error())
		case out != nil:
			response.ErrorWithState(w, upstreamStatus(err), err.Error(), out)
		default:
			handleAnalyticsError(w, err, nil)
		}
	}
}

// Get handles GET /analytics/sessions/{id}
func (h *AnalyticsHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := h.sessions.Get(TokenFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			handleAnalyticsError(w, err, nil)
			return
		}

		response.OK(w, state)
	}
}

// Refresh handles POST /analytics/sessions/{id}/refresh
func (h *AnalyticsHandler) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := h.sessions.Refresh(r.Context(), TokenFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			handleAnalyticsError(w, err, &state)
			return
		}

		response.OK(w, state)
	}
}

// Unmount handles DELETE /analytics/sessions/{id}
func (h *AnalyticsHandler) Unmount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.sessions.Unmount(TokenFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			handleAnalyticsError(w, err, nil)
			return
		}

		response.NoContent(w)
	}
}

// LastState handles GET /analytics/state?account_key=
func (h *AnalyticsHandler) LastState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := h.sessions.LastState(r.Context(), TokenFrom(r.Context()), r.URL.Query().Get("account_key"))
		if err != nil {
			handleAnalyticsError(w, err, nil)
			return
		}

		response.OK(w, state)
	}
}

func handleAnalyticsError(w http.ResponseWriter, err error, state *entity.State) {
	var body interface{}
	if state != nil && state.Phase != "" {
		body = state
	}

	switch {
	case errors.Is(err, entity.ErrEmptyAccountKey):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrSessionNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrDisposed):
		response.Error(w, http.StatusGone, err.Error())
	case errors.Is(err, entity.ErrQuotaExceeded):
		response.ErrorWithState(w, http.StatusTooManyRequests, entity.MessageQuotaExceeded, body)
	case errors.Is(err, entity.ErrRefreshInFlight), errors.Is(err, entity.ErrNotMounted):
		response.ErrorWithState(w, http.StatusConflict, err.Error(), body)
	case errors.Is(err, entity.ErrUpstream):
		response.ErrorWithState(w, upstreamStatus(err), err.Error(), body)
	default:
		response.InternalError(w, "internal server error")
	}
}
