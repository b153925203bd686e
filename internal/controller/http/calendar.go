package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
	"github.com/vadim/neo-dashboard/internal/domain/calendar/policy"
	"github.com/vadim/neo-dashboard/internal/httpx/response"
)

// CalendarPolicy defines the interface for calendar operations
// Interface is defined by consumer (handler), not provider (policy)
type CalendarPolicy interface {
	BuildCalendar(ctx context.Context, in policy.BuildCalendarInput) (*policy.CalendarOutput, error)
	BuildGrid(ctx context.Context, in policy.BuildGridInput) (*policy.CalendarOutput, error)
}

// CalendarHandler handles HTTP requests for the post calendar
type CalendarHandler struct {
	policy CalendarPolicy
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(p CalendarPolicy) *CalendarHandler {
	return &CalendarHandler{policy: p}
}

// RegisterRoutes registers calendar routes
func (h *CalendarHandler) RegisterRoutes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.Get("/", h.Get())
		r.Post("/preview", h.Preview())
	})
}

// Get handles GET /calendar
func (h *CalendarHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		view, err := entity.ParseViewMode(q.Get("view"))
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		var accountIDs []string
		for _, raw := range append(q["account_ids"], q["account_ids[]"]...) {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					accountIDs = append(accountIDs, id)
				}
			}
		}

		out, err := h.policy.BuildCalendar(r.Context(), policy.BuildCalendarInput{
			Token:      TokenFrom(r.Context()),
			View:       view,
			Date:       q.Get("date"),
			Query:      q.Get("query"),
			Status:     q.Get("status"),
			AccountIDs: accountIDs,
		})
		if err != nil {
			handleCalendarError(w, err)
			return
		}

		response.OK(w, out)
	}
}

// PreviewRequest represents the request body for bucketing caller-supplied posts
type PreviewRequest struct {
	View  string        `json:"view"`
	Date  string        `json:"date"`
	Posts []entity.Post `json:"posts"`
}

// Preview handles POST /calendar/preview
func (h *CalendarHandler) Preview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		view, err := entity.ParseViewMode(req.View)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}

		out, err := h.policy.BuildGrid(r.Context(), policy.BuildGridInput{
			View:  view,
			Date:  req.Date,
			Posts: req.Posts,
		})
		if err != nil {
			handleCalendarError(w, err)
			return
		}

		response.OK(w, out)
	}
}

func handleCalendarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidViewMode),
		errors.Is(err, entity.ErrInvalidReferenceDate),
		errors.Is(err, entity.ErrInvalidPostStatus):
		response.BadRequest(w, err.Error())
	default:
		response.Error(w, upstreamStatus(err), "failed to load posts: "+err.Error())
	}
}
