package booking

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
	"decorbook/internal/audit"
)

type Auditor interface {
	Record(ctx context.Context, action audit.Action, actor, target string, metadata any) error
}

type Handlers struct {
	Engine *Engine
	Audit  Auditor
}

func requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := api.UserFromContext(r.Context())
	if u == nil {
		api.WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "missing user")
		return "", false
	}
	return u.Email, true
}

type CreateRequest struct {
	ServiceID   string `json:"serviceId" validate:"required"`
	BookingDate string `json:"bookingDate" validate:"required"`
	Location    string `json:"location" validate:"required,max=500"`
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	b, err := h.Engine.CreateBooking(r.Context(), CreateInput{
		RequesterEmail: email,
		ServiceID:      req.ServiceID,
		BookingDate:    req.BookingDate,
		Location:       req.Location,
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"booking": b})
}

// List is the admin view of every booking, optionally narrowed by ?status=.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	var status Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s, err := ParseStatus(raw)
		if err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		status = s
	}

	items, err := h.Engine.ListAll(r.Context(), email, status)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	b, err := h.Engine.Get(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b, "statusInfo": Describe(b.Status)})
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	items, err := h.Engine.Events(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	items, err := h.Engine.ListByCustomer(r.Context(), chi.URLParam(r, "email"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) ListByDecorator(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	items, err := h.Engine.ListByDecorator(r.Context(), chi.URLParam(r, "email"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) TodayForDecorator(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	items, err := h.Engine.TodayForDecorator(r.Context(), chi.URLParam(r, "email"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"date": h.Engine.Today(), "items": items})
}

func (h Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	b, err := h.Engine.CancelBooking(r.Context(), chi.URLParam(r, "id"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b})
}

type AssignRequest struct {
	AssignedDecorator string `json:"assignedDecorator" validate:"required,email"`
}

func (h Handlers) Assign(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	var req AssignRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	b, err := h.Engine.AssignDecorator(r.Context(), chi.URLParam(r, "id"), req.AssignedDecorator, email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if h.Audit != nil {
		// Best effort: the timeline event is already committed.
		if err := h.Audit.Record(r.Context(), audit.ActionDecoratorAssigned, email, b.ID, map[string]any{
			"decorator": *b.AssignedDecorator,
		}); err != nil {
			log.Printf("audit write failed action=%s booking=%s err=%v", audit.ActionDecoratorAssigned, b.ID, err)
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b})
}

type AdvanceRequest struct {
	// Status is optional. When present it must name the next stage.
	Status string `json:"status"`
}

func (h Handlers) Advance(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	var req AdvanceRequest
	if r.ContentLength != 0 {
		if err := api.DecodeJSON(r, &req); err != nil {
			api.WriteAppError(w, r, err)
			return
		}
	}
	var expect Status
	if raw := strings.TrimSpace(req.Status); raw != "" {
		s, err := ParseStatus(raw)
		if err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		expect = s
	}

	b, err := h.Engine.AdvanceStatus(r.Context(), AdvanceInput{
		BookingID:      chi.URLParam(r, "id"),
		RequesterEmail: email,
		Expect:         expect,
	})
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"booking": b, "statusInfo": Describe(b.Status)})
}

func (h Handlers) Earnings(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	out, err := h.Engine.Earnings(r.Context(), chi.URLParam(r, "email"), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h Handlers) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	email, ok := requester(w, r)
	if !ok {
		return
	}
	out, err := h.Engine.RevenueSummary(r.Context(), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// Statuses publishes the lifecycle table so clients render labels and next steps from one source.
func (h Handlers) Statuses(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": DescribeAll()})
}
