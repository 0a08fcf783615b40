package audit

import (
	"context"
	"net/http"
	"strconv"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
)

type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

type Handlers struct {
	Log Reader
}

// List serves GET /v1/audit?limit=; the route is admin-only.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.WriteAppError(w, r, apperr.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	items, err := h.Log.Recent(r.Context(), limit)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
