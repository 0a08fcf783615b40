package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
)

const maxListLimit = 200

// Store is what the HTTP layer needs from the catalog. Writes record their audit entry
// in the same transaction.
type Store interface {
	List(ctx context.Context, f Filter) ([]Service, error)
	FindByID(ctx context.Context, id string) (*Service, error)
	Create(ctx context.Context, in Input, cat Category, actor string) (*Service, error)
	Update(ctx context.Context, id string, in Input, cat Category, actor string) (*Service, error)
	Delete(ctx context.Context, id, actor string) error
}

type Handlers struct {
	Services Store
}

// ParseFilter reads ?search=&category=&minCost=&maxCost=&limit=.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(q.Get("search"))}

	if raw := strings.TrimSpace(q.Get("category")); raw != "" && raw != "all" {
		c, err := ParseCategory(raw)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"minCost", &f.MinCost}, {"maxCost", &f.MaxCost}} {
		raw := strings.TrimSpace(q.Get(p.key))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return f, apperr.Validation("%s must be a non-negative number", p.key)
		}
		*p.dst = &d
	}
	if f.MinCost != nil && f.MaxCost != nil && f.MinCost.GreaterThan(*f.MaxCost) {
		return f, apperr.Validation("minCost must not exceed maxCost")
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, apperr.Validation("limit must be a non-negative integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		f.Limit = n
	}
	return f, nil
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	items, err := h.Services.List(r.Context(), f)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func serviceID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NotFound("service %s not found", id)
	}
	return id, nil
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := serviceID(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	s, err := h.Services.FindByID(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"service": s})
}

func decodeInput(r *http.Request) (Input, Category, error) {
	var in Input
	if err := api.DecodeJSON(r, &in); err != nil {
		return in, "", err
	}
	return in.Normalize()
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	admin := api.UserFromContext(r.Context())
	in, cat, err := decodeInput(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	created, err := h.Services.Create(r.Context(), in, cat, admin.Email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"service": created})
}

func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	admin := api.UserFromContext(r.Context())
	id, err := serviceID(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	in, cat, err := decodeInput(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	updated, err := h.Services.Update(r.Context(), id, in, cat, admin.Email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"service": updated})
}

// Delete removes a catalog entry. Existing bookings keep their snapshot.
func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	admin := api.UserFromContext(r.Context())
	id, err := serviceID(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if err := h.Services.Delete(r.Context(), id, admin.Email); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
