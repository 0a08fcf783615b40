package auth

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
	"decorbook/internal/user"
	"decorbook/pkg/authtoken"
)

type Directory interface {
	Upsert(ctx context.Context, email, name, photo string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	List(ctx context.Context, role user.Role) ([]user.User, error)
}

type RoleChanger interface {
	ChangeRole(ctx context.Context, actor, email string, next user.Role) (*user.User, error)
}

type Handlers struct {
	JWTSecret string
	TokenTTL  time.Duration
	// AllowDevHeader lets RegisterUser trust X-User-Email without a token. Never in prod.
	AllowDevHeader bool
	Verbose        bool

	Users Directory
	Roles RoleChanger
	Now   func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type TokenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// IssueToken mints a session for an identity the bridge has already proven.
func (h Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	ttl := h.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := h.now()
	tok, err := authtoken.Issue(req.Email, h.JWTSecret, ttl, now)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if h.Verbose {
		log.Printf("session issued email=%s ttl=%s", user.NormalizeEmail(req.Email), ttl)
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"token": tok, "expiresAt": now.Add(ttl).UTC()})
}

// tokenEmail reads the caller's email straight from the token; the profile may not exist yet.
func (h Handlers) tokenEmail(r *http.Request) (string, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		v, err := authtoken.Verify(strings.TrimSpace(authz[len("bearer "):]), h.JWTSecret, h.now())
		if err != nil {
			return "", apperr.New(apperr.KindUnauthorized, "invalid session token")
		}
		return v.Email, nil
	}
	if h.AllowDevHeader {
		if email := strings.TrimSpace(r.Header.Get("X-User-Email")); email != "" {
			return user.NormalizeEmail(email), nil
		}
	}
	return "", apperr.New(apperr.KindUnauthorized, "missing session token")
}

type RegisterRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name" validate:"max=200"`
	Photo string `json:"photo" validate:"omitempty,url"`
}

// RegisterUser creates the profile on first login and refreshes name/photo afterwards.
func (h Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	email, err := h.tokenEmail(r)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	if req.Email != "" && !strings.EqualFold(strings.TrimSpace(req.Email), email) {
		api.WriteAppError(w, r, apperr.Forbidden("cannot register a different email"))
		return
	}

	u, err := h.Users.Upsert(r.Context(), email, strings.TrimSpace(req.Name), strings.TrimSpace(req.Photo))
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	var role user.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		parsed, err := user.ParseRole(raw)
		if err != nil {
			api.WriteAppError(w, r, err)
			return
		}
		role = parsed
	}
	items, err := h.Users.List(r.Context(), role)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) ListDecorators(w http.ResponseWriter, r *http.Request) {
	items, err := h.Users.List(r.Context(), user.RoleDecorator)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	caller := api.UserFromContext(r.Context())
	email := chi.URLParam(r, "email")
	if !caller.CanActFor(email) {
		api.WriteAppError(w, r, apperr.Forbidden("cannot read another user's role"))
		return
	}
	u, err := h.Users.FindByEmail(r.Context(), email)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"email": u.Email, "role": u.Role})
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user decorator admin"`
}

func (h Handlers) SetRole(w http.ResponseWriter, r *http.Request) {
	caller := api.UserFromContext(r.Context())
	if !caller.IsAdmin() {
		api.WriteAppError(w, r, apperr.Forbidden("admin only"))
		return
	}
	var req SetRoleRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}

	u, err := h.Roles.ChangeRole(r.Context(), caller.Email, chi.URLParam(r, "email"), role)
	if err != nil {
		api.WriteAppError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}
