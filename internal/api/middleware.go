package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"decorbook/internal/apperr"
	"decorbook/internal/user"
	"decorbook/pkg/authtoken"
)

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

type SessionOptions struct {
	Users     UserFinder
	JWTSecret string
	// AllowDevHeader accepts X-User-Email in place of a bearer token. Never enable in prod.
	AllowDevHeader bool
	Now            func() time.Time
}

// SessionAuth resolves the caller from `Authorization: Bearer <jwt>` and loads the
// user profile so handlers see the current role, not the one at token issue time.
func SessionAuth(opts SessionOptions) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := ""

			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				tok := strings.TrimSpace(authz[len("bearer "):])
				v, err := authtoken.Verify(tok, opts.JWTSecret, now())
				if err != nil {
					WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "invalid session token")
					return
				}
				email = v.Email
			} else if opts.AllowDevHeader {
				email = strings.TrimSpace(r.Header.Get("X-User-Email"))
			}

			if email == "" {
				WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "missing session token")
				return
			}

			u, err := opts.Users.FindByEmail(r.Context(), email)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "unknown user")
					return
				}
				WriteAppError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireRole must run after SessionAuth.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "missing user")
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, http.StatusForbidden, string(apperr.KindForbidden), "insufficient role")
		})
	}
}
