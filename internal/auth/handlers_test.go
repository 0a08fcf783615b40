package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
	"decorbook/internal/user"
	"decorbook/pkg/authtoken"
)

const secret = "test-secret"

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type memDirectory struct {
	users  map[string]*user.User
	// active counts in-progress bookings per decorator.
	active map[string]int
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: map[string]*user.User{
		"admin@x.com": {Email: "admin@x.com", Role: user.RoleAdmin},
		"d@x.com":     {Email: "d@x.com", Role: user.RoleDecorator},
		"cust@x.com":  {Email: "cust@x.com", Role: user.RoleUser},
	}, active: map[string]int{}}
}

func (m *memDirectory) Upsert(_ context.Context, email, name, photo string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	u, ok := m.users[email]
	if !ok {
		u = &user.User{Email: email, Role: user.RoleUser}
		m.users[email] = u
	}
	if name != "" {
		u.Name = name
	}
	if photo != "" {
		u.Photo = photo
	}
	return u, nil
}

func (m *memDirectory) FindByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m.users[user.NormalizeEmail(email)]
	if !ok {
		return nil, apperr.NotFound("user %s not found", email)
	}
	return u, nil
}

func (m *memDirectory) List(_ context.Context, role user.Role) ([]user.User, error) {
	out := []user.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

// ChangeRole mirrors PgRoles without the database.
func (m *memDirectory) ChangeRole(ctx context.Context, _ string, email string, next user.Role) (*user.User, error) {
	u, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := user.ValidateRoleChange(u.Role, next); err != nil {
		return nil, err
	}
	if err := user.ValidateDecoratorRelease(u.Role, next, m.active[u.Email]); err != nil {
		return nil, err
	}
	u.Role = next
	return u, nil
}

func newRouter(dir *memDirectory) http.Handler {
	h := Handlers{
		JWTSecret:      secret,
		TokenTTL:       time.Hour,
		AllowDevHeader: true,
		Users:          dir,
		Roles:          dir,
		Now:            func() time.Time { return fixedNow },
	}
	r := chi.NewRouter()
	r.With(RequireBridge("bridge", true)).Post("/v1/auth/jwt", h.IssueToken)
	r.Post("/v1/users", h.RegisterUser)
	r.Get("/v1/decorators", h.ListDecorators)
	r.Group(func(r chi.Router) {
		r.Use(api.SessionAuth(api.SessionOptions{Users: dir, JWTSecret: secret, AllowDevHeader: true, Now: func() time.Time { return fixedNow }}))
		r.Get("/v1/users/role/{email}", h.GetRole)
		r.Patch("/v1/users/role/{email}", h.SetRole)
		r.With(api.RequireRole(user.RoleAdmin)).Get("/v1/users", h.ListUsers)
	})
	return r
}

func send(t *testing.T, h http.Handler, method, path string, headers map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func as(email string) map[string]string {
	return map[string]string{"X-User-Email": email}
}

func TestIssueToken_RequiresBridgeAndVerifies(t *testing.T) {
	h := newRouter(newMemDirectory())

	rec := send(t, h, http.MethodPost, "/v1/auth/jwt", nil, `{"email":"new@x.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, h, http.MethodPost, "/v1/auth/jwt", map[string]string{BridgeHeader: "bridge"}, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, h, http.MethodPost, "/v1/auth/jwt", map[string]string{BridgeHeader: "bridge"}, `{"email":"New@X.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.ExpiresAt.Equal(fixedNow.Add(time.Hour)))

	v, err := authtoken.Verify(out.Token, secret, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", v.Email)
}

func TestRegisterUser_FromTokenThenSession(t *testing.T) {
	dir := newMemDirectory()
	h := newRouter(dir)
	tok, err := authtoken.Issue("new@x.com", secret, time.Hour, fixedNow)
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + tok}

	rec := send(t, h, http.MethodGet, "/v1/users/role/new@x.com", bearer, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = send(t, h, http.MethodPost, "/v1/users", bearer, `{"email":"someone@x.com","name":"N"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodPost, "/v1/users", bearer, `{"name":"New Person"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, user.RoleUser, dir.users["new@x.com"].Role)
	assert.Equal(t, "New Person", dir.users["new@x.com"].Name)

	rec = send(t, h, http.MethodGet, "/v1/users/role/new@x.com", bearer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)

	rec = send(t, h, http.MethodPost, "/v1/users", nil, `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterUser_KeepsExistingRole(t *testing.T) {
	dir := newMemDirectory()
	h := newRouter(dir)

	rec := send(t, h, http.MethodPost, "/v1/users", as("d@x.com"), `{"name":"Deco"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.RoleDecorator, dir.users["d@x.com"].Role)
}

func TestRoles(t *testing.T) {
	dir := newMemDirectory()
	h := newRouter(dir)

	rec := send(t, h, http.MethodGet, "/v1/users/role/d@x.com", as("cust@x.com"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodPatch, "/v1/users/role/cust@x.com", as("cust@x.com"), `{"role":"decorator"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodPatch, "/v1/users/role/cust@x.com", as("admin@x.com"), `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodPatch, "/v1/users/role/admin@x.com", as("admin@x.com"), `{"role":"user"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodPatch, "/v1/users/role/cust@x.com", as("admin@x.com"), `{"role":"wizard"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, h, http.MethodPatch, "/v1/users/role/cust@x.com", as("admin@x.com"), `{"role":"decorator"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, user.RoleDecorator, dir.users["cust@x.com"].Role)

	rec = send(t, h, http.MethodGet, "/v1/decorators", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Items []user.User `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Items, 2)
}

func TestListUsers_AdminOnly(t *testing.T) {
	h := newRouter(newMemDirectory())

	rec := send(t, h, http.MethodGet, "/v1/users", as("cust@x.com"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, h, http.MethodGet, "/v1/users?role=decorator", as("admin@x.com"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Items []user.User `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "d@x.com", out.Items[0].Email)
}

func TestSetRole_BusyDecoratorCannotBeDemoted(t *testing.T) {
	dir := newMemDirectory()
	dir.active["d@x.com"] = 1
	h := newRouter(dir)

	rec := send(t, h, http.MethodPatch, "/v1/users/role/d@x.com", as("admin@x.com"), `{"role":"user"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, user.RoleDecorator, dir.users["d@x.com"].Role)

	dir.active["d@x.com"] = 0
	rec = send(t, h, http.MethodPatch, "/v1/users/role/d@x.com", as("admin@x.com"), `{"role":"user"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, user.RoleUser, dir.users["d@x.com"].Role)
}
