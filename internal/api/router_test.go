package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	specpkg "github.com/wanderpass/portal/api"
	"github.com/wanderpass/portal/internal/account"
	"github.com/wanderpass/portal/internal/api"
	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/destination"
	"github.com/wanderpass/portal/internal/localauth"
	"github.com/wanderpass/portal/internal/role"
	"github.com/wanderpass/portal/internal/session"
)

const (
	userEmail      = "traveler@example.com"
	adminEmail     = "admin@example.com"
	testPassword   = "secret123"
	frontendOrigin = "http://localhost:5173"
)

type testEnv struct {
	server  *httptest.Server
	backend *localauth.Backend
	client  *http.Client
}

type envOption func(*api.RouterDeps)

func withRoles(roles account.RoleLookup) envOption {
	return func(d *api.RouterDeps) { d.Roles = roles }
}

func newTestDeps(t *testing.T, opts ...envOption) (api.RouterDeps, *localauth.Backend) {
	t.Helper()

	storage := auth.NewMemoryStorage(64, time.Hour)
	b, err := localauth.NewBackend(localauth.Config{
		JWTSecret:  "router-test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, storage)
	require.NoError(t, err)

	_, err = b.CreateAccount(userEmail, testPassword, "Ana Traveler", auth.RoleUser)
	require.NoError(t, err)
	_, err = b.CreateAccount(adminEmail, testPassword, "Ada Admin", auth.RoleAdmin)
	require.NoError(t, err)

	resolver := role.NewResolver(b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	registry, err := session.NewRegistry(ctx, b, resolver, 64, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		registry.Close()
		cancel()
	})

	deps := api.RouterDeps{
		Version:  "0.1.0-test",
		Backend:  "local",
		Sessions: registry,
		Roles:    resolver,
		Destinations: destination.NewStaticRepository([]destination.Destination{
			{ID: "tr", Name: "Turkey", Country: "TR", Region: "Europe"},
			{ID: "jp", Name: "Japan", Country: "JP", Region: "Asia", Featured: true},
		}),
		Cookie:             middleware.CookieOptions{MaxAge: time.Hour},
		GuardLoadTimeout:   2 * time.Second,
		CORSAllowedOrigins: []string{frontendOrigin},
		OpenAPISpec:        specpkg.OpenAPISpec,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return deps, b
}

func newRouterForWalk(t *testing.T) *chi.Mux {
	t.Helper()
	deps, _ := newTestDeps(t)
	return api.NewRouter(deps)
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	deps, b := newTestDeps(t, opts...)
	server := httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		server:  server,
		backend: b,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"requestId"`
	} `json:"meta"`
}

type navigation struct {
	RedirectTo string        `json:"redirectTo"`
	Notices    []auth.Notice `json:"notices"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func (e *testEnv) signIn(t *testing.T, email string) navigation {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeNav(t, env)
}

func decodeNav(t *testing.T, env envelope) navigation {
	t.Helper()
	var nav navigation
	require.NoError(t, json.Unmarshal(env.Data, &nav))
	return nav
}

func TestProtectedRoute_RedirectsAnonymousToLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/dashboard", "/applications", "/admin"} {
		resp, body := env.do(t, http.MethodGet, path, nil)

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/auth", resp.Header.Get("Location"), path)

		nav := decodeNav(t, body)
		require.Len(t, nav.Notices, 1)
		assert.Equal(t, "Authentication required", nav.Notices[0].Title)
		assert.Equal(t, auth.SeverityDestructive, nav.Notices[0].Severity)
	}
}

func TestSignIn_UserLandsOnDashboard(t *testing.T) {
	env := newTestEnv(t)

	nav := env.signIn(t, userEmail)
	assert.Equal(t, "/dashboard", nav.RedirectTo)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Welcome back!", nav.Notices[0].Title)

	resp, body := env.do(t, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var area struct {
		Area string  `json:"area"`
		Role *string `json:"role"`
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &area))
	assert.Equal(t, "dashboard", area.Area)
	assert.Equal(t, userEmail, area.User.Email)
	require.NotNil(t, area.Role)
	assert.Equal(t, "user", *area.Role)

	resp, _ = env.do(t, http.MethodGet, "/applications", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuard_UserOnAdminRouteGetsRestrictedNotice(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, userEmail)

	resp, body := env.do(t, http.MethodGet, "/admin", nil)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	nav := decodeNav(t, body)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Access restricted", nav.Notices[0].Title)
}

func TestSignIn_AdminLandsOnAdminArea(t *testing.T) {
	env := newTestEnv(t)

	nav := env.signIn(t, adminEmail)
	assert.Equal(t, "/admin", nav.RedirectTo)

	resp, _ := env.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGuard_AdminOnUserRouteIsRedirectedSilently(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, adminEmail)

	resp, body := env.do(t, http.MethodGet, "/applications", nil)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
	assert.Empty(t, decodeNav(t, body).Notices)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": userEmail, "password": "wrong-password"})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Error.Code)
	assert.Equal(t, "Invalid email or password. Please try again.", body.Error.Message)

	nav := decodeNav(t, body)
	assert.Empty(t, nav.RedirectTo)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Sign in failed", nav.Notices[0].Title)
}

func TestSignIn_BackendFailureIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.backend.FailNext("sign in", auth.NewError(auth.KindGeneric, "sign in", "Service temporarily unavailable", nil))

	resp, body := env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": userEmail, "password": testPassword})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "BACKEND_ERROR", body.Error.Code)
	assert.Equal(t, "Service temporarily unavailable", body.Error.Message)
}

type failingLookup struct{}

func (failingLookup) Lookup(_ context.Context, _ string) (auth.Role, error) {
	return auth.RoleNone, auth.NewError(auth.KindRoleLookupFailed, "lookup role", "profile unavailable", errors.New("timeout"))
}

func TestSignIn_RoleLookupFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t, withRoles(failingLookup{}))

	nav := env.signIn(t, adminEmail)

	assert.Equal(t, "/dashboard", nav.RedirectTo)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Signed in with limited access", nav.Notices[0].Title)
	assert.Equal(t, auth.SeverityNormal, nav.Notices[0].Severity)
}

func TestSignIn_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/auth/signin", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	raw, err := env.client.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"email": "new@example.com", "password": testPassword, "fullName": "New Traveler",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nav := decodeNav(t, body)
	assert.Empty(t, nav.RedirectTo, "sign up never navigates")
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Account created", nav.Notices[0].Title)

	resp, body = env.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"email": "new@example.com", "password": testPassword, "fullName": "New Traveler",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "USER_EXISTS", body.Error.Code)

	nav = env.signIn(t, "new@example.com")
	assert.Equal(t, "/dashboard", nav.RedirectTo)
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, userEmail)

	resp, body := env.do(t, http.MethodPost, "/auth/signout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nav := decodeNav(t, body)
	assert.Equal(t, "/auth", nav.RedirectTo)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, "Signed out", nav.Notices[0].Title)

	resp, _ = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth", resp.Header.Get("Location"))
}

func TestSignOut_FailureKeepsSessionAndDoesNotNavigate(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, userEmail)
	env.backend.FailNext("sign out", errors.New("network unreachable"))

	resp, body := env.do(t, http.MethodPost, "/auth/signout", nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SESSION_TERMINATION_FAILED", body.Error.Code)
	nav := decodeNav(t, body)
	assert.Empty(t, nav.RedirectTo)
	require.Len(t, nav.Notices, 1)
	assert.Equal(t, auth.SeverityDestructive, nav.Notices[0].Severity)

	resp, _ = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	type sessionData struct {
		Authenticated bool    `json:"authenticated"`
		Loading       bool    `json:"loading"`
		Role          *string `json:"role"`
		ExpiresAt     *string `json:"expiresAt"`
		User          *struct {
			Email    string `json:"email"`
			FullName string `json:"fullName"`
		} `json:"user"`
	}

	resp, body := env.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var anon sessionData
	require.NoError(t, json.Unmarshal(body.Data, &anon))
	assert.False(t, anon.Authenticated)
	assert.False(t, anon.Loading)
	assert.Nil(t, anon.User)
	assert.Nil(t, anon.Role)

	env.signIn(t, adminEmail)

	_, body = env.do(t, http.MethodGet, "/auth/session", nil)
	var signedIn sessionData
	require.NoError(t, json.Unmarshal(body.Data, &signedIn))
	assert.True(t, signedIn.Authenticated)
	require.NotNil(t, signedIn.User)
	assert.Equal(t, "Ada Admin", signedIn.User.FullName)
	require.NotNil(t, signedIn.Role)
	assert.Equal(t, "admin", *signedIn.Role)
	assert.NotNil(t, signedIn.ExpiresAt)
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/session", nil)

	var sid *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)
	assert.Equal(t, "/", sid.Path)

	resp, _ = env.do(t, http.MethodGet, "/auth/session", nil)
	assert.Empty(t, resp.Cookies(), "cookie is only issued once")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var data struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Backend  string `json:"backend"`
		Database struct {
			Configured bool `json:"configured"`
		} `json:"database"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, "healthy", data.Status)
	assert.Equal(t, "0.1.0-test", data.Version)
	assert.Equal(t, "local", data.Backend)
	assert.False(t, data.Database.Configured)
}

func TestDestinations(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/destinations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []destination.Destination
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "jp", items[0].ID)
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Get(env.server.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/auth/signin", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", frontendOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func sidFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

// getWithSID requests path carrying only the given sid cookie.
func (e *testEnv) getWithSID(t *testing.T, path, sid string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sid})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestSignIn_IssuesFreshSessionID(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/session", nil)
	before := sidFrom(resp)
	require.NotNil(t, before)

	resp, _ = env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": userEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := sidFrom(resp)
	require.NotNil(t, after, "sign in sets a new session cookie")
	assert.NotEqual(t, before.Value, after.Value)
	assert.True(t, after.HttpOnly)

	resp, _ = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.getWithSID(t, "/auth/session", before.Value)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &state))
	assert.False(t, state.Authenticated, "the pre-sign-in id never becomes authenticated")

	resp, _ = env.getWithSID(t, "/dashboard", before.Value)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestSignIn_FailureKeepsSessionID(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/auth/session", nil)
	require.NotNil(t, sidFrom(resp))

	resp, _ = env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": userEmail, "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, sidFrom(resp))
}

func TestSignIn_AgainRetiresPreviousSession(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": userEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := sidFrom(resp)
	require.NotNil(t, first)

	resp, _ = env.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": adminEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := sidFrom(resp)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	resp, _ = env.getWithSID(t, "/dashboard", first.Value)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "the replaced session is signed out")

	resp, _ = env.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
