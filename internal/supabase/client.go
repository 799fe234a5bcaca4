// Package supabase adapts the hosted Supabase auth (GoTrue) and data (PostgREST)
// APIs to the auth interfaces.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/backend"
)

// Config configures access to a Supabase project.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
	Timeout    time.Duration
}

// Backend creates per-browser clients sharing one HTTP client and session storage.
type Backend struct {
	base      *url.URL
	anonKey   string
	svcKey    string
	jwtSecret []byte
	http      *http.Client
	storage   auth.SessionStorage
	now       func() time.Time
}

// NewBackend validates cfg and creates a Backend persisting sessions in storage.
func NewBackend(cfg Config, storage auth.SessionStorage) (*Backend, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing supabase URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Backend{
		base:      base,
		anonKey:   cfg.AnonKey,
		svcKey:    cfg.ServiceKey,
		jwtSecret: []byte(cfg.JWTSecret),
		http:      &http.Client{Timeout: timeout},
		storage:   storage,
		now:       time.Now,
	}, nil
}

// NewClient returns the client for one browser session id.
func (b *Backend) NewClient(sid string) auth.Client {
	return &Client{
		backend: b,
		holder:  backend.NewHolder(sid, b.storage),
	}
}

// Client is one browser session's view of the Supabase project.
type Client struct {
	backend *Backend
	holder  *backend.Holder
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

// signUpResponse is a session when email confirmation is off, a bare user otherwise.
type signUpResponse struct {
	tokenResponse
	userResponse
}

// GetCurrentSession returns the stored session, renewing it first when it has
// expired. A session that cannot be renewed is dropped.
func (c *Client) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	s := c.holder.Current()
	if s == nil {
		return nil, nil
	}
	if !s.Expired(c.backend.now()) {
		return s, nil
	}

	if err := c.RefreshSession(ctx); err != nil {
		c.holder.ClearIf(s, auth.EventSessionExpired)
	}
	return c.holder.Current(), nil
}

// Subscribe registers handler for this browser session's events.
func (c *Client) Subscribe(handler func(auth.Event)) func() {
	return c.holder.Subscribe(handler)
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	const op = "sign in"

	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.backend.do(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}

	s, err := c.backend.sessionFrom(op, resp)
	if err != nil {
		return nil, err
	}
	c.holder.Set(auth.EventSignedIn, s)
	return s, nil
}

// SignUp creates an account. When the project returns a session right away the
// user is signed in as well.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*auth.Identity, error) {
	const op = "sign up"

	var resp signUpResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.backend.do(ctx, op, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		s, err := c.backend.sessionFrom(op, resp.tokenResponse)
		if err != nil {
			return nil, err
		}
		c.holder.Set(auth.EventSignedIn, s)
		return &s.User, nil
	}

	return &auth.Identity{
		ID:       resp.userResponse.ID,
		Email:    resp.userResponse.Email,
		FullName: metadataString(resp.userResponse.UserMetadata, "full_name"),
	}, nil
}

// SignOut revokes the session remotely and then drops it locally. When the remote
// call fails the local session is kept.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "sign out"

	s := c.holder.Current()
	if s == nil {
		c.holder.Clear(auth.EventSignedOut)
		return nil
	}

	err := c.backend.do(ctx, op, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil, nil)
	if err != nil && !sessionAlreadyGone(err) {
		return auth.NewError(auth.KindSessionTerminationFailed, op, auth.MessageOf(err), err)
	}

	c.holder.Clear(auth.EventSignedOut)
	return nil
}

// RefreshSession exchanges the refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) error {
	const op = "refresh session"

	s := c.holder.Current()
	if s == nil || s.RefreshToken == "" {
		return auth.ErrNoSession
	}

	var resp tokenResponse
	body := map[string]string{"refresh_token": s.RefreshToken}
	if err := c.backend.do(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return err
	}

	next, err := c.backend.sessionFrom(op, resp)
	if err != nil {
		return err
	}
	if !c.holder.Replace(s, next, auth.EventTokenRefreshed) {
		c.backend.discard(ctx, next)
		return auth.ErrSessionChanged
	}
	return nil
}

// discard revokes a refreshed session that lost the race to a sign out or a newer
// session. Only that session is revoked.
func (b *Backend) discard(ctx context.Context, s *auth.Session) {
	err := b.do(ctx, "discard session", http.MethodPost, "/auth/v1/logout?scope=local", s.AccessToken, nil, nil)
	if err != nil && !sessionAlreadyGone(err) {
		slog.Warn("failed to revoke superseded session", "userId", s.User.ID, "error", err)
	}
}

// ExpireSession drops the local session.
func (c *Client) ExpireSession() {
	c.holder.Clear(auth.EventSessionExpired)
}

func (b *Backend) sessionFrom(op string, resp tokenResponse) (*auth.Session, error) {
	claims, err := parseAccessToken(resp.AccessToken, b.jwtSecret)
	if err != nil {
		return nil, auth.NewError(auth.KindGeneric, op, "Received an invalid session from the authentication service", err)
	}

	s := &auth.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User: auth.Identity{
			ID:       resp.User.ID,
			Email:    resp.User.Email,
			FullName: metadataString(resp.User.UserMetadata, "full_name"),
		},
	}

	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = b.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	case claims.ExpiresAt != nil:
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	if s.User.ID == "" {
		s.User.ID = claims.Subject
	}
	if s.User.Email == "" {
		s.User.Email = claims.Email
	}
	if s.User.FullName == "" {
		s.User.FullName = metadataString(claims.UserMetadata, "full_name")
	}
	return s, nil
}

// do sends a JSON request. bearer defaults to the anon key.
func (b *Backend) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	return b.doWithKey(ctx, op, method, path, b.anonKey, bearer, in, out)
}

func (b *Backend) doWithKey(ctx context.Context, op, method, path, apiKey, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := b.http.Do(req)
	if err != nil {
		return auth.NewError(auth.KindGeneric, op, "Unable to reach the authentication service", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return auth.NewError(auth.KindGeneric, op, "Unable to read the authentication service response", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &statusError{status: res.StatusCode, err: classify(op, res.StatusCode, raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return auth.NewError(auth.KindGeneric, op, "Unexpected response from the authentication service", err)
	}
	return nil
}

// statusError keeps the HTTP status next to the classified error.
type statusError struct {
	status int
	err    *auth.Error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// sessionAlreadyGone reports whether a logout failure means the session no longer
// exists remotely, which leaves local and remote state consistent.
func sessionAlreadyGone(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
