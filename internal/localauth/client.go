package localauth

import (
	"context"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/backend"
)

// Client serves one browser session against the local Backend.
type Client struct {
	backend *Backend
	holder  *backend.Holder
}

func newClient(b *Backend, sid string) *Client {
	return &Client{backend: b, holder: backend.NewHolder(sid, b.storage)}
}

// GetCurrentSession returns the stored session, renewing it when expired.
func (c *Client) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	s := c.holder.Current()
	if s == nil || !s.Expired(c.backend.now()) {
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

// SignInWithPassword checks credentials and starts a session.
func (c *Client) SignInWithPassword(_ context.Context, email, password string) (*auth.Session, error) {
	if err := c.backend.takeFailure("sign in"); err != nil {
		return nil, err
	}

	a, err := c.backend.authenticate(email, password)
	if err != nil {
		return nil, err
	}

	s, err := c.backend.issue(a)
	if err != nil {
		return nil, auth.NewError(auth.KindGeneric, "sign in", "Unable to start a session", err)
	}
	c.holder.Set(auth.EventSignedIn, s)
	return s, nil
}

// SignUp registers a user account. The account must sign in afterwards.
func (c *Client) SignUp(_ context.Context, email, password string, metadata map[string]string) (*auth.Identity, error) {
	if err := c.backend.takeFailure("sign up"); err != nil {
		return nil, err
	}
	return c.backend.CreateAccount(email, password, metadata["full_name"], auth.RoleUser)
}

// SignOut revokes the refresh token and drops the session.
func (c *Client) SignOut(_ context.Context) error {
	if err := c.backend.takeFailure("sign out"); err != nil {
		return auth.NewError(auth.KindSessionTerminationFailed, "sign out", auth.MessageOf(err), err)
	}

	if s := c.holder.Current(); s != nil {
		c.backend.revoke(s.RefreshToken)
	}
	c.holder.Clear(auth.EventSignedOut)
	return nil
}

// RefreshSession rotates the refresh token.
func (c *Client) RefreshSession(_ context.Context) error {
	if err := c.backend.takeFailure("refresh session"); err != nil {
		return err
	}

	s := c.holder.Current()
	if s == nil {
		return auth.ErrNoSession
	}

	next, err := c.backend.rotate(s.RefreshToken)
	if err != nil {
		return err
	}
	return c.commitRefresh(s, next)
}

// commitRefresh installs next unless prev was signed out or replaced meanwhile, in
// which case the rotated refresh token is revoked.
func (c *Client) commitRefresh(prev, next *auth.Session) error {
	if !c.holder.Replace(prev, next, auth.EventTokenRefreshed) {
		c.backend.revoke(next.RefreshToken)
		return auth.ErrSessionChanged
	}
	return nil
}

// ExpireSession drops the session.
func (c *Client) ExpireSession() {
	c.holder.Clear(auth.EventSessionExpired)
}
