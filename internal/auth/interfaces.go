package auth

import "context"

// SessionSource publishes session changes for one browser session.
type SessionSource interface {
	// GetCurrentSession returns the held session, or nil when signed out.
	GetCurrentSession(ctx context.Context) (*Session, error)

	// Subscribe registers handler for session events. Events are delivered in the
	// order the backend emits them. The returned function unregisters the handler.
	Subscribe(handler func(Event)) (unsubscribe func())
}

// Credentials performs account operations against the managed backend.
type Credentials interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error)
	SignOut(ctx context.Context) error
}

// Client is one browser session's handle on the managed backend.
type Client interface {
	SessionSource
	Credentials

	// RefreshSession exchanges the refresh token for a new session and emits
	// EventTokenRefreshed on success.
	RefreshSession(ctx context.Context) error

	// ExpireSession drops the held session and emits EventSessionExpired.
	ExpireSession()
}

// ProfileStore looks up the role recorded on a user's profile.
type ProfileStore interface {
	// SelectRoleByUserID returns ErrProfileNotFound when no row matches.
	SelectRoleByUserID(ctx context.Context, userID string) (Role, error)
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(n Notice)
}

// Navigator redirects the user.
type Navigator interface {
	GoTo(path string)
}

// SessionStorage persists sessions across store lifetimes, keyed by browser session id.
type SessionStorage interface {
	Load(sid string) (*Session, bool)
	Save(sid string, s *Session)
	Remove(sid string)
}
