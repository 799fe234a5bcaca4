package auth

import "time"

// Role is the authorization level attached to a user's profile.
type Role string

const (
	// RoleNone means the role is unknown: not yet resolved, lookup failed, or no session.
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role value to a Role. Unrecognized values map to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	}
	return RoleNone
}

// Identity is the user a session belongs to.
type Identity struct {
	ID       string
	Email    string
	FullName string
}

// Session is the token bundle issued by the managed backend.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         Identity
}

// Expired reports whether the access token is past its expiry at the given time.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// EventKind identifies a session-change notification.
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventSessionExpired EventKind = "SESSION_EXPIRED"
)

// Event is delivered to session listeners. Session is nil when the event ends a session.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Snapshot is a read-only view of a session store's state.
type Snapshot struct {
	Session *Session
	User    *Identity
	Role    Role
	Loading bool
}

// Authenticated reports whether the snapshot carries a session.
func (s Snapshot) Authenticated() bool {
	return s.Session != nil
}

// Severity tags a user-visible notice.
type Severity string

const (
	SeverityNormal      Severity = "normal"
	SeverityDestructive Severity = "destructive"
)

// Notice is a user-visible message.
type Notice struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}
