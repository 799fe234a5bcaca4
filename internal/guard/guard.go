// Package guard decides whether a protected route may be shown.
package guard

import "github.com/wanderpass/portal/internal/auth"

// Well-known navigation targets.
const (
	PathLogin     = "/auth"
	PathDashboard = "/dashboard"
	PathAdmin     = "/admin"
)

// Action is what the caller should do with a protected route.
type Action int

const (
	// Wait renders nothing while the session is still loading.
	Wait Action = iota
	Render
	Redirect
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Input is the state a decision is made from. A zero Required means any
// authenticated user may enter.
type Input struct {
	Loading    bool
	HasSession bool
	Role       auth.Role
	Required   auth.Role
}

// Decision is the outcome of Decide. Redirect is set only for the Redirect action;
// Notice is nil when nothing should be shown to the user.
type Decision struct {
	Action   Action
	Redirect string
	Notice   *auth.Notice
}

var (
	authRequired = auth.Notice{
		Title:       "Authentication required",
		Description: "Please sign in to access this page.",
		Severity:    auth.SeverityDestructive,
	}
	accessRestricted = auth.Notice{
		Title:       "Access restricted",
		Description: "You don't have permission to access this page.",
		Severity:    auth.SeverityDestructive,
	}
)

// Decide evaluates access to a protected route. It never returns Render while
// loading or without a session.
//
// A user lacking the admin role on an admin route is sent to the dashboard with a
// notice. Anyone else whose role does not match, admins on user routes included,
// is sent to the admin area silently: admins are redirected, never denied.
func Decide(in Input) Decision {
	switch {
	case in.Loading:
		return Decision{Action: Wait}
	case !in.HasSession:
		n := authRequired
		return Decision{Action: Redirect, Redirect: PathLogin, Notice: &n}
	case in.Required != auth.RoleNone && in.Role != in.Required:
		if in.Required == auth.RoleAdmin {
			n := accessRestricted
			return Decision{Action: Redirect, Redirect: PathDashboard, Notice: &n}
		}
		return Decision{Action: Redirect, Redirect: PathAdmin}
	}
	return Decision{Action: Render}
}

// FromSnapshot builds the decision input for a route requiring the given role.
func FromSnapshot(s auth.Snapshot, required auth.Role) Input {
	return Input{
		Loading:    s.Loading,
		HasSession: s.Authenticated(),
		Role:       s.Role,
		Required:   required,
	}
}
