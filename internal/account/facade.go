// Package account exposes sign-in, sign-up and sign-out against the managed backend.
package account

import (
	"context"
	"log/slog"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/guard"
)

// RoleLookup fetches a role without degrading failures.
type RoleLookup interface {
	Lookup(ctx context.Context, userID string) (auth.Role, error)
}

// Outcome reports what an operation did. It is informational: failures have
// already been shown to the user through the Notifier.
type Outcome struct {
	Kind     auth.ErrorKind
	Redirect string
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Kind == auth.KindNone
}

// Facade runs account operations for one browser session. It never writes session
// state; the session store converges through the backend's events.
type Facade struct {
	client auth.Credentials
	source auth.SessionSource
	roles  RoleLookup
	notify auth.Notifier
	nav    auth.Navigator
	logger *slog.Logger
}

// NewFacade creates a Facade. client is usually an auth.Client serving both roles.
func NewFacade(client auth.Credentials, source auth.SessionSource, roles RoleLookup, notify auth.Notifier, nav auth.Navigator) *Facade {
	return &Facade{
		client: client,
		source: source,
		roles:  roles,
		notify: notify,
		nav:    nav,
		logger: slog.Default(),
	}
}

// SignIn checks the credentials, then confirms the session and routes the user by
// role. A failed role lookup still lands the user on the dashboard, with a warning.
func (f *Facade) SignIn(ctx context.Context, email, password string) Outcome {
	sess, err := f.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		kind := auth.KindOf(err)
		f.logger.Info("sign in failed", "kind", kind.String(), "error", err)
		f.notify.Notify(signInFailure(kind, err))
		return Outcome{Kind: kind}
	}

	confirmed, err := f.source.GetCurrentSession(ctx)
	if err != nil || confirmed == nil {
		f.logger.Warn("could not confirm session after sign in", "error", err)
		confirmed = sess
	}

	target := guard.PathDashboard
	role, err := f.roles.Lookup(auth.WithAccessToken(ctx, confirmed.AccessToken), confirmed.User.ID)
	switch {
	case err != nil:
		f.logger.Warn("role lookup after sign in failed", "userId", confirmed.User.ID, "error", err)
		f.notify.Notify(auth.Notice{
			Title:       "Signed in with limited access",
			Description: "We couldn't load your account permissions. Some areas may be unavailable.",
			Severity:    auth.SeverityNormal,
		})
	case role == auth.RoleAdmin:
		target = guard.PathAdmin
		f.notify.Notify(welcomeBack)
	default:
		f.notify.Notify(welcomeBack)
	}

	f.nav.GoTo(target)
	return Outcome{Redirect: target}
}

// SignUp creates an account with fullName stored as profile metadata. It does
// not navigate.
func (f *Facade) SignUp(ctx context.Context, email, password, fullName string) Outcome {
	_, err := f.client.SignUp(ctx, email, password, map[string]string{"full_name": fullName})
	if err != nil {
		kind := auth.KindOf(err)
		f.logger.Info("sign up failed", "kind", kind.String(), "error", err)
		f.notify.Notify(signUpFailure(kind, err))
		return Outcome{Kind: kind}
	}

	f.notify.Notify(auth.Notice{
		Title:       "Account created",
		Description: "Please check your email to verify your account.",
		Severity:    auth.SeverityNormal,
	})
	return Outcome{}
}

// SignOut ends the session and returns to the login page. When the backend call
// fails the user stays where they are, so local and remote state never diverge.
func (f *Facade) SignOut(ctx context.Context) Outcome {
	if err := f.client.SignOut(ctx); err != nil {
		f.logger.Warn("sign out failed", "error", err)
		f.notify.Notify(auth.Notice{
			Title:       "Sign out failed",
			Description: auth.MessageOf(err),
			Severity:    auth.SeverityDestructive,
		})
		return Outcome{Kind: auth.KindSessionTerminationFailed}
	}

	f.notify.Notify(auth.Notice{
		Title:       "Signed out",
		Description: "You have been signed out successfully.",
		Severity:    auth.SeverityNormal,
	})
	f.nav.GoTo(guard.PathLogin)
	return Outcome{Redirect: guard.PathLogin}
}

var welcomeBack = auth.Notice{
	Title:       "Welcome back!",
	Description: "You have successfully signed in.",
	Severity:    auth.SeverityNormal,
}

func signInFailure(kind auth.ErrorKind, err error) auth.Notice {
	n := auth.Notice{Title: "Sign in failed", Severity: auth.SeverityDestructive}
	switch kind {
	case auth.KindInvalidCredentials:
		n.Description = "Invalid email or password. Please try again."
	case auth.KindEmailNotConfirmed:
		n.Description = "Please confirm your email address before signing in."
	default:
		n.Description = auth.MessageOf(err)
	}
	return n
}

func signUpFailure(kind auth.ErrorKind, err error) auth.Notice {
	n := auth.Notice{Title: "Sign up failed", Severity: auth.SeverityDestructive}
	if kind == auth.KindUserExists {
		n.Description = "An account with this email already exists. Try signing in instead."
		return n
	}
	n.Description = auth.MessageOf(err)
	return n
}
