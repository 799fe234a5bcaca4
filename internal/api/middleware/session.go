package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wanderpass/portal/internal/session"
)

// SessionCookieName names the cookie carrying the browser session id.
const SessionCookieName = "portal_sid"

const sessionKey contextKey = "session"

// SessionProvider returns the started session entry for a browser session id and
// releases entries a browser no longer uses.
type SessionProvider interface {
	Get(sid string) *session.Entry
	Remove(sid string)
}

// CookieOptions configures the browser session cookie.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

type sessionContext struct {
	entry    *session.Entry
	sessions SessionProvider
	opts     CookieOptions
}

// Session is middleware that attaches the caller's session entry to the request.
// Requests without a valid sid cookie get a fresh id and a Set-Cookie.
func Session(sessions SessionProvider, opts CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					sid = id.String()
				}
			}
			if sid == "" {
				sid = uuid.New().String()
				setSessionCookie(w, sid, opts)
			}

			sc := &sessionContext{entry: sessions.Get(sid), sessions: sessions, opts: opts}
			ctx := context.WithValue(r.Context(), sessionKey, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the caller's session entry from the request context.
func GetSession(ctx context.Context) *session.Entry {
	if sc, ok := ctx.Value(sessionKey).(*sessionContext); ok {
		return sc.entry
	}
	return nil
}

// Renewal is a fresh session entry prepared next to the caller's current one.
// Signing in on it means an id the browser held before never becomes authenticated.
type Renewal struct {
	Entry *session.Entry

	prev *session.Entry
	sc   *sessionContext
	done bool
}

// BeginRenewal creates a fresh session entry for the caller. It returns nil when
// the request did not pass through Session.
func BeginRenewal(ctx context.Context) *Renewal {
	sc, ok := ctx.Value(sessionKey).(*sessionContext)
	if !ok {
		return nil
	}
	return &Renewal{
		Entry: sc.sessions.Get(uuid.New().String()),
		prev:  sc.entry,
		sc:    sc,
	}
}

// Commit moves the browser to the fresh session id and retires the previous one,
// dropping any session it still held. Call it before writing the response body.
func (rn *Renewal) Commit(w http.ResponseWriter) {
	if rn.done {
		return
	}
	rn.done = true

	setSessionCookie(w, rn.Entry.SID, rn.sc.opts)
	if rn.prev.Client != nil {
		rn.prev.Client.ExpireSession()
	}
	rn.sc.sessions.Remove(rn.prev.SID)
}

// Discard releases the fresh session and leaves the browser on its current one.
func (rn *Renewal) Discard() {
	if rn.done {
		return
	}
	rn.done = true
	rn.sc.sessions.Remove(rn.Entry.SID)
}

// setSessionCookie replaces any sid cookie already queued on w.
func setSessionCookie(w http.ResponseWriter, sid string, opts CookieOptions) {
	h := w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, SessionCookieName+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
