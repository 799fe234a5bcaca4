package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderpass/portal/internal/api/response"
	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/guard"
)

const snapshotKey contextKey = "snapshot"

// RequireRole returns middleware that lets a request through only when the route
// guard renders it. A zero role admits any signed-in user. The guard first waits up
// to loadTimeout for the session to load and any role lookup to finish; a session
// still loading after that is answered with 503.
func RequireRole(required auth.Role, loadTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			entry := GetSession(r.Context())
			if entry == nil {
				slog.Error("route guard used without session middleware", "path", r.URL.Path)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session unavailable", requestID)
				return
			}

			waitCtx, cancel := context.WithTimeout(r.Context(), loadTimeout)
			entry.Store.WaitSettled(waitCtx)
			cancel()

			snap := entry.Store.Snapshot()
			decision := guard.Decide(guard.FromSnapshot(snap, required))

			switch decision.Action {
			case guard.Wait:
				response.Unavailable(w, time.Second, "SESSION_LOADING", "Session is still loading", requestID)
			case guard.Redirect:
				response.Redirect(w, decision.Redirect, decision.Notice, requestID)
			case guard.Render:
				ctx := context.WithValue(r.Context(), snapshotKey, snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// GetSnapshot retrieves the snapshot the guard admitted the request with.
func GetSnapshot(ctx context.Context) (auth.Snapshot, bool) {
	s, ok := ctx.Value(snapshotKey).(auth.Snapshot)
	return s, ok
}
