package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wanderpass/portal/internal/auth"
)

// Refresher periodically renews sessions that are about to expire and expires
// those that can no longer be renewed.
type Refresher struct {
	registry *Registry
	interval time.Duration
	margin   time.Duration
	now      func() time.Time
}

// NewRefresher creates a Refresher that wakes every interval and renews sessions
// expiring within margin.
func NewRefresher(registry *Registry, interval, margin time.Duration) *Refresher {
	return &Refresher{
		registry: registry,
		interval: interval,
		margin:   margin,
		now:      time.Now,
	}
}

// Start begins the refresh loop. It blocks until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	slog.Info("session refresher started", "interval", r.interval.String(), "margin", r.margin.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session refresher stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one refresh pass over every live session.
func (r *Refresher) Sweep(ctx context.Context) {
	for _, e := range r.registry.Entries() {
		if ctx.Err() != nil {
			return
		}
		r.refreshOne(ctx, e)
	}
}

func (r *Refresher) refreshOne(ctx context.Context, e *Entry) {
	snap := e.Store.Snapshot()
	if snap.Session == nil || snap.Session.ExpiresAt.IsZero() {
		return
	}

	now := r.now()
	if snap.Session.ExpiresAt.Sub(now) > r.margin {
		return
	}

	err := e.Client.RefreshSession(ctx)
	if err == nil {
		slog.Debug("refresher: session renewed", "sid", e.SID)
		return
	}

	if errors.Is(err, auth.ErrSessionChanged) {
		slog.Debug("refresher: session changed during renewal", "sid", e.SID)
		return
	}

	if snap.Session.Expired(now) {
		slog.Info("refresher: session expired", "sid", e.SID, "error", err)
		e.Client.ExpireSession()
		return
	}

	slog.Warn("refresher: failed to renew session", "sid", e.SID, "error", err)
}
