// Package session keeps the authentication state of browser sessions in sync with
// the managed backend.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/pubsub"
)

// RoleResolver resolves the role of a user, degrading failures to auth.RoleNone.
type RoleResolver interface {
	Resolve(ctx context.Context, userID string) auth.Role
}

// Store owns the session, user and role of one browser session. It is the only
// writer of that state; everything else reads snapshots or subscribes.
type Store struct {
	sid    string
	source auth.SessionSource
	roles  RoleResolver
	logger *slog.Logger
	hub    *pubsub.Hub[auth.Snapshot]

	// writeMu serializes state transitions together with their publication.
	writeMu sync.Mutex

	mu        sync.RWMutex
	session   *auth.Session
	role      auth.Role
	loading   bool
	resolving bool
	seq       uint64
	eventSeen bool
	closed    bool
	cancelJob context.CancelFunc

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	ready     chan struct{}
	readyOnce sync.Once
	startOnce sync.Once
	closeOnce sync.Once
}

// NewStore creates a Store for sid. Call Start to attach it to source.
func NewStore(sid string, source auth.SessionSource, roles RoleResolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sid:     sid,
		source:  source,
		roles:   roles,
		logger:  logger.With("sid", sid),
		hub:     pubsub.NewHub[auth.Snapshot](),
		loading: true,
		ready:   make(chan struct{}),
	}
}

// Start registers the event listener and then fetches the current session once in
// the background, covering events emitted before the listener was attached.
// The Store lives until Close or until ctx is cancelled.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.unsubscribe = s.source.Subscribe(s.handleEvent)
		s.wg.Add(1)
		s.mu.Unlock()

		go s.initialFetch()
	})
}

// Close unregisters the listener, cancels in-flight role lookups and waits for them.
// It is safe to call more than once and before Start.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.resolving = false
		unsubscribe, cancel := s.unsubscribe, s.cancel
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
		s.markReady()
		s.logger.Debug("session store closed")
	})
}

// Snapshot returns the current state.
func (s *Store) Snapshot() auth.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers handler for state changes. Handlers run synchronously on the
// writer's goroutine and must not block or call back into the backend.
func (s *Store) Subscribe(handler func(auth.Snapshot)) (unsubscribe func()) {
	return s.hub.Subscribe(handler)
}

// Ready is closed once the initial session fetch has resolved or the Store is closed.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the initial fetch resolves or ctx is done. It reports
// whether the Store has finished loading.
func (s *Store) WaitReady(ctx context.Context) bool {
	select {
	case <-s.ready:
	case <-ctx.Done():
	}
	return !s.Snapshot().Loading
}

// WaitSettled blocks until the Store has loaded and no role lookup is in flight, or
// ctx is done. It reports whether that state was reached.
func (s *Store) WaitSettled(ctx context.Context) bool {
	if !s.WaitReady(ctx) {
		return false
	}

	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(auth.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for !s.settled() {
		select {
		case <-changed:
		case <-ctx.Done():
			return s.settled()
		}
	}
	return true
}

func (s *Store) settled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loading && !s.resolving
}

func (s *Store) initialFetch() {
	defer s.wg.Done()

	sess, err := s.source.GetCurrentSession(s.ctx)
	if err != nil {
		s.logger.Warn("initial session fetch failed", "error", err)
		sess = nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// A listener event already carries fresher state than this fetch.
	if !s.eventSeen {
		s.applyLocked(auth.EventInitialSession, sess)
	}
	s.loading = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
	s.markReady()
}

func (s *Store) handleEvent(e auth.Event) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.eventSeen = true
	s.applyLocked(e.Kind, e.Session)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("session event", "event", string(e.Kind), "authenticated", snap.Authenticated())
	s.hub.Publish(snap)
}

// applyLocked installs sess and, when it carries a user, starts a role lookup
// tagged with a new sequence number. Caller holds s.mu.
func (s *Store) applyLocked(kind auth.EventKind, sess *auth.Session) {
	s.seq++
	if s.cancelJob != nil {
		s.cancelJob()
		s.cancelJob = nil
	}

	if sess == nil || sess.User.ID == "" {
		s.session = nil
		s.role = auth.RoleNone
		s.resolving = false
		return
	}

	if s.session == nil || s.session.User.ID != sess.User.ID {
		s.role = auth.RoleNone
	}
	c := *sess
	s.session = &c

	jobCtx, cancel := context.WithCancel(auth.WithAccessToken(s.ctx, sess.AccessToken))
	s.cancelJob = cancel
	s.resolving = true
	s.wg.Add(1)
	go s.resolveRole(jobCtx, cancel, s.seq, sess.User.ID, kind)
}

func (s *Store) resolveRole(ctx context.Context, cancel context.CancelFunc, seq uint64, userID string, kind auth.EventKind) {
	defer s.wg.Done()
	defer cancel()

	role := s.roles.Resolve(ctx, userID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale role resolution", "seq", seq, "event", string(kind))
		return
	}
	s.role = role
	s.resolving = false
	s.cancelJob = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

func (s *Store) snapshotLocked() auth.Snapshot {
	snap := auth.Snapshot{Role: s.role, Loading: s.loading}
	if s.session != nil {
		sess := *s.session
		user := sess.User
		snap.Session = &sess
		snap.User = &user
	}
	return snap
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
