// Package backend holds what the managed-backend adapters share: the per-browser
// session holder and the registry of available adapters.
package backend

import (
	"sync"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/pubsub"
)

// Holder keeps the session of one browser session id and publishes every change
// to its subscribers.
type Holder struct {
	sid     string
	storage auth.SessionStorage
	hub     *pubsub.Hub[auth.Event]

	// mu keeps storage writes and event delivery in the same order.
	mu sync.Mutex
}

// NewHolder creates a Holder for sid backed by storage.
func NewHolder(sid string, storage auth.SessionStorage) *Holder {
	return &Holder{
		sid:     sid,
		storage: storage,
		hub:     pubsub.NewHub[auth.Event](),
	}
}

// SID returns the browser session id this holder serves.
func (h *Holder) SID() string {
	return h.sid
}

// Current returns the stored session, or nil.
func (h *Holder) Current() *auth.Session {
	s, ok := h.storage.Load(h.sid)
	if !ok {
		return nil
	}
	return s
}

// Set stores s and emits an event of the given kind carrying it.
func (h *Holder) Set(kind auth.EventKind, s *auth.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.storage.Save(h.sid, s)
	h.hub.Publish(auth.Event{Kind: kind, Session: copySession(s)})
}

// Clear drops the stored session and emits an event of the given kind.
func (h *Holder) Clear(kind auth.EventKind) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.storage.Remove(h.sid)
	h.hub.Publish(auth.Event{Kind: kind})
}

// Replace stores next and emits kind only while the stored session is still prev,
// matched by refresh token. It reports whether next was stored.
func (h *Holder) Replace(prev, next *auth.Session, kind auth.EventKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.holdsLocked(prev) {
		return false
	}
	h.storage.Save(h.sid, next)
	h.hub.Publish(auth.Event{Kind: kind, Session: copySession(next)})
	return true
}

// ClearIf drops the stored session and emits kind only while it is still prev.
// It reports whether the session was dropped.
func (h *Holder) ClearIf(prev *auth.Session, kind auth.EventKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.holdsLocked(prev) {
		return false
	}
	h.storage.Remove(h.sid)
	h.hub.Publish(auth.Event{Kind: kind})
	return true
}

func (h *Holder) holdsLocked(prev *auth.Session) bool {
	if prev == nil {
		return false
	}
	cur, ok := h.storage.Load(h.sid)
	return ok && cur.RefreshToken == prev.RefreshToken
}

// Subscribe registers handler for session events.
func (h *Holder) Subscribe(handler func(auth.Event)) func() {
	return h.hub.Subscribe(handler)
}

func copySession(s *auth.Session) *auth.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
