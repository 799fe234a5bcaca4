package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/backend"
)

// Entry pairs a browser session's Store with the backend client it listens to.
type Entry struct {
	SID    string
	Store  *Store
	Client auth.Client
}

// Registry keeps one started Store per browser session id. Entries evicted from the
// bounded cache are closed, releasing their backend subscription.
type Registry struct {
	ctx     context.Context
	factory backend.Factory
	roles   RoleResolver
	logger  *slog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
	closing sync.WaitGroup
}

// NewRegistry creates a Registry holding at most size stores. Stores are started
// with ctx and stop when it is cancelled.
func NewRegistry(ctx context.Context, factory backend.Factory, roles RoleResolver, size int, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		ctx:     ctx,
		factory: factory,
		roles:   roles,
		logger:  logger,
	}

	cache, err := lru.NewWithEvict[string, *Entry](size, r.release)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	r.entries = cache
	return r, nil
}

// Get returns the entry for sid, creating and starting its Store on first use.
func (r *Registry) Get(sid string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries.Get(sid); ok {
		return e
	}

	client := r.factory.NewClient(sid)
	store := NewStore(sid, client, r.roles, r.logger)
	store.Start(r.ctx)

	e := &Entry{SID: sid, Store: store, Client: client}
	r.entries.Add(sid, e)
	return e
}

// Peek returns the entry for sid without creating one or touching its recency.
func (r *Registry) Peek(sid string) (*Entry, bool) {
	return r.entries.Peek(sid)
}

// Remove closes and forgets the entry for sid.
func (r *Registry) Remove(sid string) {
	r.entries.Remove(sid)
}

// Entries returns the current entries, least recently used first.
func (r *Registry) Entries() []*Entry {
	keys := r.entries.Keys()
	out := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := r.entries.Peek(k); ok {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return r.entries.Len()
}

// Close closes every Store and waits for them to finish.
func (r *Registry) Close() {
	r.entries.Purge()
	r.closing.Wait()
}

func (r *Registry) release(sid string, e *Entry) {
	r.closing.Add(1)
	go func() {
		defer r.closing.Done()
		e.Store.Close()
		r.logger.Debug("session store released", "sid", sid)
	}()
}
