package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/pubsub"
)

// fakeClient is an auth.Client whose session and events are driven by the test.
type fakeClient struct {
	hub *pubsub.Hub[auth.Event]

	mu         sync.Mutex
	current    *auth.Session
	getErr     error
	gate       chan struct{}
	refreshErr error
	refreshes  int
	expired    int
}

func newFakeClient(current *auth.Session) *fakeClient {
	return &fakeClient{hub: pubsub.NewHub[auth.Event](), current: current}
}

func (f *fakeClient) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.getErr
}

func (f *fakeClient) Subscribe(handler func(auth.Event)) func() {
	return f.hub.Subscribe(handler)
}

func (f *fakeClient) SignInWithPassword(_ context.Context, _, _ string) (*auth.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) SignUp(_ context.Context, _, _ string, _ map[string]string) (*auth.Identity, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) SignOut(_ context.Context) error {
	return errors.New("not implemented")
}

func (f *fakeClient) RefreshSession(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

func (f *fakeClient) ExpireSession() {
	f.mu.Lock()
	f.expired++
	f.current = nil
	f.mu.Unlock()
	f.emit(auth.EventSessionExpired, nil)
}

func (f *fakeClient) emit(kind auth.EventKind, s *auth.Session) {
	f.hub.Publish(auth.Event{Kind: kind, Session: s})
}

func (f *fakeClient) counts() (refreshes, expired int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.expired
}

// fakeRoles resolves roles from a map. A gate registered for a user holds that
// user's resolution until the gate is closed, regardless of cancellation.
type fakeRoles struct {
	mu     sync.Mutex
	roles  map[string]auth.Role
	gates  map[string]chan struct{}
	tokens map[string]string
	calls  int
}

func newFakeRoles(roles map[string]auth.Role) *fakeRoles {
	return &fakeRoles{roles: roles, gates: make(map[string]chan struct{}), tokens: make(map[string]string)}
}

func (f *fakeRoles) hold(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[userID] = g
	return g
}

func (f *fakeRoles) Resolve(ctx context.Context, userID string) auth.Role {
	f.mu.Lock()
	f.calls++
	f.tokens[userID] = auth.AccessTokenFrom(ctx)
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[userID]
}

func (f *fakeRoles) tokenFor(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID]
}

func (f *fakeRoles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFactory struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{clients: make(map[string]*fakeClient)}
}

func (f *fakeFactory) NewClient(sid string) auth.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := newFakeClient(nil)
	f.clients[sid] = c
	return c
}

func (f *fakeFactory) client(sid string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[sid]
}

func sessionFor(userID string, expiresIn time.Duration) *auth.Session {
	return &auth.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(expiresIn),
		User:         auth.Identity{ID: userID, Email: userID + "@example.com"},
	}
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
