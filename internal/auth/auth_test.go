package auth_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderpass/portal/internal/auth"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want auth.Role
	}{
		{"user", auth.RoleUser},
		{"admin", auth.RoleAdmin},
		{"", auth.RoleNone},
		{"Admin", auth.RoleNone},
		{"superuser", auth.RoleNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ParseRole(tt.in))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, auth.KindNone, auth.KindOf(nil))
	assert.Equal(t, auth.KindGeneric, auth.KindOf(errors.New("boom")))

	err := auth.NewError(auth.KindInvalidCredentials, "sign in", "Invalid login credentials", nil)
	assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err))
	assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(fmt.Errorf("wrapped: %w", err)))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "", auth.MessageOf(nil))
	assert.Equal(t, "boom", auth.MessageOf(errors.New("boom")))

	cause := errors.New("HTTP 400")
	err := auth.NewError(auth.KindUserExists, "sign up", "User already registered", cause)
	assert.Equal(t, "User already registered", auth.MessageOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sign up: User already registered: HTTP 400", err.Error())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()

	assert.False(t, (&auth.Session{}).Expired(now), "zero expiry never expires")
	assert.False(t, (&auth.Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&auth.Session{ExpiresAt: now}).Expired(now))
}

func TestSnapshotAuthenticated(t *testing.T) {
	assert.False(t, auth.Snapshot{Role: auth.RoleAdmin}.Authenticated())
	assert.True(t, auth.Snapshot{Session: &auth.Session{}}.Authenticated())
}

func TestMemoryStorage(t *testing.T) {
	m := auth.NewMemoryStorage(2, time.Hour)

	_, ok := m.Load("sid-1")
	assert.False(t, ok)

	s := &auth.Session{AccessToken: "a1", User: auth.Identity{ID: "u1"}}
	m.Save("sid-1", s)
	s.AccessToken = "mutated"

	loaded, ok := m.Load("sid-1")
	require.True(t, ok)
	assert.Equal(t, "a1", loaded.AccessToken, "storage keeps a copy")

	m.Save("sid-1", nil)
	_, ok = m.Load("sid-1")
	assert.False(t, ok, "saving nil removes the entry")

	m.Save("sid-1", &auth.Session{AccessToken: "a1"})
	m.Save("sid-2", &auth.Session{AccessToken: "a2"})
	m.Save("sid-3", &auth.Session{AccessToken: "a3"})
	_, ok = m.Load("sid-1")
	assert.False(t, ok, "oldest entry evicted past capacity")

	m.Remove("sid-3")
	_, ok = m.Load("sid-3")
	assert.False(t, ok)
}
