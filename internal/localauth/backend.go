// Package localauth is an in-process stand-in for the managed backend, used for
// local development and tests. Accounts live in memory with bcrypt password hashes;
// sessions are HS256 access tokens plus opaque refresh tokens.
package localauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderpass/portal/internal/auth"
)

// ErrAccountNotFound is returned when no account matches.
var ErrAccountNotFound = errors.New("account not found")

const minPasswordLength = 6

// Config configures the local backend.
type Config struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type account struct {
	id       string
	email    string
	hash     []byte
	fullName string
	role     auth.Role
}

// Backend holds accounts, profiles and refresh tokens.
type Backend struct {
	secret  []byte
	ttl     time.Duration
	cost    int
	storage auth.SessionStorage
	now     func() time.Time

	mu       sync.RWMutex
	byEmail  map[string]*account
	byID     map[string]*account
	refresh  map[string]string // refresh token -> account id
	failNext map[string]error  // op -> injected failure
}

// NewBackend creates an empty Backend.
func NewBackend(cfg Config, storage auth.SessionStorage) (*Backend, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("local JWT secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Backend{
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		cost:     cost,
		storage:  storage,
		now:      time.Now,
		byEmail:  make(map[string]*account),
		byID:     make(map[string]*account),
		refresh:  make(map[string]string),
		failNext: make(map[string]error),
	}, nil
}

// CreateAccount registers an account with the given role.
func (b *Backend) CreateAccount(email, password, fullName string, role auth.Role) (*auth.Identity, error) {
	const op = "sign up"

	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, auth.NewError(auth.KindGeneric, op, fmt.Sprintf("Password should be at least %d characters.", minPasswordLength), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byEmail[email]; exists {
		return nil, auth.NewError(auth.KindUserExists, op, "User already registered", nil)
	}

	a := &account{
		id:       uuid.New().String(),
		email:    email,
		hash:     hash,
		fullName: fullName,
		role:     role,
	}
	b.byEmail[email] = a
	b.byID[a.id] = a

	return a.identity(), nil
}

// SetRole changes the role on an account's profile.
func (b *Backend) SetRole(userID string, role auth.Role) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.byID[userID]
	if !ok {
		return ErrAccountNotFound
	}
	a.role = role
	return nil
}

// FailNext makes the next call of op ("sign in", "sign up", "sign out",
// "refresh session" or "select role") fail with err.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[op] = err
}

func (b *Backend) takeFailure(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err, ok := b.failNext[op]
	if !ok {
		return nil
	}
	delete(b.failNext, op)
	return err
}

// SelectRoleByUserID implements auth.ProfileStore.
func (b *Backend) SelectRoleByUserID(_ context.Context, userID string) (auth.Role, error) {
	if err := b.takeFailure("select role"); err != nil {
		return auth.RoleNone, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.byID[userID]
	if !ok {
		return auth.RoleNone, auth.ErrProfileNotFound
	}
	return a.role, nil
}

// NewClient returns the client for one browser session id.
func (b *Backend) NewClient(sid string) auth.Client {
	return newClient(b, sid)
}

func (b *Backend) authenticate(email, password string) (*account, error) {
	b.mu.RLock()
	a, ok := b.byEmail[normalizeEmail(email)]
	b.mu.RUnlock()

	invalid := auth.NewError(auth.KindInvalidCredentials, "sign in", "Invalid login credentials", nil)
	if !ok {
		return nil, invalid
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return nil, invalid
	}
	return a, nil
}

// tokenClaims mirror the claims the hosted backend issues.
type tokenClaims struct {
	Email        string            `json:"email"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

func (b *Backend) issue(a *account) (*auth.Session, error) {
	now := b.now()
	expiresAt := now.Add(b.ttl)

	claims := tokenClaims{
		Email:        a.email,
		UserMetadata: map[string]string{"full_name": a.fullName},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.refresh[refresh] = a.id
	b.mu.Unlock()

	return &auth.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         *a.identity(),
	}, nil
}

// rotate exchanges a refresh token for a new session, invalidating the old token.
func (b *Backend) rotate(refresh string) (*auth.Session, error) {
	b.mu.Lock()
	id, ok := b.refresh[refresh]
	delete(b.refresh, refresh)
	a := b.byID[id]
	b.mu.Unlock()

	if !ok || a == nil {
		return nil, auth.NewError(auth.KindGeneric, "refresh session", "Invalid Refresh Token: Refresh Token Not Found", nil)
	}
	return b.issue(a)
}

func (b *Backend) revoke(refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, refresh)
}

// VerifyAccessToken checks the signature and expiry of an access token and returns
// its subject.
func (b *Backend) VerifyAccessToken(token string) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	}, jwt.WithTimeFunc(b.now))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

func (a *account) identity() *auth.Identity {
	return &auth.Identity{ID: a.id, Email: a.email, FullName: a.fullName}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
