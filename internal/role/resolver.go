// Package role resolves a user's authorization role from the profile store.
package role

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wanderpass/portal/internal/auth"
)

var errEmptyUserID = errors.New("user id is empty")

// Resolver looks up roles. It keeps no state between lookups.
type Resolver struct {
	profiles auth.ProfileStore
	logger   *slog.Logger
}

// NewResolver creates a Resolver over the given profile store.
func NewResolver(profiles auth.ProfileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger}
}

// Lookup performs a single profile lookup. Any failure, including a missing
// profile row, is returned as a KindRoleLookupFailed error. There is no retry.
func (r *Resolver) Lookup(ctx context.Context, userID string) (auth.Role, error) {
	if userID == "" {
		return auth.RoleNone, auth.NewError(auth.KindRoleLookupFailed, "role lookup", "", errEmptyUserID)
	}

	role, err := r.profiles.SelectRoleByUserID(ctx, userID)
	if err != nil {
		return auth.RoleNone, auth.NewError(auth.KindRoleLookupFailed, "role lookup", "", err)
	}
	return role, nil
}

// Resolve is Lookup with failures logged and degraded to RoleNone.
func (r *Resolver) Resolve(ctx context.Context, userID string) auth.Role {
	role, err := r.Lookup(ctx, userID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("role lookup failed", "userId", userID, "error", err)
		}
		return auth.RoleNone
	}
	return role
}
