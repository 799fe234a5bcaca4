package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wanderpass/portal/internal/auth"
)

// ProfileStore reads roles from the profiles table through PostgREST.
type ProfileStore struct {
	backend *Backend
}

// Profiles returns a ProfileStore. Lookups use the service key when one is
// configured. Otherwise they run as the signed-in user, with the access token the
// caller put on the context, so "read own profile" row-level security applies.
func (b *Backend) Profiles() *ProfileStore {
	return &ProfileStore{backend: b}
}

type profileRow struct {
	Role *string `json:"role"`
}

// SelectRoleByUserID implements auth.ProfileStore.
func (p *ProfileStore) SelectRoleByUserID(ctx context.Context, userID string) (auth.Role, error) {
	const op = "select role"

	key, bearer := p.backend.svcKey, ""
	if key == "" {
		key, bearer = p.backend.anonKey, auth.AccessTokenFrom(ctx)
	}

	q := url.Values{}
	q.Set("id", "eq."+userID)
	q.Set("select", "role")

	var rows []profileRow
	err := p.backend.doWithKey(ctx, op, http.MethodGet, "/rest/v1/profiles?"+q.Encode(), key, bearer, nil, &rows)
	if err != nil {
		return auth.RoleNone, fmt.Errorf("querying profile: %w", err)
	}

	switch len(rows) {
	case 0:
		return auth.RoleNone, auth.ErrProfileNotFound
	case 1:
	default:
		return auth.RoleNone, fmt.Errorf("expected one profile for user %s, got %d", userID, len(rows))
	}

	if rows[0].Role == nil {
		return auth.RoleNone, nil
	}
	return auth.ParseRole(*rows[0].Role), nil
}
