// Package profile reads user roles straight from the profiles table.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanderpass/portal/internal/auth"
)

// PostgresRepository implements auth.ProfileStore using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new profile repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SelectRoleByUserID returns the role on the user's profile. A NULL role is RoleNone.
func (r *PostgresRepository) SelectRoleByUserID(ctx context.Context, userID string) (auth.Role, error) {
	query := `
		SELECT role
		FROM profiles
		WHERE id = $1`

	var role *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.RoleNone, auth.ErrProfileNotFound
		}
		return auth.RoleNone, fmt.Errorf("querying profile role: %w", err)
	}

	if role == nil {
		return auth.RoleNone, nil
	}
	return auth.ParseRole(*role), nil
}

// SetRole upserts the role on a user's profile.
func (r *PostgresRepository) SetRole(ctx context.Context, userID string, role auth.Role) error {
	query := `
		INSERT INTO profiles (id, role)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`

	var value *string
	if role != auth.RoleNone {
		s := string(role)
		value = &s
	}

	if _, err := r.pool.Exec(ctx, query, userID, value); err != nil {
		return fmt.Errorf("upserting profile role: %w", err)
	}
	return nil
}
