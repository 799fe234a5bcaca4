package destination

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Repository backed by the given connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List retrieves all destinations, featured first, then by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Destination, error) {
	query := `
		SELECT id, name, country, region, processing_days, fee_cents,
		       COALESCE(image_url, ''), COALESCE(description, ''), featured
		FROM destinations
		ORDER BY featured DESC, name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	var out []Destination
	for rows.Next() {
		var d Destination
		err := rows.Scan(&d.ID, &d.Name, &d.Country, &d.Region, &d.ProcessingDays,
			&d.FeeCents, &d.ImageURL, &d.Description, &d.Featured)
		if err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}

	if out == nil {
		out = []Destination{}
	}

	return out, nil
}

// Upsert inserts or replaces a destination by id.
func (r *PostgresRepository) Upsert(ctx context.Context, d Destination) error {
	query := `
		INSERT INTO destinations (id, name, country, region, processing_days, fee_cents, image_url, description, featured)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			processing_days = EXCLUDED.processing_days,
			fee_cents = EXCLUDED.fee_cents,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			featured = EXCLUDED.featured`

	_, err := r.pool.Exec(ctx, query, d.ID, d.Name, d.Country, d.Region, d.ProcessingDays,
		d.FeeCents, d.ImageURL, d.Description, d.Featured)
	if err != nil {
		return fmt.Errorf("upserting destination %s: %w", d.ID, err)
	}
	return nil
}
