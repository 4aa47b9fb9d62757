package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// DestinationRepo implements ports.DestinationRepository with pgx + PostGIS.
type DestinationRepo struct {
	db *DB
}

// NewDestinationRepo creates a new DestinationRepo.
func NewDestinationRepo(db *DB) *DestinationRepo {
	return &DestinationRepo{db: db}
}

const upsertDestinationSQL = `
	INSERT INTO destinations (slug, name, description, image_url, location)
	VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)
	ON CONFLICT (slug) DO UPDATE
	SET name = EXCLUDED.name, description = EXCLUDED.description,
	    image_url = EXCLUDED.image_url, location = EXCLUDED.location`

// Upsert inserts or updates a single destination keyed by slug.
func (r *DestinationRepo) Upsert(ctx context.Context, d *domain.Destination) error {
	_, err := r.db.Pool.Exec(ctx, upsertDestinationSQL,
		d.Slug, d.Name, nilIfEmpty(d.Description), nilIfEmpty(d.ImageURL), d.Location.Lng, d.Location.Lat)
	return err
}

// UpsertBatch inserts many destinations using pgx.Batch.
func (r *DestinationRepo) UpsertBatch(ctx context.Context, ds []domain.Destination) error {
	batch := &pgx.Batch{}
	for _, d := range ds {
		batch.Queue(upsertDestinationSQL,
			d.Slug, d.Name, nilIfEmpty(d.Description), nilIfEmpty(d.ImageURL), d.Location.Lng, d.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a destination by UUID.
func (r *DestinationRepo) GetByID(ctx context.Context, id string) (*domain.Destination, error) {
	var d domain.Destination
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, slug, name, COALESCE(description, ''), COALESCE(image_url, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lng,
		       created_at
		FROM destinations WHERE id = $1
	`, id).Scan(
		&d.ID, &d.Slug, &d.Name, &d.Description, &d.ImageURL,
		&d.Location.Lat, &d.Location.Lng, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindNearby returns destinations within radiusMeters using PostGIS
// ST_DWithin, nearest first.
func (r *DestinationRepo) FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Destination, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, slug, name, COALESCE(description, ''), COALESCE(image_url, ''),
		       ST_Y(location::geometry) as lat,
		       ST_X(location::geometry) as lng,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance,
		       created_at
		FROM destinations
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, lng, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Destination{}
	for rows.Next() {
		var d domain.Destination
		var dist float64
		if err := rows.Scan(
			&d.ID, &d.Slug, &d.Name, &d.Description, &d.ImageURL,
			&d.Location.Lat, &d.Location.Lng,
			&dist, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Distance = &dist
		out = append(out, d)
	}
	return out, rows.Err()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
