package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert inserts or refreshes a user keyed by external ID and fills in the
// generated ID and timestamps.
func (r *UserRepo) Upsert(ctx context.Context, u *domain.User) error {
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (external_id, name, email, image_url, providers, token)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, image_url = EXCLUDED.image_url,
		    providers = EXCLUDED.providers, token = EXCLUDED.token, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, u.ExternalID, u.Name, u.Email, nilIfEmpty(u.ImageURL), u.Providers, u.Token,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	u := &domain.User{}
	var imageURL sql.NullString
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, external_id, name, email, image_url, providers, token, created_at, updated_at
		FROM users WHERE external_id = $1
	`, externalID).Scan(
		&u.ID, &u.ExternalID, &u.Name, &u.Email, &imageURL, &u.Providers, &u.Token, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ImageURL = imageURL.String
	return u, nil
}
