package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marquee-ott/marquee/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProfile loads a profile by user id.
func (r *Repository) GetProfile(ctx context.Context, id int64) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT id, email, COALESCE(username, ''), is_staff, COALESCE(phone, ''), COALESCE(hobbies, ''), COALESCE(bio, ''), COALESCE(profile_pic_key, ''), updated_at
FROM users WHERE id = $1`, id).Scan(&p.ID, &p.Email, &p.Username, &p.IsStaff, &p.Phone, &p.Hobbies, &p.Bio, &p.ProfilePicKey, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, shared.ErrNotFound
	}
	return p, err
}

// SaveProfile writes the editable profile fields.
func (r *Repository) SaveProfile(ctx context.Context, p Profile) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET phone = $2, hobbies = $3, bio = $4, profile_pic_key = NULLIF($5, ''), updated_at = $6 WHERE id = $1`,
		p.ID, p.Phone, p.Hobbies, p.Bio, p.ProfilePicKey, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("users: save profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountUsers returns the number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

var _ RepositoryPort = (*Repository)(nil)
