package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marquee-ott/marquee/internal/platform/db"
)

// Repository persists movies, watchlists and history.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]Movie, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (Movie, error)
	Latest(ctx context.Context, n int) ([]Movie, error)
	Create(ctx context.Context, m Movie) (Movie, error)
	Update(ctx context.Context, m Movie) (Movie, error)
	Delete(ctx context.Context, id int64) (Movie, error)

	AddToWatchlist(ctx context.Context, userID, movieID int64, at time.Time) error
	RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error
	ListWatchlist(ctx context.Context, userID int64) ([]Movie, error)
	RecordView(ctx context.Context, userID, movieID int64, at time.Time) error
	ListHistory(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const movieColumns = `m.id, m.title, m.description, m.view_count, COALESCE(m.thumbnail_key, ''), COALESCE(m.video_key, ''), m.created_at, m.updated_at`

func scanMovie(row pgx.Row) (Movie, error) {
	var m Movie
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.ViewCount, &m.ThumbnailKey, &m.VideoKey, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movie{}, ErrMovieNotFound
	}
	return m, err
}

func collectMovies(rows pgx.Rows) ([]Movie, error) {
	defer rows.Close()
	var out []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// List returns movies ordered by id. A non-positive limit returns every row.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Movie, error) {
	if limit <= 0 {
		rows, err := r.pool.Query(ctx, `SELECT `+movieColumns+` FROM movies m ORDER BY m.id`)
		if err != nil {
			return nil, err
		}
		return collectMovies(rows)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movieColumns+` FROM movies m ORDER BY m.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

// Count returns the number of movies.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n)
	return n, err
}

// Get loads one movie.
func (r *PGRepository) Get(ctx context.Context, id int64) (Movie, error) {
	return scanMovie(r.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies m WHERE m.id = $1`, id))
}

// Latest returns the n most recently added movies.
func (r *PGRepository) Latest(ctx context.Context, n int) ([]Movie, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movieColumns+` FROM movies m ORDER BY m.id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

// Create inserts m and returns the stored row.
func (r *PGRepository) Create(ctx context.Context, m Movie) (Movie, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO movies AS m (title, description, view_count, thumbnail_key, video_key, created_at, updated_at)
VALUES ($1, $2, 0, $3, $4, $5, $5)
RETURNING `+movieColumns, m.Title, m.Description, nullable(m.ThumbnailKey), nullable(m.VideoKey), m.CreatedAt)
	created, err := scanMovie(row)
	if err != nil {
		return Movie{}, fmt.Errorf("catalog: insert movie: %w", err)
	}
	return created, nil
}

// Update writes the editable fields of m.
func (r *PGRepository) Update(ctx context.Context, m Movie) (Movie, error) {
	row := r.pool.QueryRow(ctx, `UPDATE movies AS m SET title = $2, description = $3, thumbnail_key = $4, video_key = $5, updated_at = $6
WHERE m.id = $1
RETURNING `+movieColumns, m.ID, m.Title, m.Description, nullable(m.ThumbnailKey), nullable(m.VideoKey), m.UpdatedAt)
	return scanMovie(row)
}

// Delete removes the movie and returns its last state.
func (r *PGRepository) Delete(ctx context.Context, id int64) (Movie, error) {
	return scanMovie(r.pool.QueryRow(ctx, `DELETE FROM movies AS m WHERE m.id = $1 RETURNING `+movieColumns, id))
}

// AddToWatchlist is idempotent.
func (r *PGRepository) AddToWatchlist(ctx context.Context, userID, movieID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO watchlist_items (user_id, movie_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id, movie_id) DO NOTHING`, userID, movieID, at)
	if db.IsForeignKeyViolation(err) {
		return ErrMovieNotFound
	}
	return err
}

// RemoveFromWatchlist is idempotent.
func (r *PGRepository) RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM watchlist_items WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	return err
}

// ListWatchlist returns the user's saved movies, newest first.
func (r *PGRepository) ListWatchlist(ctx context.Context, userID int64) ([]Movie, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movieColumns+`
FROM watchlist_items w JOIN movies m ON m.id = w.movie_id
WHERE w.user_id = $1
ORDER BY w.created_at DESC, m.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectMovies(rows)
}

// RecordView bumps the movie's view counter and appends a history row atomically.
func (r *PGRepository) RecordView(ctx context.Context, userID, movieID int64, at time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE movies SET view_count = view_count + 1 WHERE id = $1`, movieID)
		if err != nil {
			return fmt.Errorf("catalog: increment views: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMovieNotFound
		}
		if _, err := tx.Exec(ctx, `INSERT INTO view_history (user_id, movie_id, viewed_at) VALUES ($1, $2, $3)`, userID, movieID, at); err != nil {
			return fmt.Errorf("catalog: insert history: %w", err)
		}
		return nil
	})
}

// ListHistory returns the user's latest views.
func (r *PGRepository) ListHistory(ctx context.Context, userID int64, limit int) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movieColumns+`, h.viewed_at
FROM view_history h JOIN movies m ON m.id = h.movie_id
WHERE h.user_id = $1
ORDER BY h.viewed_at DESC, h.id DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		m := &e.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ViewCount, &m.ThumbnailKey, &m.VideoKey, &m.CreatedAt, &m.UpdatedAt, &e.ViewedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
