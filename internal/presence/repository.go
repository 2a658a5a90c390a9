package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists presence records.
type Repository interface {
	// Touch sets last_seen on an existing record. It returns ErrNotFound when
	// the user has no record.
	Touch(ctx context.Context, userID int64, at time.Time) error
	// Create inserts the record, or refreshes it when a concurrent writer got there first.
	Create(ctx context.Context, userID int64, at time.Time) error
	ListActivity(ctx context.Context) ([]Activity, error)
}

// Execer is implemented by pgxpool.Pool, pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertRecordSQL = `INSERT INTO user_activity (user_id, last_seen) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET last_seen = EXCLUDED.last_seen`

// CreateRecord writes the presence record for userID using q. Account creation
// calls it inside the same transaction that inserts the user.
func CreateRecord(ctx context.Context, q Execer, userID int64, at time.Time) error {
	if _, err := q.Exec(ctx, insertRecordSQL, userID, at); err != nil {
		return fmt.Errorf("presence: create record for user %d: %w", userID, err)
	}
	return nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Touch only writes last_seen.
func (r *PGRepository) Touch(ctx context.Context, userID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_activity SET last_seen = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("presence: touch user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a record for userID.
func (r *PGRepository) Create(ctx context.Context, userID int64, at time.Time) error {
	return CreateRecord(ctx, r.pool, userID, at)
}

// ListActivity returns every user with its last_seen, if any.
func (r *PGRepository) ListActivity(ctx context.Context) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, COALESCE(u.username, ''), u.email, a.last_seen
FROM users u
LEFT JOIN user_activity a ON a.user_id = u.id
ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.UserID, &a.Username, &a.Email, &a.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
