package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no user row matches the lookup.
var ErrNotFound = errors.New("users: not found")

// Repository is the Postgres-backed user registry.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert records first contact, refreshing the display name on
// repeated /start without touching the progress status.
func (r *Repository) Upsert(ctx context.Context, telegramID int64, fullName string) (User, error) {
	const q = `
		INSERT INTO users (telegram_id, fullname)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE
		SET fullname = EXCLUDED.fullname, updated_at = now()
		RETURNING id, telegram_id, fullname, status, created_at, updated_at`
	var u User
	if err := r.db.GetContext(ctx, &u, q, telegramID, fullName); err != nil {
		return User{}, fmt.Errorf("upsert user %d: %w", telegramID, err)
	}
	return u, nil
}

// GetByTelegramID looks a user up by telegram id.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	const q = `
		SELECT id, telegram_id, fullname, status, created_at, updated_at
		FROM users WHERE telegram_id = $1`
	var u User
	err := r.db.GetContext(ctx, &u, q, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return u, nil
}

// SetStatus moves a user to the given progress status.
func (r *Repository) SetStatus(ctx context.Context, telegramID int64, status Status) error {
	const q = `UPDATE users SET status = $2, updated_at = now() WHERE telegram_id = $1`
	res, err := r.db.ExecContext(ctx, q, telegramID, status)
	if err != nil {
		return fmt.Errorf("set status %s for %d: %w", status, telegramID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AllTelegramIDs lists every registered user for broadcast fan-out.
func (r *Repository) AllTelegramIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT telegram_id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	return ids, nil
}

// Count returns the total number of registered users.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountByStatus returns user totals per progress status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows := []struct {
		Status Status `db:"status"`
		Count  int    `db:"count"`
	}{}
	const q = `SELECT status, count(*) AS count FROM users GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("count users by status: %w", err)
	}
	out := make(map[Status]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// CountCreatedSince returns how many users registered at or after t.
func (r *Repository) CountCreatedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM users WHERE created_at >= $1`, t); err != nil {
		return 0, fmt.Errorf("count users since %s: %w", t.Format(time.RFC3339), err)
	}
	return n, nil
}
