package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists period locks.
type Repository interface {
	Insert(ctx context.Context, year, month int, note string, closedAt time.Time) (Lock, error)
	Delete(ctx context.Context, year, month int) error
	Exists(ctx context.Context, year, month int) (bool, error)
	Find(ctx context.Context, year, month int) (*Lock, error)
	List(ctx context.Context, year *int) ([]Lock, error)
}

// PGRepository stores locks in the period_locks table. The primary key
// on (year, month) is what makes concurrent lock calls race-free: the
// loser of the insert race gets a unique violation, not a second lock.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert creates the lock row, mapping a unique violation to ErrAlreadyLocked.
func (r *PGRepository) Insert(ctx context.Context, year, month int, note string, closedAt time.Time) (Lock, error) {
	const query = `
		INSERT INTO period_locks (year, month, closed_at, note)
		VALUES ($1, $2, $3, $4)
		RETURNING year, month, closed_at, note`
	var lock Lock
	err := r.pool.QueryRow(ctx, query, year, month, closedAt, note).
		Scan(&lock.Year, &lock.Month, &lock.ClosedAt, &lock.Note)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Lock{}, ErrAlreadyLocked
		}
		return Lock{}, fmt.Errorf("periods: insert lock: %w", err)
	}
	return lock, nil
}

// Delete removes the lock row, mapping a missing row to ErrNotLocked.
func (r *PGRepository) Delete(ctx context.Context, year, month int) error {
	const query = `DELETE FROM period_locks WHERE year = $1 AND month = $2`
	tag, err := r.pool.Exec(ctx, query, year, month)
	if err != nil {
		return fmt.Errorf("periods: delete lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotLocked
	}
	return nil
}

// Exists reports whether a lock is present for the period.
func (r *PGRepository) Exists(ctx context.Context, year, month int) (bool, error) {
	return lockExists(ctx, r.pool, year, month)
}

// Find returns the lock for the period, or nil when it is open.
func (r *PGRepository) Find(ctx context.Context, year, month int) (*Lock, error) {
	const query = `SELECT year, month, closed_at, note FROM period_locks WHERE year = $1 AND month = $2`
	var l Lock
	err := r.pool.QueryRow(ctx, query, year, month).Scan(&l.Year, &l.Month, &l.ClosedAt, &l.Note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("periods: find lock: %w", err)
	}
	return &l, nil
}

// List returns all locks, optionally filtered by year, newest first.
func (r *PGRepository) List(ctx context.Context, year *int) ([]Lock, error) {
	query := `SELECT year, month, closed_at, note FROM period_locks`
	args := []interface{}{}
	if year != nil {
		query += ` WHERE year = $1`
		args = append(args, *year)
	}
	query += ` ORDER BY year DESC, month DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("periods: list locks: %w", err)
	}
	defer rows.Close()
	var locks []Lock
	for rows.Next() {
		var l Lock
		if err := rows.Scan(&l.Year, &l.Month, &l.ClosedAt, &l.Note); err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// Querier is the subset of pgx needed for a lock existence check. Both
// pgxpool.Pool and pgx.Tx satisfy it, so the guard can run inside the
// same transaction as the write it protects.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lockExists(ctx context.Context, q Querier, year, month int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM period_locks WHERE year = $1 AND month = $2)`
	var exists bool
	if err := q.QueryRow(ctx, query, year, month).Scan(&exists); err != nil {
		return false, fmt.Errorf("periods: lock exists: %w", err)
	}
	return exists, nil
}
