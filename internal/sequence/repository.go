package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository hands out the next counter value for a bucket.
type Repository interface {
	NextSeq(ctx context.Context, prefix, bucket string) (int64, error)
}

type dbtx interface {
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository persists counters in the document_sequences table.
type PGRepository struct {
	db dbtx
}

// NewRepository constructs a repository backed by a pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

// NewTxRepository constructs a repository bound to an open transaction,
// so a document insert and its number assignment commit atomically.
func NewTxRepository(tx pgx.Tx) *PGRepository {
	return &PGRepository{db: tx}
}

// NextSeq increments and returns the counter for (prefix, bucket).
// The upsert makes the increment atomic; two concurrent callers can
// never observe the same value.
func (r *PGRepository) NextSeq(ctx context.Context, prefix, bucket string) (int64, error) {
	const query = `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`
	var seq int64
	if err := r.db.QueryRow(ctx, query, prefix, bucket).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
