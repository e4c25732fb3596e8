package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// maxAttempts bounds retries on transient numbering collisions. Numbers
// are never silently skipped: a retried attempt re-runs the same atomic
// increment, it does not burn a counter value.
const maxAttempts = 3

// Service generates formatted document numbers.
type Service struct {
	repo     Repository
	prefixes Prefixes
}

// NewService constructs a sequencer with the given prefix configuration.
// A nil prefixes map falls back to DefaultPrefixes.
func NewService(repo Repository, prefixes Prefixes) *Service {
	if prefixes == nil {
		prefixes = DefaultPrefixes()
	}
	return &Service{repo: repo, prefixes: prefixes}
}

// NextNumber returns the next document number for the type and date,
// formatted as {PREFIX}-{YY}{MM}-{NNNN}.
func (s *Service) NextNumber(ctx context.Context, dt DocType, date time.Time) (string, error) {
	prefix, err := s.prefixes.For(dt)
	if err != nil {
		return "", err
	}
	bucket := Bucket(date)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		seq, err := s.repo.NextSeq(ctx, prefix, bucket)
		if err == nil {
			return FormatNumber(prefix, date, seq), nil
		}
		if !isTransient(err) {
			return "", fmt.Errorf("sequence: next number: %w", err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrConflict, maxAttempts, lastErr)
}

// isTransient reports whether the error is a serialization or uniqueness
// collision worth retrying.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return true
		}
	}
	return false
}
