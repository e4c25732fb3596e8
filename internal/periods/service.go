package periods

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotInvalidator drops any cached monthly summary for a period.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, year, month int) error
}

// WarmupEnqueuer schedules a background summary precompute for a period.
type WarmupEnqueuer interface {
	EnqueueSummaryWarmup(ctx context.Context, year, month int) error
}

// Service orchestrates closing and reopening of accounting months.
type Service struct {
	repo      Repository
	snapshots SnapshotInvalidator
	warmups   WarmupEnqueuer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. snapshots and warmups may be nil when
// no cache or job queue is wired (tests, CLI tooling).
func NewService(repo Repository, snapshots SnapshotInvalidator, warmups WarmupEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		warmups:   warmups,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Close locks the period. Exactly one of two concurrent Close calls for
// the same (year, month) succeeds; the other gets ErrAlreadyLocked from
// the store's uniqueness constraint.
func (s *Service) Close(ctx context.Context, year, month int, note string) (Lock, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return Lock{}, err
	}
	lock, err := s.repo.Insert(ctx, year, month, note, s.now().UTC())
	if err != nil {
		return Lock{}, err
	}
	s.logger.Info("period closed", slog.Int("year", year), slog.Int("month", month))
	if s.warmups != nil {
		if err := s.warmups.EnqueueSummaryWarmup(ctx, year, month); err != nil {
			s.logger.Warn("enqueue summary warmup", slog.Any("error", err))
		}
	}
	return lock, nil
}

// Reopen removes the lock and the cached summary for the period. The
// snapshot is invalidated before the lock row is deleted: if the cache
// delete fails the period stays closed and the snapshot stays valid.
func (s *Service) Reopen(ctx context.Context, year, month int) error {
	if err := ValidatePeriod(year, month); err != nil {
		return err
	}
	locked, err := s.repo.Exists(ctx, year, month)
	if err != nil {
		return err
	}
	if !locked {
		return ErrNotLocked
	}
	if s.snapshots != nil {
		if err := s.snapshots.Invalidate(ctx, year, month); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, year, month); err != nil {
		return err
	}
	s.logger.Info("period reopened", slog.Int("year", year), slog.Int("month", month))
	return nil
}

// IsLocked reports whether the period is closed.
func (s *Service) IsLocked(ctx context.Context, year, month int) (bool, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, year, month)
}

// Find returns the lock for the period, or nil when it is open.
func (s *Service) Find(ctx context.Context, year, month int) (*Lock, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, year, month)
}

// List returns locks, optionally filtered by year.
func (s *Service) List(ctx context.Context, year *int) ([]Lock, error) {
	return s.repo.List(ctx, year)
}
