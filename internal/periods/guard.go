package periods

import (
	"context"
	"time"
)

// Guard enforces the closed-period invariant on financial writes.
//
// AssertOpen must be called on the same transaction that performs the
// write. Checking the lock in one transaction and writing in another
// reopens the check-then-act race this package exists to close: a lock
// committed between the two would let an unguarded mutation through.
type Guard struct{}

// NewGuard constructs a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// AssertOpen fails with *ClosedError when the period containing date is
// locked. q should be the transaction scoping the caller's write.
func (g *Guard) AssertOpen(ctx context.Context, q Querier, date time.Time) error {
	year, month := PeriodOf(date)
	return g.AssertOpenPeriod(ctx, q, year, month)
}

// AssertOpenPeriod is AssertOpen for an explicit (year, month).
func (g *Guard) AssertOpenPeriod(ctx context.Context, q Querier, year, month int) error {
	locked, err := lockExists(ctx, q, year, month)
	if err != nil {
		return err
	}
	if locked {
		return &ClosedError{Year: year, Month: month}
	}
	return nil
}
