package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores computed summaries for closed periods in Redis.
// Entries are written only for locked periods and deleted on reopen,
// so a cached value can never outlive its lock.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache constructs a SnapshotCache. A zero ttl keeps
// snapshots until the period is reopened.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(year, month int) string {
	return fmt.Sprintf("summary:%d:%02d", year, month)
}

// snapshotEnvelope stamps the snapshot with the close time of the lock
// it was built under. A reopen followed by a re-close produces a new
// stamp, so a snapshot written by a build that started under the old
// lock can never be served against the new one.
type snapshotEnvelope struct {
	ClosedAt    time.Time       `json:"closedAt"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Summary     *MonthlySummary `json:"summary"`
}

// Get returns the cached summary for the period if one exists and was
// built under the lock closed at closedAt. A stamp mismatch reads as a
// miss.
func (c *SnapshotCache) Get(ctx context.Context, year, month int, closedAt time.Time) (*MonthlySummary, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, snapshotKey(year, month)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("summary: cache get: %w", err)
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false, fmt.Errorf("summary: cache decode: %w", err)
	}
	if env.Summary == nil || !env.ClosedAt.Equal(closedAt) {
		return nil, false, nil
	}
	env.Summary.GeneratedAt = env.GeneratedAt
	return env.Summary, true, nil
}

// Set stores the summary snapshot stamped with the lock's close time.
func (c *SnapshotCache) Set(ctx context.Context, s *MonthlySummary, closedAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(snapshotEnvelope{
		ClosedAt:    closedAt,
		GeneratedAt: s.GeneratedAt,
		Summary:     s,
	})
	if err != nil {
		return fmt.Errorf("summary: cache encode: %w", err)
	}
	key := snapshotKey(s.Period.Year, s.Period.Month)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("summary: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot for a period. Satisfies the period
// service's SnapshotInvalidator, which calls it on reopen.
func (c *SnapshotCache) Invalidate(ctx context.Context, year, month int) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, snapshotKey(year, month)).Err(); err != nil {
		return fmt.Errorf("summary: cache invalidate: %w", err)
	}
	return nil
}
