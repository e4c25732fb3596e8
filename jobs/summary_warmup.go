package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-books/meridian-books/internal/jobs"
	"github.com/meridian-books/meridian-books/internal/periods"
	"github.com/meridian-books/meridian-books/internal/summary"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SummaryWarmupJob precomputes the monthly summary snapshot so the
// first read after a period close never pays the cold-build cost.
type SummaryWarmupJob struct {
	Summary *summary.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(summarySvc *summary.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Summary: summarySvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes summary warmup tasks. A payload naming an invalid
// period is dropped instead of retried.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Summary == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Year == 0 && payload.Month == 0 {
		payload.Year, payload.Month = previousMonth(j.now())
	}

	tracker := j.metrics().Track(TaskSummaryWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("year", payload.Year), slog.Int("month", payload.Month))
	logger.Info("starting summary warmup")

	if _, err := j.Summary.Compute(ctx, payload.Year, payload.Month); err != nil {
		if errors.Is(err, periods.ErrInvalidPeriod) {
			logger.Warn("dropping warmup for invalid period")
			return asynq.SkipRetry
		}
		resultErr = err
		logger.Error("compute summary", slog.Any("error", err))
		return resultErr
	}
	logger.Info("summary warmup complete")
	return resultErr
}

func (j *SummaryWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *SummaryWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// previousMonth resolves the period the nightly cron warms: the month
// before the reference time.
func previousMonth(ref time.Time) (int, int) {
	prev := ref.AddDate(0, 0, -ref.Day())
	return prev.Year(), int(prev.Month())
}
