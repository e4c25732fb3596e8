package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup precomputes the monthly summary snapshot for a
	// freshly closed period.
	TaskSummaryWarmup = "summary:warmup"
)

// SummaryWarmupPayload identifies the period to precompute.
type SummaryWarmupPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewSummaryWarmupTask constructs an Asynq task for a period warmup.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueSummaryWarmup schedules a snapshot precompute for the period.
// It satisfies the enqueuer the period close flow depends on.
func (c *Client) EnqueueSummaryWarmup(ctx context.Context, year, month int) error {
	task, err := NewSummaryWarmupTask(SummaryWarmupPayload{Year: year, Month: month})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
