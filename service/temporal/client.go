package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// CreateTokenSchedule creates a new Temporal schedule that re-analyzes a
// token on the given interval.
func (c *Client) CreateTokenSchedule(ctx context.Context, input AnalyzeTokenInput, interval time.Duration) error {
	id := scheduleID(input.TokenAddress)

	c.logger.Debug("creating token analysis schedule",
		"token", input.TokenAddress,
		"schedule_id", id,
		"interval", interval,
	)

	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{Every: interval},
		},
	}

	workflowAction := client.ScheduleWorkflowAction{
		ID:        fmt.Sprintf("analyze-token-%s", input.TokenAddress),
		Workflow:  "AnalyzeTokenWorkflow",
		TaskQueue: c.taskQueue,
		Args:      []interface{}{input},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:     id,
		Spec:   scheduleSpec,
		Action: &workflowAction,
		Memo: map[string]interface{}{
			"token_address": input.TokenAddress,
			"max_buyers":    input.MaxBuyers,
			"created_by":    "earlyscope",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"token", input.TokenAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("token analysis schedule created",
		"token", input.TokenAddress,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// UpsertTokenSchedule creates or updates a token's analysis schedule. If the
// schedule already exists, only the interval is updated.
func (c *Client) UpsertTokenSchedule(ctx context.Context, input AnalyzeTokenInput, interval time.Duration) error {
	id := scheduleID(input.TokenAddress)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	_, err := handle.Describe(ctx)
	if err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.CreateTokenSchedule(ctx, input, interval)
	}

	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(u client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			u.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &u.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"token", input.TokenAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("token analysis schedule updated",
		"token", input.TokenAddress,
		"schedule_id", id,
		"interval", interval,
	)

	return nil
}

// DeleteTokenSchedule deletes the analysis schedule for a token.
func (c *Client) DeleteTokenSchedule(ctx context.Context, tokenAddress string) error {
	id := scheduleID(tokenAddress)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"token", tokenAddress,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("token analysis schedule deleted",
		"token", tokenAddress,
		"schedule_id", id,
	)

	return nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow
// operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// scheduleID generates the Temporal schedule ID for a token.
func scheduleID(tokenAddress string) string {
	return "analyze-token-" + tokenAddress
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
