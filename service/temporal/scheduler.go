package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for recurring token analyses.
// Each observed token gets its own schedule that triggers the
// AnalyzeTokenWorkflow.
type Scheduler interface {
	// CreateTokenSchedule creates a new schedule that re-analyzes a token
	// on the given interval.
	CreateTokenSchedule(ctx context.Context, input AnalyzeTokenInput, interval time.Duration) error

	// UpsertTokenSchedule creates the schedule or updates its interval.
	UpsertTokenSchedule(ctx context.Context, input AnalyzeTokenInput, interval time.Duration) error

	// DeleteTokenSchedule removes a token's analysis schedule.
	DeleteTokenSchedule(ctx context.Context, tokenAddress string) error
}
