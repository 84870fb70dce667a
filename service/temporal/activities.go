package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"earlyscope/service/analysis"
	"earlyscope/service/metrics"
	natspkg "earlyscope/service/nats"
)

// AnalyzeTokenInput contains the input parameters for a scheduled token analysis.
type AnalyzeTokenInput struct {
	TokenAddress       string        `json:"token_address"`
	MaxBuyers          int           `json:"max_buyers"`
	PageSize           int           `json:"page_size"`
	NewWalletThreshold time.Duration `json:"new_wallet_threshold"`
	TransferLimit      int           `json:"transfer_limit"`
	Concurrency        int           `json:"concurrency"`
	MinTradeUSD        string        `json:"min_trade_usd,omitempty"`
	MaxTradeUSD        string        `json:"max_trade_usd,omitempty"`
}

// AnalyzeTokenResult contains the summary of a completed workflow run.
type AnalyzeTokenResult struct {
	TokenAddress   string    `json:"token_address"`
	ReportID       int64     `json:"report_id"`
	BuyerCount     int       `json:"buyer_count"`
	NewWalletCount int       `json:"new_wallet_count"`
	Published      bool      `json:"published"`
	CompletedAt    time.Time `json:"completed_at"`
	Error          *string   `json:"error,omitempty"`
}

// RunAnalysisInput contains parameters for the RunAnalysis activity.
type RunAnalysisInput struct {
	TokenAddress string          `json:"token_address"`
	Config       analysis.Config `json:"config"`
}

// RunAnalysisResult contains the result of the RunAnalysis activity.
type RunAnalysisResult struct {
	Report *analysis.AnalysisReport `json:"report"`
}

// WriteReportInput contains parameters for the WriteReport activity.
type WriteReportInput struct {
	Report *analysis.AnalysisReport `json:"report"`
}

// WriteReportResult contains the result of the WriteReport activity.
type WriteReportResult struct {
	ReportID int64 `json:"report_id"`
}

// PublishReportInput contains parameters for the PublishReport activity.
type PublishReportInput struct {
	ReportID int64                    `json:"report_id"`
	Report   *analysis.AnalysisReport `json:"report"`
}

// AnalyzerInterface defines the pipeline operations needed by activities.
// This allows for easy mocking in tests.
type AnalyzerInterface interface {
	Analyze(ctx context.Context, token string, cfg analysis.Config) (*analysis.AnalysisReport, error)
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	SaveReport(ctx context.Context, report *analysis.AnalysisReport) (int64, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishReport(ctx context.Context, event *natspkg.ReportEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// All dependencies are explicit.
type Activities struct {
	analyzer  AnalyzerInterface
	store     StoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If m is nil, no metrics will be recorded.
func NewActivities(
	analyzer AnalyzerInterface,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// RunAnalysis executes the full early-buyer pipeline for one token.
// The activity is long-running; heartbeats and timeouts are configured by
// the workflow's activity options.
func (a *Activities) RunAnalysis(ctx context.Context, input RunAnalysisInput) (*RunAnalysisResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("RunAnalysis", time.Since(start).Seconds())
		}
	}()

	a.logger.InfoContext(ctx, "running token analysis",
		"token", input.TokenAddress,
		"max_buyers", input.Config.MaxBuyers,
	)

	report, err := a.analyzer.Analyze(ctx, input.TokenAddress, input.Config)
	if err != nil {
		a.logger.ErrorContext(ctx, "token analysis failed",
			"token", input.TokenAddress,
			"error", err,
		)
		return nil, fmt.Errorf("failed to analyze token %s: %w", input.TokenAddress, err)
	}

	a.logger.InfoContext(ctx, "token analysis succeeded",
		"token", input.TokenAddress,
		"buyers", len(report.Buyers),
		"new_wallets", report.NewWalletCount,
	)

	return &RunAnalysisResult{Report: report}, nil
}

// WriteReport persists a completed analysis report to the database.
func (a *Activities) WriteReport(ctx context.Context, input WriteReportInput) (*WriteReportResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("WriteReport", time.Since(start).Seconds())
		}
	}()

	if input.Report == nil {
		return nil, fmt.Errorf("report is required")
	}

	id, err := a.store.SaveReport(ctx, input.Report)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordReportWritten("error")
		}
		a.logger.ErrorContext(ctx, "failed to persist report",
			"token", input.Report.TokenAddress,
			"error", err,
		)
		return nil, fmt.Errorf("failed to persist report for %s: %w", input.Report.TokenAddress, err)
	}

	if a.metrics != nil {
		a.metrics.RecordReportWritten("success")
	}
	a.logger.InfoContext(ctx, "persisted analysis report",
		"token", input.Report.TokenAddress,
		"report_id", id,
	)

	return &WriteReportResult{ReportID: id}, nil
}

// PublishReport publishes a report event to NATS. Publishing is best-effort
// from the workflow's perspective; the report is already persisted.
func (a *Activities) PublishReport(ctx context.Context, input PublishReportInput) error {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("PublishReport", time.Since(start).Seconds())
		}
	}()

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping report event")
		return nil
	}
	if input.Report == nil {
		return fmt.Errorf("report is required")
	}

	event := natspkg.FromReport(input.ReportID, input.Report)
	if err := a.publisher.PublishReport(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish report event",
			"token", input.Report.TokenAddress,
			"report_id", input.ReportID,
			"error", err,
		)
		return fmt.Errorf("failed to publish report event: %w", err)
	}

	a.logger.DebugContext(ctx, "published report event",
		"token", input.Report.TokenAddress,
		"report_id", input.ReportID,
	)
	return nil
}
