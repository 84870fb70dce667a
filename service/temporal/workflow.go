package temporal

import (
	"fmt"
	"time"

	"earlyscope/service/analysis"

	"github.com/shopspring/decimal"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// AnalyzeTokenWorkflow runs the early-buyer analysis pipeline for one token.
// It is started directly (ad hoc analyses) or triggered by a Temporal
// schedule for tokens under recurring observation.
//
// The workflow performs these steps:
// 1. Run the analysis pipeline against the provider and Solana RPC (RunAnalysis)
// 2. Persist the report to Postgres (WriteReport)
// 3. Publish a report event to NATS (PublishReport, best-effort)
func AnalyzeTokenWorkflow(ctx workflow.Context, input AnalyzeTokenInput) (*AnalyzeTokenResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("AnalyzeTokenWorkflow started", "token", input.TokenAddress)

	result := &AnalyzeTokenResult{
		TokenAddress: input.TokenAddress,
	}

	cfg, err := analysisConfig(input)
	if err != nil {
		errMsg := err.Error()
		result.Error = &errMsg
		return result, err
	}

	// The analysis stage holds the bulk of the runtime: it pages the
	// provider under a rate limit, so generous timeouts are intentional.
	// Config errors are terminal, never retried.
	analysisCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"ConfigError"},
		},
	})

	var analysisResult *RunAnalysisResult
	err = workflow.ExecuteActivity(analysisCtx, a.RunAnalysis, RunAnalysisInput{
		TokenAddress: input.TokenAddress,
		Config:       cfg,
	}).Get(ctx, &analysisResult)
	if err != nil {
		logger.Error("analysis failed", "token", input.TokenAddress, "error", err)
		errMsg := fmt.Sprintf("failed to analyze token: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to analyze token: %w", err)
	}

	result.BuyerCount = len(analysisResult.Report.Buyers)
	result.NewWalletCount = analysisResult.Report.NewWalletCount

	logger.Info("analysis completed",
		"token", input.TokenAddress,
		"buyers", result.BuyerCount,
		"new_wallets", result.NewWalletCount,
	)

	// Persistence and publishing are quick; tighter options.
	storageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	var writeResult *WriteReportResult
	err = workflow.ExecuteActivity(storageCtx, a.WriteReport, WriteReportInput{
		Report: analysisResult.Report,
	}).Get(ctx, &writeResult)
	if err != nil {
		logger.Error("failed to persist report", "token", input.TokenAddress, "error", err)
		errMsg := fmt.Sprintf("failed to persist report: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to persist report: %w", err)
	}
	result.ReportID = writeResult.ReportID

	// Publish is best-effort: the report is durable, a missed event only
	// delays downstream consumers until the next run.
	err = workflow.ExecuteActivity(storageCtx, a.PublishReport, PublishReportInput{
		ReportID: writeResult.ReportID,
		Report:   analysisResult.Report,
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("failed to publish report event",
			"token", input.TokenAddress,
			"report_id", writeResult.ReportID,
			"error", err,
		)
	} else {
		result.Published = true
	}

	result.CompletedAt = workflow.Now(ctx)

	logger.Info("AnalyzeTokenWorkflow completed",
		"token", input.TokenAddress,
		"report_id", result.ReportID,
		"buyers", result.BuyerCount,
		"published", result.Published,
	)

	return result, nil
}

// analysisConfig converts workflow input into pipeline configuration.
func analysisConfig(input AnalyzeTokenInput) (analysis.Config, error) {
	cfg := analysis.Config{
		MaxBuyers:          input.MaxBuyers,
		PageSize:           input.PageSize,
		NewWalletThreshold: input.NewWalletThreshold,
		TransferLimit:      input.TransferLimit,
		Concurrency:        input.Concurrency,
	}
	if input.MinTradeUSD != "" {
		min, err := decimal.NewFromString(input.MinTradeUSD)
		if err != nil {
			return cfg, fmt.Errorf("invalid min_trade_usd %q: %w", input.MinTradeUSD, err)
		}
		cfg.MinTradeUSD = min
	}
	if input.MaxTradeUSD != "" {
		max, err := decimal.NewFromString(input.MaxTradeUSD)
		if err != nil {
			return cfg, fmt.Errorf("invalid max_trade_usd %q: %w", input.MaxTradeUSD, err)
		}
		cfg.MaxTradeUSD = max
	}
	return cfg, nil
}
