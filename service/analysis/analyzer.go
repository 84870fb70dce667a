package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"earlyscope/service/metrics"
	"earlyscope/service/provider"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// OverviewSource fetches the provider's token summary.
type OverviewSource interface {
	TokenOverview(ctx context.Context, token string) (*provider.TokenOverview, error)
}

// LedgerSource fetches a wallet's full trade ledger for one token.
type LedgerSource interface {
	WalletTokenTrades(ctx context.Context, wallet, token string) ([]provider.TradeRecord, error)
}

// ProviderSource is the full provider surface the analyzer needs. The
// concrete *provider.Client satisfies it; tests inject fakes.
type ProviderSource interface {
	OverviewSource
	TradeSource
	LedgerSource
	TransferSource
}

// Config are the per-run analysis parameters.
type Config struct {
	MaxBuyers          int
	PageSize           int
	MaxPages           int
	SortOrder          provider.SortOrder
	MinTradeUSD        decimal.Decimal
	MaxTradeUSD        decimal.Decimal
	NewWalletThreshold time.Duration
	TransferLimit      int
	Concurrency        int
}

// Validate checks the configuration and the token address before any
// network call is made.
func (c Config) Validate(token string) error {
	if _, err := solanago.PublicKeyFromBase58(token); err != nil {
		return &ConfigError{Field: "token", Reason: "not a valid base58 address"}
	}
	if c.MaxBuyers <= 0 {
		return &ConfigError{Field: "max_buyers", Reason: "must be positive"}
	}
	if c.NewWalletThreshold <= 0 {
		return &ConfigError{Field: "new_wallet_threshold", Reason: "must be positive"}
	}
	if !c.MinTradeUSD.IsZero() && !c.MaxTradeUSD.IsZero() && c.MinTradeUSD.GreaterThan(c.MaxTradeUSD) {
		return &ConfigError{Field: "trade_size", Reason: "min exceeds max"}
	}
	switch c.SortOrder {
	case "", provider.SortAsc, provider.SortDesc:
	default:
		return &ConfigError{Field: "sort_order", Reason: "must be asc or desc"}
	}
	return nil
}

// Analyzer sequences the early-buyer pipeline for a single token:
// token overview, buyer extraction, then wallet-age classification, PnL
// computation and interaction detection over the frozen buyer list.
type Analyzer struct {
	prov     ProviderSource
	activity ActivitySource
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer. If m is nil, no metrics are recorded.
func NewAnalyzer(prov ProviderSource, activity ActivitySource, m *metrics.Metrics, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		prov:     prov,
		activity: activity,
		metrics:  m,
		logger:   logger.With("component", "analyzer"),
	}
}

// Analyze runs the full pipeline for one token.
//
// The classify / pnl / interactions stages run concurrently: they share only
// the read-only buyer list and write disjoint report fields. If a stage
// fails unrecoverably the sibling stages are canceled, and the report
// assembled so far is returned together with a *StageError identifying the
// failing stage. Completed partial results are never discarded.
func (a *Analyzer) Analyze(ctx context.Context, token string, cfg Config) (*AnalysisReport, error) {
	if err := cfg.Validate(token); err != nil {
		return nil, err
	}

	started := time.Now()
	report := &AnalysisReport{TokenAddress: token}

	a.logger.InfoContext(ctx, "starting token analysis",
		"token", token,
		"max_buyers", cfg.MaxBuyers,
	)

	// Stage: token overview.
	stageStart := time.Now()
	overview, err := a.prov.TokenOverview(ctx, token)
	report.Timings.TokenOverview = time.Since(stageStart)
	a.recordStage(StageTokenOverview, report.Timings.TokenOverview)
	if err != nil {
		return a.fail(ctx, report, started, StageTokenOverview, err)
	}
	report.TokenSymbol = overview.Symbol
	report.TokenCreationTime = overview.CreatedAt

	// Stage: early-buyer extraction.
	stageStart = time.Now()
	buyers, err := ExtractEarlyBuyers(ctx, a.prov, token, ExtractorConfig{
		MaxBuyers:   cfg.MaxBuyers,
		PageSize:    cfg.PageSize,
		MaxPages:    cfg.MaxPages,
		SortOrder:   cfg.SortOrder,
		MinTradeUSD: cfg.MinTradeUSD,
		MaxTradeUSD: cfg.MaxTradeUSD,
	}, a.logger)
	report.Timings.ExtractBuyers = time.Since(stageStart)
	a.recordStage(StageExtractBuyers, report.Timings.ExtractBuyers)
	if err != nil {
		return a.fail(ctx, report, started, StageExtractBuyers, err)
	}
	report.Buyers = buyers
	if a.metrics != nil {
		a.metrics.RecordBuyersExtracted(token, float64(len(buyers)))
	}

	a.logger.InfoContext(ctx, "extracted early buyers",
		"token", token,
		"count", len(buyers),
	)

	// Stages: classification, PnL and interactions run concurrently over
	// the frozen buyer list. A failing stage cancels its siblings through
	// the group context so a doomed run stops burning rate-limit budget.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		report.WalletAges = ClassifyWalletAges(gctx, a.activity, buyers, report.TokenCreationTime, ClassifierConfig{
			NewWalletThreshold: cfg.NewWalletThreshold,
			Concurrency:        cfg.Concurrency,
		}, a.logger)
		report.Timings.ClassifyWallets = time.Since(start)
		a.recordStage(StageClassifyWallets, report.Timings.ClassifyWallets)
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		results, err := a.computePnLStage(gctx, token, buyers, cfg)
		report.Timings.ComputePnL = time.Since(start)
		a.recordStage(StageComputePnL, report.Timings.ComputePnL)
		// Per-buyer results computed before a failure stay on the report.
		report.PnL = results
		if err != nil {
			return &StageError{Stage: StageComputePnL, Err: err}
		}
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		edges, failures, err := DetectInteractions(gctx, a.prov, buyers, DetectorConfig{
			TransferLimit: cfg.TransferLimit,
			Concurrency:   cfg.Concurrency,
		}, a.logger)
		report.Timings.DetectInteractions = time.Since(start)
		a.recordStage(StageDetectInteractions, report.Timings.DetectInteractions)
		report.Interactions = edges
		report.InteractionLookupFailures = failures
		if err != nil {
			return &StageError{Stage: StageDetectInteractions, Err: err}
		}
		return nil
	})

	err = g.Wait()

	report.NewWalletCount, report.NewWalletPct = newWalletStats(report.WalletAges)

	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			return a.fail(ctx, report, started, stageErr.Stage, stageErr.Err)
		}
		return a.fail(ctx, report, started, StageComputePnL, err)
	}

	report.Timings.Total = time.Since(started)
	report.GeneratedAt = time.Now().UTC()
	if a.metrics != nil {
		a.metrics.RecordAnalysis("success")
	}

	a.logger.InfoContext(ctx, "token analysis complete",
		"token", token,
		"buyers", len(report.Buyers),
		"new_wallets", report.NewWalletCount,
		"interactions", len(report.Interactions),
		"duration", report.Timings.Total,
	)

	return report, nil
}

// computePnLStage fetches each buyer's token ledger and runs the FIFO
// engine. Per-buyer ledger fetch failures are isolated onto the result;
// the stage itself fails only when the provider is declared unavailable,
// since every remaining lookup would fail the same way.
func (a *Analyzer) computePnLStage(ctx context.Context, token string, buyers []Buyer, cfg Config) ([]PnLResult, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]PnLResult, len(buyers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, buyer := range buyers {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			trades, err := a.prov.WalletTokenTrades(gctx, buyer.Address, token)
			if err != nil {
				var unavailable *provider.ProviderUnavailableError
				if errors.As(err, &unavailable) {
					return err
				}
				a.logger.WarnContext(gctx, "ledger fetch failed",
					"address", buyer.Address,
					"error", err,
				)
				results[i] = PnLResult{Address: buyer.Address, LookupError: err.Error()}
				return nil
			}
			results[i] = ComputePnL(buyer.Address, trades)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (a *Analyzer) fail(ctx context.Context, report *AnalysisReport, started time.Time, stage string, err error) (*AnalysisReport, error) {
	report.Timings.Total = time.Since(started)
	report.GeneratedAt = time.Now().UTC()
	if a.metrics != nil {
		a.metrics.RecordAnalysis("failed")
	}
	a.logger.ErrorContext(ctx, "token analysis failed",
		"token", report.TokenAddress,
		"stage", stage,
		"error", err,
	)
	return report, &StageError{Stage: stage, Err: err}
}

func (a *Analyzer) recordStage(stage string, d time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordStageDuration(stage, d.Seconds())
	}
}

func newWalletStats(ages []WalletAgeResult) (int, float64) {
	if len(ages) == 0 {
		return 0, 0
	}
	n := 0
	for _, r := range ages {
		if r.IsNewWallet {
			n++
		}
	}
	return n, float64(n) / float64(len(ages)) * 100
}
