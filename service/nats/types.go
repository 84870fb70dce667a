package nats

import (
	"time"

	"earlyscope/service/analysis"
)

// ReportEvent is the summary of a completed token analysis published to NATS.
// It is published to the subject "reports.{token_address}" in JetStream.
// Downstream consumers fetch the full report from the database by ReportID.
type ReportEvent struct {
	// Report identifiers
	ReportID     int64  `json:"report_id"`
	TokenAddress string `json:"token_address"`
	TokenSymbol  string `json:"token_symbol,omitempty"`

	// Headline results
	BuyerCount           int     `json:"buyer_count"`
	NewWalletCount       int     `json:"new_wallet_count"`
	NewWalletPct         float64 `json:"new_wallet_pct"`
	ProfitableBuyerCount int     `json:"profitable_buyer_count"`
	InteractionCount     int     `json:"interaction_count"`

	// Timing information
	GeneratedAt time.Time `json:"generated_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromReport converts a persisted analysis report to a ReportEvent for publishing.
func FromReport(reportID int64, report *analysis.AnalysisReport) *ReportEvent {
	return &ReportEvent{
		ReportID:             reportID,
		TokenAddress:         report.TokenAddress,
		TokenSymbol:          report.TokenSymbol,
		BuyerCount:           len(report.Buyers),
		NewWalletCount:       report.NewWalletCount,
		NewWalletPct:         report.NewWalletPct,
		ProfitableBuyerCount: report.ProfitableBuyerCount(),
		InteractionCount:     len(report.Interactions),
		GeneratedAt:          report.GeneratedAt,
		PublishedAt:          time.Now().UTC(),
	}
}
