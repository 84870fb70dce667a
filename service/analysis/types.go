package analysis

import (
	"time"

	"github.com/shopspring/decimal"
)

// Buyer is one distinct early buyer of the analyzed token.
//
// Buyer order in a report is insertion order: the first processed buy trade
// for an address fixes its position and FirstSeenTradeIndex, and later
// re-appearances never reorder or overwrite it. This is a hard contract of
// the extractor, not an accident of provider ordering: a later page may
// well carry an earlier timestamp.
type Buyer struct {
	Address             string    `json:"address"`
	FirstSeen           time.Time `json:"first_seen"`
	FirstSeenTradeIndex int       `json:"first_seen_trade_index"`
}

// WalletAgeResult classifies how new a buyer's wallet is relative to the
// token creation time. AgeKnown is false when the wallet has no usable
// on-chain history; such wallets are never classified as new.
type WalletAgeResult struct {
	Address          string        `json:"address"`
	EarliestActivity *time.Time    `json:"earliest_activity,omitempty"`
	AgeKnown         bool          `json:"age_known"`
	Age              time.Duration `json:"age,omitempty"` // tokenCreation - earliestActivity, valid only when AgeKnown
	IsNewWallet      bool          `json:"is_new_wallet"`
	LookupError      string        `json:"lookup_error,omitempty"`
}

// PnLResult is the realized profit/loss of one buyer on the analyzed token,
// computed from its ordered trade ledger with FIFO lot matching.
// Oversold flags a sell that exceeded tracked open lots (pre-window holdings
// or data gaps); the unmatched portion is realized against zero cost basis
// and recorded in OversellQuantity rather than driving the open quantity
// negative.
type PnLResult struct {
	Address               string          `json:"address"`
	RealizedPnLUSD        decimal.Decimal `json:"realized_pnl_usd"`
	RemainingQuantity     decimal.Decimal `json:"remaining_quantity"`
	RemainingCostBasisUSD decimal.Decimal `json:"remaining_cost_basis_usd"`
	TradeCount            int             `json:"trade_count"`
	ExcludedTrades        int             `json:"excluded_trades"` // zero/missing price or quantity
	OversellQuantity      decimal.Decimal `json:"oversell_quantity"`
	Oversold              bool            `json:"oversold"`
	LookupError           string          `json:"lookup_error,omitempty"`
}

// InteractionEdge is one observed direct transfer between two known buyers.
// Edges are directed: a transfer A→B never implies B→A.
type InteractionEdge struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	TxHash    string          `json:"tx_hash"`
}

// LookupFailure records a per-address provider failure that was isolated
// instead of aborting a stage.
type LookupFailure struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

// StageTimings is the wall-clock duration of each pipeline stage.
type StageTimings struct {
	TokenOverview      time.Duration `json:"token_overview"`
	ExtractBuyers      time.Duration `json:"extract_buyers"`
	ClassifyWallets    time.Duration `json:"classify_wallets"`
	ComputePnL         time.Duration `json:"compute_pnl"`
	DetectInteractions time.Duration `json:"detect_interactions"`
	Total              time.Duration `json:"total"`
}

// AnalysisReport is the single output artifact of a token analysis.
// It is assembled once by the orchestrator and immutable thereafter.
type AnalysisReport struct {
	TokenAddress      string    `json:"token_address"`
	TokenSymbol       string    `json:"token_symbol,omitempty"`
	TokenCreationTime time.Time `json:"token_creation_time"`

	Buyers       []Buyer           `json:"buyers"`
	WalletAges   []WalletAgeResult `json:"wallet_ages"`
	PnL          []PnLResult       `json:"pnl"`
	Interactions []InteractionEdge `json:"interactions"`

	InteractionLookupFailures []LookupFailure `json:"interaction_lookup_failures,omitempty"`

	NewWalletCount int     `json:"new_wallet_count"`
	NewWalletPct   float64 `json:"new_wallet_pct"`

	Timings     StageTimings `json:"timings"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ProfitableBuyerCount returns the number of buyers with positive realized
// PnL on the token.
func (r *AnalysisReport) ProfitableBuyerCount() int {
	n := 0
	for _, p := range r.PnL {
		if p.RealizedPnLUSD.IsPositive() {
			n++
		}
	}
	return n
}
