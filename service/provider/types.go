package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade from the wallet's perspective.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SortOrder controls the order in which trade pages are fetched.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TradeRecord is a single swap reported by the trade provider.
// Records are immutable once fetched. Page ordering by timestamp is
// requested but not guaranteed; consumers must tolerate out-of-order pages.
type TradeRecord struct {
	TokenAddress  string          `json:"token_address"`
	WalletAddress string          `json:"wallet_address"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	USDValue      decimal.Decimal `json:"usd_value"`
	Timestamp     time.Time       `json:"timestamp"`
	TxHash        string          `json:"tx_hash"`
}

// Transfer is a direct wallet-to-wallet token movement.
type Transfer struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	TxHash    string          `json:"tx_hash"`
}

// TokenOverview is the provider's summary of a token, of which we only
// care about the creation time.
type TokenOverview struct {
	Address   string    `json:"address"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TradesQuery describes one page request against the token trade feed.
type TradesQuery struct {
	Token     string
	Offset    int
	Limit     int
	SortOrder SortOrder

	// Optional USD trade-size bounds. Zero means unset.
	MinUSD decimal.Decimal
	MaxUSD decimal.Decimal
}

// TradesPage is one page of trade records plus the cursor state needed to
// fetch the next page.
type TradesPage struct {
	Records    []TradeRecord
	NextOffset int
	HasMore    bool
}
