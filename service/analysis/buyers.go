package analysis

import (
	"context"
	"log/slog"

	"earlyscope/service/provider"

	"github.com/shopspring/decimal"
)

// TradeSource pages through a token's trade feed.
type TradeSource interface {
	TokenTrades(ctx context.Context, query provider.TradesQuery) (*provider.TradesPage, error)
}

// ExtractorConfig controls early-buyer extraction.
type ExtractorConfig struct {
	MaxBuyers int
	PageSize  int
	MaxPages  int // safety bound on pagination; 0 means the default
	SortOrder provider.SortOrder

	// USD trade-size bounds applied before dedup. Zero means unset.
	MinTradeUSD decimal.Decimal
	MaxTradeUSD decimal.Decimal
}

const defaultMaxPages = 200

// ExtractEarlyBuyers pages through the token's trades and collects the first
// MaxBuyers distinct buy-side wallet addresses.
//
// The buyer set is insertion-ordered: the page position at which an address
// first appears fixes its FirstSeenTradeIndex and output order, and later
// occurrences of the same address are ignored. SortOrder affects fetch order
// only; first-seen is defined by processing order because provider
// timestamps across pages are not reliable enough to re-sort on.
//
// Extraction stops as soon as MaxBuyers distinct addresses are collected or
// the provider reports no more pages; deliberate cost control, not an
// error.
func ExtractEarlyBuyers(ctx context.Context, src TradeSource, token string, cfg ExtractorConfig, logger *slog.Logger) ([]Buyer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	seen := make(map[string]struct{}, cfg.MaxBuyers)
	buyers := make([]Buyer, 0, cfg.MaxBuyers)

	offset := 0
	tradeIndex := 0
	for page := 0; page < maxPages; page++ {
		tradesPage, err := src.TokenTrades(ctx, provider.TradesQuery{
			Token:     token,
			Offset:    offset,
			Limit:     pageSize,
			SortOrder: cfg.SortOrder,
			MinUSD:    cfg.MinTradeUSD,
			MaxUSD:    cfg.MaxTradeUSD,
		})
		if err != nil {
			return nil, err
		}

		for _, trade := range tradesPage.Records {
			idx := tradeIndex
			tradeIndex++

			if trade.Side != provider.SideBuy {
				continue
			}
			if !tradeSizeOK(trade.USDValue, cfg.MinTradeUSD, cfg.MaxTradeUSD) {
				continue
			}
			if trade.WalletAddress == "" {
				continue
			}
			if _, ok := seen[trade.WalletAddress]; ok {
				continue
			}

			seen[trade.WalletAddress] = struct{}{}
			buyers = append(buyers, Buyer{
				Address:             trade.WalletAddress,
				FirstSeen:           trade.Timestamp,
				FirstSeenTradeIndex: idx,
			})
			if len(buyers) >= cfg.MaxBuyers {
				logger.DebugContext(ctx, "buyer cap reached, stopping extraction",
					"token", token,
					"buyers", len(buyers),
					"trades_processed", tradeIndex,
				)
				return buyers, nil
			}
		}

		if !tradesPage.HasMore {
			break
		}
		offset = tradesPage.NextOffset
	}

	logger.DebugContext(ctx, "extracted early buyers",
		"token", token,
		"buyers", len(buyers),
		"trades_processed", tradeIndex,
	)
	return buyers, nil
}

// tradeSizeOK applies the USD size filter. The provider is asked to filter
// server-side too, but the bound is re-checked here so the dedup invariant
// does not depend on provider behavior.
func tradeSizeOK(usd, min, max decimal.Decimal) bool {
	if !min.IsZero() && usd.LessThan(min) {
		return false
	}
	if !max.IsZero() && usd.GreaterThan(max) {
		return false
	}
	return true
}
