package analysis

import (
	"context"
	"testing"
	"time"

	"earlyscope/service/provider"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedTradeSource serves a fixed sequence of trade pages keyed by offset.
type pagedTradeSource struct {
	pageSize int
	trades   []provider.TradeRecord
	calls    int
}

func (s *pagedTradeSource) TokenTrades(_ context.Context, q provider.TradesQuery) (*provider.TradesPage, error) {
	s.calls++
	end := q.Offset + s.pageSize
	if end > len(s.trades) {
		end = len(s.trades)
	}
	if q.Offset >= len(s.trades) {
		return &provider.TradesPage{}, nil
	}
	return &provider.TradesPage{
		Records:    s.trades[q.Offset:end],
		NextOffset: end,
		HasMore:    end < len(s.trades),
	}, nil
}

func feedTrade(wallet string, side provider.Side, usd string, ts int64) provider.TradeRecord {
	return provider.TradeRecord{
		TokenAddress:  "token",
		WalletAddress: wallet,
		Side:          side,
		Quantity:      decimal.NewFromInt(1),
		USDValue:      decimal.RequireFromString(usd),
		Timestamp:     time.Unix(ts, 0).UTC(),
	}
}

func TestExtractEarlyBuyers_DedupKeepsFirstOccurrence(t *testing.T) {
	src := &pagedTradeSource{pageSize: 10, trades: []provider.TradeRecord{
		feedTrade("alice", provider.SideBuy, "10", 100),
		feedTrade("bob", provider.SideBuy, "20", 200),
		feedTrade("alice", provider.SideBuy, "30", 300), // duplicate, ignored
		feedTrade("carol", provider.SideBuy, "40", 400),
	}}

	buyers, err := ExtractEarlyBuyers(context.Background(), src, "token", ExtractorConfig{MaxBuyers: 10}, nil)
	require.NoError(t, err)

	require.Len(t, buyers, 3)
	assert.Equal(t, "alice", buyers[0].Address)
	assert.Equal(t, "bob", buyers[1].Address)
	assert.Equal(t, "carol", buyers[2].Address)
	// First occurrence fixes the index and timestamp.
	assert.Equal(t, 0, buyers[0].FirstSeenTradeIndex)
	assert.Equal(t, time.Unix(100, 0).UTC(), buyers[0].FirstSeen)
	assert.Equal(t, 3, buyers[2].FirstSeenTradeIndex)
}

func TestExtractEarlyBuyers_SkipsSellSide(t *testing.T) {
	src := &pagedTradeSource{pageSize: 10, trades: []provider.TradeRecord{
		feedTrade("alice", provider.SideSell, "10", 100),
		feedTrade("bob", provider.SideBuy, "20", 200),
	}}

	buyers, err := ExtractEarlyBuyers(context.Background(), src, "token", ExtractorConfig{MaxBuyers: 10}, nil)
	require.NoError(t, err)

	require.Len(t, buyers, 1)
	assert.Equal(t, "bob", buyers[0].Address)
}

func TestExtractEarlyBuyers_StopsAtMaxBuyers(t *testing.T) {
	src := &pagedTradeSource{pageSize: 2, trades: []provider.TradeRecord{
		feedTrade("alice", provider.SideBuy, "10", 100),
		feedTrade("bob", provider.SideBuy, "20", 200),
		feedTrade("carol", provider.SideBuy, "30", 300),
		feedTrade("dave", provider.SideBuy, "40", 400),
	}}

	buyers, err := ExtractEarlyBuyers(context.Background(), src, "token", ExtractorConfig{
		MaxBuyers: 2,
		PageSize:  2,
	}, nil)
	require.NoError(t, err)

	assert.Len(t, buyers, 2)
	// The cap was hit on the first page, so the second was never fetched.
	assert.Equal(t, 1, src.calls)
}

func TestExtractEarlyBuyers_SizeFilterAppliedBeforeDedup(t *testing.T) {
	// alice's first trade is below the size floor; her qualifying trade
	// comes later, so that later trade defines her first-seen position.
	src := &pagedTradeSource{pageSize: 10, trades: []provider.TradeRecord{
		feedTrade("alice", provider.SideBuy, "1", 100),
		feedTrade("bob", provider.SideBuy, "50", 200),
		feedTrade("alice", provider.SideBuy, "60", 300),
	}}

	buyers, err := ExtractEarlyBuyers(context.Background(), src, "token", ExtractorConfig{
		MaxBuyers:   10,
		MinTradeUSD: decimal.RequireFromString("10"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, buyers, 2)
	assert.Equal(t, "bob", buyers[0].Address)
	assert.Equal(t, "alice", buyers[1].Address)
	assert.Equal(t, 2, buyers[1].FirstSeenTradeIndex)
}

func TestExtractEarlyBuyers_WalksPages(t *testing.T) {
	src := &pagedTradeSource{pageSize: 2, trades: []provider.TradeRecord{
		feedTrade("alice", provider.SideBuy, "10", 100),
		feedTrade("bob", provider.SideBuy, "20", 200),
		feedTrade("carol", provider.SideBuy, "30", 300),
	}}

	buyers, err := ExtractEarlyBuyers(context.Background(), src, "token", ExtractorConfig{
		MaxBuyers: 10,
		PageSize:  2,
	}, nil)
	require.NoError(t, err)

	assert.Len(t, buyers, 3)
	assert.Equal(t, 2, src.calls)
}

func TestExtractEarlyBuyers_Idempotent(t *testing.T) {
	trades := []provider.TradeRecord{
		feedTrade("alice", provider.SideBuy, "10", 100),
		feedTrade("bob", provider.SideBuy, "20", 200),
		feedTrade("alice", provider.SideBuy, "30", 300),
	}
	cfg := ExtractorConfig{MaxBuyers: 10}

	first, err := ExtractEarlyBuyers(context.Background(), &pagedTradeSource{pageSize: 10, trades: trades}, "token", cfg, nil)
	require.NoError(t, err)
	second, err := ExtractEarlyBuyers(context.Background(), &pagedTradeSource{pageSize: 10, trades: trades}, "token", cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
