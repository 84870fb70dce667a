package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"earlyscope/service/provider"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory ProviderSource for orchestrator tests.
type fakeProvider struct {
	overview    *provider.TokenOverview
	overviewErr error

	feed *pagedTradeSource

	ledgers     map[string][]provider.TradeRecord
	ledgerErr   map[string]error
	transfers   map[string][]provider.Transfer
	transferErr map[string]error
}

func (f *fakeProvider) TokenOverview(_ context.Context, _ string) (*provider.TokenOverview, error) {
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	return f.overview, nil
}

func (f *fakeProvider) TokenTrades(ctx context.Context, q provider.TradesQuery) (*provider.TradesPage, error) {
	return f.feed.TokenTrades(ctx, q)
}

func (f *fakeProvider) WalletTokenTrades(_ context.Context, wallet, _ string) ([]provider.TradeRecord, error) {
	if err, ok := f.ledgerErr[wallet]; ok {
		return nil, err
	}
	return f.ledgers[wallet], nil
}

func (f *fakeProvider) WalletTransfers(_ context.Context, address string, _ int) ([]provider.Transfer, error) {
	if err, ok := f.transferErr[address]; ok {
		return nil, err
	}
	return f.transfers[address], nil
}

func testConfig() Config {
	return Config{
		MaxBuyers:          10,
		NewWalletThreshold: 7 * 24 * time.Hour,
		Concurrency:        2,
	}
}

func newFakeProvider(creation time.Time) *fakeProvider {
	return &fakeProvider{
		overview: &provider.TokenOverview{
			Address:   testAddr,
			Symbol:    "EARLY",
			CreatedAt: creation,
		},
		feed: &pagedTradeSource{pageSize: 10, trades: []provider.TradeRecord{
			feedTrade("alice", provider.SideBuy, "10", 100),
			feedTrade("bob", provider.SideBuy, "20", 200),
		}},
		ledgers: map[string][]provider.TradeRecord{
			"alice": {
				trade(provider.SideBuy, "10", "10", 100),
				trade(provider.SideSell, "10", "30", 200),
			},
			"bob": {
				trade(provider.SideBuy, "5", "10", 150),
			},
		},
		transfers: map[string][]provider.Transfer{
			"alice": {transfer("alice", "bob", "tx1", 250)},
		},
	}
}

func TestAnalyzer_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		mutate func(*Config)
		field  string
	}{
		{
			name:  "invalid token address",
			token: "not-base58!",
			field: "token",
		},
		{
			name:   "non-positive max buyers",
			token:  testAddr,
			mutate: func(c *Config) { c.MaxBuyers = 0 },
			field:  "max_buyers",
		},
		{
			name:   "non-positive threshold",
			token:  testAddr,
			mutate: func(c *Config) { c.NewWalletThreshold = 0 },
			field:  "new_wallet_threshold",
		},
		{
			name:  "min trade size above max",
			token: testAddr,
			mutate: func(c *Config) {
				c.MinTradeUSD = decimal.RequireFromString("100")
				c.MaxTradeUSD = decimal.RequireFromString("10")
			},
			field: "trade_size",
		},
		{
			name:   "unknown sort order",
			token:  testAddr,
			mutate: func(c *Config) { c.SortOrder = "sideways" },
			field:  "sort_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := newFakeProvider(time.Now())
			a := NewAnalyzer(prov, &mockActivitySource{}, nil, nil)

			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			report, err := a.Analyze(context.Background(), tt.token, cfg)
			require.Error(t, err)
			assert.Nil(t, report, "no provider call should happen on config errors")

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			// No network work was done.
			assert.Equal(t, 0, prov.feed.calls)
		})
	}
}

func TestAnalyzer_FullPipeline(t *testing.T) {
	creation := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	prov := newFakeProvider(creation)
	activity := &mockActivitySource{
		earliest: map[string]time.Time{
			"alice": creation.Add(-2 * 24 * time.Hour),  // new
			"bob":   creation.Add(-30 * 24 * time.Hour), // aged
		},
	}

	a := NewAnalyzer(prov, activity, nil, nil)
	report, err := a.Analyze(context.Background(), testAddr, testConfig())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, testAddr, report.TokenAddress)
	assert.Equal(t, "EARLY", report.TokenSymbol)
	assert.Equal(t, creation, report.TokenCreationTime)

	require.Len(t, report.Buyers, 2)
	assert.Equal(t, "alice", report.Buyers[0].Address)

	require.Len(t, report.WalletAges, 2)
	assert.True(t, report.WalletAges[0].IsNewWallet)
	assert.False(t, report.WalletAges[1].IsNewWallet)
	assert.Equal(t, 1, report.NewWalletCount)
	assert.InDelta(t, 50.0, report.NewWalletPct, 0.01)

	require.Len(t, report.PnL, 2)
	// alice: bought 10 @ $1, sold 10 @ $3 -> +20 realized.
	assert.True(t, decimal.RequireFromString("20").Equal(report.PnL[0].RealizedPnLUSD))
	// bob still holds his lot.
	assert.True(t, decimal.RequireFromString("5").Equal(report.PnL[1].RemainingQuantity))
	assert.Equal(t, 1, report.ProfitableBuyerCount())

	require.Len(t, report.Interactions, 1)
	assert.Equal(t, "alice", report.Interactions[0].From)
	assert.Equal(t, "bob", report.Interactions[0].To)

	assert.False(t, report.GeneratedAt.IsZero())
	assert.Greater(t, report.Timings.Total, time.Duration(0))
}

func TestAnalyzer_OverviewFailureReturnsStageError(t *testing.T) {
	prov := newFakeProvider(time.Now())
	prov.overviewErr = errors.New("boom")

	a := NewAnalyzer(prov, &mockActivitySource{}, nil, nil)
	report, err := a.Analyze(context.Background(), testAddr, testConfig())

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTokenOverview, stageErr.Stage)
	// The partial report is still returned.
	require.NotNil(t, report)
	assert.Equal(t, testAddr, report.TokenAddress)
}

func TestAnalyzer_ProviderUnavailableFailsPnLStage(t *testing.T) {
	creation := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	prov := newFakeProvider(creation)
	prov.ledgerErr = map[string]error{
		"bob": &provider.ProviderUnavailableError{
			Resource: "/trader/txs",
			Attempts: 5,
			Err:      errors.New("rate limited"),
		},
	}
	activity := &mockActivitySource{
		earliest: map[string]time.Time{
			"alice": creation.Add(-time.Hour),
			"bob":   creation.Add(-time.Hour),
		},
	}

	// Serialize lookups so alice's ledger is fully computed before bob's
	// failure aborts the stage.
	cfg := testConfig()
	cfg.Concurrency = 1

	a := NewAnalyzer(prov, activity, nil, nil)
	report, err := a.Analyze(context.Background(), testAddr, cfg)

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageComputePnL, stageErr.Stage)

	var unavailable *provider.ProviderUnavailableError
	assert.ErrorAs(t, err, &unavailable)

	// Results from stages that finished survive on the partial report.
	require.NotNil(t, report)
	assert.Len(t, report.Buyers, 2)

	// Per-buyer PnL computed before the abort survives too.
	require.Len(t, report.PnL, 2)
	assert.Equal(t, "alice", report.PnL[0].Address)
	assert.True(t, decimal.RequireFromString("20").Equal(report.PnL[0].RealizedPnLUSD))
	assert.Empty(t, report.PnL[1].Address, "bob's ledger never completed")
}

func TestAnalyzer_ProviderUnavailableFailsInteractionStage(t *testing.T) {
	creation := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	prov := newFakeProvider(creation)
	prov.transferErr = map[string]error{
		"alice": &provider.ProviderUnavailableError{
			Resource: "/wallet/transfers",
			Attempts: 5,
			Err:      errors.New("rate limited"),
		},
	}
	activity := &mockActivitySource{
		earliest: map[string]time.Time{
			"alice": creation.Add(-time.Hour),
			"bob":   creation.Add(-time.Hour),
		},
	}

	a := NewAnalyzer(prov, activity, nil, nil)
	report, err := a.Analyze(context.Background(), testAddr, testConfig())

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDetectInteractions, stageErr.Stage)

	var unavailable *provider.ProviderUnavailableError
	assert.ErrorAs(t, err, &unavailable)

	require.NotNil(t, report)
	assert.Len(t, report.Buyers, 2)
	assert.Empty(t, report.Interactions)
}

func TestAnalyzer_LedgerFailureIsolatedPerBuyer(t *testing.T) {
	creation := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	prov := newFakeProvider(creation)
	prov.ledgerErr = map[string]error{"bob": errors.New("decode failure")}
	activity := &mockActivitySource{
		earliest: map[string]time.Time{
			"alice": creation.Add(-time.Hour),
			"bob":   creation.Add(-time.Hour),
		},
	}

	a := NewAnalyzer(prov, activity, nil, nil)
	report, err := a.Analyze(context.Background(), testAddr, testConfig())
	require.NoError(t, err)

	require.Len(t, report.PnL, 2)
	assert.Empty(t, report.PnL[0].LookupError)
	assert.Equal(t, "decode failure", report.PnL[1].LookupError)
}
