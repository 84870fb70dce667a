package db

import (
	"context"
	"testing"
	"time"

	"earlyscope/service/analysis"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(token string) *analysis.AnalysisReport {
	created := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	return &analysis.AnalysisReport{
		TokenAddress:      token,
		TokenSymbol:       "EARLY",
		TokenCreationTime: created,
		Buyers: []analysis.Buyer{
			{Address: "alice", FirstSeen: created.Add(time.Minute), FirstSeenTradeIndex: 0},
			{Address: "bob", FirstSeen: created.Add(2 * time.Minute), FirstSeenTradeIndex: 1},
		},
		PnL: []analysis.PnLResult{
			{Address: "alice", RealizedPnLUSD: decimal.RequireFromString("16")},
		},
		NewWalletCount: 1,
		NewWalletPct:   50,
		GeneratedAt:    time.Now().UTC(),
	}
}

func TestSaveAndGetReport(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	id, err := store.SaveReport(ctx, sampleReport("tokA"))
	require.NoError(t, err)
	require.NotZero(t, id)

	rec, err := store.GetReport(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "tokA", rec.TokenAddress)
	assert.Equal(t, 2, rec.BuyerCount)
	assert.Equal(t, 1, rec.NewWalletCount)
	require.NotNil(t, rec.Report)
	assert.Equal(t, "EARLY", rec.Report.TokenSymbol)
	require.Len(t, rec.Report.PnL, 1)
	assert.True(t, decimal.RequireFromString("16").Equal(rec.Report.PnL[0].RealizedPnLUSD))
}

func TestGetLatestReport(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	first := sampleReport("tokB")
	_, err := store.SaveReport(ctx, first)
	require.NoError(t, err)

	second := sampleReport("tokB")
	second.NewWalletCount = 2
	_, err = store.SaveReport(ctx, second)
	require.NoError(t, err)

	rec, err := store.GetLatestReport(ctx, "tokB")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.NewWalletCount)
}

func TestGetReport_NotFound(t *testing.T) {
	store := NewTestStore(t)

	_, err := store.GetReport(context.Background(), 999999999)
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = store.GetLatestReport(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestListReports(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.SaveReport(ctx, sampleReport("tokC"))
		require.NoError(t, err)
	}
	_, err := store.SaveReport(ctx, sampleReport("tokD"))
	require.NoError(t, err)

	records, err := store.ListReports(ctx, "tokC", 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rest, err := store.ListReports(ctx, "tokC", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestDeleteReportsOlderThan(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	_, err := store.SaveReport(ctx, sampleReport("tokE"))
	require.NoError(t, err)

	deleted, err := store.DeleteReportsOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	_, err = store.GetLatestReport(ctx, "tokE")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
