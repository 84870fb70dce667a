package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Options{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000, // no throttling in tests unless a test says so
		Burst:             1000,
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
	return client, srv
}

func TestTokenOverview(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/token-overview", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "solana", r.Header.Get("x-chain"))
		assert.Equal(t, "tok", r.URL.Query().Get("address"))
		fmt.Fprint(w, `{"success":true,"data":{"address":"tok","symbol":"EARLY","name":"Early Token","created_at":1718409600}}`)
	})

	overview, err := client.TokenOverview(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, "EARLY", overview.Symbol)
	assert.Equal(t, time.Unix(1718409600, 0).UTC(), overview.CreatedAt)
}

func TestTokenTrades_Pagination(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/defi/txs/token", r.URL.Path)
		assert.Equal(t, "swap", r.URL.Query().Get("tx_type"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort_type"))

		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"success":true,"data":{"has_next":true,"items":[
				{"tx_hash":"tx1","owner":"alice","side":"buy","ui_amount":10,"volume_usd":25.5,"block_unix_time":1718409700},
				{"tx_hash":"tx2","owner":"bob","side":"sell","ui_amount":4,"volume_usd":11,"block_unix_time":1718409800}
			]}}`)
		case "2":
			fmt.Fprint(w, `{"success":true,"data":{"has_next":false,"items":[
				{"tx_hash":"tx3","owner":"carol","side":"buy","ui_amount":1,"volume_usd":3,"block_unix_time":1718409900}
			]}}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	page1, err := client.TokenTrades(context.Background(), TradesQuery{Token: "tok", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Records, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, 2, page1.NextOffset)
	assert.Equal(t, "alice", page1.Records[0].WalletAddress)
	assert.Equal(t, SideBuy, page1.Records[0].Side)
	assert.Equal(t, "25.5", page1.Records[0].USDValue.String())

	page2, err := client.TokenTrades(context.Background(), TradesQuery{Token: "tok", Offset: page1.NextOffset, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2.Records, 1)
	assert.False(t, page2.HasMore)
}

func TestTokenTrades_SizeFilterForwarded(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("min_volume_usd"))
		assert.Equal(t, "500", r.URL.Query().Get("max_volume_usd"))
		fmt.Fprint(w, `{"success":true,"data":{"has_next":false,"items":[]}}`)
	})

	_, err := client.TokenTrades(context.Background(), TradesQuery{
		Token:  "tok",
		Limit:  50,
		MinUSD: decimal.RequireFromString("10"),
		MaxUSD: decimal.RequireFromString("500"),
	})
	require.NoError(t, err)
}

func TestWalletTokenTrades_PagesUntilExhausted(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trader/txs/token", r.URL.Path)
		switch calls.Add(1) {
		case 1:
			fmt.Fprint(w, `{"success":true,"data":{"has_next":true,"items":[
				{"tx_hash":"tx1","side":"buy","ui_amount":10,"volume_usd":10,"block_unix_time":1718409700}
			]}}`)
		default:
			fmt.Fprint(w, `{"success":true,"data":{"has_next":false,"items":[
				{"tx_hash":"tx2","side":"sell","ui_amount":10,"volume_usd":30,"block_unix_time":1718409800}
			]}}`)
		}
	})

	trades, err := client.WalletTokenTrades(context.Background(), "alice", "tok")
	require.NoError(t, err)

	require.Len(t, trades, 2)
	assert.Equal(t, int32(2), calls.Load())
	// Wallet attribution comes from the request, not the payload.
	assert.Equal(t, "alice", trades[0].WalletAddress)
	assert.Equal(t, "alice", trades[1].WalletAddress)
}

func TestWalletTransfers(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallet/transfers", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"success":true,"data":{"items":[
			{"tx_hash":"tx1","from":"alice","to":"bob","ui_amount":1.5,"block_unix_time":1718409700}
		]}}`)
	})

	transfers, err := client.WalletTransfers(context.Background(), "alice", 25)
	require.NoError(t, err)

	require.Len(t, transfers, 1)
	assert.Equal(t, "alice", transfers[0].From)
	assert.Equal(t, "bob", transfers[0].To)
	assert.Equal(t, "1.5", transfers[0].Amount.String())
}

func TestGetJSON_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"success":true,"data":{"address":"tok","symbol":"EARLY","created_at":1718409600}}`)
	})

	overview, err := client.TokenOverview(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "EARLY", overview.Symbol)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ExhaustedRetriesReturnUnavailable(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.TokenOverview(context.Background(), "tok")
	require.Error(t, err)

	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "/defi/token-overview", unavailable.Resource)
	assert.Equal(t, 3, unavailable.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"message":"bad address"}`)
	})

	_, err := client.TokenOverview(context.Background(), "tok")
	require.Error(t, err)

	var unavailable *ProviderUnavailableError
	assert.False(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load(), "4xx responses other than 429 must not be retried")
}

func TestClient_SharedLimiterThrottles(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"items":[]}}`)
	})
	// Override the default test limiter with a tight budget.
	client.limiter.SetLimit(50)
	client.limiter.SetBurst(1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.WalletTransfers(context.Background(), "alice", 10)
		require.NoError(t, err)
	}
	// Two of the three calls had to wait for a token (>= ~40ms at 50 rps).
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestGetJSON_ContextCancellation(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.TokenOverview(ctx, "tok")
	require.ErrorIs(t, err, context.Canceled)
}
