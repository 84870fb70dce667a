package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"earlyscope/service/provider"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It serves pre-built pages in order; the first failFirst calls return err.
type mockRPCClient struct {
	pages     [][]*rpc.TransactionSignature
	calls     int
	served    int
	failFirst int
	err       error
}

func (m *mockRPCClient) GetSignaturesForAddressWithOpts(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	m.calls++
	if m.calls <= m.failFirst {
		return nil, m.err
	}
	if m.served >= len(m.pages) {
		return nil, nil
	}
	page := m.pages[m.served]
	m.served++
	return page, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(mock, nil, logger)
	// Small pages keep the fixtures readable; short backoffs keep the
	// retry tests fast.
	c.pageLimit = 2
	c.retry = provider.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	return c
}

func sig(t *testing.T, s string, blockTime int64) *rpc.TransactionSignature {
	t.Helper()
	bt := solana.UnixTimeSeconds(blockTime)
	return &rpc.TransactionSignature{
		Signature: solana.MustSignatureFromBase58(s),
		BlockTime: &bt,
	}
}

const (
	sigA = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	sigB = "2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"
	sigC = "3LzUfBWvh7uN5sNTVPkbDGq5SNrPBKDYTJqFmH8nHq6Z9VGJ7iCxB2rLFZsKrQNuJfTnKQ5D5YqGrNqvnKQZXMQE"

	testWallet = "11111111111111111111111111111111"
)

func TestEarliestActivity_SinglePage(t *testing.T) {
	ctx := context.Background()

	// One short page: the last entry is the oldest signature.
	mock := &mockRPCClient{
		pages: [][]*rpc.TransactionSignature{
			{sig(t, sigA, 1690000100)},
		},
	}

	client := newTestClient(mock)
	earliest, known, err := client.EarliestActivity(ctx, testWallet)

	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, time.Unix(1690000100, 0).UTC(), earliest)
	assert.Equal(t, 1, mock.calls)
}

func TestEarliestActivity_WalksPages(t *testing.T) {
	ctx := context.Background()

	// Two full pages followed by a short one; the oldest block time is on
	// the final page.
	mock := &mockRPCClient{
		pages: [][]*rpc.TransactionSignature{
			{sig(t, sigA, 1690000300), sig(t, sigB, 1690000200)},
			{sig(t, sigC, 1690000100), sig(t, sigA, 1690000050)},
			{sig(t, sigB, 1690000000)},
		},
	}

	client := newTestClient(mock)
	earliest, known, err := client.EarliestActivity(ctx, testWallet)

	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, time.Unix(1690000000, 0).UTC(), earliest)
	assert.Equal(t, 3, mock.calls)
}

func TestEarliestActivity_NoHistory(t *testing.T) {
	ctx := context.Background()

	mock := &mockRPCClient{pages: [][]*rpc.TransactionSignature{}}

	client := newTestClient(mock)
	_, known, err := client.EarliestActivity(ctx, testWallet)

	// No history is a valid outcome, not an error.
	require.NoError(t, err)
	assert.False(t, known)
}

func TestEarliestActivity_MissingBlockTime(t *testing.T) {
	ctx := context.Background()

	noTime := &rpc.TransactionSignature{
		Signature: solana.MustSignatureFromBase58(sigA),
		BlockTime: nil,
	}
	mock := &mockRPCClient{
		pages: [][]*rpc.TransactionSignature{{noTime}},
	}

	client := newTestClient(mock)
	_, known, err := client.EarliestActivity(ctx, testWallet)

	require.NoError(t, err)
	assert.False(t, known)
}

func TestEarliestActivity_RetriesTransientRPCError(t *testing.T) {
	ctx := context.Background()

	mock := &mockRPCClient{
		failFirst: 2,
		err:       errors.New("429 too many requests"),
		pages: [][]*rpc.TransactionSignature{
			{sig(t, sigA, 1690000100)},
		},
	}

	client := newTestClient(mock)
	earliest, known, err := client.EarliestActivity(ctx, testWallet)

	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, time.Unix(1690000100, 0).UTC(), earliest)
	assert.Equal(t, 3, mock.calls, "two failed attempts then a success")
}

func TestEarliestActivity_ExhaustedRetriesSurfaceError(t *testing.T) {
	ctx := context.Background()

	mock := &mockRPCClient{
		failFirst: 10,
		err:       errors.New("connection refused"),
	}

	client := newTestClient(mock)
	_, _, err := client.EarliestActivity(ctx, testWallet)

	require.Error(t, err)
	assert.Equal(t, 3, mock.calls, "attempt budget bounds the page fetch")
}

func TestEarliestActivity_InvalidAddress(t *testing.T) {
	ctx := context.Background()

	client := newTestClient(&mockRPCClient{})
	_, _, err := client.EarliestActivity(ctx, "not-a-base58-address")

	require.Error(t, err)
}
