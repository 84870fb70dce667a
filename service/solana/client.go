package solana

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"earlyscope/service/metrics"
	"earlyscope/service/provider"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddressWithOpts(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)
}

// Client provides wallet history lookups against Solana RPC.
// Its only job here is approximating wallet age: walking the signature
// history for an address back to the oldest entry.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics

	// pageLimit is the signature page size; maxPages bounds the walk so a
	// high-activity wallet cannot consume the whole RPC budget.
	pageLimit int
	maxPages  int

	// retry is the bounded backoff schedule for one page fetch, shared
	// with the trade provider client.
	retry provider.RetryPolicy
}

// NewClient creates a new Solana history client.
// If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:       rpcClient,
		logger:    logger.With("component", "solana"),
		metrics:   m,
		pageLimit: 1000,
		maxPages:  25,
		retry: provider.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     8 * time.Second,
		},
	}
}

// NewRPCClient creates a real RPC client for the given endpoint.
func NewRPCClient(endpoint string) *rpc.Client {
	return rpc.New(endpoint)
}

// EarliestActivity approximates a wallet's creation time by walking its
// signature history to the oldest entry. Returns the block time of the
// oldest signature and true, or a zero time and false when the wallet has
// no history at all (not an error).
//
// The walk is bounded by maxPages; a wallet older than the bound returns the
// oldest block time seen, which is an upper estimate of the true age. Each
// page fetch retries transient RPC failures with exponential backoff.
func (c *Client) EarliestActivity(ctx context.Context, address string) (time.Time, bool, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return time.Time{}, false, err
	}

	var (
		oldest  *rpc.TransactionSignature
		before  solana.Signature
		hasPrev bool
		pages   int
	)

	for pages = 0; pages < c.maxPages; pages++ {
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit:      &c.pageLimit,
			Commitment: rpc.CommitmentFinalized,
		}
		if hasPrev {
			opts.Before = before
		}

		sigs, err := c.getSignaturesPage(ctx, pubkey, opts)
		if err != nil {
			return time.Time{}, false, err
		}
		if len(sigs) == 0 {
			break
		}

		oldest = sigs[len(sigs)-1]
		before = oldest.Signature
		hasPrev = true

		// A short page means we reached the start of the history.
		if len(sigs) < c.pageLimit {
			break
		}
	}

	if oldest == nil {
		c.logger.DebugContext(ctx, "wallet has no signature history", "address", address)
		if c.metrics != nil {
			c.metrics.RecordSignaturePages("no_history", float64(pages))
		}
		return time.Time{}, false, nil
	}

	if c.metrics != nil {
		outcome := "complete"
		if pages == c.maxPages {
			outcome = "truncated"
		}
		c.metrics.RecordSignaturePages(outcome, float64(pages))
	}

	if oldest.BlockTime == nil {
		// Old ledger entries can miss block times; treat as unknown.
		c.logger.DebugContext(ctx, "oldest signature has no block time", "address", address)
		return time.Time{}, false, nil
	}

	return oldest.BlockTime.Time().UTC(), true, nil
}

// getSignaturesPage fetches one signature page with bounded retries.
func (c *Client) getSignaturesPage(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.Backoff(attempt - 1)
			if strings.Contains(lastErr.Error(), "429") {
				backoff *= 2
				if c.metrics != nil {
					c.metrics.RecordRPCRetry("GetSignaturesForAddress", "rate_limit")
				}
			} else if c.metrics != nil {
				c.metrics.RecordRPCRetry("GetSignaturesForAddress", "error")
			}
			c.logger.WarnContext(ctx, "retrying signature page fetch",
				"address", address.String(),
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, opts)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall("GetSignaturesForAddress", status, duration)
		}

		if err == nil {
			return sigs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, lastErr
}
