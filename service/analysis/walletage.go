package analysis

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ActivitySource looks up a wallet's earliest known on-chain activity.
// known=false means the wallet has no usable history, which is a valid
// outcome rather than an error.
type ActivitySource interface {
	EarliestActivity(ctx context.Context, address string) (earliest time.Time, known bool, err error)
}

// ClassifierConfig controls wallet age classification.
type ClassifierConfig struct {
	// NewWalletThreshold is the age below which a wallet counts as new:
	// isNew = tokenCreation - earliestActivity < threshold.
	NewWalletThreshold time.Duration

	// Concurrency bounds parallel history lookups. The rate budget itself
	// is enforced by the shared provider/RPC gate, not here.
	Concurrency int
}

// ClassifyWalletAges classifies each buyer's wallet age relative to the
// token creation time. Lookups run concurrently up to cfg.Concurrency;
// a failed lookup is recorded on that buyer's result and never aborts the
// other classifications. Results are returned in buyer order.
func ClassifyWalletAges(
	ctx context.Context,
	src ActivitySource,
	buyers []Buyer,
	tokenCreation time.Time,
	cfg ClassifierConfig,
	logger *slog.Logger,
) []WalletAgeResult {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]WalletAgeResult, len(buyers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, buyer := range buyers {
		g.Go(func() error {
			results[i] = classifyOne(gctx, src, buyer.Address, tokenCreation, cfg.NewWalletThreshold, logger)
			return nil
		})
	}
	// Workers never return errors; failures are per-address.
	_ = g.Wait()

	return results
}

func classifyOne(
	ctx context.Context,
	src ActivitySource,
	address string,
	tokenCreation time.Time,
	threshold time.Duration,
	logger *slog.Logger,
) WalletAgeResult {
	result := WalletAgeResult{Address: address}

	earliest, known, err := src.EarliestActivity(ctx, address)
	if err != nil {
		logger.WarnContext(ctx, "wallet history lookup failed",
			"address", address,
			"error", err,
		)
		result.LookupError = err.Error()
		return result
	}
	if !known {
		// Unknown age defaults to "not new" with the explicit unknown flag.
		return result
	}

	age := tokenCreation.Sub(earliest)
	result.EarliestActivity = &earliest
	result.AgeKnown = true
	result.Age = age
	result.IsNewWallet = age < threshold
	return result
}
