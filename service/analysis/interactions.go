package analysis

import (
	"context"
	"errors"
	"log/slog"

	"earlyscope/service/provider"

	"golang.org/x/sync/errgroup"
)

// TransferSource lists recent direct transfers involving a wallet.
type TransferSource interface {
	WalletTransfers(ctx context.Context, address string, limit int) ([]provider.Transfer, error)
}

// DetectorConfig controls interaction detection.
type DetectorConfig struct {
	// TransferLimit is how many recent transfers to inspect per buyer.
	TransferLimit int

	// Concurrency bounds parallel transfer lookups.
	Concurrency int
}

// DetectInteractions finds direct transfers between known buyers.
//
// Each transfer whose counterparty is another buyer becomes exactly one
// directed edge; A→B never implies B→A. The same on-chain transfer showing
// up in both endpoints' ledgers is emitted once (keyed by tx hash and
// endpoints). Edges are ordered by buyer first-seen order so reports are
// reproducible. Per-address lookup failures are isolated and returned
// alongside the edges, except when the provider declares itself unavailable:
// every remaining lookup would fail the same way, so pending lookups are
// canceled and the error is returned with whatever edges were found.
func DetectInteractions(
	ctx context.Context,
	src TransferSource,
	buyers []Buyer,
	cfg DetectorConfig,
	logger *slog.Logger,
) ([]InteractionEdge, []LookupFailure, error) {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	limit := cfg.TransferLimit
	if limit <= 0 {
		limit = 100
	}

	buyerSet := make(map[string]struct{}, len(buyers))
	for _, b := range buyers {
		buyerSet[b.Address] = struct{}{}
	}

	perBuyerEdges := make([][]InteractionEdge, len(buyers))
	perBuyerErr := make([]string, len(buyers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, buyer := range buyers {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			transfers, err := src.WalletTransfers(gctx, buyer.Address, limit)
			if err != nil {
				var unavailable *provider.ProviderUnavailableError
				if errors.As(err, &unavailable) {
					return err
				}
				logger.WarnContext(gctx, "transfer lookup failed",
					"address", buyer.Address,
					"error", err,
				)
				perBuyerErr[i] = err.Error()
				return nil
			}
			for _, tr := range transfers {
				if !involvesPair(tr, buyer.Address, buyerSet) {
					continue
				}
				perBuyerEdges[i] = append(perBuyerEdges[i], InteractionEdge{
					From:      tr.From,
					To:        tr.To,
					Amount:    tr.Amount,
					Timestamp: tr.Timestamp,
					TxHash:    tr.TxHash,
				})
			}
			return nil
		})
	}
	waitErr := g.Wait()

	// Merge in buyer order and drop duplicates: the same transfer is
	// visible from both endpoints' transfer lists.
	var (
		edges    []InteractionEdge
		failures []LookupFailure
		seen     = make(map[string]struct{})
	)
	for i := range buyers {
		if perBuyerErr[i] != "" {
			failures = append(failures, LookupFailure{Address: buyers[i].Address, Error: perBuyerErr[i]})
		}
		for _, e := range perBuyerEdges[i] {
			key := e.TxHash + "|" + e.From + "|" + e.To
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, e)
		}
	}

	return edges, failures, waitErr
}

// involvesPair reports whether the transfer connects the owning wallet with
// a different known buyer.
func involvesPair(tr provider.Transfer, owner string, buyerSet map[string]struct{}) bool {
	var counterparty string
	switch owner {
	case tr.From:
		counterparty = tr.To
	case tr.To:
		counterparty = tr.From
	default:
		return false
	}
	if counterparty == owner || counterparty == "" {
		return false
	}
	_, ok := buyerSet[counterparty]
	return ok
}
