package analysis

import (
	"time"

	"earlyscope/service/provider"

	"github.com/shopspring/decimal"
)

// lot is a discrete quantity acquired at a known unit cost, consumed by
// later sells oldest-first.
type lot struct {
	quantity decimal.Decimal
	unitCost decimal.Decimal
	openedAt time.Time
}

// ComputePnL runs the FIFO lot engine over one buyer's ordered trade ledger
// for the analyzed token.
//
// Buys push a lot {quantity, usdValue/quantity}. Sells consume open lots
// oldest-first; the realized PnL of each consumed slice is
// (sellUnitPrice - lotUnitCost) * consumedQuantity. A sell exceeding the
// total open quantity realizes the unmatched portion against zero cost basis
// and flags the result as oversold; open quantity never goes negative and
// nothing is silently clamped away.
//
// Trades with zero or missing price or quantity are excluded from the lot
// math but still counted in TradeCount (and reported via ExcludedTrades).
// The computation is deterministic: identical input ledgers always produce
// identical results.
func ComputePnL(address string, trades []provider.TradeRecord) PnLResult {
	result := PnLResult{
		Address:               address,
		RealizedPnLUSD:        decimal.Zero,
		RemainingQuantity:     decimal.Zero,
		RemainingCostBasisUSD: decimal.Zero,
		OversellQuantity:      decimal.Zero,
	}

	var open []lot

	for _, trade := range trades {
		result.TradeCount++

		if !trade.Quantity.IsPositive() || !trade.USDValue.IsPositive() {
			result.ExcludedTrades++
			continue
		}
		unitPrice := trade.USDValue.Div(trade.Quantity)

		switch trade.Side {
		case provider.SideBuy:
			open = append(open, lot{
				quantity: trade.Quantity,
				unitCost: unitPrice,
				openedAt: trade.Timestamp,
			})

		case provider.SideSell:
			remaining := trade.Quantity
			for len(open) > 0 && remaining.IsPositive() {
				head := &open[0]
				consumed := decimal.Min(head.quantity, remaining)
				result.RealizedPnLUSD = result.RealizedPnLUSD.Add(
					unitPrice.Sub(head.unitCost).Mul(consumed),
				)
				head.quantity = head.quantity.Sub(consumed)
				remaining = remaining.Sub(consumed)
				if head.quantity.IsZero() {
					open = open[1:]
				}
			}

			if remaining.IsPositive() {
				// Oversell: holdings predate the observation window or the
				// ledger has gaps. Realize against zero cost basis and
				// surface the anomaly for caller judgment.
				result.RealizedPnLUSD = result.RealizedPnLUSD.Add(unitPrice.Mul(remaining))
				result.OversellQuantity = result.OversellQuantity.Add(remaining)
				result.Oversold = true
			}

		default:
			result.ExcludedTrades++
		}
	}

	for _, l := range open {
		result.RemainingQuantity = result.RemainingQuantity.Add(l.quantity)
		result.RemainingCostBasisUSD = result.RemainingCostBasisUSD.Add(l.unitCost.Mul(l.quantity))
	}

	return result
}
