// Package ledger implements average-cost position accounting on decimal values.
//
// Everything here is pure: no I/O, no logging, no clock. Callers that need to
// surface data-integrity problems (sells larger than the open quantity) read
// Position.Oversold and log it themselves.
package ledger

import (
	"fmt"
	"sort"

	"github.com/aristath/folio/internal/domain"
	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of decimal places kept by every division.
// decimal.DivRound rounds half away from zero, which equals half-up for the
// non-negative amounts the ledger divides.
const DivisionPrecision = 20

var hundred = decimal.NewFromInt(100)

// ValidateTrade rejects trades the ledger cannot account for.
func ValidateTrade(t domain.Trade) error {
	switch t.Direction {
	case domain.DirectionBuy, domain.DirectionSell:
	default:
		return fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidTrade, t.Direction)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", domain.ErrInvalidTrade, t.Quantity)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%w: negative price %s", domain.ErrInvalidTrade, t.Price)
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("%w: negative fees %s", domain.ErrInvalidTrade, t.Fees)
	}
	return nil
}

// BuildPosition folds the trades of one instrument into a Position using the
// average cost method. Trades are processed in ascending ExecutedAt order; the
// input slice is not modified. Trades with an unknown direction are ignored.
func BuildPosition(trades []domain.Trade) domain.Position {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutedAt.Before(sorted[j].ExecutedAt)
	})

	var (
		pos       domain.Position
		quantity  = decimal.Zero
		costBasis = decimal.Zero
		realized  = decimal.Zero
		fees      = decimal.Zero
	)

	for _, t := range sorted {
		if pos.InstrumentID == "" {
			pos.InstrumentID = t.InstrumentID
		}

		switch t.Direction {
		case domain.DirectionBuy:
			costBasis = costBasis.Add(t.Price.Mul(t.Quantity)).Add(t.Fees)
			quantity = quantity.Add(t.Quantity)
			if pos.FirstBuyDate.IsZero() {
				pos.FirstBuyDate = t.ExecutedAt
			}

		case domain.DirectionSell:
			// average cost of the position before this sell
			avg := averageCost(costBasis, quantity)
			realized = realized.Add(t.Price.Sub(avg).Mul(t.Quantity)).Sub(t.Fees)
			costBasis = costBasis.Sub(avg.Mul(t.Quantity))
			quantity = quantity.Sub(t.Quantity)

			if quantity.IsNegative() {
				quantity = decimal.Zero
				pos.Oversold = true
			}
			// rounding residue of a repeating average, not an oversell
			if costBasis.IsNegative() || quantity.IsZero() {
				costBasis = decimal.Zero
			}

		default:
			continue
		}

		fees = fees.Add(t.Fees)
		pos.TradeCount++
		pos.LastTradeDate = t.ExecutedAt
	}

	pos.Quantity = quantity
	pos.TotalCost = costBasis
	pos.AvgCost = averageCost(costBasis, quantity)
	pos.RealizedPnL = realized
	pos.TotalFees = fees
	pos.IsClosed = quantity.IsZero()
	return pos
}

func averageCost(costBasis, quantity decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	return costBasis.DivRound(quantity, DivisionPrecision)
}

// percentOf returns num/den*100, or zero when den is zero.
func percentOf(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Mul(hundred).DivRound(den, DivisionPrecision)
}
