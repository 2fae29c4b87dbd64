package ledger

import (
	"github.com/aristath/folio/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputePnL values a position at the given market price.
// A non-positive price is treated as "no price" and delegates to Unpriced.
func ComputePnL(pos domain.Position, price decimal.Decimal) domain.PositionWithPrice {
	if !price.IsPositive() {
		return Unpriced(pos)
	}

	unrealized := price.Sub(pos.AvgCost).Mul(pos.Quantity)
	totalPnL := pos.RealizedPnL.Add(unrealized)

	return domain.PositionWithPrice{
		Position:             pos,
		CurrentPrice:         price,
		CurrentValue:         price.Mul(pos.Quantity),
		UnrealizedPnL:        unrealized,
		UnrealizedPnLPercent: percentOf(price.Sub(pos.AvgCost), pos.AvgCost),
		TotalPnL:             totalPnL,
		TotalPnLPercent:      percentOf(totalPnL, pos.TotalCost.Add(pos.RealizedPnL)),
		Priced:               true,
	}
}

// Unpriced values a position that has no current price: the open quantity is
// carried at cost, so only realized P&L counts.
func Unpriced(pos domain.Position) domain.PositionWithPrice {
	return domain.PositionWithPrice{
		Position:             pos,
		CurrentPrice:         decimal.Zero,
		CurrentValue:         pos.TotalCost,
		UnrealizedPnL:        decimal.Zero,
		UnrealizedPnLPercent: decimal.Zero,
		TotalPnL:             pos.RealizedPnL,
		TotalPnLPercent:      percentOf(pos.RealizedPnL, pos.TotalCost.Add(pos.RealizedPnL)),
	}
}
