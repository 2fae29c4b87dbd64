package ledger

import (
	"strings"

	"github.com/aristath/folio/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputeTotals aggregates the positions that pass the filters in opts.
//
// ProfitOnlySum adds up only positive TotalPnL values; losing positions
// contribute nothing to it. Positions with exactly zero TotalPnL count as
// neither winning nor losing.
func ComputeTotals(positions []domain.PositionWithPrice, opts domain.TotalsOptions) domain.PortfolioTotals {
	totals := domain.PortfolioTotals{
		TotalCost:     decimal.Zero,
		CurrentValue:  decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		TotalFees:     decimal.Zero,
		TotalPnL:      decimal.Zero,
		ProfitOnlySum: decimal.Zero,
	}

	for _, p := range positions {
		if !Matches(p.Position, opts) {
			continue
		}

		totals.TotalCost = totals.TotalCost.Add(p.TotalCost)
		totals.CurrentValue = totals.CurrentValue.Add(p.CurrentValue)
		totals.UnrealizedPnL = totals.UnrealizedPnL.Add(p.UnrealizedPnL)
		totals.RealizedPnL = totals.RealizedPnL.Add(p.RealizedPnL)
		totals.TotalFees = totals.TotalFees.Add(p.TotalFees)
		totals.TotalPnL = totals.TotalPnL.Add(p.TotalPnL)

		totals.PositionCount++
		if p.IsClosed {
			totals.ClosedPositions++
		} else {
			totals.OpenPositions++
		}

		switch p.TotalPnL.Sign() {
		case 1:
			totals.WinningPositions++
			totals.ProfitOnlySum = totals.ProfitOnlySum.Add(p.TotalPnL)
		case -1:
			totals.LosingPositions++
		}
	}

	totals.TotalPnLPercent = percentOf(totals.TotalPnL, totals.TotalCost.Add(totals.RealizedPnL))
	return totals
}

// Matches reports whether a position passes the totals filters.
// The date range applies to LastTradeDate and is inclusive on both ends.
// Setting both OpenOnly and ClosedOnly matches nothing.
func Matches(pos domain.Position, opts domain.TotalsOptions) bool {
	if opts.OpenOnly && pos.IsClosed {
		return false
	}
	if opts.ClosedOnly && !pos.IsClosed {
		return false
	}
	if !opts.From.IsZero() && pos.LastTradeDate.Before(opts.From) {
		return false
	}
	if !opts.To.IsZero() && pos.LastTradeDate.After(opts.To) {
		return false
	}
	if len(opts.Groups) > 0 && !inAnyGroup(pos.Groups, opts.Groups) {
		return false
	}
	return true
}

func inAnyGroup(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}
