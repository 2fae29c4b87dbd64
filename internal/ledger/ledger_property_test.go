package ledger

import (
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// tradesFrom turns signed quantities into a trade history: positive values
// buy, negative values sell, zero is skipped.
func tradesFrom(moves []int, prices []int) []domain.Trade {
	trades := make([]domain.Trade, 0, len(moves))
	for i, m := range moves {
		if m == 0 {
			continue
		}
		dir := domain.DirectionBuy
		if m < 0 {
			dir = domain.DirectionSell
			m = -m
		}
		trades = append(trades, domain.Trade{
			InstrumentID: "X",
			Direction:    dir,
			Quantity:     decimal.NewFromInt(int64(m)),
			Price:        decimal.NewFromInt(int64(prices[i%len(prices)])),
			Fees:         decimal.NewFromInt(int64(i % 3)),
			ExecutedAt:   day0.Add(time.Duration(i) * time.Minute),
		})
	}
	return trades
}

// Property: whatever the order of buys and sells, quantity and cost basis
// never go negative, and a position with zero quantity carries zero cost.
func TestProperty_PositionNeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("quantity and cost basis stay non-negative", prop.ForAll(
		func(moves []int, prices []int) bool {
			if len(prices) == 0 {
				return true
			}
			pos := BuildPosition(tradesFrom(moves, prices))
			if pos.Quantity.IsNegative() || pos.TotalCost.IsNegative() {
				return false
			}
			if pos.Quantity.IsZero() && !pos.TotalCost.IsZero() {
				return false
			}
			return pos.IsClosed == pos.Quantity.IsZero()
		},
		gen.SliceOfN(25, gen.IntRange(-60, 60)),
		gen.SliceOfN(25, gen.IntRange(1, 1000)),
	))

	properties.TestingRun(t)
}

// Property: buying in several lots and closing everything in one sell
// realizes exactly proceeds minus total cost minus fees.
func TestProperty_RealizedMatchesHandComputedSum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("full close realizes proceeds minus cost", prop.ForAll(
		func(quantities []int, prices []int, sellPrice int) bool {
			if len(quantities) == 0 || len(prices) == 0 {
				return true
			}
			trades := make([]domain.Trade, 0, len(quantities)+1)
			expected := decimal.Zero
			total := decimal.Zero

			for i, q := range quantities {
				qty := decimal.NewFromInt(int64(q))
				price := decimal.NewFromInt(int64(prices[i%len(prices)]))
				fee := decimal.RequireFromString("0.5")
				trades = append(trades, domain.Trade{
					Direction:  domain.DirectionBuy,
					Quantity:   qty,
					Price:      price,
					Fees:       fee,
					ExecutedAt: day0.Add(time.Duration(i) * time.Hour),
				})
				expected = expected.Sub(qty.Mul(price)).Sub(fee)
				total = total.Add(qty)
			}

			sell := decimal.NewFromInt(int64(sellPrice))
			trades = append(trades, domain.Trade{
				Direction:  domain.DirectionSell,
				Quantity:   total,
				Price:      sell,
				Fees:       decimal.NewFromInt(1),
				ExecutedAt: day0.Add(1000 * time.Hour),
			})
			expected = expected.Add(total.Mul(sell)).Sub(decimal.NewFromInt(1))

			pos := BuildPosition(trades)
			return pos.IsClosed && pos.RealizedPnL.Round(8).Equal(expected.Round(8))
		},
		gen.SliceOfN(6, gen.IntRange(1, 500)),
		gen.SliceOfN(6, gen.IntRange(1, 2000)),
		gen.IntRange(1, 3000),
	))

	properties.TestingRun(t)
}
