package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
)

// FixtureTime is the reference "now" of the fixtures.
var FixtureTime = time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC)

// NewTradeFixtures returns a small multi-instrument ledger for use in tests:
//   - AAPL: buy 10 @ 150, buy 10 @ 170, sell 5 @ 180 (open, average cost 160)
//   - MSFT: buy 5 @ 300, sell 5 @ 320 (closed, realized +100 before fees)
//   - SAP.DE: buy 4 @ 172.40 with 2 fees (open)
func NewTradeFixtures() []domain.Trade {
	day := 24 * time.Hour
	return []domain.Trade{
		fixtureTrade("t1", "AAPL", domain.DirectionBuy, "10", "150", "1", FixtureTime.Add(-40*day)),
		fixtureTrade("t2", "AAPL", domain.DirectionBuy, "10", "170", "1", FixtureTime.Add(-20*day)),
		fixtureTrade("t3", "AAPL", domain.DirectionSell, "5", "180", "1", FixtureTime.Add(-2*day)),
		fixtureTrade("t4", "MSFT", domain.DirectionBuy, "5", "300", "0", FixtureTime.Add(-60*day)),
		fixtureTrade("t5", "MSFT", domain.DirectionSell, "5", "320", "0", FixtureTime.Add(-30*day)),
		fixtureTrade("t6", "SAP.DE", domain.DirectionBuy, "4", "172.40", "2", FixtureTime.Add(-7*day)),
	}
}

// NewInstrumentMetaFixtures returns metadata matching NewTradeFixtures.
func NewInstrumentMetaFixtures() map[string]domain.InstrumentMeta {
	return map[string]domain.InstrumentMeta{
		"AAPL":   {Name: "Apple Inc.", Currency: "USD", Groups: []string{"tech", "us"}, PreferredSource: "yahoo"},
		"MSFT":   {Name: "Microsoft Corp.", Currency: "USD", Groups: []string{"tech", "us"}},
		"SAP.DE": {Name: "SAP SE", Groups: []string{"tech", "eu"}},
	}
}

// NewQuoteFixture returns a quote captured at FixtureTime.
func NewQuoteFixture(identifier, source, currency, price string) *domain.Quote {
	return &domain.Quote{
		Identifier: identifier,
		Symbol:     identifier,
		Currency:   currency,
		Source:     source,
		Price:      decimal.RequireFromString(price),
		CapturedAt: FixtureTime,
	}
}

// NewISINFixtures returns a set of checksum-valid ISINs for use in tests
func NewISINFixtures() []string {
	return []string{
		"US0378331005", // AAPL
		"US5949181045", // MSFT
		"US0231351067", // AMZN
		"DE0007164600", // SAP
		"IE00B4L5Y983", // iShares Core MSCI World
	}
}

func fixtureTrade(id, instrument string, dir domain.Direction, qty, price, fees string, at time.Time) domain.Trade {
	return domain.Trade{
		ID:           id,
		PortfolioID:  "fixture",
		InstrumentID: instrument,
		Direction:    dir,
		Quantity:     decimal.RequireFromString(qty),
		Price:        decimal.RequireFromString(price),
		Fees:         decimal.RequireFromString(fees),
		ExecutedAt:   at,
	}
}
