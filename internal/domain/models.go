// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Quote is a point-in-time price observation for one identifier.
// Quotes are never mutated, only superseded by a newer Quote.
type Quote struct {
	CapturedAt    time.Time        `json:"captured_at" msgpack:"captured_at"`
	Identifier    string           `json:"identifier" msgpack:"identifier"` // ISIN or ticker as requested
	Symbol        string           `json:"symbol,omitempty" msgpack:"symbol"`
	Name          string           `json:"name,omitempty" msgpack:"name"`
	Currency      string           `json:"currency" msgpack:"currency"`
	Source        string           `json:"source" msgpack:"source"`
	Price         decimal.Decimal  `json:"price" msgpack:"price"`
	Bid           *decimal.Decimal `json:"bid,omitempty" msgpack:"bid"`
	Ask           *decimal.Decimal `json:"ask,omitempty" msgpack:"ask"`
	High          *decimal.Decimal `json:"high,omitempty" msgpack:"high"`
	Low           *decimal.Decimal `json:"low,omitempty" msgpack:"low"`
	PreviousClose *decimal.Decimal `json:"previous_close,omitempty" msgpack:"previous_close"`
	TradedAt      *time.Time       `json:"traded_at,omitempty" msgpack:"traded_at"` // last trade, when the source reports it
}

// Valid reports whether the quote carries a usable positive price.
func (q *Quote) Valid() bool {
	return q != nil && q.Price.IsPositive()
}

// SearchResult is a candidate instrument match for a free-text query.
type SearchResult struct {
	Identifier string           `json:"identifier" msgpack:"identifier"`
	Symbol     string           `json:"symbol,omitempty" msgpack:"symbol"`
	ISIN       string           `json:"isin,omitempty" msgpack:"isin"`
	Name       string           `json:"name" msgpack:"name"`
	Exchange   string           `json:"exchange,omitempty" msgpack:"exchange"`
	Type       string           `json:"type,omitempty" msgpack:"type"`
	Currency   string           `json:"currency,omitempty" msgpack:"currency"`
	Source     string           `json:"source" msgpack:"source"`
	Price      *decimal.Decimal `json:"price,omitempty" msgpack:"price"`
	Relevance  int              `json:"relevance" msgpack:"relevance"` // higher is better
}

// HasPrice reports whether the result carries a usable current price.
func (r SearchResult) HasPrice() bool {
	return r.Price != nil && r.Price.IsPositive()
}

// Trade is a recorded buy or sell event.
// RealizedPnL is only set on closed sell lots.
type Trade struct {
	ExecutedAt   time.Time        `json:"executed_at"`
	ID           string           `json:"id"`
	PortfolioID  string           `json:"portfolio_id"`
	InstrumentID string           `json:"instrument_id"`
	Direction    Direction        `json:"direction"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Price        decimal.Decimal  `json:"price"`
	Fees         decimal.Decimal  `json:"fees"`
	RealizedPnL  *decimal.Decimal `json:"realized_pnl,omitempty"`
	Closed       bool             `json:"closed"`
}

// Position is derived from the trade history of one instrument.
type Position struct {
	FirstBuyDate  time.Time       `json:"first_buy_date"`
	LastTradeDate time.Time       `json:"last_trade_date"`
	InstrumentID  string          `json:"instrument_id"`
	Name          string          `json:"name,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Groups        []string        `json:"groups,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	TradeCount    int             `json:"trade_count"`
	IsClosed      bool            `json:"is_closed"`
	// Oversold is set when a sell exceeded the open quantity and the
	// quantity or cost basis had to be clamped to zero.
	Oversold bool `json:"oversold,omitempty"`
}

// PositionWithPrice is a position valued at a current market price.
type PositionWithPrice struct {
	Position
	CurrentPrice         decimal.Decimal `json:"current_price"`
	CurrentValue         decimal.Decimal `json:"current_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	TotalPnL             decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent      decimal.Decimal `json:"total_pnl_percent"`
	PriceSource          string          `json:"price_source,omitempty"`
	Priced               bool            `json:"priced"`
}

// TotalsOptions filters the positions that feed PortfolioTotals.
// Zero From/To leave that side of the date range open.
type TotalsOptions struct {
	From       time.Time
	To         time.Time
	Groups     []string
	OpenOnly   bool
	ClosedOnly bool
}

// PortfolioTotals aggregates a filtered set of priced positions.
type PortfolioTotals struct {
	TotalCost        decimal.Decimal `json:"total_cost"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent  decimal.Decimal `json:"total_pnl_percent"`
	ProfitOnlySum    decimal.Decimal `json:"profit_only_sum"`
	PositionCount    int             `json:"position_count"`
	OpenPositions    int             `json:"open_positions"`
	ClosedPositions  int             `json:"closed_positions"`
	WinningPositions int             `json:"winning_positions"`
	LosingPositions  int             `json:"losing_positions"`
}

// InstrumentMeta is descriptive data about an instrument supplied by the
// persistence layer alongside trades.
type InstrumentMeta struct {
	Name            string   `json:"name,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Groups          []string `json:"groups,omitempty"`
	PreferredSource string   `json:"preferred_source,omitempty"` // source that last priced it
}
