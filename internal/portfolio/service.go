package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/ledger"
	"github.com/rs/zerolog"
)

// QuoteResolver is the slice of the resolver the portfolio service needs.
type QuoteResolver interface {
	ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error)
}

// Valuation is a priced portfolio view.
type Valuation struct {
	Positions []domain.PositionWithPrice `json:"positions"`
	Totals    domain.PortfolioTotals     `json:"totals"`
	// Unpriced lists open positions no source could price; they are carried at cost.
	Unpriced []string  `json:"unpriced,omitempty"`
	AsOf     time.Time `json:"as_of"`
}

// Service values trade ledgers against live quotes.
//
// Totals are recomputed from the trades on every call, so month-to-date and
// custom-range views never drift from a retroactively edited ledger.
type Service struct {
	resolver QuoteResolver
	builder  *Builder
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a portfolio service.
func NewService(resolver QuoteResolver, log zerolog.Logger) *Service {
	return &Service{
		resolver: resolver,
		builder:  NewBuilder(log),
		now:      time.Now,
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// Value builds positions from trades, prices the open ones in one batch and
// aggregates the positions passing opts into totals. Positions is the full
// set, sorted by instrument id; only Totals is filtered.
func (s *Service) Value(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*Valuation, error) {
	positions := s.builder.BuildPositionsFromTrades(trades, meta)
	ids := SortedIDs(positions)
	metaByID := normalizeMeta(meta)

	var (
		open      []string
		preferred = make(map[string]string)
	)
	for _, id := range ids {
		if positions[id].IsClosed {
			continue
		}
		open = append(open, id)
		if src := metaByID[id].PreferredSource; src != "" {
			preferred[id] = src
		}
	}

	quotes := map[string]*domain.Quote{}
	if len(open) > 0 {
		var err error
		quotes, err = s.resolver.ResolveBatch(ctx, open, preferred)
		if err != nil {
			return nil, fmt.Errorf("failed to price positions: %w", err)
		}
	}

	val := &Valuation{
		Positions: make([]domain.PositionWithPrice, 0, len(ids)),
		AsOf:      s.now(),
	}
	for _, id := range ids {
		pos := positions[id]
		q, ok := quotes[id]
		if pos.IsClosed || !ok || !q.Valid() {
			if !pos.IsClosed {
				val.Unpriced = append(val.Unpriced, id)
			}
			val.Positions = append(val.Positions, ledger.Unpriced(pos))
			continue
		}

		priced := ledger.ComputePnL(pos, q.Price)
		priced.PriceSource = q.Source
		val.Positions = append(val.Positions, priced)
	}

	val.Totals = ledger.ComputeTotals(val.Positions, opts)

	s.log.Debug().
		Int("positions", len(val.Positions)).
		Int("unpriced", len(val.Unpriced)).
		Msg("Portfolio valued")

	return val, nil
}

// MonthToDate values the ledger with totals restricted to positions traded
// since the start of the current month.
func (s *Service) MonthToDate(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*Valuation, error) {
	now := s.now()
	opts.From = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	opts.To = now
	return s.Value(ctx, trades, meta, opts)
}

// CloseLot sells part or all of a buy lot and logs the realized result.
func (s *Service) CloseLot(lot domain.Trade, sale ledger.LotSale) (*domain.Trade, domain.Trade, error) {
	remaining, closed, err := ledger.SplitLot(lot, sale)
	if err != nil {
		return nil, domain.Trade{}, err
	}

	s.log.Info().
		Str("lot_id", lot.ID).
		Str("closed_id", closed.ID).
		Str("instrument_id", lot.InstrumentID).
		Str("quantity", closed.Quantity.String()).
		Str("realized_pnl", closed.RealizedPnL.String()).
		Bool("lot_exhausted", remaining == nil).
		Msg("Lot closed")

	return remaining, closed, nil
}
