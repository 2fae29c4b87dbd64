// Package portfolio builds priced positions and dashboard totals from a raw
// trade ledger.
package portfolio

import (
	"sort"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/ledger"
	"github.com/rs/zerolog"
)

// Builder groups trades per instrument and runs the ledger over each group.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a position builder.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "position_builder").Logger(),
	}
}

// BuildPositionsFromTrades returns one position per instrument keyed by
// upper-cased instrument id.
//
// Invalid trades are logged and left out. meta supplies the display name,
// currency and groups for an instrument; it may be nil.
func (b *Builder) BuildPositionsFromTrades(trades []domain.Trade, meta map[string]domain.InstrumentMeta) map[string]domain.Position {
	byInstrument := make(map[string][]domain.Trade)
	for _, t := range trades {
		if err := ledger.ValidateTrade(t); err != nil {
			b.log.Warn().
				Err(err).
				Str("trade_id", t.ID).
				Str("instrument_id", t.InstrumentID).
				Msg("Skipping invalid trade")
			continue
		}
		id := domain.NormalizeIdentifier(t.InstrumentID)
		byInstrument[id] = append(byInstrument[id], t)
	}

	metaByID := normalizeMeta(meta)

	positions := make(map[string]domain.Position, len(byInstrument))
	for id, group := range byInstrument {
		pos := ledger.BuildPosition(group)
		pos.InstrumentID = id

		m := metaByID[id]
		pos.Name = m.Name
		pos.Groups = m.Groups
		pos.Currency = domain.InferCurrency(id, m.Currency)

		if pos.Oversold {
			b.log.Warn().
				Str("instrument_id", id).
				Int("trades", pos.TradeCount).
				Msg("Sell exceeded open quantity, position clamped to zero")
		}

		positions[id] = pos
	}
	return positions
}

func normalizeMeta(meta map[string]domain.InstrumentMeta) map[string]domain.InstrumentMeta {
	out := make(map[string]domain.InstrumentMeta, len(meta))
	for id, m := range meta {
		out[domain.NormalizeIdentifier(id)] = m
	}
	return out
}

// SortedIDs returns the keys of positions in ascending order.
func SortedIDs(positions map[string]domain.Position) []string {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
