package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/ledger"
	"github.com/aristath/folio/internal/portfolio"
	"github.com/aristath/folio/internal/utils"
)

// PortfolioValuer values a trade ledger.
type PortfolioValuer interface {
	Value(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*portfolio.Valuation, error)
	MonthToDate(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*portfolio.Valuation, error)
	CloseLot(lot domain.Trade, sale ledger.LotSale) (*domain.Trade, domain.Trade, error)
}

const periodMonthToDate = "mtd"

// PortfolioHandlers serves position and totals requests.
type PortfolioHandlers struct {
	valuer PortfolioValuer
	log    zerolog.Logger
}

// NewPortfolioHandlers creates portfolio handlers.
func NewPortfolioHandlers(valuer PortfolioValuer, log zerolog.Logger) *PortfolioHandlers {
	return &PortfolioHandlers{
		valuer: valuer,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// PositionsRequest is the body of POST /api/portfolio/positions.
// From and To accept RFC3339 timestamps or YYYY-MM-DD dates; a date-only To
// includes the whole day.
type PositionsRequest struct {
	Trades     []domain.Trade                   `json:"trades"`
	Meta       map[string]domain.InstrumentMeta `json:"meta,omitempty"`
	From       string                           `json:"from,omitempty"`
	To         string                           `json:"to,omitempty"`
	OpenOnly   bool                             `json:"open_only,omitempty"`
	ClosedOnly bool                             `json:"closed_only,omitempty"`
	Groups     []string                         `json:"groups,omitempty"`
	Period     string                           `json:"period,omitempty"`
}

// HandlePositions builds and prices positions from the posted trades.
// POST /api/portfolio/positions
func (h *PortfolioHandlers) HandlePositions(w http.ResponseWriter, r *http.Request) {
	var req PositionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid request body")
		return
	}

	opts, err := req.totalsOptions()
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}

	var val *portfolio.Valuation
	switch strings.ToLower(strings.TrimSpace(req.Period)) {
	case "":
		val, err = h.valuer.Value(r.Context(), req.Trades, req.Meta, opts)
	case periodMonthToDate:
		val, err = h.valuer.MonthToDate(r.Context(), req.Trades, req.Meta, opts)
	default:
		writeError(w, h.log, http.StatusBadRequest, fmt.Sprintf("unknown period %q", req.Period))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("trades", len(req.Trades)).Msg("Failed to value portfolio")
		writeError(w, h.log, http.StatusServiceUnavailable, "failed to value portfolio")
		return
	}

	writeJSON(w, h.log, http.StatusOK, val)
}

func (req PositionsRequest) totalsOptions() (domain.TotalsOptions, error) {
	opts := domain.TotalsOptions{
		Groups:     req.Groups,
		OpenOnly:   req.OpenOnly,
		ClosedOnly: req.ClosedOnly,
	}

	var err error
	if opts.From, err = utils.ParseDateBound(req.From, false); err != nil {
		return opts, fmt.Errorf("invalid from: %w", err)
	}
	if opts.To, err = utils.ParseDateBound(req.To, true); err != nil {
		return opts, fmt.Errorf("invalid to: %w", err)
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return opts, fmt.Errorf("to is before from")
	}
	return opts, nil
}

// CloseLotRequest is the body of POST /api/portfolio/lots/close.
type CloseLotRequest struct {
	Lot  domain.Trade `json:"lot"`
	Sale struct {
		ExecutedAt time.Time       `json:"executed_at"`
		Quantity   decimal.Decimal `json:"quantity"`
		Price      decimal.Decimal `json:"price"`
		Fees       decimal.Decimal `json:"fees"`
	} `json:"sale"`
}

// CloseLotResponse holds the closed part of the lot and what is left open.
// Remaining is null when the sale consumed the whole lot.
type CloseLotResponse struct {
	Closed    domain.Trade  `json:"closed"`
	Remaining *domain.Trade `json:"remaining"`
}

// HandleCloseLot sells part or all of a buy lot.
// POST /api/portfolio/lots/close
func (h *PortfolioHandlers) HandleCloseLot(w http.ResponseWriter, r *http.Request) {
	var req CloseLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid request body")
		return
	}

	sale := ledger.LotSale{
		ExecutedAt: req.Sale.ExecutedAt,
		Quantity:   req.Sale.Quantity,
		Price:      req.Sale.Price,
		Fees:       req.Sale.Fees,
	}
	if sale.ExecutedAt.IsZero() {
		sale.ExecutedAt = time.Now().UTC()
	}

	remaining, closed, err := h.valuer.CloseLot(req.Lot, sale)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTrade) {
			writeError(w, h.log, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("lot_id", req.Lot.ID).Msg("Failed to close lot")
		writeError(w, h.log, http.StatusInternalServerError, "failed to close lot")
		return
	}

	writeJSON(w, h.log, http.StatusOK, CloseLotResponse{Closed: closed, Remaining: remaining})
}
