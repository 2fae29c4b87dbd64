package ledger

import (
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotSale describes a sale taken out of a single buy lot.
type LotSale struct {
	ExecutedAt time.Time
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Fees       decimal.Decimal
}

// SplitLot closes part (or all) of an open buy lot.
//
// The returned closed trade carries the sold quantity, its share of the buy
// fees and the realized P&L of the sale. remaining is the shrunk lot, or nil
// when the sale consumed the whole lot; in that case the closed trade keeps
// the original lot ID, otherwise it gets a fresh one.
func SplitLot(lot domain.Trade, sale LotSale) (remaining *domain.Trade, closed domain.Trade, err error) {
	if lot.Direction != domain.DirectionBuy || lot.Closed {
		return nil, domain.Trade{}, fmt.Errorf("%w: lot %s is not an open buy", domain.ErrInvalidTrade, lot.ID)
	}
	if err := ValidateTrade(lot); err != nil {
		return nil, domain.Trade{}, err
	}
	if !sale.Quantity.IsPositive() {
		return nil, domain.Trade{}, fmt.Errorf("%w: sale quantity must be positive", domain.ErrInvalidTrade)
	}
	if sale.Quantity.GreaterThan(lot.Quantity) {
		return nil, domain.Trade{}, fmt.Errorf("%w: sale of %s exceeds lot quantity %s",
			domain.ErrInvalidTrade, sale.Quantity, lot.Quantity)
	}

	whole := sale.Quantity.Equal(lot.Quantity)

	buyFees := lot.Fees
	if !whole {
		buyFees = lot.Fees.Mul(sale.Quantity).DivRound(lot.Quantity, DivisionPrecision)
	}

	basis := lot.Price.Mul(sale.Quantity).Add(buyFees)
	realized := sale.Price.Mul(sale.Quantity).Sub(sale.Fees).Sub(basis)

	closed = lot
	closed.Quantity = sale.Quantity
	closed.Fees = buyFees
	closed.RealizedPnL = &realized
	closed.Closed = true

	if whole {
		return nil, closed, nil
	}

	closed.ID = uuid.New().String()

	rest := lot
	rest.Quantity = lot.Quantity.Sub(sale.Quantity)
	rest.Fees = lot.Fees.Sub(buyFees)
	return &rest, closed, nil
}
