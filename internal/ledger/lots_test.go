package ledger

import (
	"testing"

	"github.com/aristath/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLot() domain.Trade {
	lot := trade(domain.DirectionBuy, "10", "100", "5", day0)
	lot.ID = "lot-1"
	return lot
}

func TestSplitLot_Partial(t *testing.T) {
	remaining, closed, err := SplitLot(openLot(), LotSale{
		Quantity: d("4"),
		Price:    d("130"),
		Fees:     d("2"),
	})
	require.NoError(t, err)
	require.NotNil(t, remaining)

	assert.Equal(t, "lot-1", remaining.ID)
	assertDecimal(t, "6", remaining.Quantity, "remaining quantity")
	assertDecimal(t, "3", remaining.Fees, "remaining fees")
	assert.False(t, remaining.Closed)

	assert.NotEqual(t, "lot-1", closed.ID)
	_, parseErr := uuid.Parse(closed.ID)
	assert.NoError(t, parseErr)
	assert.True(t, closed.Closed)
	assertDecimal(t, "4", closed.Quantity, "closed quantity")
	assertDecimal(t, "2", closed.Fees, "closed fees")
	require.NotNil(t, closed.RealizedPnL)
	// 4*130 - 2 - (4*100 + 2)
	assertDecimal(t, "116", *closed.RealizedPnL, "realized")
}

func TestSplitLot_WholeLot(t *testing.T) {
	remaining, closed, err := SplitLot(openLot(), LotSale{
		Quantity: d("10"),
		Price:    d("120"),
		Fees:     d("5"),
	})
	require.NoError(t, err)

	assert.Nil(t, remaining)
	assert.Equal(t, "lot-1", closed.ID)
	assert.True(t, closed.Closed)
	require.NotNil(t, closed.RealizedPnL)
	assertDecimal(t, "190", *closed.RealizedPnL, "realized")
}

func TestSplitLot_Rejects(t *testing.T) {
	closedLot := openLot()
	closedLot.Closed = true

	sellLot := openLot()
	sellLot.Direction = domain.DirectionSell

	tests := []struct {
		name string
		lot  domain.Trade
		sale LotSale
	}{
		{"already closed", closedLot, LotSale{Quantity: d("1"), Price: d("1")}},
		{"not a buy", sellLot, LotSale{Quantity: d("1"), Price: d("1")}},
		{"zero quantity", openLot(), LotSale{Quantity: d("0"), Price: d("1")}},
		{"more than the lot", openLot(), LotSale{Quantity: d("11"), Price: d("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SplitLot(tt.lot, tt.sale)
			assert.ErrorIs(t, err, domain.ErrInvalidTrade)
		})
	}
}
