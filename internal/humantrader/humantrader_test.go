package humantrader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmfikri/marketsim/internal/types"
)

const traderID types.AgentID = 2

func TestListOpenTracksAcceptedCancelledAndFilled(t *testing.T) {
	tr := New(traderID, "SIM", nil)

	side := types.Buy
	price := int64(9900)
	qty := int64(10)
	tr.Receive(0, types.Message{
		From: 1, To: traderID, Type: types.OrderAcceptedMsg,
		Body: types.OrderAcceptedBody{OrderID: "o1", Symbol: "SIM", Side: &side, Price: &price, Qty: &qty},
	})

	open := tr.ListOpen()
	require.Len(t, open, 1)
	assert.Equal(t, "o1", open[0].ID)
	assert.Equal(t, int64(9900), open[0].Price)
	assert.Equal(t, int64(10), open[0].Quantity)

	// A partial maker fill shrinks the resident order without removing it.
	tr.Receive(10, types.Message{
		From: 1, To: traderID, Type: types.OrderExecutedMsg,
		Body: types.OrderExecutedBody{Symbol: "SIM", Price: 9900, Qty: 4, Role: types.Maker, SideForRecipient: types.Buy, OrderID: "o1"},
	})
	open = tr.ListOpen()
	require.Len(t, open, 1)
	assert.Equal(t, int64(6), open[0].Quantity)

	// A fill that exhausts the remaining quantity removes it.
	tr.Receive(20, types.Message{
		From: 1, To: traderID, Type: types.OrderExecutedMsg,
		Body: types.OrderExecutedBody{Symbol: "SIM", Price: 9900, Qty: 6, Role: types.Maker, SideForRecipient: types.Buy, OrderID: "o1"},
	})
	assert.Empty(t, tr.ListOpen())
}

func TestListOpenRemovesOnCancel(t *testing.T) {
	tr := New(traderID, "SIM", nil)

	side := types.Sell
	price := int64(10100)
	qty := int64(5)
	tr.Receive(0, types.Message{
		From: 1, To: traderID, Type: types.OrderAcceptedMsg,
		Body: types.OrderAcceptedBody{OrderID: "o2", Symbol: "SIM", Side: &side, Price: &price, Qty: &qty},
	})
	require.Len(t, tr.ListOpen(), 1)

	tr.Receive(5, types.Message{
		From: 1, To: traderID, Type: types.OrderCancelledMsg,
		Body: types.OrderCancelledBody{OrderID: "o2", Side: types.Sell, Price: 10100, Qty: 5},
	})
	assert.Empty(t, tr.ListOpen())
}

func TestGetBalancesAccruesBothSides(t *testing.T) {
	tr := New(traderID, "SIM", nil)

	tr.Receive(0, types.Message{
		From: 1, To: traderID, Type: types.OrderExecutedMsg,
		Body: types.OrderExecutedBody{Symbol: "SIM", Price: 100, Qty: 3, Role: types.Taker, SideForRecipient: types.Buy, OrderID: ""},
	})
	bal := tr.GetBalances()
	assert.Equal(t, int64(3), bal.Qty)
	assert.Equal(t, int64(-300), bal.Cash)

	tr.Receive(1, types.Message{
		From: 1, To: traderID, Type: types.OrderExecutedMsg,
		Body: types.OrderExecutedBody{Symbol: "SIM", Price: 110, Qty: 2, Role: types.Maker, SideForRecipient: types.Sell, OrderID: "o3"},
	})
	bal = tr.GetBalances()
	assert.Equal(t, int64(1), bal.Qty)
	assert.Equal(t, int64(-80), bal.Cash)
}

func TestListOpenIgnoresModifyAcceptedWithoutResidentFields(t *testing.T) {
	tr := New(traderID, "SIM", nil)

	// An accepted body missing Side/Price/Qty (shouldn't happen for this
	// protocol's own responses, but Receive must not panic on it) leaves
	// the open set untouched.
	tr.Receive(0, types.Message{
		From: 1, To: traderID, Type: types.OrderAcceptedMsg,
		Body: types.OrderAcceptedBody{OrderID: "o4", Symbol: "SIM"},
	})
	assert.Empty(t, tr.ListOpen())
}
