package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmfikri/marketsim/internal/agent"
	"github.com/realmfikri/marketsim/internal/bus"
	"github.com/realmfikri/marketsim/internal/kernel"
	"github.com/realmfikri/marketsim/internal/types"
)

const exchangeID types.AgentID = 1
const buyerID types.AgentID = 2
const sellerID types.AgentID = 3

type harness struct {
	k  *kernel.Kernel
	ex *Exchange
	b  *bus.Bus
}

func newHarness(t *testing.T) *harness {
	b := bus.New(nil)
	k := kernel.New(kernel.Config{TickMs: 10}, exchangeID)
	ex := New(exchangeID, Config{Symbol: "SIM", Bus: b})
	k.Attach(exchangeID, ex)
	k.Start(0)
	return &harness{k: k, ex: ex, b: b}
}

func TestLimitOrderRestsWhenBookIsEmpty(t *testing.T) {
	h := newHarness(t)
	h.ex.Receive(0, types.Message{From: buyerID, Type: types.LimitOrderMsg, Body: types.LimitOrder{
		ID: "bid1", Symbol: "SIM", Side: types.Buy, Price: 100, Quantity: 5,
	}})

	snap := h.ex.Book().Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(100), snap.Bids[0].Price)
	assert.Equal(t, int64(5), snap.Bids[0].Qty)
}

func TestLimitOrderCrossesAndEmitsOneTradePerExecution(t *testing.T) {
	h := newHarness(t)
	var trades []types.Trade
	h.b.On(bus.TradeEvent, func(ev bus.Event) { trades = append(trades, *ev.Trade) })

	h.ex.Receive(0, types.Message{From: sellerID, Type: types.LimitOrderMsg, Body: types.LimitOrder{
		ID: "ask1", Symbol: "SIM", Side: types.Sell, Price: 100, Quantity: 5,
	}})
	h.ex.Receive(1, types.Message{From: buyerID, Type: types.LimitOrderMsg, Body: types.LimitOrder{
		ID: "bid1", Symbol: "SIM", Side: types.Buy, Price: 101, Quantity: 3,
	}})

	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(3), trades[0].Quantity)
	assert.Equal(t, sellerID, trades[0].MakerAgent)
	assert.Equal(t, buyerID, trades[0].TakerAgent)
}

func TestRejectsSymbolMismatch(t *testing.T) {
	h := newHarness(t)
	var rejections []types.OrderRejectedBody
	h.b.On(bus.OrderRejectedEvent, func(ev bus.Event) { rejections = append(rejections, *ev.Rejected) })

	h.ex.Receive(0, types.Message{From: buyerID, Type: types.LimitOrderMsg, Body: types.LimitOrder{
		ID: "bid1", Symbol: "OTHER", Side: types.Buy, Price: 100, Quantity: 1,
	}})

	require.Len(t, rejections, 1)
	assert.Equal(t, "symbol mismatch", rejections[0].Reason)
}

func TestMarketOrderWithNoLiquidityIsRejected(t *testing.T) {
	h := newHarness(t)
	var rejections []types.OrderRejectedBody
	h.b.On(bus.OrderRejectedEvent, func(ev bus.Event) { rejections = append(rejections, *ev.Rejected) })

	h.ex.Receive(0, types.Message{From: buyerID, Type: types.MarketOrderMsg, Body: types.MarketOrderBody{
		Side: types.Buy, Quantity: 1,
	}})

	require.Len(t, rejections, 1)
	assert.Equal(t, "No liquidity", rejections[0].Reason)
}

func TestCancelUnknownOrderIDIsRejected(t *testing.T) {
	h := newHarness(t)
	var rejections []types.OrderRejectedBody
	h.b.On(bus.OrderRejectedEvent, func(ev bus.Event) { rejections = append(rejections, *ev.Rejected) })

	h.ex.Receive(0, types.Message{From: buyerID, Type: types.CancelOrderMsg, Body: types.CancelOrderBody{ID: "nope"}})

	require.Len(t, rejections, 1)
	assert.Equal(t, "Unknown order id", rejections[0].Reason)
}

func TestMarketDataBroadcastAfterEveryMutation(t *testing.T) {
	h := newHarness(t)
	var broadcasts int
	other := &captureAgent{Base: agent.NewBase(4)}
	h.k.Attach(4, other)

	h.ex.Receive(0, types.Message{From: buyerID, Type: types.LimitOrderMsg, Body: types.LimitOrder{
		ID: "bid1", Symbol: "SIM", Side: types.Buy, Price: 100, Quantity: 1,
	}})
	h.k.Tick()
	for _, m := range other.received {
		if m.Type == types.MarketDataMsg {
			broadcasts++
		}
	}
	assert.Equal(t, 1, broadcasts)
}

type captureAgent struct {
	agent.Base
	received []types.Message
}

func (c *captureAgent) Start(t int64) {}
func (c *captureAgent) Wake(t int64)  {}
func (c *captureAgent) Receive(t int64, msg types.Message) {
	c.received = append(c.received, msg)
}
