// Package humantrader implements the agent.Agent the gateway drives
// on behalf of human order entry, translating blocking HTTP/WS calls
// into kernel sends and correlating the exchange's asynchronous
// response messages back to whichever call triggered them. The
// teacher's server package called the book directly in-process since
// its engine was already synchronous from the caller's point of view;
// here the book is reachable only through agent message-passing, so
// every call blocks on a channel until its matching response is
// delivered by Receive.
package humantrader

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/agent"
	"github.com/realmfikri/marketsim/internal/pubsub"
	"github.com/realmfikri/marketsim/internal/types"
)

// Fill is one ORDER_EXECUTED notification, pushed to subscribers the
// way the teacher's tradeHub pushed MatchResults.
type Fill struct {
	OrderID string
	types.OrderExecutedBody
}

// Balances is the trader's own running inventory and cash, accrued
// from its ORDER_EXECUTED fills the same way internal/strategy/pnl.go
// accrues positions from TRADE bus events — but scoped to this one
// agent, so there is no ownership lookup: every fill the trader
// receives is by definition its own.
type Balances struct {
	Qty  int64
	Cash int64
}

// Trader is the agent one human participant (or one gateway client
// session) is bound to.
type Trader struct {
	agent.Base
	Symbol string

	mu        sync.Mutex
	marketMu  sync.Mutex
	byOrderID map[string]chan types.Message
	marketCh  chan types.Message
	spreadCh  chan types.Message
	lastCh    chan types.Message
	open      map[string]types.LimitOrder
	balances  Balances

	fills *pubsub.Hub[Fill]
	book  *pubsub.Hub[types.MarketDataBody]
}

// New builds a human-trader agent bound to id, trading symbol. log may
// be nil.
func New(id types.AgentID, symbol string, log *zap.Logger) *Trader {
	return &Trader{
		Base:      agent.NewBase(id),
		Symbol:    symbol,
		byOrderID: make(map[string]chan types.Message),
		open:      make(map[string]types.LimitOrder),
		fills:     pubsub.New[Fill](log),
		book:      pubsub.New[types.MarketDataBody](log),
	}
}

func (t *Trader) Start(nowNs int64) {}
func (t *Trader) Wake(nowNs int64)  {}

// Fills exposes the fill-notification hub for streaming endpoints.
func (t *Trader) Fills() *pubsub.Hub[Fill] { return t.fills }

// BookUpdates exposes the market-data hub for streaming endpoints.
func (t *Trader) BookUpdates() *pubsub.Hub[types.MarketDataBody] { return t.book }

// Receive routes an exchange response to the channel awaiting it, or
// to a streaming hub for notifications nobody is blocked on. It also
// keeps the trader's own open-order and balance bookkeeping current,
// since there is no synchronous "list my orders" request in the wire
// protocol to ask the exchange for it later.
func (t *Trader) Receive(nowNs int64, msg types.Message) {
	switch msg.Type {
	case types.OrderAcceptedMsg:
		if body, ok := msg.Body.(types.OrderAcceptedBody); ok {
			t.trackAccepted(nowNs, body)
		}
		t.resolveByID(orderIDOf(msg.Body), msg)
	case types.OrderCancelledMsg:
		if body, ok := msg.Body.(types.OrderCancelledBody); ok {
			t.trackCancelled(body.OrderID)
			t.resolveByID(body.OrderID, msg)
		}
	case types.OrderRejectedMsg:
		if body, ok := msg.Body.(types.OrderRejectedBody); ok && body.RefType == types.RefOrderID {
			t.resolveByID(body.Ref, msg)
		} else {
			t.resolveMarket(msg)
		}
	case types.OrderExecutedMsg:
		if body, ok := msg.Body.(types.OrderExecutedBody); ok {
			t.trackExecuted(body)
			t.fills.Broadcast(Fill{OrderID: body.OrderID, OrderExecutedBody: body})
			if body.Role == types.Taker {
				t.tryResolveMarket(msg)
			}
		}
	case types.MarketDataMsg:
		if body, ok := msg.Body.(types.MarketDataBody); ok {
			t.book.Broadcast(body)
		}
	case types.QuerySpreadMsg:
		t.resolveSpread(msg)
	case types.QueryLastMsg:
		t.resolveLast(msg)
	}

	// A market order's acceptance has no resident id to key on; its
	// only observable response is either a rejection (handled above)
	// or the fills it produces, so PlaceMarket below waits for
	// whichever of the two arrives first rather than for an
	// ORDER_ACCEPTED.
}

// trackAccepted records or updates a resident order from its own
// ORDER_ACCEPTED response (covers both initial placement and a
// successful modify, which replies the same way with Replaced=true).
func (t *Trader) trackAccepted(nowNs int64, body types.OrderAcceptedBody) {
	if body.Side == nil || body.Price == nil || body.Qty == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if *body.Qty <= 0 {
		// A modify to quantity zero removes the order from the book.
		delete(t.open, body.OrderID)
		return
	}
	t.open[body.OrderID] = types.LimitOrder{
		ID:       body.OrderID,
		Agent:    t.ID,
		Symbol:   body.Symbol,
		Side:     *body.Side,
		Price:    *body.Price,
		Quantity: *body.Qty,
		Ts:       nowNs,
	}
}

func (t *Trader) trackCancelled(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, orderID)
}

// trackExecuted updates balances for every fill the trader receives,
// and for any fill that names one of its tracked orders (as maker, or
// as the taker of a crossing limit order) shrinks (or removes) that
// order, mirroring how the book itself decrements an order's quantity
// on a partial fill. Market-order fills carry no order id and only
// touch balances.
func (t *Trader) trackExecuted(body types.OrderExecutedBody) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if body.SideForRecipient == types.Buy {
		t.balances.Qty += body.Qty
		t.balances.Cash -= body.Price * body.Qty
	} else {
		t.balances.Qty -= body.Qty
		t.balances.Cash += body.Price * body.Qty
	}

	order, ok := t.open[body.OrderID]
	if !ok {
		return
	}
	order.Quantity -= body.Qty
	if order.Quantity <= 0 {
		delete(t.open, body.OrderID)
	} else {
		t.open[body.OrderID] = order
	}
}

// ListOpen returns the trader's own resident orders as currently
// tracked, in no particular order.
func (t *Trader) ListOpen() []types.LimitOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.LimitOrder, 0, len(t.open))
	for _, o := range t.open {
		out = append(out, o)
	}
	return out
}

// GetBalances returns the trader's running position and cash.
func (t *Trader) GetBalances() Balances {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances
}

func orderIDOf(body interface{}) string {
	if b, ok := body.(types.OrderAcceptedBody); ok {
		return b.OrderID
	}
	return ""
}

func (t *Trader) resolveByID(id string, msg types.Message) {
	t.mu.Lock()
	ch := t.byOrderID[id]
	t.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

func (t *Trader) resolveMarket(msg types.Message) {
	t.mu.Lock()
	ch := t.marketCh
	t.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// tryResolveMarket completes a pending PlaceMarket call on its first
// fill, without blocking if nobody is waiting (a resident limit order
// that crosses immediately also produces a taker-side execution, with
// no PlaceMarket call in flight for it).
func (t *Trader) tryResolveMarket(msg types.Message) {
	t.mu.Lock()
	ch := t.marketCh
	t.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

func (t *Trader) resolveSpread(msg types.Message) {
	t.mu.Lock()
	ch := t.spreadCh
	t.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

func (t *Trader) resolveLast(msg types.Message) {
	t.mu.Lock()
	ch := t.lastCh
	t.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// PlaceLimit submits a limit order and blocks until the exchange
// accepts or rejects it.
func (t *Trader) PlaceLimit(ctx context.Context, side types.Side, price, qty int64) (types.OrderAcceptedBody, error) {
	id := uuid.NewString()
	order := types.LimitOrder{ID: id, Agent: t.ID, Symbol: t.Symbol, Side: side, Price: price, Quantity: qty}

	msg, err := t.sendAndAwait(ctx, id, types.LimitOrderMsg, order)
	if err != nil {
		return types.OrderAcceptedBody{}, err
	}
	return decodeAcceptedOrRejected(msg)
}

// PlaceMarket submits a market order. Market orders carry no resident
// id, so calls are serialized: only one PlaceMarket may be in flight
// for a given Trader at a time.
func (t *Trader) PlaceMarket(ctx context.Context, side types.Side, qty int64) error {
	t.marketMu.Lock()
	defer t.marketMu.Unlock()

	ch := make(chan types.Message, 1)
	t.mu.Lock()
	t.marketCh = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.marketCh = nil
		t.mu.Unlock()
	}()

	t.Send(t.Kernel.ExchangeID(), types.MarketOrderMsg, types.MarketOrderBody{Side: side, Quantity: qty})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg := <-ch:
		if body, ok := msg.Body.(types.OrderRejectedBody); ok {
			return fmt.Errorf("market order rejected: %s", body.Reason)
		}
		return nil
	}
}

// Cancel cancels a resident order and blocks until the exchange
// confirms or rejects the cancellation.
func (t *Trader) Cancel(ctx context.Context, orderID string) error {
	msg, err := t.sendAndAwait(ctx, orderID, types.CancelOrderMsg, types.CancelOrderBody{ID: orderID})
	if err != nil {
		return err
	}
	if body, ok := msg.Body.(types.OrderRejectedBody); ok {
		return fmt.Errorf("cancel rejected: %s", body.Reason)
	}
	return nil
}

// Modify amends a resident order's price and/or quantity.
func (t *Trader) Modify(ctx context.Context, orderID string, price, qty *int64) (types.OrderAcceptedBody, error) {
	msg, err := t.sendAndAwait(ctx, orderID, types.ModifyOrderMsg, types.ModifyOrderBody{ID: orderID, Price: price, Qty: qty})
	if err != nil {
		return types.OrderAcceptedBody{}, err
	}
	return decodeAcceptedOrRejected(msg)
}

func (t *Trader) sendAndAwait(ctx context.Context, orderID string, typ types.MessageType, body interface{}) (types.Message, error) {
	ch := make(chan types.Message, 1)
	t.mu.Lock()
	t.byOrderID[orderID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.byOrderID, orderID)
		t.mu.Unlock()
	}()

	t.Send(t.Kernel.ExchangeID(), typ, body)

	select {
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	case msg := <-ch:
		return msg, nil
	}
}

// Spread blocks for the exchange's depth snapshot.
func (t *Trader) Spread(ctx context.Context, depth int) (types.BookSnapshot, error) {
	ch := make(chan types.Message, 1)
	t.mu.Lock()
	t.spreadCh = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.spreadCh = nil
		t.mu.Unlock()
	}()

	t.Send(t.Kernel.ExchangeID(), types.QuerySpreadMsg, types.QuerySpreadBody{Depth: depth})

	select {
	case <-ctx.Done():
		return types.BookSnapshot{}, ctx.Err()
	case msg := <-ch:
		snap, _ := msg.Body.(types.BookSnapshot)
		return snap, nil
	}
}

// Last blocks for the exchange's last-trade-price reply.
func (t *Trader) Last(ctx context.Context) (*int64, error) {
	ch := make(chan types.Message, 1)
	t.mu.Lock()
	t.lastCh = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.lastCh = nil
		t.mu.Unlock()
	}()

	t.Send(t.Kernel.ExchangeID(), types.QueryLastMsg, types.QueryLastBody{})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-ch:
		body, _ := msg.Body.(types.QueryLastBody)
		return body.Last, nil
	}
}

func decodeAcceptedOrRejected(msg types.Message) (types.OrderAcceptedBody, error) {
	if body, ok := msg.Body.(types.OrderAcceptedBody); ok {
		return body, nil
	}
	if body, ok := msg.Body.(types.OrderRejectedBody); ok {
		return types.OrderAcceptedBody{}, fmt.Errorf("rejected: %s", body.Reason)
	}
	return types.OrderAcceptedBody{}, fmt.Errorf("unexpected response type")
}
