// Package exchange implements the exchange agent: the only
// participant permitted to mutate the order book. It validates
// inbound order messages, invokes the book, and produces the
// response protocol (ACCEPTED/EXECUTED/CANCELLED/REJECTED) plus
// market-data broadcasts.
package exchange

import (
	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/agent"
	"github.com/realmfikri/marketsim/internal/book"
	"github.com/realmfikri/marketsim/internal/bus"
	"github.com/realmfikri/marketsim/internal/types"
)

// Config controls exchange behavior beyond the book itself.
type Config struct {
	Symbol string
	// MarketDataDepth is the depth published on every MARKET_DATA
	// broadcast. Spec leaves the publish cadence/depth as a config
	// point; this implementation publishes after every mutation, at
	// this depth (default 10).
	MarketDataDepth int
	// PipelineDelayNs is a small fixed extra delay the exchange adds
	// to its own outbound sends, mirroring the teacher source's
	// "pipeline delay" constant but expressed as an explicit option
	// rather than a hidden global, per the spec's design notes.
	PipelineDelayNs int64
	Bus             *bus.Bus
	Log             *zap.Logger
}

// Exchange is the agent that owns and mutates the order book.
type Exchange struct {
	agent.Base
	cfg  Config
	book *book.Book
	log  *zap.Logger
}

const defaultMarketDataDepth = 10

// New builds an exchange agent bound to id, owning a fresh book for
// cfg.Symbol.
func New(id types.AgentID, cfg Config) *Exchange {
	if cfg.MarketDataDepth <= 0 {
		cfg.MarketDataDepth = defaultMarketDataDepth
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchange{
		Base: agent.NewBase(id),
		cfg:  cfg,
		book: book.New(cfg.Symbol),
		log:  log,
	}
}

// Book exposes a read-only-by-convention handle for external
// collaborators (C7); callers must copy before yielding control,
// exactly as Snapshot/ListOpenOrders already return copies.
func (e *Exchange) Book() *book.Book { return e.book }

func (e *Exchange) Start(t int64) {}
func (e *Exchange) Wake(t int64)   {}

// Receive dispatches an inbound order or query message to its
// handler, per the exchange's state machine (spec §4.4).
func (e *Exchange) Receive(t int64, msg types.Message) {
	switch msg.Type {
	case types.LimitOrderMsg:
		e.handleLimit(t, msg)
	case types.MarketOrderMsg:
		e.handleMarket(t, msg)
	case types.CancelOrderMsg:
		e.handleCancel(t, msg)
	case types.ModifyOrderMsg:
		e.handleModify(t, msg)
	case types.QuerySpreadMsg:
		e.handleQuerySpread(t, msg)
	case types.QueryLastMsg:
		e.handleQueryLast(t, msg)
	default:
		e.log.Warn("exchange received unexpected message type", zap.Stringer("type", msg.Type))
	}
}

func (e *Exchange) handleLimit(t int64, msg types.Message) {
	order, ok := msg.Body.(types.LimitOrder)
	if !ok {
		e.reject(t, msg.From, "malformed limit order", types.RefNone, "")
		return
	}
	order.Agent = msg.From
	order.Ts = t

	if order.Symbol != e.cfg.Symbol {
		e.reject(t, msg.From, "symbol mismatch", types.RefOrderID, order.ID)
		return
	}
	if order.Price <= 0 {
		e.reject(t, msg.From, "price must be positive", types.RefOrderID, order.ID)
		return
	}
	if order.Quantity <= 0 {
		e.reject(t, msg.From, "quantity must be positive", types.RefOrderID, order.ID)
		return
	}
	if order.Side != types.Buy && order.Side != types.Sell {
		e.reject(t, msg.From, "invalid side", types.RefOrderID, order.ID)
		return
	}

	execs := e.book.PlaceLimit(order)
	e.assertUncrossed()

	price := order.Price
	side := order.Side
	qty := order.Quantity
	e.send(t, msg.From, types.OrderAcceptedMsg, types.OrderAcceptedBody{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    &side,
		Price:   &price,
		Qty:     &qty,
	})

	e.settleExecutions(t, order.ID, execs)
	e.publishMarketData(t)
}

func (e *Exchange) handleMarket(t int64, msg types.Message) {
	body, ok := msg.Body.(types.MarketOrderBody)
	if !ok {
		e.reject(t, msg.From, "malformed market order", types.RefNone, "")
		return
	}
	if body.Side != types.Buy && body.Side != types.Sell {
		e.reject(t, msg.From, "invalid side", types.RefNone, "")
		return
	}
	if body.Quantity <= 0 {
		e.reject(t, msg.From, "quantity must be positive", types.RefNone, "")
		return
	}

	filled, execs := e.book.PlaceMarket(msg.From, body.Side, body.Quantity, t)
	e.assertUncrossed()
	if filled == 0 {
		e.reject(t, msg.From, "No liquidity", types.RefNone, "")
		return
	}

	e.settleExecutions(t, "", execs)
	e.publishMarketData(t)
}

func (e *Exchange) handleCancel(t int64, msg types.Message) {
	body, ok := msg.Body.(types.CancelOrderBody)
	if !ok || body.ID == "" {
		e.reject(t, msg.From, "missing order id", types.RefNone, "")
		return
	}

	side, price, qty, found := e.book.Cancel(body.ID)
	if !found {
		e.reject(t, msg.From, "Unknown order id", types.RefOrderID, body.ID)
		return
	}

	e.send(t, msg.From, types.OrderCancelledMsg, types.OrderCancelledBody{
		OrderID: body.ID,
		Side:    side,
		Price:   price,
		Qty:     qty,
	})
	e.publishMarketData(t)
}

func (e *Exchange) handleModify(t int64, msg types.Message) {
	body, ok := msg.Body.(types.ModifyOrderBody)
	if !ok || body.ID == "" {
		e.reject(t, msg.From, "missing order id", types.RefNone, "")
		return
	}
	if body.Price != nil && *body.Price <= 0 {
		e.reject(t, msg.From, "price must be positive", types.RefOrderID, body.ID)
		return
	}
	if body.Qty != nil && *body.Qty < 0 {
		e.reject(t, msg.From, "quantity must be non-negative", types.RefOrderID, body.ID)
		return
	}

	updated, err := e.book.Modify(body.ID, body.Price, body.Qty, t)
	if err != nil {
		e.reject(t, msg.From, "Unknown order id", types.RefOrderID, body.ID)
		return
	}

	side := updated.Side
	price := updated.Price
	qty := updated.Quantity
	e.send(t, msg.From, types.OrderAcceptedMsg, types.OrderAcceptedBody{
		OrderID:  body.ID,
		Symbol:   e.cfg.Symbol,
		Side:     &side,
		Price:    &price,
		Qty:      &qty,
		Replaced: true,
	})
	e.publishMarketData(t)
}

func (e *Exchange) handleQuerySpread(t int64, msg types.Message) {
	depth := e.cfg.MarketDataDepth
	if body, ok := msg.Body.(types.QuerySpreadBody); ok && body.Depth > 0 {
		depth = body.Depth
	}
	e.send(t, msg.From, types.QuerySpreadMsg, e.book.Snapshot(depth))
}

func (e *Exchange) handleQueryLast(t int64, msg types.Message) {
	snap := e.book.Snapshot(0)
	e.send(t, msg.From, types.QueryLastMsg, types.QueryLastBody{Last: snap.Last})
}

// settleExecutions sends one ORDER_EXECUTED to the maker and one to
// the taker per execution, and emits exactly one TRADE bus event per
// execution, strictly between those two sends. takerOrderID is the
// id of the order that triggered the executions, empty for market
// orders which carry no resident id.
func (e *Exchange) settleExecutions(t int64, takerOrderID string, execs []types.Execution) {
	for _, exec := range execs {
		e.send(t, exec.MakerAgent, types.OrderExecutedMsg, types.OrderExecutedBody{
			Symbol:           e.cfg.Symbol,
			Price:            exec.Price,
			Qty:              exec.Quantity,
			Role:             types.Maker,
			SideForRecipient: exec.MakerSide,
			OrderID:          exec.MakerOrderID,
		})

		e.cfg.Bus.Emit(bus.Event{
			Type: bus.TradeEvent,
			Trade: &types.Trade{
				Ts:         t,
				Symbol:     e.cfg.Symbol,
				Price:      exec.Price,
				Quantity:   exec.Quantity,
				MakerAgent: exec.MakerAgent,
				TakerAgent: exec.TakerAgent,
				MakerSide:  exec.MakerSide,
			},
		})

		e.send(t, exec.TakerAgent, types.OrderExecutedMsg, types.OrderExecutedBody{
			Symbol:           e.cfg.Symbol,
			Price:            exec.Price,
			Qty:              exec.Quantity,
			Role:             types.Taker,
			SideForRecipient: exec.MakerSide.Opposite(),
			OrderID:          takerOrderID,
		})
	}
}

func (e *Exchange) publishMarketData(t int64) {
	snap := e.book.Snapshot(e.cfg.MarketDataDepth)
	e.Kernel.Broadcast(e.ID, types.MarketDataMsg, types.MarketDataBody{
		Symbol: snap.Symbol,
		Bids:   snap.Bids,
		Asks:   snap.Asks,
		Last:   snap.Last,
	}, e.cfg.PipelineDelayNs)
}

func (e *Exchange) reject(t int64, to types.AgentID, reason string, refType types.RefType, ref string) {
	e.send(t, to, types.OrderRejectedMsg, types.OrderRejectedBody{
		Reason:  reason,
		RefType: refType,
		Ref:     ref,
	})
	e.cfg.Bus.Emit(bus.Event{
		Type: bus.OrderRejectedEvent,
		Rejected: &types.OrderRejectedBody{
			Reason:  reason,
			RefType: refType,
			Ref:     ref,
		},
	})
}

func (e *Exchange) send(t int64, to types.AgentID, typ types.MessageType, body interface{}) {
	e.Kernel.Send(e.ID, to, typ, body, e.cfg.PipelineDelayNs)
}

// assertUncrossed is the one fatal-invariant check named by spec: a
// crossed book after a match completes means the matching loop has a
// bug, not a recoverable user-facing condition, so the run halts with
// a diagnostic rather than continuing against corrupted state.
func (e *Exchange) assertUncrossed() {
	bestBid, bestAsk := e.book.BestBidAsk()
	if bestBid == nil || bestAsk == nil {
		return
	}
	if *bestBid >= *bestAsk {
		e.log.Fatal("crossed book detected after match",
			zap.String("symbol", e.cfg.Symbol),
			zap.Int64("bestBid", *bestBid),
			zap.Int64("bestAsk", *bestAsk))
	}
}
