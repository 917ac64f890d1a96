// Package strategy holds reference trading agents that exercise the
// kernel/exchange path like any other participant: they only see the
// agent.Agent contract (Attach/Start/Stop/Receive/Wake), never the
// book directly. Ported from the teacher's bots package (RandomBidBot,
// RandomAskBot, SpreadCaptureBot, the supervisor's pnlTracker), with
// the wall-clock ticker and throttled client replaced by the kernel's
// own ScheduleWake mechanism, since these agents now live inside the
// simulated clock rather than driving it from outside.
package strategy

import (
	"fmt"
	"math/rand"

	"github.com/realmfikri/marketsim/internal/agent"
	"github.com/realmfikri/marketsim/internal/types"
)

type scheduledFunc func(t int64)

// base holds the bookkeeping every reference strategy shares: its own
// resident order ids, the latest market data it has observed, a seeded
// PRNG, and a self-scheduled action queue standing in for the
// teacher's time.Ticker-driven loop.
type base struct {
	agent.Base
	symbol  string
	tick    int64
	rng     *rand.Rand
	last    *types.MarketDataBody
	pending map[int64][]scheduledFunc
	owned   map[string]struct{}
	seq     int64
}

func newBase(id types.AgentID, symbol string, tickSize int64, seed int64) base {
	return base{
		Base:    agent.NewBase(id),
		symbol:  symbol,
		tick:    tickSize,
		rng:     rand.New(rand.NewSource(seed)),
		pending: make(map[int64][]scheduledFunc),
		owned:   make(map[string]struct{}),
	}
}

// schedule records fn to run the next time Wake fires at exactly `at`,
// and asks the kernel to deliver that wake-up.
func (b *base) schedule(at int64, fn scheduledFunc) {
	b.pending[at] = append(b.pending[at], fn)
	b.ScheduleWake(at)
}

// fireWake runs and clears every action scheduled for exactly t. A
// strategy's Wake handler calls this once per invocation.
func (b *base) fireWake(t int64) {
	fns := b.pending[t]
	delete(b.pending, t)
	for _, fn := range fns {
		fn(t)
	}
}

func (b *base) observeMarketData(msg types.Message) bool {
	body, ok := msg.Body.(types.MarketDataBody)
	if !ok {
		return false
	}
	b.last = &body
	return true
}

// mid mirrors the teacher's midPrice helper: average of best bid/ask
// when both are known, otherwise whichever side is known, otherwise 0.
func (b *base) mid() int64 {
	if b.last == nil {
		return 0
	}
	var bid, ask int64
	if len(b.last.Bids) > 0 {
		bid = b.last.Bids[0].Price
	}
	if len(b.last.Asks) > 0 {
		ask = b.last.Asks[0].Price
	}
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	case ask > 0:
		return ask
	default:
		return 0
	}
}

func (b *base) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d-%d", prefix, b.ID, b.seq)
}

func (b *base) exchangeID() types.AgentID {
	return b.Kernel.ExchangeID()
}

func (b *base) placeLimit(t int64, id string, side types.Side, price, qty int64) {
	b.owned[id] = struct{}{}
	b.Send(b.exchangeID(), types.LimitOrderMsg, types.LimitOrder{
		ID:       id,
		Agent:    b.ID,
		Symbol:   b.symbol,
		Side:     side,
		Price:    price,
		Quantity: qty,
		Ts:       t,
	})
}

func (b *base) cancel(id string) {
	b.Send(b.exchangeID(), types.CancelOrderMsg, types.CancelOrderBody{ID: id})
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
