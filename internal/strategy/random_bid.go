package strategy

import "github.com/realmfikri/marketsim/internal/types"

// RandomBidBot places short-lived limit bids around the mid price,
// canceling each one after a fixed lifetime if it hasn't traded away.
// Ported from the teacher's RandomBidBot.
type RandomBidBot struct {
	base
	IntervalNs int64
	LifetimeNs int64
	Quantity   int64
	RangeTicks int64
}

// NewRandomBidBot builds a bot with the teacher's default pacing
// (200ms interval, 2s lifetime, qty 1, range 5 ticks) translated to
// simulated nanoseconds.
func NewRandomBidBot(id types.AgentID, symbol string, tickSize, seed int64) *RandomBidBot {
	return &RandomBidBot{
		base:       newBase(id, symbol, tickSize, seed),
		IntervalNs: 200_000_000,
		LifetimeNs: 2_000_000_000,
		Quantity:   1,
		RangeTicks: 5,
	}
}

func (b *RandomBidBot) Start(t int64) {
	b.schedule(t+b.IntervalNs, b.placeBid)
}

func (b *RandomBidBot) Wake(t int64) {
	b.fireWake(t)
}

func (b *RandomBidBot) Receive(t int64, msg types.Message) {
	if b.observeMarketData(msg) {
		return
	}
	if body, ok := msg.Body.(types.OrderRejectedBody); ok && body.RefType == types.RefOrderID {
		delete(b.owned, body.Ref)
	}
}

func (b *RandomBidBot) placeBid(t int64) {
	mid := b.mid()
	if mid > 0 {
		delta := b.rng.Int63n(b.RangeTicks+1) * b.tick
		price := mid - delta
		if price <= 0 {
			price = b.tick
		}

		id := b.nextID("bid")
		b.placeLimit(t, id, types.Buy, price, b.Quantity)
		b.schedule(t+b.LifetimeNs, func(t2 int64) {
			if _, ok := b.owned[id]; ok {
				b.cancel(id)
			}
		})
	}
	b.schedule(t+b.IntervalNs, b.placeBid)
}
