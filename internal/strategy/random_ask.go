package strategy

import "github.com/realmfikri/marketsim/internal/types"

// RandomAskBot is RandomBidBot's mirror image on the sell side. Ported
// from the teacher's RandomAskBot.
type RandomAskBot struct {
	base
	IntervalNs int64
	LifetimeNs int64
	Quantity   int64
	RangeTicks int64
}

func NewRandomAskBot(id types.AgentID, symbol string, tickSize, seed int64) *RandomAskBot {
	return &RandomAskBot{
		base:       newBase(id, symbol, tickSize, seed),
		IntervalNs: 200_000_000,
		LifetimeNs: 2_000_000_000,
		Quantity:   1,
		RangeTicks: 5,
	}
}

func (b *RandomAskBot) Start(t int64) {
	b.schedule(t+b.IntervalNs, b.placeAsk)
}

func (b *RandomAskBot) Wake(t int64) {
	b.fireWake(t)
}

func (b *RandomAskBot) Receive(t int64, msg types.Message) {
	if b.observeMarketData(msg) {
		return
	}
	if body, ok := msg.Body.(types.OrderRejectedBody); ok && body.RefType == types.RefOrderID {
		delete(b.owned, body.Ref)
	}
}

func (b *RandomAskBot) placeAsk(t int64) {
	mid := b.mid()
	if mid > 0 {
		delta := b.rng.Int63n(b.RangeTicks+1) * b.tick
		price := mid + delta

		id := b.nextID("ask")
		b.placeLimit(t, id, types.Sell, price, b.Quantity)
		b.schedule(t+b.LifetimeNs, func(t2 int64) {
			if _, ok := b.owned[id]; ok {
				b.cancel(id)
			}
		})
	}
	b.schedule(t+b.IntervalNs, b.placeAsk)
}
