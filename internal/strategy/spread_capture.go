package strategy

import "github.com/realmfikri/marketsim/internal/types"

// SpreadCaptureBot maintains a paired bid/ask and re-prices the pair
// whenever the mid has moved by ThresholdTicks or more since it was
// anchored, or the pair has outlived its lifetime. Ported from the
// teacher's SpreadCaptureBot.
type SpreadCaptureBot struct {
	base
	IntervalNs     int64
	LifetimeNs     int64
	ThresholdTicks int64
	Quantity       int64
	pair           *pairedOrders
}

type pairedOrders struct {
	buyID     string
	sellID    string
	anchorMid int64
	placedAt  int64
}

func NewSpreadCaptureBot(id types.AgentID, symbol string, tickSize, seed int64) *SpreadCaptureBot {
	return &SpreadCaptureBot{
		base:           newBase(id, symbol, tickSize, seed),
		IntervalNs:     300_000_000,
		LifetimeNs:     3_000_000_000,
		ThresholdTicks: 3,
		Quantity:       1,
	}
}

func (b *SpreadCaptureBot) Start(t int64) {
	b.schedule(t+b.IntervalNs, b.refresh)
}

func (b *SpreadCaptureBot) Wake(t int64) {
	b.fireWake(t)
}

func (b *SpreadCaptureBot) Receive(t int64, msg types.Message) {
	if b.observeMarketData(msg) {
		return
	}
	if body, ok := msg.Body.(types.OrderRejectedBody); ok && body.RefType == types.RefOrderID {
		delete(b.owned, body.Ref)
	}
}

func (b *SpreadCaptureBot) refresh(t int64) {
	defer b.schedule(t+b.IntervalNs, b.refresh)

	if b.last == nil || len(b.last.Bids) == 0 || len(b.last.Asks) == 0 {
		b.cancelPair()
		return
	}
	bestBid := b.last.Bids[0].Price
	bestAsk := b.last.Asks[0].Price
	mid := (bestBid + bestAsk) / 2
	threshold := b.ThresholdTicks * b.tick

	if b.pair != nil {
		if t-b.pair.placedAt > b.LifetimeNs {
			b.cancelPair()
		} else if absInt64(mid-b.pair.anchorMid) >= threshold {
			b.cancelPair()
		}
	}
	if b.pair != nil {
		return
	}

	buyPrice := bestBid
	if mid-b.tick > 0 {
		buyPrice = mid - b.tick
	}
	sellPrice := bestAsk
	if sellPrice <= buyPrice {
		sellPrice = buyPrice + b.tick
	}

	buyID := b.nextID("spread-bid")
	sellID := b.nextID("spread-ask")
	b.placeLimit(t, buyID, types.Buy, buyPrice, b.Quantity)
	b.placeLimit(t, sellID, types.Sell, sellPrice, b.Quantity)

	b.pair = &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: t}
}

func (b *SpreadCaptureBot) cancelPair() {
	if b.pair == nil {
		return
	}
	if _, ok := b.owned[b.pair.buyID]; ok {
		b.cancel(b.pair.buyID)
	}
	if _, ok := b.owned[b.pair.sellID]; ok {
		b.cancel(b.pair.sellID)
	}
	b.pair = nil
}
