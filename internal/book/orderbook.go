// Package book implements the canonical matching engine: a
// price-time-priority limit order book supporting limit/market
// orders, cancel, modify and depth snapshots. It is a pure, in-memory
// data structure with no goroutines of its own; the exchange agent
// (internal/exchange) owns the only reference to it and serializes
// all access from the kernel's tick thread. Ported from the teacher
// engine's heap-based matcher (engine/orderbook.go, engine/queue.go),
// generalized to the book/market/cancel/modify/snapshot contract.
package book

import (
	"container/heap"
	"fmt"

	"github.com/realmfikri/marketsim/internal/types"
)

// Book is the matching engine for a single symbol.
type Book struct {
	symbol string
	bids   sideQueue
	asks   sideQueue
	orders map[string]*orderEntry
	last   *int64
	seq    int64
}

// New builds an empty book for symbol.
func New(symbol string) *Book {
	b := &Book{
		symbol: symbol,
		bids:   sideQueue{isBid: true},
		asks:   sideQueue{isBid: false},
		orders: make(map[string]*orderEntry),
	}
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	return b
}

// Symbol returns the symbol this book matches.
func (b *Book) Symbol() string { return b.symbol }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// PlaceLimit inserts order into the correct side, then runs match
// while the book is crossed. Price/quantity validation is the
// exchange's responsibility; PlaceLimit trusts its input.
func (b *Book) PlaceLimit(order types.LimitOrder) []types.Execution {
	resident := order
	entry := &orderEntry{order: &resident, isBid: resident.Side == types.Buy, seq: b.nextSeq()}

	b.orders[resident.ID] = entry
	if entry.isBid {
		heap.Push(&b.bids, entry)
	} else {
		heap.Push(&b.asks, entry)
	}

	return b.match()
}

// PlaceMarket sweeps the opposite side at its best prices until qty
// is exhausted or that side is empty.
func (b *Book) PlaceMarket(agent types.AgentID, side types.Side, qty int64, ts int64) (int64, []types.Execution) {
	var opposing *sideQueue
	if side == types.Buy {
		opposing = &b.asks
	} else {
		opposing = &b.bids
	}

	var execs []types.Execution
	remaining := qty
	for remaining > 0 {
		top := opposing.peek()
		if top == nil {
			break
		}

		tradeQty := min64(remaining, top.order.Quantity)
		tradePrice := top.order.Price
		remaining -= tradeQty
		top.order.Quantity -= tradeQty
		matchPrice := tradePrice
		b.last = &matchPrice

		makerSide := side.Opposite()
		execs = append(execs, types.Execution{
			MakerOrderID: top.order.ID,
			MakerAgent:   top.order.Agent,
			TakerAgent:   agent,
			MakerSide:    makerSide,
			Price:        tradePrice,
			Quantity:     tradeQty,
		})

		if top.order.Quantity == 0 {
			removed := opposing.removeTop()
			delete(b.orders, removed.order.ID)
		}
	}

	return qty - remaining, execs
}

// match repeatedly crosses the best bid against the best ask while
// bestBid.price >= bestAsk.price, per the spec's price-time priority
// algorithm: the match price is the price of whichever top order has
// the earlier priority timestamp (ties favor the bid).
func (b *Book) match() []types.Execution {
	var execs []types.Execution
	for {
		bidTop := b.bids.peek()
		askTop := b.asks.peek()
		if bidTop == nil || askTop == nil {
			break
		}
		if bidTop.order.Price < askTop.order.Price {
			break
		}

		bidEarlier := bidTop.order.Ts <= askTop.order.Ts

		var matchPrice int64
		var makerSide types.Side
		var makerAgent, takerAgent types.AgentID
		var makerOrderID string
		if bidEarlier {
			matchPrice = bidTop.order.Price
			makerSide = types.Buy
			makerAgent = bidTop.order.Agent
			takerAgent = askTop.order.Agent
			makerOrderID = bidTop.order.ID
		} else {
			matchPrice = askTop.order.Price
			makerSide = types.Sell
			makerAgent = askTop.order.Agent
			takerAgent = bidTop.order.Agent
			makerOrderID = askTop.order.ID
		}

		qty := min64(bidTop.order.Quantity, askTop.order.Quantity)
		bidTop.order.Quantity -= qty
		askTop.order.Quantity -= qty

		priceCopy := matchPrice
		b.last = &priceCopy

		execs = append(execs, types.Execution{
			MakerOrderID: makerOrderID,
			MakerAgent:   makerAgent,
			TakerAgent:   takerAgent,
			MakerSide:    makerSide,
			Price:        matchPrice,
			Quantity:     qty,
		})

		if bidTop.order.Quantity == 0 {
			removed := b.bids.removeTop()
			delete(b.orders, removed.order.ID)
		}
		if askTop.order.Quantity == 0 {
			removed := b.asks.removeTop()
			delete(b.orders, removed.order.ID)
		}
	}
	return execs
}

// BestBidAsk returns the current best bid and ask prices, nil when a
// side is empty. Callers use this to assert the no-crossed-book
// invariant after a mutation.
func (b *Book) BestBidAsk() (bestBid *int64, bestAsk *int64) {
	if top := b.bids.peek(); top != nil {
		price := top.order.Price
		bestBid = &price
	}
	if top := b.asks.peek(); top != nil {
		price := top.order.Price
		bestAsk = &price
	}
	return
}

// Cancel removes the matching resident order and returns its former
// side/price/quantity. ok is false if id is unknown.
func (b *Book) Cancel(id string) (side types.Side, price int64, qty int64, ok bool) {
	entry, found := b.orders[id]
	if !found {
		return 0, 0, 0, false
	}
	if entry.isBid {
		b.bids.remove(entry)
	} else {
		b.asks.remove(entry)
	}
	delete(b.orders, id)
	return entry.order.Side, entry.order.Price, entry.order.Quantity, true
}

// Modify mutates an existing resident order's price and/or quantity.
// A quantity of zero removes the order (cancel-equivalent). A price
// change resets the order's priority timestamp to nowTs; an unchanged
// price preserves it.
func (b *Book) Modify(id string, price *int64, qty *int64, nowTs int64) (types.LimitOrder, error) {
	entry, found := b.orders[id]
	if !found {
		return types.LimitOrder{}, fmt.Errorf("unknown order id %q", id)
	}

	if qty != nil && *qty == 0 {
		_, _, _, _ = b.Cancel(id)
		removed := *entry.order
		removed.Quantity = 0
		return removed, nil
	}

	if qty != nil {
		entry.order.Quantity = *qty
	}
	if price != nil && *price != entry.order.Price {
		entry.order.Price = *price
		entry.order.Ts = nowTs
	}

	if entry.isBid {
		b.bids.fix(entry)
	} else {
		b.asks.fix(entry)
	}

	return *entry.order, nil
}

// Snapshot returns aggregated L2 levels per side to depth, plus the
// last trade price.
func (b *Book) Snapshot(depth int) types.BookSnapshot {
	return types.BookSnapshot{
		Symbol: b.symbol,
		Bids:   aggregate(b.bids.entries, depth),
		Asks:   aggregate(b.asks.entries, depth),
		Last:   copyLast(b.last),
	}
}

// ListOpenOrders returns all resident orders, optionally restricted
// to a single agent.
func (b *Book) ListOpenOrders(filter *types.AgentID) []types.LimitOrder {
	out := make([]types.LimitOrder, 0, len(b.orders))
	for _, entry := range b.orders {
		if filter != nil && entry.order.Agent != *filter {
			continue
		}
		out = append(out, *entry.order)
	}
	return out
}

func (b *Book) nextSeq() int64 {
	b.seq++
	return b.seq
}

func copyLast(last *int64) *int64 {
	if last == nil {
		return nil
	}
	v := *last
	return &v
}

// aggregate sorts entries by their heap's priority order (already the
// order.entries slice layout is heap-shaped, not fully sorted) and
// rolls them up by price, truncated to depth price levels. Since a
// binary heap's backing slice is not fully sorted, the entries are
// copied and sorted with the same comparator as the heap before
// aggregation.
func aggregate(entries []*orderEntry, depth int) []types.PriceLevel {
	if len(entries) == 0 {
		return nil
	}
	ordered := make([]*orderEntry, len(entries))
	copy(ordered, entries)
	isBid := ordered[0].isBid
	sortEntries(ordered, isBid)

	levels := make([]types.PriceLevel, 0, depth)
	for _, e := range ordered {
		if n := len(levels); n > 0 && levels[n-1].Price == e.order.Price {
			levels[n-1].Qty += e.order.Quantity
			continue
		}
		if depth > 0 && len(levels) >= depth {
			break
		}
		levels = append(levels, types.PriceLevel{Price: e.order.Price, Qty: e.order.Quantity})
	}
	return levels
}

func sortEntries(entries []*orderEntry, isBid bool) {
	// Simple insertion sort: book depths are small in practice and
	// this keeps the aggregation pure and allocation-free beyond the
	// single copy already made by the caller.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && lessForSort(entries[j], entries[j-1], isBid) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func lessForSort(a, b *orderEntry, isBid bool) bool {
	if a.order.Price != b.order.Price {
		if isBid {
			return a.order.Price > b.order.Price
		}
		return a.order.Price < b.order.Price
	}
	if a.order.Ts != b.order.Ts {
		return a.order.Ts < b.order.Ts
	}
	return a.seq < b.seq
}
