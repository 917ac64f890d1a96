package book

import (
	"testing"

	"github.com/realmfikri/marketsim/internal/types"
)

func TestLimitMatchPriceIsEarlierOrders(t *testing.T) {
	b := New("BTCUSD")

	execs := b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 1, Symbol: "BTCUSD", Side: types.Sell, Price: 101, Quantity: 5, Ts: 0})
	if len(execs) != 0 {
		t.Fatalf("resting order should not match against an empty book")
	}

	execs = b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 2, Symbol: "BTCUSD", Side: types.Buy, Price: 102, Quantity: 3, Ts: 1})
	if len(execs) != 1 {
		t.Fatalf("expected one execution, got %d", len(execs))
	}
	if execs[0].Price != 101 || execs[0].Quantity != 3 {
		t.Fatalf("unexpected execution: %+v", execs[0])
	}
	if execs[0].MakerOrderID != "ask1" || execs[0].MakerAgent != 1 || execs[0].TakerAgent != 2 {
		t.Fatalf("unexpected maker/taker attribution: %+v", execs[0])
	}
}

func TestMarketOrderSweepsBestLevels(t *testing.T) {
	b := New("ETHUSD")
	b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 1, Symbol: "ETHUSD", Side: types.Sell, Price: 50, Quantity: 2, Ts: 0})
	b.PlaceLimit(types.LimitOrder{ID: "ask2", Agent: 1, Symbol: "ETHUSD", Side: types.Sell, Price: 55, Quantity: 5, Ts: 1})

	filled, execs := b.PlaceMarket(2, types.Buy, 4, 2)
	if filled != 4 {
		t.Fatalf("expected full fill of 4, got %d", filled)
	}
	if len(execs) != 2 {
		t.Fatalf("expected two executions, got %d", len(execs))
	}
	if execs[0].Price != 50 || execs[0].Quantity != 2 {
		t.Fatalf("unexpected first execution: %+v", execs[0])
	}
	if execs[1].Price != 55 || execs[1].Quantity != 2 {
		t.Fatalf("unexpected second execution: %+v", execs[1])
	}
}

func TestMarketOrderPartialFillOnThinBook(t *testing.T) {
	b := New("SOLUSD")
	b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 1, Symbol: "SOLUSD", Side: types.Sell, Price: 10, Quantity: 1, Ts: 0})

	filled, execs := b.PlaceMarket(2, types.Buy, 5, 1)
	if filled != 1 {
		t.Fatalf("expected partial fill of 1, got %d", filled)
	}
	if len(execs) != 1 {
		t.Fatalf("expected one execution, got %d", len(execs))
	}
}

func TestCancelRemovesOrderFromMatching(t *testing.T) {
	b := New("SOLUSD")
	b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 0})
	b.PlaceLimit(types.LimitOrder{ID: "bid2", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 9, Quantity: 1, Ts: 1})

	side, price, qty, ok := b.Cancel("bid1")
	if !ok {
		t.Fatalf("expected bid1 to be found")
	}
	if side != types.Buy || price != 10 || qty != 1 {
		t.Fatalf("unexpected cancel result: side=%v price=%d qty=%d", side, price, qty)
	}

	if _, _, _, ok := b.Cancel("bid1"); ok {
		t.Fatalf("expected second cancel of bid1 to report not found")
	}

	execs := b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 2, Symbol: "SOLUSD", Side: types.Sell, Price: 9, Quantity: 1, Ts: 2})
	if len(execs) != 1 || execs[0].MakerOrderID != "bid2" {
		t.Fatalf("expected match against remaining resting order bid2, got %+v", execs)
	}
}

func TestModifyPriceChangeResetsTimestamp(t *testing.T) {
	b := New("SOLUSD")
	b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 0})
	b.PlaceLimit(types.LimitOrder{ID: "bid2", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 1})

	newPrice := int64(11)
	updated, err := b.Modify("bid1", &newPrice, nil, 5)
	if err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if updated.Ts != 5 {
		t.Fatalf("expected ts reset to 5 on price change, got %d", updated.Ts)
	}

	execs := b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 2, Symbol: "SOLUSD", Side: types.Sell, Price: 10, Quantity: 1, Ts: 6})
	if len(execs) != 1 || execs[0].MakerOrderID != "bid1" {
		t.Fatalf("expected re-priced bid1 to match first, got %+v", execs)
	}
}

func TestModifyZeroQuantityCancels(t *testing.T) {
	b := New("SOLUSD")
	b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 0})

	zero := int64(0)
	if _, err := b.Modify("bid1", nil, &zero, 1); err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if _, _, _, ok := b.Cancel("bid1"); ok {
		t.Fatalf("expected bid1 to already be gone after zero-quantity modify")
	}
}

func TestModifyUnknownIDErrors(t *testing.T) {
	b := New("SOLUSD")
	if _, err := b.Modify("nope", nil, nil, 0); err == nil {
		t.Fatalf("expected an error for an unknown order id")
	}
}

func TestSnapshotAggregatesByPriceAndRespectsDepth(t *testing.T) {
	b := New("SOLUSD")
	b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 0})
	b.PlaceLimit(types.LimitOrder{ID: "bid2", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 2, Ts: 1})
	b.PlaceLimit(types.LimitOrder{ID: "bid3", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 9, Quantity: 3, Ts: 2})

	snap := b.Snapshot(1)
	if len(snap.Bids) != 1 {
		t.Fatalf("expected depth-limited snapshot to have 1 level, got %d", len(snap.Bids))
	}
	if snap.Bids[0].Price != 10 || snap.Bids[0].Qty != 3 {
		t.Fatalf("unexpected aggregated level: %+v", snap.Bids[0])
	}

	full := b.Snapshot(10)
	if len(full.Bids) != 2 {
		t.Fatalf("expected 2 price levels at full depth, got %d", len(full.Bids))
	}
}

func TestScenarioUncrossedRestingBook(t *testing.T) {
	b := New("SIM")
	execs := b.PlaceLimit(types.LimitOrder{ID: "b1", Agent: 1, Symbol: "SIM", Side: types.Buy, Price: 9900, Quantity: 10, Ts: 1})
	if len(execs) != 0 {
		t.Fatalf("expected no executions, got %+v", execs)
	}
	execs = b.PlaceLimit(types.LimitOrder{ID: "a1", Agent: 2, Symbol: "SIM", Side: types.Sell, Price: 10100, Quantity: 5, Ts: 2})
	if len(execs) != 0 {
		t.Fatalf("expected no executions, got %+v", execs)
	}

	snap := b.Snapshot(1)
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 9900 || snap.Bids[0].Qty != 10 {
		t.Fatalf("unexpected bids: %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 10100 || snap.Asks[0].Qty != 5 {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
	if snap.Last != nil {
		t.Fatalf("expected nil last, got %v", *snap.Last)
	}
}

func TestScenarioCrossAtInsertionPartialFill(t *testing.T) {
	b := New("SIM")
	b.PlaceLimit(types.LimitOrder{ID: "b1", Agent: 1, Symbol: "SIM", Side: types.Buy, Price: 9900, Quantity: 10, Ts: 1})
	b.PlaceLimit(types.LimitOrder{ID: "a1", Agent: 2, Symbol: "SIM", Side: types.Sell, Price: 10100, Quantity: 5, Ts: 2})

	execs := b.PlaceLimit(types.LimitOrder{ID: "b2", Agent: 3, Symbol: "SIM", Side: types.Buy, Price: 10200, Quantity: 3, Ts: 3})
	if len(execs) != 1 {
		t.Fatalf("expected one execution, got %+v", execs)
	}
	if execs[0].Price != 10100 || execs[0].Quantity != 3 || execs[0].MakerAgent != 2 || execs[0].TakerAgent != 3 {
		t.Fatalf("unexpected execution: %+v", execs[0])
	}

	snap := b.Snapshot(10)
	if snap.Last == nil || *snap.Last != 10100 {
		t.Fatalf("unexpected last: %v", snap.Last)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 10100 || snap.Asks[0].Qty != 2 {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
	if _, _, _, ok := b.Cancel("b2"); ok {
		t.Fatalf("expected b2 to not be resident after a full fill")
	}
}

func TestScenarioMarketSweepAcrossLevels(t *testing.T) {
	b := New("SIM")
	b.PlaceLimit(types.LimitOrder{ID: "a1", Agent: 1, Symbol: "SIM", Side: types.Sell, Price: 100, Quantity: 2, Ts: 1})
	b.PlaceLimit(types.LimitOrder{ID: "a2", Agent: 1, Symbol: "SIM", Side: types.Sell, Price: 101, Quantity: 3, Ts: 2})

	filled, execs := b.PlaceMarket(2, types.Buy, 4, 3)
	if filled != 4 {
		t.Fatalf("expected filled=4, got %d", filled)
	}
	if len(execs) != 2 || execs[0].Price != 100 || execs[0].Quantity != 2 || execs[1].Price != 101 || execs[1].Quantity != 2 {
		t.Fatalf("unexpected executions: %+v", execs)
	}

	snap := b.Snapshot(10)
	if snap.Last == nil || *snap.Last != 101 {
		t.Fatalf("unexpected last: %v", snap.Last)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 101 || snap.Asks[0].Qty != 1 {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
}

func TestScenarioModifyPreservesTsOnEqualPrice(t *testing.T) {
	b := New("SIM")
	b.PlaceLimit(types.LimitOrder{ID: "b1", Agent: 1, Symbol: "SIM", Side: types.Buy, Price: 500, Quantity: 10, Ts: 1})

	price := int64(500)
	qty := int64(7)
	updated, err := b.Modify("b1", &price, &qty, 9)
	if err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if updated.Ts != 1 {
		t.Fatalf("expected ts to stay 1 on equal-price modify, got %d", updated.Ts)
	}

	newPrice := int64(501)
	updated, err = b.Modify("b1", &newPrice, nil, 9)
	if err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	if updated.Ts != 9 {
		t.Fatalf("expected ts to change to 9 on price change, got %d", updated.Ts)
	}
}

func TestBestBidAskReflectsUncrossedBook(t *testing.T) {
	b := New("SOLUSD")
	if bid, ask := b.BestBidAsk(); bid != nil || ask != nil {
		t.Fatalf("expected nil best bid/ask on an empty book")
	}

	b.PlaceLimit(types.LimitOrder{ID: "bid1", Agent: 1, Symbol: "SOLUSD", Side: types.Buy, Price: 10, Quantity: 1, Ts: 0})
	b.PlaceLimit(types.LimitOrder{ID: "ask1", Agent: 2, Symbol: "SOLUSD", Side: types.Sell, Price: 12, Quantity: 1, Ts: 1})

	bid, ask := b.BestBidAsk()
	if bid == nil || *bid != 10 {
		t.Fatalf("unexpected best bid: %v", bid)
	}
	if ask == nil || *ask != 12 {
		t.Fatalf("unexpected best ask: %v", ask)
	}
}
