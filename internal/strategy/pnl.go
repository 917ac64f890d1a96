package strategy

import (
	"sync"

	"github.com/realmfikri/marketsim/internal/bus"
	"github.com/realmfikri/marketsim/internal/types"
)

// Position is an agent's running inventory and cash from observed
// trades.
type Position struct {
	Qty  int64
	Cash int64
}

// PnLTracker accumulates per-agent position and cash from TRADE bus
// events. The teacher's pnlTracker had to check order ownership by id
// because its MatchResult only carried buy/sell order ids; a Trade
// here already carries both agent ids directly, so the bookkeeping
// collapses to a direct credit/debit per side.
type PnLTracker struct {
	mu  sync.Mutex
	pos map[types.AgentID]Position
}

// NewPnLTracker subscribes to b's TRADE events and starts accumulating
// immediately.
func NewPnLTracker(b *bus.Bus) *PnLTracker {
	t := &PnLTracker{pos: make(map[types.AgentID]Position)}
	b.On(bus.TradeEvent, t.onTrade)
	return t
}

func (t *PnLTracker) onTrade(ev bus.Event) {
	tr := ev.Trade
	if tr == nil {
		return
	}

	buyer, seller := tr.TakerAgent, tr.MakerAgent
	if tr.MakerSide == types.Buy {
		buyer, seller = tr.MakerAgent, tr.TakerAgent
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	bp := t.pos[buyer]
	bp.Qty += tr.Quantity
	bp.Cash -= tr.Price * tr.Quantity
	t.pos[buyer] = bp

	sp := t.pos[seller]
	sp.Qty -= tr.Quantity
	sp.Cash += tr.Price * tr.Quantity
	t.pos[seller] = sp
}

// Snapshot returns agent's current position.
func (t *PnLTracker) Snapshot(agent types.AgentID) Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos[agent]
}

// All returns a copy of every tracked agent's position.
func (t *PnLTracker) All() map[types.AgentID]Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[types.AgentID]Position, len(t.pos))
	for k, v := range t.pos {
		out[k] = v
	}
	return out
}
