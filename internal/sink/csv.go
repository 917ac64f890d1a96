package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/realmfikri/marketsim/internal/bus"
)

// CSVSink is the CSV-file variant of the append-only trade log, a
// lighter alternative to SQLiteSink for ad hoc runs. It only logs
// trades, written with decimal-rendered prices the same way the
// gateway renders them for JSON.
type CSVSink struct {
	mu sync.Mutex
	w  *csv.Writer
}

// NewCSVSink wraps w with a header row and starts accepting writes.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts_ns", "symbol", "price", "quantity", "maker_agent", "taker_agent", "maker_side"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.Flush()
	return &CSVSink{w: cw}, nil
}

// Attach subscribes the sink to b's TRADE events.
func (s *CSVSink) Attach(b *bus.Bus) {
	b.On(bus.TradeEvent, s.onTrade)
}

func (s *CSVSink) onTrade(ev bus.Event) {
	t := ev.Trade
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Write([]string{
		fmt.Sprintf("%d", t.Ts),
		t.Symbol,
		decimal.New(t.Price, -2).String(),
		fmt.Sprintf("%d", t.Quantity),
		fmt.Sprintf("%d", t.MakerAgent),
		fmt.Sprintf("%d", t.TakerAgent),
		t.MakerSide.String(),
	})
	s.w.Flush()
}
