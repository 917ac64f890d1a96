// Package sink holds append-only external loggers that subscribe to
// the kernel's event bus and persist rows outside the core; they
// never touch the book or kernel directly, matching spec's rule that
// the core carries no intrinsic persistence. Ported from
// ismaiel54-fault-tolerant-trading-pipeline's idempotency.Store, which
// opens a modernc.org/sqlite-backed database/sql.DB and migrates a
// fixed schema up front.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/realmfikri/marketsim/internal/bus"
)

// SQLiteSink persists every ORDER_LOG and TRADE event to an
// append-only sqlite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if necessary) the database at path
// and runs its migrations.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sink directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite sink: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite sink: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS order_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_ns INTEGER NOT NULL,
			from_agent INTEGER NOT NULL,
			to_agent INTEGER NOT NULL,
			msg_type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ns INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			price INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			maker_agent INTEGER NOT NULL,
			taker_agent INTEGER NOT NULL,
			maker_side TEXT NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Attach subscribes the sink to b's ORDER_LOG and TRADE events.
func (s *SQLiteSink) Attach(b *bus.Bus) {
	b.On(bus.OrderLogEvent, s.onOrderLog)
	b.On(bus.TradeEvent, s.onTrade)
}

func (s *SQLiteSink) onOrderLog(ev bus.Event) {
	l := ev.OrderLog
	if l == nil {
		return
	}
	_, _ = s.db.ExecContext(context.Background(),
		`INSERT INTO order_log (at_ns, from_agent, to_agent, msg_type) VALUES (?, ?, ?, ?)`,
		l.At, int64(l.From), int64(l.To), l.Type.String(),
	)
}

func (s *SQLiteSink) onTrade(ev bus.Event) {
	t := ev.Trade
	if t == nil {
		return
	}
	_, _ = s.db.ExecContext(context.Background(),
		`INSERT INTO trades (ts_ns, symbol, price, quantity, maker_agent, taker_agent, maker_side) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Ts, t.Symbol, t.Price, t.Quantity, int64(t.MakerAgent), int64(t.TakerAgent), t.MakerSide.String(),
	)
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
