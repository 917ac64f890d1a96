// Package bus implements the kernel's publish-subscribe event bus:
// a statically typed sum of event variants that external collaborators
// (the HTTP/WebSocket gateway, CSV/SQLite sinks, a terminal renderer)
// can observe without becoming agents themselves.
package bus

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/realmfikri/marketsim/internal/types"
)

// EventType tags which variant of Event is populated.
type EventType uint8

const (
	TradeEvent EventType = iota
	OrderLogEvent
	OrderRejectedEvent
	MarketDataEvent
	OracleTickEvent
)

func (t EventType) String() string {
	switch t {
	case TradeEvent:
		return "TRADE"
	case OrderLogEvent:
		return "ORDER_LOG"
	case OrderRejectedEvent:
		return "ORDER_REJECTED"
	case MarketDataEvent:
		return "MARKET_DATA"
	case OracleTickEvent:
		return "ORACLE_TICK"
	default:
		return "UNKNOWN"
	}
}

// OrderLog records a mutating message at send time, before latency is
// applied and before any delivery happens.
type OrderLog struct {
	At   int64
	From types.AgentID
	To   types.AgentID
	Type types.MessageType
	Body interface{}
}

// OracleTick is an opaque external signal; the core only ever
// forwards it on the bus, it never interprets Fundamental or Extra.
type OracleTick struct {
	Ts          int64
	Symbol      string
	Fundamental float64
	Extra       map[string]interface{}
}

// Event is the single sum type carried by the bus. Exactly one field
// other than Type is populated, matching the variant named by Type.
type Event struct {
	Type       EventType
	Trade      *types.Trade
	OrderLog   *OrderLog
	Rejected   *types.OrderRejectedBody
	MarketData *types.MarketDataBody
	Oracle     *OracleTick
}

// Handler observes bus events. Handlers run synchronously on the tick
// thread and must not block or re-enter the kernel's send path.
type Handler func(Event)

// Bus is a single-threaded, synchronous publish-subscribe layer.
type Bus struct {
	mu       sync.Mutex
	handlers map[EventType][]Handler
	log      *zap.Logger
}

// New builds an empty bus. log may be nil, in which case a no-op
// logger is used.
func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{handlers: make(map[EventType][]Handler), log: log}
}

// On registers handler for events of the given type.
func (b *Bus) On(t EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// Off removes the first registered handler whose underlying code
// pointer (as reported by reflect) equals handler's. Closures created
// from the same function literal, or method values of the same method
// on different receivers, share a code pointer and are not told apart.
func (b *Bus) Off(t EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[t]
	target := handlerID(handler)
	for i, h := range hs {
		if handlerID(h) == target {
			b.handlers[t] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// Emit dispatches event to every handler registered for its type,
// synchronously, in registration order. A handler panic is isolated
// so it cannot propagate into the kernel's tick loop.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	hs := make([]Handler, len(b.handlers[event.Type]))
	copy(hs, b.handlers[event.Type])
	b.mu.Unlock()

	for _, h := range hs {
		b.dispatch(h, event)
	}
}

func handlerID(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus handler panicked", zap.Any("type", event.Type), zap.Any("recover", r))
		}
	}()
	h(event)
}
