// Package types holds the wire-level data model shared by every
// component of the simulator: agent identities, messages, orders,
// trades and book snapshots.
package types

import "fmt"

// AgentID identifies a participant in the simulation. Id 0 is
// reserved for the out-of-band sender used on WAKEUP messages.
type AgentID int64

// OutOfBandSender is the reserved "from" id on kernel-internal
// WAKEUP messages; no real agent owns it.
const OutOfBandSender AgentID = 0

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// MessageType tags the payload carried by a Message.
type MessageType uint8

const (
	// Agent -> exchange.
	LimitOrderMsg MessageType = iota
	MarketOrderMsg
	CancelOrderMsg
	ModifyOrderMsg
	QuerySpreadMsg
	QueryLastMsg

	// Exchange -> agent.
	OrderAcceptedMsg
	OrderExecutedMsg
	OrderCancelledMsg
	OrderRejectedMsg
	MarketDataMsg

	// Kernel-internal.
	WakeupMsg
)

func (t MessageType) String() string {
	switch t {
	case LimitOrderMsg:
		return "LIMIT_ORDER"
	case MarketOrderMsg:
		return "MARKET_ORDER"
	case CancelOrderMsg:
		return "CANCEL_ORDER"
	case ModifyOrderMsg:
		return "MODIFY_ORDER"
	case QuerySpreadMsg:
		return "QUERY_SPREAD"
	case QueryLastMsg:
		return "QUERY_LAST"
	case OrderAcceptedMsg:
		return "ORDER_ACCEPTED"
	case OrderExecutedMsg:
		return "ORDER_EXECUTED"
	case OrderCancelledMsg:
		return "ORDER_CANCELLED"
	case OrderRejectedMsg:
		return "ORDER_REJECTED"
	case MarketDataMsg:
		return "MARKET_DATA"
	case WakeupMsg:
		return "WAKEUP"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message is the unit routed by the kernel. Once enqueued, At is
// immutable; the kernel delivers messages in nondecreasing At, with
// FIFO order among ties.
type Message struct {
	From AgentID
	To   AgentID
	Type MessageType
	Body interface{}
	At   int64 // virtual delivery time, nanoseconds
}

// Role distinguishes the two sides of a trade from a recipient's
// point of view.
type Role uint8

const (
	Maker Role = iota
	Taker
)

func (r Role) String() string {
	if r == Taker {
		return "TAKER"
	}
	return "MAKER"
}

// LimitOrder is a resident order in the book.
type LimitOrder struct {
	ID       string
	Agent    AgentID
	Symbol   string
	Side     Side
	Price    int64 // cents, > 0
	Quantity int64 // remaining quantity, > 0 while resident
	Ts       int64 // priority timestamp, nanoseconds
}

// Trade is the canonical record of one match.
type Trade struct {
	Ts         int64
	Symbol     string
	Price      int64
	Quantity   int64
	MakerAgent AgentID
	TakerAgent AgentID
	MakerSide  Side
}

// Execution is produced by the book for each match and consumed by
// the exchange agent to build the response protocol.
type Execution struct {
	MakerOrderID string
	MakerAgent   AgentID
	TakerAgent   AgentID
	MakerSide    Side
	Price        int64
	Quantity     int64
}

// PriceLevel is one aggregated row of an L2 snapshot.
type PriceLevel struct {
	Price int64
	Qty   int64
}

// BookSnapshot is the depth-N aggregated view of a book.
type BookSnapshot struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Last   *int64
}

// --- message bodies ---

// MarketOrderBody is the payload of a MARKET_ORDER message.
type MarketOrderBody struct {
	Side     Side
	Quantity int64
}

// CancelOrderBody is the payload of a CANCEL_ORDER message.
type CancelOrderBody struct {
	ID string
}

// ModifyOrderBody is the payload of a MODIFY_ORDER message.
type ModifyOrderBody struct {
	ID    string
	Price *int64
	Qty   *int64
}

// QuerySpreadBody carries the requested depth for QUERY_SPREAD.
type QuerySpreadBody struct {
	Depth int
}

// OrderAcceptedBody is the payload of an ORDER_ACCEPTED response.
type OrderAcceptedBody struct {
	OrderID  string
	Symbol   string
	Side     *Side
	Price    *int64
	Qty      *int64
	Replaced bool
}

// OrderExecutedBody is the payload of an ORDER_EXECUTED response.
type OrderExecutedBody struct {
	Symbol           string
	Price            int64
	Qty              int64
	Role             Role
	SideForRecipient Side
	OrderID          string
}

// OrderCancelledBody is the payload of an ORDER_CANCELLED response.
type OrderCancelledBody struct {
	OrderID string
	Side    Side
	Price   int64
	Qty     int64
}

// RefType names the kind of entity an ORDER_REJECTED refers to.
type RefType uint8

const (
	RefOrderID RefType = iota
	RefNone
)

// OrderRejectedBody is the payload of an ORDER_REJECTED response.
type OrderRejectedBody struct {
	Reason  string
	RefType RefType
	Ref     string
}

// MarketDataBody is the payload of a MARKET_DATA broadcast.
type MarketDataBody struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Last   *int64
}

// QueryLastBody is the reply payload for QUERY_LAST.
type QueryLastBody struct {
	Last *int64
}
