// Package domain declares the core identifiers and value types shared
// by the order book, matching engine, gateway, and trade engine.
package domain

// TickerId identifies an instrument.
type TickerId uint32

// ClientId identifies a client session.
type ClientId uint32

// OrderId is the client-assigned order identifier, unique per
// (client_id, session) for client-originated orders. The exchange
// mints its own market_order_id for book residents.
type OrderId uint64

// Price is a signed integer number of cents, exchange-wide.
type Price int64

// Qty is an unsigned quantity.
type Qty uint32

// Priority is a strictly-monotonic counter assigned at book insertion;
// lower values are more senior.
type Priority uint64

// Side identifies the buy or sell side of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sgn returns +1 for Buy and -1 for Sell, matching the sign convention
// used in position and risk arithmetic.
func (s Side) Sgn() int64 {
	return int64(s)
}

// NoPrice is the sentinel Price denoting "no side" in a BBO snapshot.
const NoPrice Price = 0

// RequestType tags an inbound ClientRequest.
type RequestType uint8

const (
	RequestNew RequestType = iota + 1
	RequestCancel
	RequestModify
)

// ResponseType tags an outbound ClientResponse.
type ResponseType uint8

const (
	ResponseAccepted ResponseType = iota + 1
	ResponseCanceled
	ResponseFilled
	ResponseRejected
	ResponseCancelRejected
)

func (r ResponseType) String() string {
	switch r {
	case ResponseAccepted:
		return "Accepted"
	case ResponseCanceled:
		return "Canceled"
	case ResponseFilled:
		return "Filled"
	case ResponseRejected:
		return "Rejected"
	case ResponseCancelRejected:
		return "CancelRejected"
	default:
		return "Unknown"
	}
}

// RejectReason tags why a request was rejected, carried informally in
// logs; the wire format itself only carries the ResponseType.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectBackpressure
	RejectUnknownTicker
	RejectBadOrder
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "None"
	case RejectBackpressure:
		return "Backpressure"
	case RejectUnknownTicker:
		return "UnknownTicker"
	case RejectBadOrder:
		return "BadOrder"
	default:
		return "Unknown"
	}
}

// MarketUpdateType tags an outbound MarketUpdate.
type MarketUpdateType uint8

const (
	UpdateAdd MarketUpdateType = iota + 1
	UpdateModify
	UpdateCancel
	UpdateTrade
	UpdateClear
)

func (u MarketUpdateType) String() string {
	switch u {
	case UpdateAdd:
		return "Add"
	case UpdateModify:
		return "Modify"
	case UpdateCancel:
		return "Cancel"
	case UpdateTrade:
		return "Trade"
	case UpdateClear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// BBO is a top-of-book snapshot for one ticker. NoPrice on a side means
// that side is empty.
type BBO struct {
	BidPrice Price
	BidQty   Qty
	AskPrice Price
	AskQty   Qty
}

// Empty reports whether a side of the BBO has no resting liquidity.
func (b BBO) BidEmpty() bool { return b.BidPrice == NoPrice }
func (b BBO) AskEmpty() bool { return b.AskPrice == NoPrice }
