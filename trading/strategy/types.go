// Package strategy implements the trading logic that turns feature
// updates into order actions: a market maker that quotes both sides of
// the book around fair value, and a liquidity taker that crosses the
// spread when the trade signal clears a threshold.
package strategy

import (
	"lowlatency-exchange/domain"
)

// OrderRequest is the order a strategy wants sent to the exchange.
type OrderRequest struct {
	TickerId domain.TickerId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
}

// Buy returns a buy OrderRequest.
func Buy(tickerId domain.TickerId, price domain.Price, qty domain.Qty) OrderRequest {
	return OrderRequest{TickerId: tickerId, Side: domain.Buy, Price: price, Qty: qty}
}

// Sell returns a sell OrderRequest.
func Sell(tickerId domain.TickerId, price domain.Price, qty domain.Qty) OrderRequest {
	return OrderRequest{TickerId: tickerId, Side: domain.Sell, Price: price, Qty: qty}
}

// QuotePair is a market maker's desired two-sided quote. Either side
// may be absent, e.g. when a position limit stops one-sided quoting.
type QuotePair struct {
	Bid *OrderRequest
	Ask *OrderRequest
}

// IsTwoSided reports whether both sides of the quote are present.
func (q QuotePair) IsTwoSided() bool { return q.Bid != nil && q.Ask != nil }

// IsEmpty reports whether neither side of the quote is present.
func (q QuotePair) IsEmpty() bool { return q.Bid == nil && q.Ask == nil }

// ActionKind tags what a StrategyAction carries.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionQuote
	ActionTake
)

// StrategyAction is what a strategy wants to do in response to a
// feature update: nothing, post a two-sided quote, or take liquidity
// with a single aggressive order.
type StrategyAction struct {
	Kind  ActionKind
	Quote QuotePair
	Take  OrderRequest
}

// NoAction is the action a strategy returns when it has nothing to do.
var NoAction = StrategyAction{Kind: ActionNone}

// QuoteAction wraps a QuotePair as a StrategyAction.
func QuoteAction(q QuotePair) StrategyAction {
	return StrategyAction{Kind: ActionQuote, Quote: q}
}

// TakeAction wraps an OrderRequest as a StrategyAction.
func TakeAction(order OrderRequest) StrategyAction {
	return StrategyAction{Kind: ActionTake, Take: order}
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampQty(v int64, lo, hi domain.Qty) domain.Qty {
	if v < int64(lo) {
		return lo
	}
	if v > int64(hi) {
		return hi
	}
	return domain.Qty(v)
}
