// Package features computes per-ticker trading signals from market
// data: a fair-value estimate smoothed with an EMA, the bid-ask spread,
// order-book imbalance, and a combined trade signal strategies poll
// directly rather than recomputing themselves.
package features

import (
	"lowlatency-exchange/domain"
)

// defaultFairValueAlpha gives recent mid prices 10% weight per update,
// smoothing out short-term noise without lagging too far behind a
// genuine price move.
const defaultFairValueAlpha = 0.1

// TickerFeatures holds the derived signal state for one ticker.
type TickerFeatures struct {
	TickerId    domain.TickerId
	FairValue   domain.Price
	Spread      domain.Price
	MidPrice    domain.Price
	Imbalance   float64
	TradeSignal float64
}

// IsValid reports whether the feature set has seen at least one valid
// two-sided BBO.
func (f *TickerFeatures) IsValid() bool {
	return f.MidPrice > 0 && f.FairValue > 0
}

// Engine maintains feature state for every ticker it has seen a BBO
// for, recomputing on each update.
type Engine struct {
	features map[domain.TickerId]*TickerFeatures
	alpha    float64
}

// New returns an Engine using the default EMA smoothing factor.
func New() *Engine {
	return WithAlpha(defaultFairValueAlpha)
}

// WithAlpha returns an Engine using a custom EMA smoothing factor,
// clamped to [0, 1].
func WithAlpha(alpha float64) *Engine {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	return &Engine{features: make(map[domain.TickerId]*TickerFeatures), alpha: alpha}
}

// OnBBOUpdate recomputes ticker's features from a fresh top-of-book
// snapshot. A one-sided or empty book leaves the prior feature state
// untouched, since mid/spread/imbalance are undefined without both
// sides.
func (e *Engine) OnBBOUpdate(tickerId domain.TickerId, bbo domain.BBO) {
	if bbo.BidEmpty() || bbo.AskEmpty() {
		return
	}

	f, ok := e.features[tickerId]
	if !ok {
		f = &TickerFeatures{TickerId: tickerId}
		e.features[tickerId] = f
	}

	mid := (bbo.BidPrice + bbo.AskPrice) / 2
	f.MidPrice = mid

	if f.FairValue == 0 {
		f.FairValue = mid
	} else {
		newFv := e.alpha*float64(mid) + (1-e.alpha)*float64(f.FairValue)
		f.FairValue = domain.Price(roundHalfAwayFromZero(newFv))
	}

	f.Spread = bbo.AskPrice - bbo.BidPrice
	f.Imbalance = Imbalance(bbo)
	f.TradeSignal = tradeSignal(f)
}

// Imbalance returns (bid_qty - ask_qty) / (bid_qty + ask_qty), in
// [-1, 1], or 0 if both sides are empty.
func Imbalance(bbo domain.BBO) float64 {
	bidQty := float64(bbo.BidQty)
	askQty := float64(bbo.AskQty)
	total := bidQty + askQty
	if total == 0 {
		return 0
	}
	return (bidQty - askQty) / total
}

// tradeSignal combines the fair-value deviation from mid, in units of
// spread (70% weight), with order-book imbalance (30% weight), clamped
// to [-1, 1]. The deviation term is 0 when the spread is not positive.
func tradeSignal(f *TickerFeatures) float64 {
	if !f.IsValid() {
		return 0
	}
	var fvSignal float64
	if f.Spread > 0 {
		fvSignal = (float64(f.FairValue) - float64(f.MidPrice)) / float64(f.Spread)
	}
	return clamp(0.7*fvSignal+0.3*f.Imbalance, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}

// Get returns the current features for tickerId, and whether any have
// been computed yet.
func (e *Engine) Get(tickerId domain.TickerId) (TickerFeatures, bool) {
	f, ok := e.features[tickerId]
	if !ok {
		return TickerFeatures{}, false
	}
	return *f, true
}

// TradeSignal returns the current trade signal for tickerId, or 0 if
// no features have been computed yet.
func (e *Engine) TradeSignal(tickerId domain.TickerId) float64 {
	f, ok := e.features[tickerId]
	if !ok {
		return 0
	}
	return f.TradeSignal
}

// Reserve pre-creates empty feature entries for the given tickers.
func (e *Engine) Reserve(tickers []domain.TickerId) {
	for _, id := range tickers {
		if _, ok := e.features[id]; !ok {
			e.features[id] = &TickerFeatures{TickerId: id}
		}
	}
}

// Count returns the number of tickers with computed features.
func (e *Engine) Count() int { return len(e.features) }
