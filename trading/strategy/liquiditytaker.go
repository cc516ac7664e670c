package strategy

import (
	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/trading/features"
)

// LiquidityTakerConfig parameterizes a LiquidityTaker.
type LiquidityTakerConfig struct {
	TickerId domain.TickerId
	// BuyThreshold/SellThreshold are the trade-signal levels that
	// trigger a cross; SellThreshold should be negative.
	BuyThreshold  float64
	SellThreshold float64
	BaseQty       domain.Qty
	MaxQty        domain.Qty
	// ScaleWithSignal linearly scales order size between BaseQty and
	// MaxQty as the signal moves from threshold to +/-1.
	ScaleWithSignal bool
	// AggressionBps is how far past best bid/ask the take price is
	// placed, in basis points of that price.
	AggressionBps uint32
	// MinOrderIntervalNanos rate-limits consecutive orders.
	MinOrderIntervalNanos uint64
	MaxPosition           int64
	// CooldownFactor multiplies the effective interval after every
	// order sent, up to a 10x cap; OnFill halves it (not below the
	// minimum) and ResetCooldown restores the minimum.
	CooldownFactor float64
}

// DefaultLiquidityTakerConfig returns a conservative default config for
// tickerId.
func DefaultLiquidityTakerConfig(tickerId domain.TickerId) LiquidityTakerConfig {
	return LiquidityTakerConfig{
		TickerId:              tickerId,
		BuyThreshold:          0.3,
		SellThreshold:         -0.3,
		BaseQty:               100,
		MaxQty:                500,
		ScaleWithSignal:       true,
		AggressionBps:         10,
		MinOrderIntervalNanos: 100_000_000,
		MaxPosition:           5000,
		CooldownFactor:        2.0,
	}
}

// WithSymmetricThreshold sets BuyThreshold/SellThreshold to +/-threshold.
func (cfg LiquidityTakerConfig) WithSymmetricThreshold(threshold float64) LiquidityTakerConfig {
	abs := clampF64(absF64(threshold), 0, 1)
	cfg.BuyThreshold = abs
	cfg.SellThreshold = -abs
	return cfg
}

// LiquidityTaker aggressively crosses the spread when the feature
// engine's trade signal clears a threshold, rate-limiting itself with
// a cooldown that backs off after every order and relaxes on a fill.
type LiquidityTaker struct {
	config                 LiquidityTakerConfig
	lastOrderTimeNanos     clock.Nanos
	effectiveIntervalNanos uint64
	currentPosition        int64
	active                 bool
	ordersSent             uint64
}

// NewLiquidityTaker returns a liquidity taker using cfg.
func NewLiquidityTaker(cfg LiquidityTakerConfig) *LiquidityTaker {
	return &LiquidityTaker{
		config:                 cfg,
		effectiveIntervalNanos: cfg.MinOrderIntervalNanos,
		active:                 true,
	}
}

// LiquidityTakerForTicker returns a liquidity taker using
// DefaultLiquidityTakerConfig for tickerId.
func LiquidityTakerForTicker(tickerId domain.TickerId) *LiquidityTaker {
	return NewLiquidityTaker(DefaultLiquidityTakerConfig(tickerId))
}

func (l *LiquidityTaker) Config() LiquidityTakerConfig { return l.config }

func (l *LiquidityTaker) SetPosition(position int64) { l.currentPosition = position }
func (l *LiquidityTaker) Position() int64            { return l.currentPosition }

func (l *LiquidityTaker) Activate()      { l.active = true }
func (l *LiquidityTaker) Deactivate()    { l.active = false }
func (l *LiquidityTaker) IsActive() bool { return l.active }

func (l *LiquidityTaker) OrdersSent() uint64 { return l.ordersSent }

// OnFeatures is the strategy's entry point. bestBid/bestAsk anchor the
// aggressive take price; now is the current time used for rate
// limiting.
func (l *LiquidityTaker) OnFeatures(f features.TickerFeatures, now clock.Nanos, bestBid, bestAsk domain.Price) StrategyAction {
	if !l.active || !f.IsValid() {
		return NoAction
	}
	if !l.canSendOrder(now) {
		return NoAction
	}

	signal := f.TradeSignal

	if signal >= l.config.BuyThreshold {
		if l.config.MaxPosition > 0 && l.currentPosition >= l.config.MaxPosition {
			return NoAction
		}
		if order, ok := l.createBuyOrder(signal, bestAsk); ok {
			l.recordOrder(now)
			return TakeAction(order)
		}
	}

	if signal <= l.config.SellThreshold {
		if l.config.MaxPosition > 0 && l.currentPosition <= -l.config.MaxPosition {
			return NoAction
		}
		if order, ok := l.createSellOrder(signal, bestBid); ok {
			l.recordOrder(now)
			return TakeAction(order)
		}
	}

	return NoAction
}

// OnFeaturesSimple derives best bid/ask from the feature snapshot's mid
// and spread, for callers with no direct book access.
func (l *LiquidityTaker) OnFeaturesSimple(f features.TickerFeatures, now clock.Nanos) StrategyAction {
	halfSpread := f.Spread / 2
	bestBid := f.MidPrice - halfSpread
	bestAsk := f.MidPrice + halfSpread
	return l.OnFeatures(f, now, bestBid, bestAsk)
}

func (l *LiquidityTaker) canSendOrder(now clock.Nanos) bool {
	if l.lastOrderTimeNanos == 0 {
		return true
	}
	return uint64(now) >= uint64(l.lastOrderTimeNanos)+l.effectiveIntervalNanos
}

func (l *LiquidityTaker) recordOrder(now clock.Nanos) {
	l.lastOrderTimeNanos = now
	l.ordersSent++

	cap := l.config.MinOrderIntervalNanos * 10
	next := uint64(float64(l.effectiveIntervalNanos) * l.config.CooldownFactor)
	if next > cap {
		next = cap
	}
	l.effectiveIntervalNanos = next
}

// ResetCooldown drops the effective interval back to its configured
// minimum, e.g. after a period of inactivity.
func (l *LiquidityTaker) ResetCooldown() {
	l.effectiveIntervalNanos = l.config.MinOrderIntervalNanos
}

func (l *LiquidityTaker) createBuyOrder(signal float64, bestAsk domain.Price) (OrderRequest, bool) {
	qty := l.calculateQuantity(signal)
	if qty == 0 {
		return OrderRequest{}, false
	}
	aggression := domain.Price(float64(bestAsk) * float64(l.config.AggressionBps) / 10000.0)
	return Buy(l.config.TickerId, bestAsk+aggression, qty), true
}

func (l *LiquidityTaker) createSellOrder(signal float64, bestBid domain.Price) (OrderRequest, bool) {
	qty := l.calculateQuantity(signal)
	if qty == 0 {
		return OrderRequest{}, false
	}
	aggression := domain.Price(float64(bestBid) * float64(l.config.AggressionBps) / 10000.0)
	return Sell(l.config.TickerId, bestBid-aggression, qty), true
}

func (l *LiquidityTaker) calculateQuantity(signal float64) domain.Qty {
	if !l.config.ScaleWithSignal {
		return l.config.BaseQty
	}

	signalAbs := absF64(signal)
	threshold := l.config.BuyThreshold
	if signal <= 0 {
		threshold = absF64(l.config.SellThreshold)
	}

	signalExcess := (signalAbs - threshold) / (1 - threshold)
	signalFactor := clampF64(signalExcess, 0, 1)

	base := float64(l.config.BaseQty)
	max := float64(l.config.MaxQty)
	qty := base + (max-base)*signalFactor

	return clampQty(int64(qty), 1, l.config.MaxQty)
}

// OnFill relaxes the cooldown by half after a successful take, bounded
// below by the configured minimum interval.
func (l *LiquidityTaker) OnFill() {
	l.effectiveIntervalNanos /= 2
	if l.effectiveIntervalNanos < l.config.MinOrderIntervalNanos {
		l.effectiveIntervalNanos = l.config.MinOrderIntervalNanos
	}
}

// Reset clears all strategy state back to a fresh start.
func (l *LiquidityTaker) Reset() {
	l.lastOrderTimeNanos = 0
	l.effectiveIntervalNanos = l.config.MinOrderIntervalNanos
	l.ordersSent = 0
}
