package strategy

import (
	"lowlatency-exchange/domain"
	"lowlatency-exchange/trading/features"
)

// MarketMakerConfig parameterizes a MarketMaker.
type MarketMakerConfig struct {
	TickerId domain.TickerId
	// HalfSpread is added to and subtracted from fair value to place
	// the raw bid and ask; the quoted spread is at least 2*HalfSpread.
	HalfSpread domain.Price
	// MinSpread floors the imbalance-adjusted half-spread.
	MinSpread domain.Price
	BaseQty   domain.Qty
	MaxQty    domain.Qty
	// PriceUpdateThreshold suppresses re-quoting on sub-threshold
	// fair-value moves.
	PriceUpdateThreshold domain.Price
	// PositionSkewFactor is how much inventory skews quote size: 0 is
	// no skew, 1 is full skew.
	PositionSkewFactor float64
	MaxPosition        int64
}

// DefaultMarketMakerConfig returns a conservative default config for
// tickerId.
func DefaultMarketMakerConfig(tickerId domain.TickerId) MarketMakerConfig {
	return MarketMakerConfig{
		TickerId:             tickerId,
		HalfSpread:           50,
		MinSpread:            20,
		BaseQty:              100,
		MaxQty:               500,
		PriceUpdateThreshold: 10,
		PositionSkewFactor:   0.5,
		MaxPosition:          1000,
	}
}

// WithPositionSkew returns cfg with PositionSkewFactor clamped to [0, 1].
func (cfg MarketMakerConfig) WithPositionSkew(factor float64) MarketMakerConfig {
	cfg.PositionSkewFactor = clampF64(factor, 0, 1)
	return cfg
}

// MarketMaker quotes both sides of the book around the fair value
// published by the feature engine, widening quotes with book imbalance
// and skewing their sizes with inventory.
type MarketMaker struct {
	config          MarketMakerConfig
	lastBidPrice    domain.Price
	lastAskPrice    domain.Price
	currentPosition int64
	active          bool
}

// NewMarketMaker returns a market maker using cfg.
func NewMarketMaker(cfg MarketMakerConfig) *MarketMaker {
	return &MarketMaker{config: cfg, active: true}
}

// MarketMakerForTicker returns a market maker using
// DefaultMarketMakerConfig for tickerId.
func MarketMakerForTicker(tickerId domain.TickerId) *MarketMaker {
	return NewMarketMaker(DefaultMarketMakerConfig(tickerId))
}

func (m *MarketMaker) Config() MarketMakerConfig { return m.config }

// SetPosition updates the inventory the strategy skews quotes against.
func (m *MarketMaker) SetPosition(position int64) { m.currentPosition = position }

func (m *MarketMaker) Position() int64 { return m.currentPosition }

func (m *MarketMaker) Activate()      { m.active = true }
func (m *MarketMaker) Deactivate()    { m.active = false }
func (m *MarketMaker) IsActive() bool { return m.active }

// OnFeatures is the strategy's entry point, called on every feature
// update for its ticker. It returns ActionNone when no re-quote is
// warranted.
func (m *MarketMaker) OnFeatures(f features.TickerFeatures) StrategyAction {
	if !m.active || !f.IsValid() {
		return NoAction
	}

	bidPrice, askPrice := m.calculateQuotes(f)
	if !m.shouldUpdateQuotes(bidPrice, askPrice) {
		return NoAction
	}

	bidQty, askQty := m.calculateQuantities()
	m.lastBidPrice = bidPrice
	m.lastAskPrice = askPrice

	return QuoteAction(m.buildQuotePair(bidPrice, bidQty, askPrice, askQty))
}

// calculateQuotes places the bid below and the ask above fair value by
// a half-spread that widens with book imbalance, floored at MinSpread.
func (m *MarketMaker) calculateQuotes(f features.TickerFeatures) (domain.Price, domain.Price) {
	fairValue := f.FairValue

	imbalanceAdjustment := domain.Price(absF64(f.Imbalance) * float64(m.config.HalfSpread) * 0.5)
	adjustedHalfSpread := m.config.HalfSpread + imbalanceAdjustment
	if adjustedHalfSpread < m.config.MinSpread {
		adjustedHalfSpread = m.config.MinSpread
	}

	bidPrice := fairValue - adjustedHalfSpread
	askPrice := fairValue + adjustedHalfSpread

	if bidPrice >= askPrice {
		bidPrice = askPrice - 1
	}

	return bidPrice, askPrice
}

// calculateQuantities reduces size on the side that would grow
// inventory and stops quoting that side entirely once at the position
// limit.
func (m *MarketMaker) calculateQuantities() (domain.Qty, domain.Qty) {
	base := float64(m.config.BaseQty)
	max := m.config.MaxQty
	maxPos := float64(m.config.MaxPosition)
	skew := m.config.PositionSkewFactor

	var positionRatio float64
	if maxPos > 0 {
		positionRatio = clampF64(float64(m.currentPosition)/maxPos, -1, 1)
	}

	bidFactor := 1 - maxF64(skew*positionRatio, 0)
	askFactor := 1 + minF64(skew*positionRatio, 0)

	bidQty := clampQty(int64(base*bidFactor), 1, max)
	askQty := clampQty(int64(base*askFactor), 1, max)

	if m.currentPosition >= m.config.MaxPosition {
		bidQty = 0
	}
	if m.currentPosition <= -m.config.MaxPosition {
		askQty = 0
	}

	return bidQty, askQty
}

func (m *MarketMaker) shouldUpdateQuotes(newBid, newAsk domain.Price) bool {
	if m.lastBidPrice == 0 || m.lastAskPrice == 0 {
		return true
	}
	bidMoved := absPrice(newBid-m.lastBidPrice) >= m.config.PriceUpdateThreshold
	askMoved := absPrice(newAsk-m.lastAskPrice) >= m.config.PriceUpdateThreshold
	return bidMoved || askMoved
}

func (m *MarketMaker) buildQuotePair(bidPrice domain.Price, bidQty domain.Qty, askPrice domain.Price, askQty domain.Qty) QuotePair {
	var pair QuotePair
	if bidQty > 0 {
		b := Buy(m.config.TickerId, bidPrice, bidQty)
		pair.Bid = &b
	}
	if askQty > 0 {
		a := Sell(m.config.TickerId, askPrice, askQty)
		pair.Ask = &a
	}
	return pair
}

// Reset clears the last quoted prices, e.g. after a disconnect.
func (m *MarketMaker) Reset() {
	m.lastBidPrice = 0
	m.lastAskPrice = 0
}

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absPrice(v domain.Price) domain.Price {
	if v < 0 {
		return -v
	}
	return v
}

func maxF64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
