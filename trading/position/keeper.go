// Package position tracks realized and unrealized P&L and net exposure
// per ticker, the book of record strategies and the risk manager both
// read from on every fill and every market data tick.
package position

import (
	"lowlatency-exchange/domain"
)

// Position tracks net exposure and P&L for a single ticker.
type Position struct {
	TickerId      domain.TickerId
	Net           int64
	OpenBuyQty    domain.Qty
	OpenSellQty   domain.Qty
	VolumeTraded  uint64
	RealizedPnl   int64
	UnrealizedPnl int64
	AvgOpenPrice  domain.Price
	LastPrice     domain.Price
}

// New returns an empty position for tickerId.
func New(tickerId domain.TickerId) *Position {
	return &Position{TickerId: tickerId}
}

// OnFill applies one fill: updates volume, realized P&L on any closing
// portion, the weighted average entry price on any opening portion,
// and recomputes unrealized P&L against the fill price.
func (p *Position) OnFill(side domain.Side, qty domain.Qty, price domain.Price) {
	signedQty := int64(qty) * side.Sgn()

	p.VolumeTraded += uint64(qty)
	p.LastPrice = price

	oldPosition := p.Net
	newPosition := oldPosition + signedQty

	switch {
	case oldPosition == 0:
		p.AvgOpenPrice = price
	case (oldPosition > 0 && signedQty < 0) || (oldPosition < 0 && signedQty > 0):
		closingQty := minInt64(absInt64(oldPosition), absInt64(signedQty))
		var pnlPerUnit domain.Price
		if oldPosition > 0 {
			pnlPerUnit = price - p.AvgOpenPrice
		} else {
			pnlPerUnit = p.AvgOpenPrice - price
		}
		p.RealizedPnl += int64(pnlPerUnit) * closingQty

		if newPosition != 0 && (newPosition > 0) != (oldPosition > 0) {
			p.AvgOpenPrice = price
		}
	default:
		totalCost := int64(p.AvgOpenPrice)*absInt64(oldPosition) + int64(price)*absInt64(signedQty)
		p.AvgOpenPrice = domain.Price(totalCost / absInt64(newPosition))
	}

	p.Net = newPosition
	p.updateUnrealizedPnl()
}

// AddOpenOrder records qty of resting order exposure on side.
func (p *Position) AddOpenOrder(side domain.Side, qty domain.Qty) {
	if side == domain.Buy {
		p.OpenBuyQty += qty
	} else {
		p.OpenSellQty += qty
	}
}

// RemoveOpenOrder releases qty of resting order exposure on side,
// saturating at zero rather than underflowing.
func (p *Position) RemoveOpenOrder(side domain.Side, qty domain.Qty) {
	if side == domain.Buy {
		p.OpenBuyQty = saturatingSub(p.OpenBuyQty, qty)
	} else {
		p.OpenSellQty = saturatingSub(p.OpenSellQty, qty)
	}
}

// UpdateMarketPrice refreshes the last-traded/quoted price and
// recomputes unrealized P&L without requiring a fill.
func (p *Position) UpdateMarketPrice(price domain.Price) {
	p.LastPrice = price
	p.updateUnrealizedPnl()
}

// TotalPnl returns realized plus unrealized P&L.
func (p *Position) TotalPnl() int64 { return p.RealizedPnl + p.UnrealizedPnl }

// MaxLongExposure returns the position plus pending buys: the largest
// long exposure a fully-filled book could produce.
func (p *Position) MaxLongExposure() int64 { return p.Net + int64(p.OpenBuyQty) }

// MaxShortExposure returns the position minus pending sells: the
// largest short exposure a fully-filled book could produce.
func (p *Position) MaxShortExposure() int64 { return p.Net - int64(p.OpenSellQty) }

func (p *Position) updateUnrealizedPnl() {
	switch {
	case p.Net == 0:
		p.UnrealizedPnl = 0
	case p.Net > 0:
		p.UnrealizedPnl = int64(p.LastPrice-p.AvgOpenPrice) * p.Net
	default:
		p.UnrealizedPnl = int64(p.AvgOpenPrice-p.LastPrice) * -p.Net
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func saturatingSub(a, b domain.Qty) domain.Qty {
	if b >= a {
		return 0
	}
	return a - b
}

// Keeper tracks a Position per ticker, creating one on first touch.
type Keeper struct {
	positions map[domain.TickerId]*Position
	totalPnl  int64
}

// NewKeeper returns an empty position keeper.
func NewKeeper() *Keeper {
	return &Keeper{positions: make(map[domain.TickerId]*Position)}
}

// Get returns the position for tickerId and whether it exists yet.
func (k *Keeper) Get(tickerId domain.TickerId) (*Position, bool) {
	p, ok := k.positions[tickerId]
	return p, ok
}

// GetOrCreate returns the position for tickerId, creating an empty one
// on first touch.
func (k *Keeper) GetOrCreate(tickerId domain.TickerId) *Position {
	p, ok := k.positions[tickerId]
	if !ok {
		p = New(tickerId)
		k.positions[tickerId] = p
	}
	return p
}

// OnFill applies a fill to tickerId's position and refreshes the
// cached total P&L across all tickers.
func (k *Keeper) OnFill(tickerId domain.TickerId, side domain.Side, qty domain.Qty, price domain.Price) {
	k.GetOrCreate(tickerId).OnFill(side, qty, price)
	k.recalculateTotalPnl()
}

// UpdateMarketPrice refreshes tickerId's last price if a position for
// it already exists; it does not create one.
func (k *Keeper) UpdateMarketPrice(tickerId domain.TickerId, price domain.Price) {
	if p, ok := k.positions[tickerId]; ok {
		p.UpdateMarketPrice(price)
		k.recalculateTotalPnl()
	}
}

// TotalPnl returns the cached sum of every tracked position's P&L.
func (k *Keeper) TotalPnl() int64 { return k.totalPnl }

// All returns every tracked position.
func (k *Keeper) All() []*Position {
	out := make([]*Position, 0, len(k.positions))
	for _, p := range k.positions {
		out = append(out, p)
	}
	return out
}

func (k *Keeper) recalculateTotalPnl() {
	var sum int64
	for _, p := range k.positions {
		sum += p.TotalPnl()
	}
	k.totalPnl = sum
}
