// Package risk implements the pre-trade and real-time checks that
// stand between a strategy's desired order and the exchange: order
// size, projected position, realized-plus-unrealized loss, and open
// order count, each configurable per ticker with a process-wide default.
package risk

import (
	"lowlatency-exchange/domain"
	"lowlatency-exchange/trading/position"
)

// CheckResult names why an order was rejected, or that it passed.
type CheckResult uint8

const (
	Allowed CheckResult = iota
	OrderTooLarge
	PositionTooLarge
	LossTooLarge
	OpenOrdersTooMany
)

func (r CheckResult) String() string {
	switch r {
	case Allowed:
		return "Allowed"
	case OrderTooLarge:
		return "OrderTooLarge"
	case PositionTooLarge:
		return "PositionTooLarge"
	case LossTooLarge:
		return "LossTooLarge"
	case OpenOrdersTooMany:
		return "OpenOrdersTooMany"
	default:
		return "Unknown"
	}
}

// IsAllowed reports whether the order passed every check.
func (r CheckResult) IsAllowed() bool { return r == Allowed }

// Limits bounds one ticker's risk exposure.
type Limits struct {
	MaxOrderQty   domain.Qty
	MaxPosition   int64
	MaxLoss       int64
	MaxOpenOrders uint32
}

// DefaultLimits returns a conservative default, used for any ticker
// without an explicit override.
func DefaultLimits() Limits {
	return Limits{MaxOrderQty: 1000, MaxPosition: 10000, MaxLoss: 100000, MaxOpenOrders: 100}
}

// Manager holds per-ticker limits, falling back to a process-wide
// default for tickers without an explicit override.
type Manager struct {
	limits   map[domain.TickerId]Limits
	fallback Limits
}

// New returns a manager using DefaultLimits for every ticker.
func New() *Manager {
	return WithDefaultLimits(DefaultLimits())
}

// WithDefaultLimits returns a manager using defaultLimits for every
// ticker without an explicit override.
func WithDefaultLimits(defaultLimits Limits) *Manager {
	return &Manager{limits: make(map[domain.TickerId]Limits), fallback: defaultLimits}
}

// SetLimits overrides the limits for a specific ticker.
func (m *Manager) SetLimits(tickerId domain.TickerId, limits Limits) {
	m.limits[tickerId] = limits
}

// RemoveLimits drops a ticker's override, reverting it to the default.
func (m *Manager) RemoveLimits(tickerId domain.TickerId) {
	delete(m.limits, tickerId)
}

// Limits returns the effective limits for tickerId.
func (m *Manager) Limits(tickerId domain.TickerId) Limits {
	if l, ok := m.limits[tickerId]; ok {
		return l
	}
	return m.fallback
}

// CheckOrder runs the three position-dependent pre-trade checks, in
// order: order size, projected position (including resting orders on
// the same side), and current loss. An order whose side opposes the
// sign of the current position is risk-reducing and skips the position
// check. The first failing check wins.
func (m *Manager) CheckOrder(pos *position.Position, side domain.Side, qty domain.Qty) CheckResult {
	limits := m.Limits(pos.TickerId)

	if qty > limits.MaxOrderQty {
		return OrderTooLarge
	}

	var projected int64
	if side == domain.Buy {
		projected = pos.MaxLongExposure() + int64(qty)
	} else {
		projected = pos.MaxShortExposure() - int64(qty)
	}
	reducing := (side == domain.Sell && pos.Net > 0) || (side == domain.Buy && pos.Net < 0)
	if !reducing && absInt64(projected) > limits.MaxPosition {
		return PositionTooLarge
	}

	if pos.TotalPnl() < -limits.MaxLoss {
		return LossTooLarge
	}

	return Allowed
}

// CheckOpenOrders rejects when currentOpenOrders has already reached
// the ticker's cap.
func (m *Manager) CheckOpenOrders(tickerId domain.TickerId, currentOpenOrders uint32) CheckResult {
	if currentOpenOrders >= m.Limits(tickerId).MaxOpenOrders {
		return OpenOrdersTooMany
	}
	return Allowed
}

// CheckPosition re-validates a resting position and its P&L
// independently of any new order, for a periodic risk sweep.
func (m *Manager) CheckPosition(pos *position.Position) CheckResult {
	limits := m.Limits(pos.TickerId)
	if absInt64(pos.Net) > limits.MaxPosition {
		return PositionTooLarge
	}
	if pos.TotalPnl() < -limits.MaxLoss {
		return LossTooLarge
	}
	return Allowed
}

// CheckOrderWithOpenOrders runs CheckOrder's checks first and the
// open-order-count check last; the first failing check wins.
func (m *Manager) CheckOrderWithOpenOrders(pos *position.Position, side domain.Side, qty domain.Qty, currentOpenOrders uint32) CheckResult {
	if r := m.CheckOrder(pos, side, qty); !r.IsAllowed() {
		return r
	}
	return m.CheckOpenOrders(pos.TickerId, currentOpenOrders)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
