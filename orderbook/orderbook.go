// Package orderbook implements a per-ticker price-time-priority order
// book: a pool of Order slots linked into PriceLevels by pool index,
// and a ShardedPriceTree per side for O(1) best-price access with
// O(log m) insertion into a new price bucket.
package orderbook

import (
	"errors"
	"fmt"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/pool"
)

// ErrOrderNotFound is returned by Cancel when the order_id is not
// resident in the book.
var ErrOrderNotFound = errors.New("orderbook: order not found")

// ErrCrossedBook is returned by CheckInvariants when a resting bid is
// at or above a resting ask. Only tests call CheckInvariants; the
// matching engine neither checks for a crossed book nor panics on one.
var ErrCrossedBook = errors.New("orderbook: crossed book detected")

type resident struct {
	handle pool.Handle
	level  *PriceLevel
}

// clientKey identifies an order the way its originating client does:
// by client_id plus the client's own order_id, since a client cannot
// name the exchange-minted market_order_id in a Cancel request.
type clientKey struct {
	clientId      domain.ClientId
	clientOrderId domain.OrderId
}

// OrderBook holds one instrument's resting liquidity on both sides.
// It is owned by a single thread (its matching engine) and is not
// safe for concurrent use.
type OrderBook struct {
	TickerId domain.TickerId

	orders *pool.Pool[domain.Order]
	bids   *ShardedPriceTree
	asks   *ShardedPriceTree

	byOrderId       map[domain.OrderId]resident
	byClientOrderId map[clientKey]domain.OrderId

	nextPriority      uint64
	nextMarketOrderId uint64
}

// New creates an empty book for tickerId with room for capacity
// resting orders.
func New(tickerId domain.TickerId, capacity int) *OrderBook {
	return &OrderBook{
		TickerId:        tickerId,
		orders:          pool.New[domain.Order](capacity),
		bids:            NewShardedPriceTree(true),
		asks:            NewShardedPriceTree(false),
		byOrderId:       make(map[domain.OrderId]resident, capacity),
		byClientOrderId: make(map[clientKey]domain.OrderId, capacity),
	}
}

// NextMarketOrderId mints the next exchange-assigned order id.
func (b *OrderBook) NextMarketOrderId() domain.OrderId {
	b.nextMarketOrderId++
	return domain.OrderId(b.nextMarketOrderId)
}

func (b *OrderBook) nextPriorityValue() domain.Priority {
	b.nextPriority++
	return domain.Priority(b.nextPriority)
}

func (b *OrderBook) treeFor(side domain.Side) *ShardedPriceTree {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

// OppositeBestLevel returns the best resting level on the side
// opposite to side, or nil if that side is empty.
func (b *OrderBook) OppositeBestLevel(side domain.Side) *PriceLevel {
	return b.treeFor(side.Opposite()).BestLevel()
}

// BestBid returns the best resting bid level, or nil if there is none.
func (b *OrderBook) BestBid() *PriceLevel { return b.bids.BestLevel() }

// BestAsk returns the best resting ask level, or nil if there is none.
func (b *OrderBook) BestAsk() *PriceLevel { return b.asks.BestLevel() }

// BBO returns a snapshot of the top of book. A side with no resting
// liquidity is reported with domain.NoPrice / zero qty.
func (b *OrderBook) BBO() domain.BBO {
	var bbo domain.BBO
	if bid := b.bids.BestLevel(); bid != nil {
		bbo.BidPrice = bid.Price
		bbo.BidQty = bid.AggregateQty
	}
	if ask := b.asks.BestLevel(); ask != nil {
		bbo.AskPrice = ask.Price
		bbo.AskQty = ask.AggregateQty
	}
	return bbo
}

// Insert creates a new resting order at price with the given side/qty,
// assigning the next priority and market order id, linking it at the
// tail of its price level (creating the level if needed). It returns
// the minted Order, or an error if the pool is exhausted.
func (b *OrderBook) Insert(side domain.Side, price domain.Price, qty domain.Qty, clientId domain.ClientId, clientOrderId domain.OrderId) (*domain.Order, error) {
	handle, ok := b.orders.Allocate()
	if !ok {
		return nil, fmt.Errorf("orderbook: %w", pool.ErrExhausted)
	}
	order := b.orders.Get(handle)
	*order = domain.Order{
		MarketOrderId: b.NextMarketOrderId(),
		ClientOrderId: clientOrderId,
		ClientId:      clientId,
		TickerId:      b.TickerId,
		Side:          side,
		Price:         price,
		Qty:           qty,
		Priority:      b.nextPriorityValue(),
		PrevIdx:       domain.NoLink,
		NextIdx:       domain.NoLink,
	}

	tree := b.treeFor(side)
	level := tree.GetLevel(price)
	if level == nil {
		level = &PriceLevel{Price: price, HeadIdx: domain.NoLink, TailIdx: domain.NoLink}
		tree.Insert(level)
	}
	b.appendToLevel(level, int32(handle.Index()), order)

	b.byOrderId[order.MarketOrderId] = resident{handle: handle, level: level}
	b.byClientOrderId[clientKey{clientId, clientOrderId}] = order.MarketOrderId
	return order, nil
}

func (b *OrderBook) appendToLevel(level *PriceLevel, idx int32, order *domain.Order) {
	order.PrevIdx = level.TailIdx
	order.NextIdx = domain.NoLink
	if level.TailIdx != domain.NoLink {
		b.orders.GetByIndex(int(level.TailIdx)).NextIdx = idx
	} else {
		level.HeadIdx = idx
	}
	level.TailIdx = idx
	level.AggregateQty += order.Qty
}

// unlinkFromLevel removes the order at idx from level's list, without
// freeing its pool slot.
func (b *OrderBook) unlinkFromLevel(level *PriceLevel, idx int32, order *domain.Order) {
	if order.PrevIdx != domain.NoLink {
		b.orders.GetByIndex(int(order.PrevIdx)).NextIdx = order.NextIdx
	} else {
		level.HeadIdx = order.NextIdx
	}
	if order.NextIdx != domain.NoLink {
		b.orders.GetByIndex(int(order.NextIdx)).PrevIdx = order.PrevIdx
	} else {
		level.TailIdx = order.PrevIdx
	}
	level.AggregateQty -= order.Qty
}

func (b *OrderBook) dropLevelIfEmpty(side domain.Side, level *PriceLevel) {
	if level.HeadIdx == domain.NoLink {
		b.treeFor(side).Remove(level.Price)
	}
}

// Cancel removes a resting order by its exchange-assigned market order
// id, freeing its pool slot and dropping the level if it becomes
// empty.
func (b *OrderBook) Cancel(marketOrderId domain.OrderId) (*domain.Order, error) {
	res, ok := b.byOrderId[marketOrderId]
	if !ok {
		return nil, ErrOrderNotFound
	}
	order := *b.orders.Get(res.handle)
	b.unlinkFromLevel(res.level, int32(res.handle.Index()), &order)
	b.dropLevelIfEmpty(order.Side, res.level)
	delete(b.byOrderId, marketOrderId)
	delete(b.byClientOrderId, clientKey{order.ClientId, order.ClientOrderId})
	_ = b.orders.Release(res.handle)
	return &order, nil
}

// CancelByClientOrder resolves a client's own order_id to the resident
// order it named and cancels it, the path a Cancel ClientRequest takes
// since a client never learns the exchange-minted market_order_id
// unless it was echoed back on Accepted.
func (b *OrderBook) CancelByClientOrder(clientId domain.ClientId, clientOrderId domain.OrderId) (*domain.Order, error) {
	marketOrderId, ok := b.byClientOrderId[clientKey{clientId, clientOrderId}]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return b.Cancel(marketOrderId)
}

// Lookup returns the resting order for marketOrderId without removing
// it, and whether it was found.
func (b *OrderBook) Lookup(marketOrderId domain.OrderId) (*domain.Order, bool) {
	res, ok := b.byOrderId[marketOrderId]
	if !ok {
		return nil, false
	}
	return b.orders.Get(res.handle), true
}

// HeadOrder returns the most senior resting order in level, or nil if
// the level is empty.
func (b *OrderBook) HeadOrder(level *PriceLevel) *domain.Order {
	if level.HeadIdx == domain.NoLink {
		return nil
	}
	return b.orders.GetByIndex(int(level.HeadIdx))
}

// OrderAt returns the order at pool index idx, used by the matching
// engine to walk a level's doubly-linked order list one link at a
// time.
func (b *OrderBook) OrderAt(idx int32) *domain.Order {
	return b.orders.GetByIndex(int(idx))
}

// ApplyFill reduces restingOrder's quantity by qty, and if it is fully
// filled, unlinks and frees it, dropping its level if the level
// becomes empty as a result. Returns true if the order was fully
// filled and removed.
func (b *OrderBook) ApplyFill(restingOrder *domain.Order, level *PriceLevel, qty domain.Qty) bool {
	restingOrder.Fill(qty)
	level.AggregateQty -= qty
	if !restingOrder.IsFilled() {
		return false
	}
	res, ok := b.byOrderId[restingOrder.MarketOrderId]
	if !ok {
		return true
	}
	b.unlinkOrderOnly(level, int32(res.handle.Index()), restingOrder)
	b.dropLevelIfEmpty(restingOrder.Side, level)
	delete(b.byOrderId, restingOrder.MarketOrderId)
	delete(b.byClientOrderId, clientKey{restingOrder.ClientId, restingOrder.ClientOrderId})
	_ = b.orders.Release(res.handle)
	return true
}

// unlinkOrderOnly removes the order's links from its level without
// touching AggregateQty (ApplyFill already adjusted it before the
// order was known to be fully filled).
func (b *OrderBook) unlinkOrderOnly(level *PriceLevel, idx int32, order *domain.Order) {
	if order.PrevIdx != domain.NoLink {
		b.orders.GetByIndex(int(order.PrevIdx)).NextIdx = order.NextIdx
	} else {
		level.HeadIdx = order.NextIdx
	}
	if order.NextIdx != domain.NoLink {
		b.orders.GetByIndex(int(order.NextIdx)).PrevIdx = order.PrevIdx
	} else {
		level.TailIdx = order.PrevIdx
	}
}

// Depth returns a snapshot of up to maxLevels levels per side, best
// first. It is a local diagnostic read, never a wire message.
func (b *OrderBook) Depth(maxLevels int) (bids, asks []PriceLevel) {
	bids = b.bids.Depth(maxLevels, nil)
	asks = b.asks.Depth(maxLevels, nil)
	return bids, asks
}

// CheckInvariants verifies two book invariants that must hold at rest:
// no crossed book, and each level's aggregate quantity matching the sum
// of its order list. It does not compare the order map's size with the
// number of linked orders. It is a debug/test helper, never called on
// the hot path.
func (b *OrderBook) CheckInvariants() error {
	bid := b.bids.BestLevel()
	ask := b.asks.BestLevel()
	if bid != nil && ask != nil && bid.Price >= ask.Price {
		return fmt.Errorf("%w: bid %d >= ask %d", ErrCrossedBook, bid.Price, ask.Price)
	}
	for _, side := range []domain.Side{domain.Buy, domain.Sell} {
		level := b.treeFor(side).BestLevel()
		for level != nil {
			if err := b.checkLevel(level); err != nil {
				return err
			}
			level = level.NextPrice
		}
	}
	return nil
}

func (b *OrderBook) checkLevel(level *PriceLevel) error {
	var sum domain.Qty
	idx := level.HeadIdx
	for idx != domain.NoLink {
		order := b.orders.GetByIndex(int(idx))
		sum += order.Qty
		idx = order.NextIdx
	}
	if sum != level.AggregateQty {
		return fmt.Errorf("orderbook: level %d aggregate_qty=%d but orders sum to %d", level.Price, level.AggregateQty, sum)
	}
	return nil
}

// Size returns the number of resident orders across both sides.
func (b *OrderBook) Size() int {
	return len(b.byOrderId)
}
