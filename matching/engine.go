// Package matching implements the per-ticker matching engine: a
// single-threaded loop that dequeues requests from its ingress SPSC
// queue, applies them to its order book, and emits responses and
// market updates to its own outbound SPSC queues.
package matching

import (
	"runtime"
	"sync/atomic"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/ringbuf"
	"lowlatency-exchange/internal/spin"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/orderbook"
	"lowlatency-exchange/wire"
)

// BookEvent is a pre-publication market update: everything a
// MarketUpdate carries except seq_num, which the publisher assigns at
// the moment it dequeues the event, keeping seq_num assignment
// confined to the single fan-in thread that owns it.
type BookEvent struct {
	Type     domain.MarketUpdateType
	TickerId domain.TickerId
	OrderId  domain.OrderId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
	Priority domain.Priority
}

// ResponseEnvelope pairs a ClientResponse with the client it belongs
// to, so the response writer can find the right session without the
// matching engine knowing anything about sessions.
type ResponseEnvelope struct {
	ClientId domain.ClientId
	Response wire.ClientResponse
}

const (
	ingressCapacity  = 4096
	responseCapacity = 4096
	updateCapacity   = 4096
)

// MatchingEngine owns one ticker's order book and the three SPSC
// queues that connect it to the rest of the gateway: one ingress queue
// it alone consumes, and two outbound queues it alone produces.
type MatchingEngine struct {
	TickerId domain.TickerId

	book *orderbook.OrderBook

	Ingress   *ringbuf.Queue[wire.ClientRequest]
	Responses *ringbuf.Queue[ResponseEnvelope]
	Updates   *ringbuf.Queue[BookEvent]

	log *xlog.Logger
}

// New creates a matching engine for tickerId with room for bookCapacity
// resting orders.
func New(tickerId domain.TickerId, bookCapacity int, log *xlog.Logger) *MatchingEngine {
	return &MatchingEngine{
		TickerId:  tickerId,
		book:      orderbook.New(tickerId, bookCapacity),
		Ingress:   ringbuf.New[wire.ClientRequest](ingressCapacity),
		Responses: ringbuf.New[ResponseEnvelope](responseCapacity),
		Updates:   ringbuf.New[BookEvent](updateCapacity),
		log:       log,
	}
}

// Book exposes the underlying order book for diagnostic reads (Depth,
// BBO) from outside the engine's own goroutine. Callers other than the
// engine's own Run loop must stick to read-only snapshot methods.
func (m *MatchingEngine) Book() *orderbook.OrderBook { return m.book }

// Run is the engine's single-threaded loop. It pins the OS thread it
// started on: the matching algorithm is the single highest-value hot
// path in the process, and the Go scheduler must not preempt it onto
// another core mid-batch.
func (m *MatchingEngine) Run(shutdown *atomic.Bool) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var backoff spin.Backoff
	for !shutdown.Load() {
		req, ok := m.Ingress.Pop()
		if !ok {
			backoff.Idle()
			continue
		}
		backoff.Reset()
		m.process(req)
	}
	m.drain()
}

// drain processes whatever is left in the ingress queue once shutdown
// has been requested, so no accepted request is silently lost.
func (m *MatchingEngine) drain() {
	for {
		req, ok := m.Ingress.Pop()
		if !ok {
			return
		}
		m.process(req)
	}
}

func (m *MatchingEngine) process(req wire.ClientRequest) {
	switch req.MsgType {
	case domain.RequestNew:
		m.processNew(req)
	case domain.RequestCancel:
		m.processCancel(req)
	case domain.RequestModify:
		m.processModify(req)
	default:
		m.emitRejected(req)
	}
}

func (m *MatchingEngine) emitAccepted(marketOrderId domain.OrderId, req wire.ClientRequest, leaves domain.Qty) {
	m.pushResponse(req.ClientId, wire.ClientResponse{
		MsgType:       domain.ResponseAccepted,
		ClientId:      req.ClientId,
		TickerId:      req.TickerId,
		ClientOrderId: req.OrderId,
		MarketOrderId: marketOrderId,
		Side:          req.Side,
		Price:         req.Price,
		LeavesQty:     leaves,
	})
}

func (m *MatchingEngine) emitRejected(req wire.ClientRequest) {
	m.pushResponse(req.ClientId, wire.ClientResponse{
		MsgType:       domain.ResponseRejected,
		ClientId:      req.ClientId,
		TickerId:      req.TickerId,
		ClientOrderId: req.OrderId,
		Side:          req.Side,
		Price:         req.Price,
	})
}

func (m *MatchingEngine) pushResponse(clientId domain.ClientId, resp wire.ClientResponse) {
	if !m.Responses.Push(ResponseEnvelope{ClientId: clientId, Response: resp}) {
		if m.log != nil {
			m.log.WarnU64("response queue full, dropping response for client", uint64(clientId))
		}
	}
}

func (m *MatchingEngine) pushUpdate(ev BookEvent) {
	if !m.Updates.Push(ev) {
		if m.log != nil {
			m.log.Warn("market update queue full, dropping update")
		}
	}
}

func crosses(side domain.Side, aggressorPrice, restingPrice domain.Price) bool {
	if side == domain.Buy {
		return aggressorPrice >= restingPrice
	}
	return aggressorPrice <= restingPrice
}

// processNew applies the matching algorithm: walk the opposite side's
// best level to worst, trading against resting orders head-to-tail
// within each level, skipping (not rejecting, not removing) any
// resting order belonging to the same client as the aggressor. Any
// residual quantity left after crossable liquidity is exhausted rests
// on the book with a freshly assigned priority.
func (m *MatchingEngine) processNew(req wire.ClientRequest) {
	residual := req.Qty
	level := m.book.OppositeBestLevel(req.Side)

	for level != nil && residual > 0 && crosses(req.Side, req.Price, level.Price) {
		next := level.NextPrice
		m.matchWithinLevel(req, &residual, level)
		level = next
	}

	if residual == 0 {
		return
	}

	order, err := m.book.Insert(req.Side, req.Price, residual, req.ClientId, req.OrderId)
	if err != nil {
		m.emitRejected(req)
		if m.log != nil {
			m.log.Warn("order book exhausted, rejecting new order")
		}
		return
	}
	m.emitAccepted(order.MarketOrderId, req, residual)
	m.pushUpdate(BookEvent{
		Type:     domain.UpdateAdd,
		TickerId: req.TickerId,
		OrderId:  order.MarketOrderId,
		Side:     req.Side,
		Price:    order.Price,
		Qty:      order.Qty,
		Priority: order.Priority,
	})
}

// matchWithinLevel walks level head-to-tail, trading the aggressor
// against each non-self resting order until the level is exhausted or
// residual reaches zero.
func (m *MatchingEngine) matchWithinLevel(req wire.ClientRequest, residual *domain.Qty, level *orderbook.PriceLevel) {
	idx := level.HeadIdx
	for idx != domain.NoLink && *residual > 0 {
		resting := m.book.OrderAt(idx)
		nextIdx := resting.NextIdx

		if resting.ClientId == req.ClientId {
			idx = nextIdx
			continue
		}

		tradeQty := *residual
		if resting.Qty < tradeQty {
			tradeQty = resting.Qty
		}
		tradePrice := resting.Price
		restingClientOrderId := resting.ClientOrderId
		restingClientId := resting.ClientId
		restingMarketOrderId := resting.MarketOrderId
		restingPriority := resting.Priority

		*residual -= tradeQty
		removed := m.book.ApplyFill(resting, level, tradeQty)
		restingLeaves := resting.Qty
		if removed {
			restingLeaves = 0
		}

		m.pushResponse(req.ClientId, wire.ClientResponse{
			MsgType:       domain.ResponseFilled,
			ClientId:      req.ClientId,
			TickerId:      req.TickerId,
			ClientOrderId: req.OrderId,
			MarketOrderId: restingMarketOrderId,
			Side:          req.Side,
			Price:         tradePrice,
			ExecQty:       tradeQty,
			LeavesQty:     *residual,
		})
		m.pushResponse(restingClientId, wire.ClientResponse{
			MsgType:       domain.ResponseFilled,
			ClientId:      restingClientId,
			TickerId:      req.TickerId,
			ClientOrderId: restingClientOrderId,
			MarketOrderId: restingMarketOrderId,
			Side:          req.Side.Opposite(),
			Price:         tradePrice,
			ExecQty:       tradeQty,
			LeavesQty:     restingLeaves,
		})
		m.pushUpdate(BookEvent{
			Type:     domain.UpdateTrade,
			TickerId: req.TickerId,
			OrderId:  restingMarketOrderId,
			Side:     req.Side.Opposite(),
			Price:    tradePrice,
			Qty:      tradeQty,
			Priority: restingPriority,
		})
		if removed {
			m.pushUpdate(BookEvent{
				Type:     domain.UpdateCancel,
				TickerId: req.TickerId,
				OrderId:  restingMarketOrderId,
				Side:     req.Side.Opposite(),
				Price:    tradePrice,
				Priority: restingPriority,
			})
		} else {
			m.pushUpdate(BookEvent{
				Type:     domain.UpdateModify,
				TickerId: req.TickerId,
				OrderId:  restingMarketOrderId,
				Side:     req.Side.Opposite(),
				Price:    tradePrice,
				Qty:      restingLeaves,
				Priority: restingPriority,
			})
		}

		idx = nextIdx
	}
}

func (m *MatchingEngine) processCancel(req wire.ClientRequest) {
	order, err := m.book.CancelByClientOrder(req.ClientId, req.OrderId)
	if err != nil {
		m.pushResponse(req.ClientId, wire.ClientResponse{
			MsgType:       domain.ResponseCancelRejected,
			ClientId:      req.ClientId,
			TickerId:      req.TickerId,
			ClientOrderId: req.OrderId,
		})
		return
	}
	m.pushResponse(req.ClientId, wire.ClientResponse{
		MsgType:       domain.ResponseCanceled,
		ClientId:      req.ClientId,
		TickerId:      req.TickerId,
		ClientOrderId: req.OrderId,
		MarketOrderId: order.MarketOrderId,
		Side:          order.Side,
		Price:         order.Price,
	})
	m.pushUpdate(BookEvent{
		Type:     domain.UpdateCancel,
		TickerId: req.TickerId,
		OrderId:  order.MarketOrderId,
		Side:     order.Side,
		Price:    order.Price,
		Priority: order.Priority,
	})
}

// processModify is cancel-then-new at the request's new price/qty,
// losing queue position — the deterministic model this system
// mandates over an in-place qty-down optimization.
func (m *MatchingEngine) processModify(req wire.ClientRequest) {
	if _, err := m.book.CancelByClientOrder(req.ClientId, req.OrderId); err != nil {
		m.pushResponse(req.ClientId, wire.ClientResponse{
			MsgType:       domain.ResponseCancelRejected,
			ClientId:      req.ClientId,
			TickerId:      req.TickerId,
			ClientOrderId: req.OrderId,
		})
		return
	}
	m.processNew(req)
}
