package trading

import (
	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/trading/features"
	"lowlatency-exchange/trading/position"
	"lowlatency-exchange/trading/risk"
	"lowlatency-exchange/trading/strategy"
	"lowlatency-exchange/wire"
)

// EngineConfig parameterizes an Engine.
type EngineConfig struct {
	ClientId          domain.ClientId
	Tickers           []domain.TickerId
	EnableRiskChecks  bool
	MaxEventsPerCycle int
}

// DefaultEngineConfig returns a config with risk checks on and a
// max-events-per-cycle of 100.
func DefaultEngineConfig(clientId domain.ClientId) EngineConfig {
	return EngineConfig{ClientId: clientId, EnableRiskChecks: true, MaxEventsPerCycle: 100}
}

// Stats accumulates Engine activity counters, reset together.
type Stats struct {
	MarketUpdatesProcessed uint64
	ResponsesProcessed     uint64
	OrdersSubmitted        uint64
	OrdersRejectedRisk     uint64
	FillsReceived          uint64
	StrategyCycles         uint64
	TotalCycles            uint64
}

// TrackedOrder is an order the engine has submitted and is following
// through to a terminal response.
type TrackedOrder struct {
	OrderId     domain.OrderId
	TickerId    domain.TickerId
	Side        domain.Side
	Price       domain.Price
	OriginalQty domain.Qty
	LeavesQty   domain.Qty
	SentTime    clock.Nanos
}

// OrderSink is whatever the engine hands orders to; OrderGateway
// satisfies it for a live client, and tests supply a fake.
type OrderSink interface {
	SendNewOrder(tickerId domain.TickerId, side domain.Side, price domain.Price, qty domain.Qty) (domain.OrderId, error)
	SendCancel(orderId domain.OrderId, tickerId domain.TickerId) error
}

// SubmitResult pairs an attempted order with its outcome: an assigned
// order ID on success, or the risk check that rejected it.
type SubmitResult struct {
	OrderId domain.OrderId
	Risk    risk.CheckResult
}

// Engine is the central trading orchestrator: it folds market data
// into features, risk-checks and submits strategy-requested orders,
// and folds exchange responses back into position and order state. Its
// event loop processes, in priority order, exchange responses first
// (order state must stay current before anything else), then market
// data (strategies need fresh prices before they run).
type Engine struct {
	config EngineConfig
	sink   OrderSink

	featureEngine *features.Engine
	riskManager   *risk.Manager
	positions     *position.Keeper

	bbo            map[domain.TickerId]domain.BBO
	pendingOrders  map[domain.OrderId]TrackedOrder
	openOrderCount map[domain.TickerId]uint32

	stats   Stats
	running bool
}

// NewEngine returns an Engine using cfg, submitting orders through
// sink.
func NewEngine(cfg EngineConfig, sink OrderSink) *Engine {
	e := &Engine{
		config:         cfg,
		sink:           sink,
		featureEngine:  features.New(),
		riskManager:    risk.New(),
		positions:      position.NewKeeper(),
		bbo:            make(map[domain.TickerId]domain.BBO),
		pendingOrders:  make(map[domain.OrderId]TrackedOrder),
		openOrderCount: make(map[domain.TickerId]uint32),
	}
	e.featureEngine.Reserve(cfg.Tickers)
	for _, t := range cfg.Tickers {
		e.bbo[t] = domain.BBO{}
		e.openOrderCount[t] = 0
	}
	return e
}

func (e *Engine) FeatureEngine() *features.Engine { return e.featureEngine }
func (e *Engine) RiskManager() *risk.Manager      { return e.riskManager }
func (e *Engine) Positions() *position.Keeper     { return e.positions }
func (e *Engine) Stats() Stats                    { return e.stats }
func (e *Engine) IsRunning() bool                 { return e.running }

func (e *Engine) Start() { e.running = true }
func (e *Engine) Stop()  { e.running = false }

// OnMarketUpdate folds one decoded market-data packet into the local
// BBO view and the feature engine, and re-marks the ticker's position
// to the mid price whenever both sides of the BBO are present.
func (e *Engine) OnMarketUpdate(update wire.MarketUpdate) domain.TickerId {
	bbo := e.bbo[update.TickerId]

	switch update.Type {
	case domain.UpdateAdd, domain.UpdateModify:
		applyLevel(&bbo, update.Side, update.Price, update.Qty)
	case domain.UpdateCancel:
		eatLevel(&bbo, update.Side, update.Price, update.Qty)
	case domain.UpdateTrade:
		eatLevel(&bbo, update.Side.Opposite(), update.Price, update.Qty)
		e.positions.UpdateMarketPrice(update.TickerId, update.Price)
	case domain.UpdateClear:
		bbo = domain.BBO{}
	}

	e.bbo[update.TickerId] = bbo
	e.featureEngine.OnBBOUpdate(update.TickerId, bbo)
	if !bbo.BidEmpty() && !bbo.AskEmpty() {
		e.positions.UpdateMarketPrice(update.TickerId, (bbo.BidPrice+bbo.AskPrice)/2)
	}
	e.stats.MarketUpdatesProcessed++
	return update.TickerId
}

// BBO returns the current BBO view for tickerId.
func (e *Engine) BBO(tickerId domain.TickerId) domain.BBO { return e.bbo[tickerId] }

// OnResponse folds one exchange response into order and position
// state.
func (e *Engine) OnResponse(resp wire.ClientResponse) {
	e.stats.ResponsesProcessed++

	switch resp.MsgType {
	case domain.ResponseAccepted:
		// already tracked from submission

	case domain.ResponseFilled:
		if order, ok := e.pendingOrders[resp.ClientOrderId]; ok {
			e.positions.OnFill(resp.TickerId, order.Side, resp.ExecQty, resp.Price)
			if pos, found := e.positions.Get(resp.TickerId); found {
				pos.RemoveOpenOrder(order.Side, resp.ExecQty)
			}
			e.stats.FillsReceived++
		}

		if resp.LeavesQty == 0 {
			delete(e.pendingOrders, resp.ClientOrderId)
			e.decrementOpenOrders(resp.TickerId)
		} else if order, ok := e.pendingOrders[resp.ClientOrderId]; ok {
			order.LeavesQty = resp.LeavesQty
			e.pendingOrders[resp.ClientOrderId] = order
		}

	case domain.ResponseCanceled, domain.ResponseCancelRejected, domain.ResponseRejected:
		if order, ok := e.pendingOrders[resp.ClientOrderId]; ok {
			delete(e.pendingOrders, resp.ClientOrderId)
			if pos, found := e.positions.Get(resp.TickerId); found {
				pos.RemoveOpenOrder(order.Side, order.LeavesQty)
			}
			e.decrementOpenOrders(resp.TickerId)
		}
	}
}

func (e *Engine) decrementOpenOrders(tickerId domain.TickerId) {
	if c := e.openOrderCount[tickerId]; c > 0 {
		e.openOrderCount[tickerId] = c - 1
	}
}

// CheckOrderRisk runs the configured pre-trade checks, or always
// allows when risk checks are disabled.
func (e *Engine) CheckOrderRisk(tickerId domain.TickerId, side domain.Side, qty domain.Qty) risk.CheckResult {
	if !e.config.EnableRiskChecks {
		return risk.Allowed
	}
	pos := e.positions.GetOrCreate(tickerId)
	openOrders := e.openOrderCount[tickerId]
	return e.riskManager.CheckOrderWithOpenOrders(pos, side, qty, openOrders)
}

// SubmitOrder risk-checks and, if allowed, sends an order through the
// sink, tracking it until a terminal response retires it.
func (e *Engine) SubmitOrder(tickerId domain.TickerId, side domain.Side, price domain.Price, qty domain.Qty) (domain.OrderId, risk.CheckResult) {
	result := e.CheckOrderRisk(tickerId, side, qty)
	if !result.IsAllowed() {
		e.stats.OrdersRejectedRisk++
		return 0, result
	}

	orderId, err := e.sink.SendNewOrder(tickerId, side, price, qty)
	if err != nil {
		return 0, risk.Allowed
	}

	e.pendingOrders[orderId] = TrackedOrder{
		OrderId:     orderId,
		TickerId:    tickerId,
		Side:        side,
		Price:       price,
		OriginalQty: qty,
		LeavesQty:   qty,
		SentTime:    clock.Now(),
	}
	e.openOrderCount[tickerId]++
	e.positions.GetOrCreate(tickerId).AddOpenOrder(side, qty)
	e.stats.OrdersSubmitted++

	return orderId, risk.Allowed
}

// CancelOrder sends a cancel for orderId, if it is still tracked.
func (e *Engine) CancelOrder(orderId domain.OrderId) {
	order, ok := e.pendingOrders[orderId]
	if !ok {
		return
	}
	_ = e.sink.SendCancel(orderId, order.TickerId)
}

// CancelAllOrders cancels every tracked order for tickerId.
func (e *Engine) CancelAllOrders(tickerId domain.TickerId) {
	var ids []domain.OrderId
	for id, order := range e.pendingOrders {
		if order.TickerId == tickerId {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		e.CancelOrder(id)
	}
}

func (e *Engine) PendingOrder(orderId domain.OrderId) (TrackedOrder, bool) {
	o, ok := e.pendingOrders[orderId]
	return o, ok
}

func (e *Engine) OpenOrderCount(tickerId domain.TickerId) uint32 { return e.openOrderCount[tickerId] }
func (e *Engine) TotalPendingOrders() int                        { return len(e.pendingOrders) }

// ProcessStrategyAction submits whatever orders a strategy's action
// calls for, running each through risk.
func (e *Engine) ProcessStrategyAction(action strategy.StrategyAction) []SubmitResult {
	var results []SubmitResult

	switch action.Kind {
	case strategy.ActionQuote:
		if bid := action.Quote.Bid; bid != nil {
			id, r := e.SubmitOrder(bid.TickerId, bid.Side, bid.Price, bid.Qty)
			results = append(results, SubmitResult{OrderId: id, Risk: r})
		}
		if ask := action.Quote.Ask; ask != nil {
			id, r := e.SubmitOrder(ask.TickerId, ask.Side, ask.Price, ask.Qty)
			results = append(results, SubmitResult{OrderId: id, Risk: r})
		}
	case strategy.ActionTake:
		order := action.Take
		id, r := e.SubmitOrder(order.TickerId, order.Side, order.Price, order.Qty)
		results = append(results, SubmitResult{OrderId: id, Risk: r})
	}

	e.stats.StrategyCycles++
	return results
}

// Features returns the current features for tickerId.
func (e *Engine) Features(tickerId domain.TickerId) (features.TickerFeatures, bool) {
	return e.featureEngine.Get(tickerId)
}

// Position returns the current position for tickerId.
func (e *Engine) Position(tickerId domain.TickerId) (*position.Position, bool) {
	return e.positions.Get(tickerId)
}

// RunCycle processes, in priority order, up to MaxEventsPerCycle
// responses and market updates, and returns the count processed. It
// is a no-op while the engine is stopped.
func (e *Engine) RunCycle(responses []wire.ClientResponse, updates []wire.MarketUpdate) int {
	if !e.running {
		return 0
	}

	processed := 0
	max := e.config.MaxEventsPerCycle

	for _, resp := range responses {
		if processed >= max {
			break
		}
		e.OnResponse(resp)
		processed++
	}

	for _, update := range updates {
		if processed >= max {
			break
		}
		e.OnMarketUpdate(update)
		processed++
	}

	e.stats.TotalCycles++
	return processed
}

// Reset clears features, BBO views, tracked orders, open-order counts
// and stats. Positions, risk limits and the running flag are kept.
func (e *Engine) Reset() {
	e.featureEngine = features.New()
	e.featureEngine.Reserve(e.config.Tickers)
	e.bbo = make(map[domain.TickerId]domain.BBO)
	e.pendingOrders = make(map[domain.OrderId]TrackedOrder)
	e.openOrderCount = make(map[domain.TickerId]uint32)
	for _, t := range e.config.Tickers {
		e.bbo[t] = domain.BBO{}
		e.openOrderCount[t] = 0
	}
	e.stats = Stats{}
}
