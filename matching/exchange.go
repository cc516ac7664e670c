package matching

import (
	"sync"
	"sync/atomic"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/xlog"
)

// Exchange routes requests to the per-ticker MatchingEngine that owns
// them. The routing table is an immutable map behind an atomic.Value:
// reads never take a lock, and a write (registering a new ticker)
// copies the whole map and swaps it in, since new tickers are
// registered at startup and essentially never afterward.
type Exchange struct {
	engines      atomic.Value // map[domain.TickerId]*MatchingEngine
	mu           sync.Mutex
	bookCapacity int
	log          *xlog.Logger
	shutdown     *atomic.Bool
}

// NewExchange creates an exchange with no tickers registered yet.
// bookCapacity is the resting-order capacity each per-ticker order
// book is given.
func NewExchange(bookCapacity int, log *xlog.Logger, shutdown *atomic.Bool) *Exchange {
	e := &Exchange{bookCapacity: bookCapacity, log: log, shutdown: shutdown}
	e.engines.Store(make(map[domain.TickerId]*MatchingEngine))
	return e
}

// RegisterTicker creates and starts a matching engine for tickerId if
// one does not already exist, and returns it.
func (e *Exchange) RegisterTicker(tickerId domain.TickerId) *MatchingEngine {
	engines := e.engines.Load().(map[domain.TickerId]*MatchingEngine)
	if engine, ok := engines[tickerId]; ok {
		return engine
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	engines = e.engines.Load().(map[domain.TickerId]*MatchingEngine)
	if engine, ok := engines[tickerId]; ok {
		return engine
	}

	engine := New(tickerId, e.bookCapacity, e.log)
	go engine.Run(e.shutdown)

	next := make(map[domain.TickerId]*MatchingEngine, len(engines)+1)
	for k, v := range engines {
		next[k] = v
	}
	next[tickerId] = engine
	e.engines.Store(next)

	return engine
}

// Engine returns the matching engine for tickerId, and whether it is
// registered. Lock-free: a single atomic.Value.Load.
func (e *Exchange) Engine(tickerId domain.TickerId) (*MatchingEngine, bool) {
	engines := e.engines.Load().(map[domain.TickerId]*MatchingEngine)
	engine, ok := engines[tickerId]
	return engine, ok
}

// Tickers returns a snapshot of the currently registered ticker ids.
func (e *Exchange) Tickers() []domain.TickerId {
	engines := e.engines.Load().(map[domain.TickerId]*MatchingEngine)
	ids := make([]domain.TickerId, 0, len(engines))
	for id := range engines {
		ids = append(ids, id)
	}
	return ids
}
