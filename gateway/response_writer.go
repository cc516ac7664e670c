package gateway

import (
	"sync/atomic"

	"lowlatency-exchange/internal/spin"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
)

// ResponseWriter is the single goroutine that fans in across every
// ticker's response queue and writes each response to the owning
// client's socket. Matching engines never touch a socket directly;
// this is the only goroutine that does, on the exchange's outbound
// order-channel path.
type ResponseWriter struct {
	exchange *matching.Exchange
	server   *OrderServer
	log      *xlog.Logger
	shutdown *atomic.Bool
}

// NewResponseWriter returns a writer that drains every engine
// registered on exchange and writes to sessions held by server.
func NewResponseWriter(exchange *matching.Exchange, server *OrderServer, log *xlog.Logger, shutdown *atomic.Bool) *ResponseWriter {
	return &ResponseWriter{exchange: exchange, server: server, log: log, shutdown: shutdown}
}

// Run fans in across every per-ticker response queue until shutdown is
// requested, then makes one final pass to drain whatever is left.
func (w *ResponseWriter) Run() {
	var backoff spin.Backoff
	for !w.shutdown.Load() {
		if w.pollOnce() {
			backoff.Reset()
		} else {
			backoff.Idle()
		}
	}
	w.pollOnce()
}

func (w *ResponseWriter) pollOnce() bool {
	progressed := false
	for _, tickerId := range w.exchange.Tickers() {
		engine, ok := w.exchange.Engine(tickerId)
		if !ok {
			continue
		}
		for {
			envelope, ok := engine.Responses.Pop()
			if !ok {
				break
			}
			progressed = true
			w.write(envelope)
		}
	}
	for {
		envelope, ok := w.server.PopReject()
		if !ok {
			break
		}
		progressed = true
		w.write(envelope)
	}
	return progressed
}

func (w *ResponseWriter) write(envelope matching.ResponseEnvelope) {
	sess, ok := w.server.sessionFor(envelope.ClientId)
	if !ok {
		if w.log != nil {
			w.log.WarnU64("response for unknown session, dropping for client", uint64(envelope.ClientId))
		}
		return
	}
	if err := sess.send(envelope.Response); err != nil {
		if w.log != nil {
			w.log.WarnU64("failed writing response to client", uint64(envelope.ClientId))
		}
	}
}
