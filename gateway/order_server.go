package gateway

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/ringbuf"
	"lowlatency-exchange/internal/spin"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
	"lowlatency-exchange/wire"
)

// rejectCapacity bounds the queue of synthesized Rejected responses for
// requests that never reached a matching engine (unknown ticker, full
// ingress queue). It is sized well above any realistic per-tick burst
// of such rejections.
const rejectCapacity = 1024

// SequencedRequest pairs an inbound request with the global sequence
// number the order server assigned it on receipt, establishing a
// single audit-trail total order across every session even though
// dispatch beyond this point fans out per ticker.
type SequencedRequest struct {
	SeqNum   uint64
	ClientId domain.ClientId
	Request  wire.ClientRequest
}

// OrderServer is the sole TCP-facing goroutine on the exchange side of
// the order channel: one goroutine accepts connections, and one
// goroutine polls every established session and forwards decoded
// requests into the matching engine that owns the named ticker. No
// session ever gets its own reader goroutine, so every handoff past
// accept stays single-producer.
type OrderServer struct {
	listener  net.Listener
	exchange  *matching.Exchange
	sequencer *FifoSequencer
	log       *xlog.Logger

	mu       sync.Mutex
	sessions map[domain.ClientId]*session

	// rejects carries synthesized Rejected responses for requests that
	// never reached a matching engine's own Responses queue — an
	// unregistered ticker, or a full ingress queue. OrderServer is the
	// sole producer and ResponseWriter is the sole consumer, preserving
	// the single-producer/single-consumer contract each per-ticker
	// queue already relies on.
	rejects *ringbuf.Queue[matching.ResponseEnvelope]

	shutdown *atomic.Bool
}

// NewOrderServer binds listenAddr and returns a server ready to Accept
// and Run.
func NewOrderServer(listenAddr string, exchange *matching.Exchange, log *xlog.Logger, shutdown *atomic.Bool) (*OrderServer, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	return &OrderServer{
		listener:  ln,
		exchange:  exchange,
		sequencer: NewFifoSequencer(),
		log:       log,
		sessions:  make(map[domain.ClientId]*session),
		rejects:   ringbuf.New[matching.ResponseEnvelope](rejectCapacity),
		shutdown:  shutdown,
	}, nil
}

// Addr returns the listener's bound address, letting callers discover
// an ephemeral port chosen with ":0".
func (s *OrderServer) Addr() net.Addr { return s.listener.Addr() }

// Accept runs the connection-accept loop until shutdown is requested.
// Each accepted connection performs its handshake on its own
// short-lived goroutine — a one-time blocking read per connection,
// never repeated — then the session is registered for the poll loop to
// pick up.
func (s *OrderServer) Accept() {
	for !s.shutdown.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return
			}
			continue
		}
		go s.admit(conn)
	}
}

func (s *OrderServer) admit(conn net.Conn) {
	clientId, err := handshake(conn)
	if err != nil {
		_ = conn.Close()
		if s.log != nil {
			s.log.Warn("handshake failed, dropping connection")
		}
		return
	}
	sess := newSession(clientId, conn)
	s.mu.Lock()
	s.sessions[clientId] = sess
	s.mu.Unlock()
	if s.log != nil {
		s.log.Log(xlog.Info, xlog.Formatted(fmt.Sprintf("session established for client %d debug_id=%s", clientId, sess.debugID)))
	}
}

// Run is the single polling loop: round-robin over every established
// session, decode whatever is ready, assign each request its global
// sequence number, and push it onto the owning ticker's ingress queue.
func (s *OrderServer) Run() {
	var backoff spin.Backoff
	for !s.shutdown.Load() {
		if s.pollOnce() {
			backoff.Reset()
		} else {
			backoff.Idle()
		}
	}
}

func (s *OrderServer) pollOnce() bool {
	s.mu.Lock()
	snapshot := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		snapshot = append(snapshot, sess)
	}
	s.mu.Unlock()

	progressed := false
	var dead []domain.ClientId

	for _, sess := range snapshot {
		requests, err := sess.poll()
		for _, req := range requests {
			progressed = true
			s.dispatch(sess.clientId, req)
		}
		if err != nil {
			dead = append(dead, sess.clientId)
		}
	}

	if len(dead) > 0 {
		s.mu.Lock()
		for _, id := range dead {
			if sess, ok := s.sessions[id]; ok {
				sess.close()
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
	return progressed
}

// dispatch assigns req its place in the session-spanning audit-trail
// order and hands it to the matching engine that owns its ticker. A
// request that cannot be handed off — an unregistered ticker, or a
// full ingress queue — is never silently dropped: the client gets back
// a terminal Rejected response, per §7's ResourceExhausted handling,
// unless the reject queue itself is full, in which case the rejection
// is dropped and logged.
func (s *OrderServer) dispatch(clientId domain.ClientId, req wire.ClientRequest) {
	sreq := SequencedRequest{SeqNum: s.sequencer.Next(), ClientId: clientId, Request: req}

	engine, ok := s.exchange.Engine(req.TickerId)
	if !ok {
		if s.log != nil {
			s.log.Log(xlog.Warn, xlog.Formatted(fmt.Sprintf(
				"seq=%d client %d order %d: unregistered ticker %d, rejecting",
				sreq.SeqNum, clientId, req.OrderId, req.TickerId)))
		}
		s.reject(sreq, domain.RejectUnknownTicker)
		return
	}
	if !engine.Ingress.Push(req) {
		if s.log != nil {
			s.log.Log(xlog.Warn, xlog.Formatted(fmt.Sprintf(
				"seq=%d client %d order %d: ingress queue full for ticker %d, rejecting",
				sreq.SeqNum, clientId, req.OrderId, req.TickerId)))
		}
		s.reject(sreq, domain.RejectBackpressure)
	}
}

// reject synthesizes a Rejected response for sreq and queues it for
// ResponseWriter to deliver. reason never reaches the wire — it is
// carried only as far as the log line above — but it distinguishes
// the two synthesized-rejection paths for anyone reading the logs.
func (s *OrderServer) reject(sreq SequencedRequest, reason domain.RejectReason) {
	req := sreq.Request
	resp := wire.ClientResponse{
		MsgType:       domain.ResponseRejected,
		ClientId:      sreq.ClientId,
		TickerId:      req.TickerId,
		ClientOrderId: req.OrderId,
		Side:          req.Side,
		Price:         req.Price,
		LeavesQty:     req.Qty,
	}
	if !s.rejects.Push(matching.ResponseEnvelope{ClientId: sreq.ClientId, Response: resp}) {
		if s.log != nil {
			s.log.Log(xlog.Warn, xlog.Formatted(fmt.Sprintf(
				"reject queue full, dropping %v rejection for client %d order %d", reason, sreq.ClientId, req.OrderId)))
		}
	}
}

// PopReject returns the next queued synthesized rejection, if any, for
// ResponseWriter to deliver.
func (s *OrderServer) PopReject() (matching.ResponseEnvelope, bool) {
	return s.rejects.Pop()
}

// sessionFor is used by ResponseWriter to locate the socket a response
// belongs to.
func (s *OrderServer) sessionFor(clientId domain.ClientId) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientId]
	return sess, ok
}

// Close stops accepting new connections and tears down the listener.
func (s *OrderServer) Close() error {
	return s.listener.Close()
}
