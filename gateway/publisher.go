package gateway

import (
	"net"
	"sync/atomic"

	"lowlatency-exchange/internal/spin"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
	"lowlatency-exchange/wire"
)

// Publisher is the single goroutine that fans in across every ticker's
// market-update queue, assigns the globally monotonic seq_num at the
// moment it dequeues each event, and multicasts the encoded packet.
// seq_num assignment is confined to this one goroutine specifically so
// that "strictly monotonic per publisher" needs no synchronization
// beyond a plain counter.
type Publisher struct {
	exchange *matching.Exchange
	conn     *net.UDPConn
	log      *xlog.Logger
	shutdown *atomic.Bool

	nextSeq uint64
}

// NewPublisher dials the multicast group groupAddr (host:port) and
// returns a publisher ready to Run.
func NewPublisher(groupAddr string, exchange *matching.Exchange, log *xlog.Logger, shutdown *atomic.Bool) (*Publisher, error) {
	addr, err := net.ResolveUDPAddr("udp", groupAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	return &Publisher{exchange: exchange, conn: conn, log: log, shutdown: shutdown, nextSeq: 1}, nil
}

// Run drains every ticker's update queue until shutdown is requested,
// then makes one final pass so nothing already matched goes unpublished.
func (p *Publisher) Run() {
	var backoff spin.Backoff
	for !p.shutdown.Load() {
		if p.pollOnce() {
			backoff.Reset()
		} else {
			backoff.Idle()
		}
	}
	p.pollOnce()
}

func (p *Publisher) pollOnce() bool {
	progressed := false
	for _, tickerId := range p.exchange.Tickers() {
		engine, ok := p.exchange.Engine(tickerId)
		if !ok {
			continue
		}
		for {
			event, ok := engine.Updates.Pop()
			if !ok {
				break
			}
			progressed = true
			p.publish(event)
		}
	}
	return progressed
}

func (p *Publisher) publish(event matching.BookEvent) {
	update := wire.MarketUpdate{
		SeqNum:   p.nextSeq,
		Type:     event.Type,
		TickerId: event.TickerId,
		OrderId:  event.OrderId,
		Side:     event.Side,
		Price:    event.Price,
		Qty:      event.Qty,
		Priority: event.Priority,
	}
	p.nextSeq++

	var buf [wire.MarketUpdateSize]byte
	update.Encode(buf[:])
	if _, err := p.conn.Write(buf[:]); err != nil {
		if p.log != nil {
			p.log.Warn("multicast publish failed")
		}
	}
}

// Close releases the outbound multicast socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
