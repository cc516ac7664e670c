package trading

import (
	"errors"
	"net"
	"time"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/internal/xerr"
	"lowlatency-exchange/wire"
)

// pollDeadline mirrors the gateway package's non-blocking poll idiom:
// a read deadline one microsecond out makes conn.Read return almost
// immediately with a timeout error when no data is ready.
const pollDeadline = time.Microsecond

const requestFrameSize = wire.SessionFrameHeaderSize + wire.ClientRequestSize
const responseFrameSize = wire.SessionFrameHeaderSize + wire.ClientResponseSize

// PendingOrder is an order this gateway has sent but not yet seen a
// terminal response for.
type PendingOrder struct {
	OrderId  domain.OrderId
	TickerId domain.TickerId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
	SentTime clock.Nanos
}

// OrderGateway is the client side of the order channel: it performs
// the session handshake, assigns client order IDs, frames outbound
// requests with a monotonic per-session seq_num, and tracks orders
// until a terminal response retires them.
type OrderGateway struct {
	conn     net.Conn
	clientId domain.ClientId

	nextOrderId domain.OrderId
	pending     map[domain.OrderId]PendingOrder

	recvBuf []byte
	nextOut uint64
}

// Connect dials addr, performs the session handshake, and returns a
// ready-to-use OrderGateway.
func Connect(addr string, clientId domain.ClientId) (*OrderGateway, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	if err := sendHandshake(conn, clientId); err != nil {
		conn.Close()
		return nil, err
	}

	return &OrderGateway{
		conn:        conn,
		clientId:    clientId,
		nextOrderId: 1,
		pending:     make(map[domain.OrderId]PendingOrder),
		recvBuf:     make([]byte, 0, responseFrameSize*16),
		nextOut:     1,
	}, nil
}

func sendHandshake(conn net.Conn, clientId domain.ClientId) error {
	var out [wire.HandshakeSize]byte
	wire.Handshake{ClientId: clientId, StartSeqNum: 1}.Encode(out[:])
	if _, err := conn.Write(out[:]); err != nil {
		return err
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var in [wire.SessionFrameHeaderSize]byte
	if _, err := readFull(conn, in[:]); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Time{})
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SendNewOrder frames and sends a new order request, returning the
// client order ID assigned to it.
func (g *OrderGateway) SendNewOrder(tickerId domain.TickerId, side domain.Side, price domain.Price, qty domain.Qty) (domain.OrderId, error) {
	orderId := g.nextOrderId
	g.nextOrderId++

	req := wire.ClientRequest{
		MsgType:  domain.RequestNew,
		ClientId: g.clientId,
		TickerId: tickerId,
		OrderId:  orderId,
		Side:     side,
		Price:    price,
		Qty:      qty,
	}

	if err := g.sendRequest(req); err != nil {
		return 0, err
	}

	g.pending[orderId] = PendingOrder{
		OrderId:  orderId,
		TickerId: tickerId,
		Side:     side,
		Price:    price,
		Qty:      qty,
		SentTime: clock.Now(),
	}
	return orderId, nil
}

// SendCancel frames and sends a cancel request for orderId.
func (g *OrderGateway) SendCancel(orderId domain.OrderId, tickerId domain.TickerId) error {
	var side domain.Side
	var price domain.Price
	var qty domain.Qty
	if p, ok := g.pending[orderId]; ok {
		side, price, qty = p.Side, p.Price, p.Qty
	}

	req := wire.ClientRequest{
		MsgType:  domain.RequestCancel,
		ClientId: g.clientId,
		TickerId: tickerId,
		OrderId:  orderId,
		Side:     side,
		Price:    price,
		Qty:      qty,
	}
	return g.sendRequest(req)
}

func (g *OrderGateway) sendRequest(req wire.ClientRequest) error {
	var buf [requestFrameSize]byte
	wire.EncodeSessionHeader(buf[:wire.SessionFrameHeaderSize], g.nextOut)
	req.Encode(buf[wire.SessionFrameHeaderSize:])
	g.nextOut++
	_, err := g.conn.Write(buf[:])
	return err
}

// Poll reads whatever is immediately available without blocking and
// returns every complete response decoded from it, updating pending
// order tracking as it goes. A broken connection returns
// xerr.ErrSessionClosed.
func (g *OrderGateway) Poll() ([]wire.ClientResponse, error) {
	_ = g.conn.SetReadDeadline(time.Now().Add(pollDeadline))

	var tmp [responseFrameSize * 4]byte
	n, err := g.conn.Read(tmp[:])
	if n > 0 {
		g.recvBuf = append(g.recvBuf, tmp[:n]...)
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// no data ready this round
		} else {
			return nil, xerr.ErrSessionClosed
		}
	}

	var responses []wire.ClientResponse
	for len(g.recvBuf) >= responseFrameSize {
		resp, decErr := wire.DecodeClientResponse(g.recvBuf[wire.SessionFrameHeaderSize:responseFrameSize])
		g.recvBuf = g.recvBuf[responseFrameSize:]
		if decErr != nil {
			return responses, xerr.ErrWireProtocol
		}
		g.trackResponse(resp)
		responses = append(responses, resp)
	}
	return responses, nil
}

func (g *OrderGateway) trackResponse(resp wire.ClientResponse) {
	switch resp.MsgType {
	case domain.ResponseCanceled, domain.ResponseCancelRejected, domain.ResponseRejected:
		delete(g.pending, resp.ClientOrderId)
	case domain.ResponseFilled:
		if resp.LeavesQty == 0 {
			delete(g.pending, resp.ClientOrderId)
		}
	case domain.ResponseAccepted:
		// still resting, keep tracking
	}
}

// Pending returns the tracked order for orderId, if still outstanding.
func (g *OrderGateway) Pending(orderId domain.OrderId) (PendingOrder, bool) {
	p, ok := g.pending[orderId]
	return p, ok
}

// PendingCount returns the number of outstanding orders.
func (g *OrderGateway) PendingCount() int { return len(g.pending) }

// ClientId returns the client ID this gateway authenticated as.
func (g *OrderGateway) ClientId() domain.ClientId { return g.clientId }

// Close tears down the underlying connection.
func (g *OrderGateway) Close() error { return g.conn.Close() }
