// Package wire implements the fixed-size, packed, little-endian wire
// records exchanged over the order channel (TCP, session-oriented) and
// the market-data channel (UDP multicast). Every record is encoded and
// decoded by hand with encoding/binary rather than cast over a struct,
// since Go gives no alignment guarantee for a raw memory reinterpret
// and the corpus this system is grounded on has no wire-codec library
// to reach for instead.
package wire

import (
	"encoding/binary"
	"fmt"

	"lowlatency-exchange/domain"
)

// ClientRequestSize is the encoded size of a ClientRequest body, not
// counting the per-session seq_num prefix carried by SessionFrame.
const ClientRequestSize = 1 + 4 + 4 + 8 + 1 + 8 + 4 // 30

// ClientRequest is an inbound order action.
type ClientRequest struct {
	MsgType  domain.RequestType
	ClientId domain.ClientId
	TickerId domain.TickerId
	OrderId  domain.OrderId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
}

// Encode writes r into buf, which must be at least ClientRequestSize
// bytes long, and returns the number of bytes written.
func (r ClientRequest) Encode(buf []byte) int {
	buf[0] = byte(r.MsgType)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ClientId))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(r.TickerId))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(r.OrderId))
	buf[17] = byte(r.Side)
	binary.LittleEndian.PutUint64(buf[18:26], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[26:30], uint32(r.Qty))
	return ClientRequestSize
}

// DecodeClientRequest reads a ClientRequest from buf, which must be at
// least ClientRequestSize bytes long.
func DecodeClientRequest(buf []byte) (ClientRequest, error) {
	if len(buf) < ClientRequestSize {
		return ClientRequest{}, fmt.Errorf("wire: short ClientRequest buffer: have %d, need %d", len(buf), ClientRequestSize)
	}
	return ClientRequest{
		MsgType:  domain.RequestType(buf[0]),
		ClientId: domain.ClientId(binary.LittleEndian.Uint32(buf[1:5])),
		TickerId: domain.TickerId(binary.LittleEndian.Uint32(buf[5:9])),
		OrderId:  domain.OrderId(binary.LittleEndian.Uint64(buf[9:17])),
		Side:     domain.Side(int8(buf[17])),
		Price:    domain.Price(int64(binary.LittleEndian.Uint64(buf[18:26]))),
		Qty:      domain.Qty(binary.LittleEndian.Uint32(buf[26:30])),
	}, nil
}

// ClientResponseSize is the encoded size of a ClientResponse body, not
// counting the per-session seq_num prefix carried by SessionFrame.
const ClientResponseSize = 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4 // 42

// ClientResponse is an outbound acknowledgement, fill, or rejection.
type ClientResponse struct {
	MsgType       domain.ResponseType
	ClientId      domain.ClientId
	TickerId      domain.TickerId
	ClientOrderId domain.OrderId
	MarketOrderId domain.OrderId
	Side          domain.Side
	Price         domain.Price
	ExecQty       domain.Qty
	LeavesQty     domain.Qty
}

// Encode writes c into buf, which must be at least ClientResponseSize
// bytes long, and returns the number of bytes written.
func (c ClientResponse) Encode(buf []byte) int {
	buf[0] = byte(c.MsgType)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(c.ClientId))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(c.TickerId))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(c.ClientOrderId))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(c.MarketOrderId))
	buf[25] = byte(c.Side)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(c.Price))
	binary.LittleEndian.PutUint32(buf[34:38], uint32(c.ExecQty))
	binary.LittleEndian.PutUint32(buf[38:42], uint32(c.LeavesQty))
	return ClientResponseSize
}

// DecodeClientResponse reads a ClientResponse from buf, which must be
// at least ClientResponseSize bytes long.
func DecodeClientResponse(buf []byte) (ClientResponse, error) {
	if len(buf) < ClientResponseSize {
		return ClientResponse{}, fmt.Errorf("wire: short ClientResponse buffer: have %d, need %d", len(buf), ClientResponseSize)
	}
	return ClientResponse{
		MsgType:       domain.ResponseType(buf[0]),
		ClientId:      domain.ClientId(binary.LittleEndian.Uint32(buf[1:5])),
		TickerId:      domain.TickerId(binary.LittleEndian.Uint32(buf[5:9])),
		ClientOrderId: domain.OrderId(binary.LittleEndian.Uint64(buf[9:17])),
		MarketOrderId: domain.OrderId(binary.LittleEndian.Uint64(buf[17:25])),
		Side:          domain.Side(int8(buf[25])),
		Price:         domain.Price(int64(binary.LittleEndian.Uint64(buf[26:34]))),
		ExecQty:       domain.Qty(binary.LittleEndian.Uint32(buf[34:38])),
		LeavesQty:     domain.Qty(binary.LittleEndian.Uint32(buf[38:42])),
	}, nil
}

// MarketUpdateSize is the encoded size of a MarketUpdate, including
// its own seq_num field (market-data packets are self-describing and
// carry no separate session framing).
const MarketUpdateSize = 8 + 1 + 4 + 8 + 1 + 8 + 4 + 8 // 42

// MarketUpdate is one multicast book-delta or trade event.
type MarketUpdate struct {
	SeqNum   uint64
	Type     domain.MarketUpdateType
	TickerId domain.TickerId
	OrderId  domain.OrderId
	Side     domain.Side
	Price    domain.Price
	Qty      domain.Qty
	Priority domain.Priority
}

// Encode writes u into buf, which must be at least MarketUpdateSize
// bytes long, and returns the number of bytes written.
func (u MarketUpdate) Encode(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], u.SeqNum)
	buf[8] = byte(u.Type)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(u.TickerId))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(u.OrderId))
	buf[21] = byte(u.Side)
	binary.LittleEndian.PutUint64(buf[22:30], uint64(u.Price))
	binary.LittleEndian.PutUint32(buf[30:34], uint32(u.Qty))
	binary.LittleEndian.PutUint64(buf[34:42], uint64(u.Priority))
	return MarketUpdateSize
}

// DecodeMarketUpdate reads a MarketUpdate from buf, which must be at
// least MarketUpdateSize bytes long.
func DecodeMarketUpdate(buf []byte) (MarketUpdate, error) {
	if len(buf) < MarketUpdateSize {
		return MarketUpdate{}, fmt.Errorf("wire: short MarketUpdate buffer: have %d, need %d", len(buf), MarketUpdateSize)
	}
	return MarketUpdate{
		SeqNum:   binary.LittleEndian.Uint64(buf[0:8]),
		Type:     domain.MarketUpdateType(buf[8]),
		TickerId: domain.TickerId(binary.LittleEndian.Uint32(buf[9:13])),
		OrderId:  domain.OrderId(binary.LittleEndian.Uint64(buf[13:21])),
		Side:     domain.Side(int8(buf[21])),
		Price:    domain.Price(int64(binary.LittleEndian.Uint64(buf[22:30]))),
		Qty:      domain.Qty(binary.LittleEndian.Uint32(buf[30:34])),
		Priority: domain.Priority(binary.LittleEndian.Uint64(buf[34:42])),
	}, nil
}

// SessionFrameHeaderSize is the size of the monotonic per-session
// seq_num prefix that precedes every ClientRequest/ClientResponse body
// on the order channel.
const SessionFrameHeaderSize = 8

// EncodeSessionHeader writes seqNum into buf, which must be at least
// SessionFrameHeaderSize bytes long.
func EncodeSessionHeader(buf []byte, seqNum uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], seqNum)
}

// DecodeSessionHeader reads the per-session seq_num prefix from buf,
// which must be at least SessionFrameHeaderSize bytes long.
func DecodeSessionHeader(buf []byte) (uint64, error) {
	if len(buf) < SessionFrameHeaderSize {
		return 0, fmt.Errorf("wire: short session header buffer: have %d, need %d", len(buf), SessionFrameHeaderSize)
	}
	return binary.LittleEndian.Uint64(buf[0:8]), nil
}

// HandshakeSize is the encoded size of the session handshake that
// opens an order-channel connection: client_id followed by the
// starting seq_num.
const HandshakeSize = 4 + 8

// Handshake is the first frame a session sends, naming the client and
// the seq_num it will start counting from (typically 1).
type Handshake struct {
	ClientId    domain.ClientId
	StartSeqNum uint64
}

// Encode writes h into buf, which must be at least HandshakeSize bytes
// long, and returns the number of bytes written.
func (h Handshake) Encode(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.ClientId))
	binary.LittleEndian.PutUint64(buf[4:12], h.StartSeqNum)
	return HandshakeSize
}

// DecodeHandshake reads a Handshake from buf, which must be at least
// HandshakeSize bytes long.
func DecodeHandshake(buf []byte) (Handshake, error) {
	if len(buf) < HandshakeSize {
		return Handshake{}, fmt.Errorf("wire: short handshake buffer: have %d, need %d", len(buf), HandshakeSize)
	}
	return Handshake{
		ClientId:    domain.ClientId(binary.LittleEndian.Uint32(buf[0:4])),
		StartSeqNum: binary.LittleEndian.Uint64(buf[4:12]),
	}, nil
}
