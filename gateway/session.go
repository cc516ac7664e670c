package gateway

import (
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/xerr"
	"lowlatency-exchange/wire"
)

// pollDeadline is how far ahead of now the read deadline is set before
// every poll attempt. A deadline one microsecond out makes conn.Read
// return almost immediately with a timeout error when no data is ready, which is the net.Conn
// equivalent of the non-blocking try_recv the rest of this package's
// polling loop is modeled on — Go exposes no direct socket
// non-blocking flag on net.Conn.
const pollDeadline = time.Microsecond

const requestFrameSize = wire.SessionFrameHeaderSize + wire.ClientRequestSize
const responseFrameSize = wire.SessionFrameHeaderSize + wire.ClientResponseSize

// session is one connected trading client on the order channel. It is
// owned and polled exclusively by OrderServer; ResponseWriter reaches
// it only through the conn field to write outgoing frames, which is
// safe because net.Conn permits concurrent Read and Write from
// different goroutines as long as each method is called by only one
// goroutine at a time.
type session struct {
	clientId domain.ClientId
	conn     net.Conn

	// debugID correlates this session's log lines and diagnostics
	// across admit/poll/close; it never appears on the wire.
	debugID string

	recvBuf []byte

	nextExpectedIn uint64
	nextOut        uint64
}

func newSession(clientId domain.ClientId, conn net.Conn) *session {
	return &session{
		clientId:       clientId,
		conn:           conn,
		debugID:        uuid.NewString(),
		recvBuf:        make([]byte, 0, requestFrameSize*16),
		nextExpectedIn: 1,
		nextOut:        1,
	}
}

// poll reads whatever is immediately available without blocking and
// returns any complete, in-order request frames decoded from it. A
// wire protocol violation (bad seq_num, undecodable frame) returns
// xerr.ErrWireProtocol along with the requests decoded before it; a
// closed or errored connection returns xerr.ErrSessionClosed. On either
// error OrderServer closes the session.
func (s *session) poll() ([]wire.ClientRequest, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(pollDeadline))

	var tmp [requestFrameSize * 4]byte
	n, err := s.conn.Read(tmp[:])
	if n > 0 {
		s.recvBuf = append(s.recvBuf, tmp[:n]...)
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// no data ready this round
		} else {
			return nil, xerr.ErrSessionClosed
		}
	}

	var requests []wire.ClientRequest
	for len(s.recvBuf) >= requestFrameSize {
		seqNum, _ := wire.DecodeSessionHeader(s.recvBuf)
		req, decErr := wire.DecodeClientRequest(s.recvBuf[wire.SessionFrameHeaderSize:requestFrameSize])
		s.recvBuf = s.recvBuf[requestFrameSize:]

		if decErr != nil || seqNum != s.nextExpectedIn {
			return requests, xerr.ErrWireProtocol
		}
		s.nextExpectedIn++
		requests = append(requests, req)
	}
	return requests, nil
}

// send writes one framed response, prepending this session's next
// outgoing seq_num.
func (s *session) send(resp wire.ClientResponse) error {
	var buf [responseFrameSize]byte
	wire.EncodeSessionHeader(buf[:wire.SessionFrameHeaderSize], s.nextOut)
	resp.Encode(buf[wire.SessionFrameHeaderSize:])
	s.nextOut++
	_, err := s.conn.Write(buf[:])
	return err
}

func (s *session) close() {
	_ = s.conn.Close()
}

// handshake blocks briefly to read the session-opening Handshake frame
// and replies with the starting seq_num, per the order channel's
// session-establishment contract. This is the one blocking read in the
// gateway: it runs once per connection, off the hot polling loop, on
// the goroutine OrderServer.Accept spawns for that connection.
func handshake(conn net.Conn) (domain.ClientId, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var buf [wire.HandshakeSize]byte
	if _, err := readFull(conn, buf[:]); err != nil {
		return 0, xerr.ErrSessionClosed
	}
	hs, err := wire.DecodeHandshake(buf[:])
	if err != nil {
		return 0, xerr.ErrWireProtocol
	}

	var reply [8]byte
	wire.EncodeSessionHeader(reply[:], 1)
	if _, err := conn.Write(reply[:]); err != nil {
		return 0, xerr.ErrSessionClosed
	}
	_ = conn.SetReadDeadline(time.Time{})
	return hs.ClientId, nil
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
