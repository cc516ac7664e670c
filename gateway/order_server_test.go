package gateway

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/matching"
	"lowlatency-exchange/wire"
)

func dialAndHandshake(t *testing.T, addr string, clientId domain.ClientId) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var buf [wire.HandshakeSize]byte
	wire.Handshake{ClientId: clientId, StartSeqNum: 1}.Encode(buf[:])
	if _, err := conn.Write(buf[:]); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	var ack [8]byte
	if _, err := readFull(conn, ack[:]); err != nil {
		t.Fatalf("read handshake ack: %v", err)
	}
	return conn
}

func sendRequest(t *testing.T, conn net.Conn, seqNum uint64, req wire.ClientRequest) {
	t.Helper()
	var buf [requestFrameSize]byte
	wire.EncodeSessionHeader(buf[:wire.SessionFrameHeaderSize], seqNum)
	req.Encode(buf[wire.SessionFrameHeaderSize:])
	if _, err := conn.Write(buf[:]); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func TestOrderServerRoutesRequestToMatchingEngine(t *testing.T) {
	var shutdown atomic.Bool
	defer shutdown.Store(true)

	exchange := matching.NewExchange(64, nil, &shutdown)
	engine := exchange.RegisterTicker(1)

	server, err := NewOrderServer("127.0.0.1:0", exchange, nil, &shutdown)
	if err != nil {
		t.Fatalf("new order server: %v", err)
	}
	defer server.Close()

	go server.Accept()
	go server.Run()

	conn := dialAndHandshake(t, server.Addr().String(), 7)
	defer conn.Close()

	sendRequest(t, conn, 1, wire.ClientRequest{
		MsgType:  domain.RequestNew,
		ClientId: 7,
		TickerId: 1,
		OrderId:  100,
		Side:     domain.Buy,
		Price:    10000,
		Qty:      50,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		// RegisterTicker already runs the engine, so the request is
		// observed through the response the engine emits for it.
		if env, ok := engine.Responses.Pop(); ok {
			if env.Response.MsgType != domain.ResponseAccepted {
				t.Fatalf("expected the routed request to be accepted, got %v", env.Response.MsgType)
			}
			if env.Response.ClientOrderId != 100 || env.ClientId != 7 {
				t.Fatalf("unexpected request reached the engine: %+v", env)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("request never reached the matching engine")
}

func TestResponseWriterDeliversAcceptedBackToClient(t *testing.T) {
	var shutdown atomic.Bool
	defer shutdown.Store(true)

	exchange := matching.NewExchange(64, nil, &shutdown)
	exchange.RegisterTicker(1)

	server, err := NewOrderServer("127.0.0.1:0", exchange, nil, &shutdown)
	if err != nil {
		t.Fatalf("new order server: %v", err)
	}
	defer server.Close()

	go server.Accept()
	go server.Run()

	writer := NewResponseWriter(exchange, server, nil, &shutdown)
	go writer.Run()

	conn := dialAndHandshake(t, server.Addr().String(), 9)
	defer conn.Close()

	sendRequest(t, conn, 1, wire.ClientRequest{
		MsgType:  domain.RequestNew,
		ClientId: 9,
		TickerId: 1,
		OrderId:  1,
		Side:     domain.Buy,
		Price:    10000,
		Qty:      10,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf [responseFrameSize]byte
	if _, err := readFull(conn, buf[:]); err != nil {
		t.Fatalf("expected a framed response, got error: %v", err)
	}
	seqNum, _ := wire.DecodeSessionHeader(buf[:])
	if seqNum != 1 {
		t.Fatalf("expected first outgoing seq_num 1, got %d", seqNum)
	}
	resp, err := wire.DecodeClientResponse(buf[wire.SessionFrameHeaderSize:])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MsgType != domain.ResponseAccepted || resp.ClientOrderId != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
