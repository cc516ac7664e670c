package wire

import (
	"testing"

	"lowlatency-exchange/domain"
)

func TestClientRequestRoundTrip(t *testing.T) {
	want := ClientRequest{
		MsgType:  domain.RequestNew,
		ClientId: 7,
		TickerId: 42,
		OrderId:  123456789,
		Side:     domain.Buy,
		Price:    10000,
		Qty:      50,
	}
	buf := make([]byte, ClientRequestSize)
	n := want.Encode(buf)
	if n != ClientRequestSize {
		t.Fatalf("encoded %d bytes, want %d", n, ClientRequestSize)
	}
	got, err := DecodeClientRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestClientRequestNegativePrice(t *testing.T) {
	want := ClientRequest{MsgType: domain.RequestNew, Side: domain.Sell, Price: -500, Qty: 1}
	buf := make([]byte, ClientRequestSize)
	want.Encode(buf)
	got, err := DecodeClientRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Price != -500 {
		t.Fatalf("expected negative price to survive round trip, got %d", got.Price)
	}
}

func TestDecodeClientRequestShortBuffer(t *testing.T) {
	if _, err := DecodeClientRequest(make([]byte, ClientRequestSize-1)); err == nil {
		t.Fatal("expected error decoding a short buffer")
	}
}

func TestClientResponseRoundTrip(t *testing.T) {
	want := ClientResponse{
		MsgType:       domain.ResponseFilled,
		ClientId:      3,
		TickerId:      9,
		ClientOrderId: 111,
		MarketOrderId: 222,
		Side:          domain.Sell,
		Price:         9999,
		ExecQty:       10,
		LeavesQty:     0,
	}
	buf := make([]byte, ClientResponseSize)
	want.Encode(buf)
	got, err := DecodeClientResponse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestMarketUpdateRoundTrip(t *testing.T) {
	want := MarketUpdate{
		SeqNum:   9001,
		Type:     domain.UpdateTrade,
		TickerId: 1,
		OrderId:  55,
		Side:     domain.Buy,
		Price:    10050,
		Qty:      25,
		Priority: 77,
	}
	buf := make([]byte, MarketUpdateSize)
	want.Encode(buf)
	got, err := DecodeMarketUpdate(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSessionHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, SessionFrameHeaderSize)
	EncodeSessionHeader(buf, 4242)
	got, err := DecodeSessionHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != 4242 {
		t.Fatalf("got seq_num %d, want 4242", got)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	want := Handshake{ClientId: 55, StartSeqNum: 1}
	buf := make([]byte, HandshakeSize)
	want.Encode(buf)
	got, err := DecodeHandshake(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}
