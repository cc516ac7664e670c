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

func TestPublisherAssignsMonotonicSeqNumAcrossTickers(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer listener.Close()
	_ = listener.SetReadDeadline(time.Now().Add(2 * time.Second))

	var shutdown atomic.Bool
	defer shutdown.Store(true)

	exchange := matching.NewExchange(64, nil, &shutdown)
	engineA := exchange.RegisterTicker(1)
	engineB := exchange.RegisterTicker(2)

	pub, err := NewPublisher(listener.LocalAddr().String(), exchange, nil, &shutdown)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()

	engineA.Updates.Push(matching.BookEvent{Type: domain.UpdateAdd, TickerId: 1, OrderId: 1, Side: domain.Buy, Price: 10000, Qty: 10})
	engineB.Updates.Push(matching.BookEvent{Type: domain.UpdateAdd, TickerId: 2, OrderId: 2, Side: domain.Sell, Price: 20000, Qty: 5})

	if !pub.pollOnce() {
		t.Fatal("expected pollOnce to publish the queued events")
	}

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		var buf [wire.MarketUpdateSize]byte
		n, _, err := listener.ReadFromUDP(buf[:])
		if err != nil {
			t.Fatalf("read multicast packet: %v", err)
		}
		if n != wire.MarketUpdateSize {
			t.Fatalf("unexpected packet size %d", n)
		}
		update, err := wire.DecodeMarketUpdate(buf[:n])
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		seen[update.SeqNum] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected seq_num 1 and 2 across both tickers, got %v", seen)
	}
}
