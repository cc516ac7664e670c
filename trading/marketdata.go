package trading

import (
	"errors"
	"net"
	"time"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/wire"
)

// MarketDataReceiver joins the exchange's multicast group and
// maintains a local BBO view per ticker from the stream of
// MarketUpdate packets, the client-side counterpart to the gateway
// package's Publisher.
type MarketDataReceiver struct {
	conn *net.UDPConn
	bbo  map[domain.TickerId]domain.BBO
}

// JoinMarketData opens a multicast listener on groupAddr (e.g.
// "239.255.0.1:7000") and returns a receiver ready to poll.
func JoinMarketData(groupAddr string) (*MarketDataReceiver, error) {
	addr, err := net.ResolveUDPAddr("udp", groupAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	return &MarketDataReceiver{conn: conn, bbo: make(map[domain.TickerId]domain.BBO)}, nil
}

// Poll reads at most one datagram without blocking and returns the
// decoded MarketUpdate, or ok=false if none was ready or it failed to
// decode.
func (r *MarketDataReceiver) Poll() (wire.MarketUpdate, bool) {
	_ = r.conn.SetReadDeadline(time.Now().Add(pollDeadline))

	var buf [wire.MarketUpdateSize]byte
	n, err := r.conn.Read(buf[:])
	if err != nil {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			// a non-timeout read error leaves the receiver otherwise
			// intact; the caller may retry on the next poll
		}
		return wire.MarketUpdate{}, false
	}
	if n < wire.MarketUpdateSize {
		return wire.MarketUpdate{}, false
	}

	update, decErr := wire.DecodeMarketUpdate(buf[:n])
	if decErr != nil {
		return wire.MarketUpdate{}, false
	}
	return update, true
}

// PollAndProcess drains every datagram currently available, folding
// each into the local BBO view, and returns the number processed.
func (r *MarketDataReceiver) PollAndProcess() int {
	count := 0
	for {
		update, ok := r.Poll()
		if !ok {
			break
		}
		r.ProcessUpdate(update)
		count++
	}
	return count
}

// PollAll drains every datagram currently available and returns the
// decoded updates without folding them into this receiver's own BBO
// view, for callers (such as a trading.Engine) that maintain their own
// book state from the same stream.
func (r *MarketDataReceiver) PollAll() []wire.MarketUpdate {
	var updates []wire.MarketUpdate
	for {
		update, ok := r.Poll()
		if !ok {
			break
		}
		updates = append(updates, update)
	}
	return updates
}

// ProcessUpdate folds one MarketUpdate into the BBO for its ticker.
// Cancel and Trade only ever erode the tracked quantity at the
// recorded price level, since this is a top-of-book view rather than
// a full depth book: a cancel or trade away from the current best is
// silently ignored until the next Add/Modify refreshes that side.
func (r *MarketDataReceiver) ProcessUpdate(update wire.MarketUpdate) {
	bbo := r.bbo[update.TickerId]

	switch update.Type {
	case domain.UpdateAdd, domain.UpdateModify:
		applyLevel(&bbo, update.Side, update.Price, update.Qty)
	case domain.UpdateCancel:
		eatLevel(&bbo, update.Side, update.Price, update.Qty)
	case domain.UpdateTrade:
		// a trade report names the side that initiated it; the level
		// it erodes is the resting side on the other side of the book
		eatLevel(&bbo, update.Side.Opposite(), update.Price, update.Qty)
	case domain.UpdateClear:
		bbo = domain.BBO{}
	}

	r.bbo[update.TickerId] = bbo
}

func applyLevel(bbo *domain.BBO, side domain.Side, price domain.Price, qty domain.Qty) {
	if side == domain.Buy {
		if price > bbo.BidPrice || bbo.BidEmpty() {
			bbo.BidPrice, bbo.BidQty = price, qty
		} else if price == bbo.BidPrice {
			bbo.BidQty = qty
		}
	} else {
		if price < bbo.AskPrice || bbo.AskEmpty() {
			bbo.AskPrice, bbo.AskQty = price, qty
		} else if price == bbo.AskPrice {
			bbo.AskQty = qty
		}
	}
}

// eatLevel reduces the tracked qty at price by qty, or clears it
// entirely when qty is 0 (a full cancel of the resting order) or at
// least the remaining qty.
func eatLevel(bbo *domain.BBO, side domain.Side, price domain.Price, qty domain.Qty) {
	if side == domain.Buy && price == bbo.BidPrice {
		if qty == 0 || qty >= bbo.BidQty {
			bbo.BidQty = 0
		} else {
			bbo.BidQty = saturatingSubQty(bbo.BidQty, qty)
		}
	} else if side == domain.Sell && price == bbo.AskPrice {
		if qty == 0 || qty >= bbo.AskQty {
			bbo.AskQty = 0
		} else {
			bbo.AskQty = saturatingSubQty(bbo.AskQty, qty)
		}
	}
}

func saturatingSubQty(a, b domain.Qty) domain.Qty {
	if b >= a {
		return 0
	}
	return a - b
}

// BBO returns the current BBO for tickerId, and whether any update has
// been seen for it yet.
func (r *MarketDataReceiver) BBO(tickerId domain.TickerId) (domain.BBO, bool) {
	b, ok := r.bbo[tickerId]
	return b, ok
}

// Reserve pre-creates empty BBO entries for the given tickers.
func (r *MarketDataReceiver) Reserve(tickers []domain.TickerId) {
	for _, id := range tickers {
		if _, ok := r.bbo[id]; !ok {
			r.bbo[id] = domain.BBO{}
		}
	}
}

// TickerCount returns the number of tickers with tracked BBO state.
func (r *MarketDataReceiver) TickerCount() int { return len(r.bbo) }

// Close leaves the multicast group and closes the socket.
func (r *MarketDataReceiver) Close() error { return r.conn.Close() }
