package trading

import (
	"testing"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/wire"
)

func newReceiver() *MarketDataReceiver {
	return &MarketDataReceiver{bbo: make(map[domain.TickerId]domain.BBO)}
}

func TestProcessUpdateAddBuildsTwoSidedBBO(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 100})

	bbo, ok := r.BBO(1)
	if !ok || bbo.BidPrice != 9950 || bbo.AskPrice != 10050 {
		t.Fatalf("expected two-sided bbo, got %+v", bbo)
	}
}

func TestProcessUpdateModifyReplacesQtyAtSamePrice(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateModify, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 40})

	bbo, _ := r.BBO(1)
	if bbo.BidQty != 40 {
		t.Fatalf("expected qty replaced to 40, got %d", bbo.BidQty)
	}
}

func TestProcessUpdateBetterBidReplacesLevel(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9960, Qty: 50})

	bbo, _ := r.BBO(1)
	if bbo.BidPrice != 9960 || bbo.BidQty != 50 {
		t.Fatalf("expected best bid to move up, got %+v", bbo)
	}
}

func TestProcessUpdateWorseBidIgnored(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9900, Qty: 999})

	bbo, _ := r.BBO(1)
	if bbo.BidPrice != 9950 || bbo.BidQty != 100 {
		t.Fatalf("expected best bid unchanged, got %+v", bbo)
	}
}

func TestProcessUpdateCancelZeroQtyFullyClearsLevel(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateCancel, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 0})

	bbo, _ := r.BBO(1)
	if bbo.BidQty != 0 {
		t.Fatalf("expected qty 0 bid cancel to fully clear the level, got %d", bbo.BidQty)
	}
}

func TestProcessUpdateCancelPartialErodesQty(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateCancel, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 30})

	bbo, _ := r.BBO(1)
	if bbo.AskQty != 70 {
		t.Fatalf("expected qty eroded to 70, got %d", bbo.AskQty)
	}
}

func TestProcessUpdateCancelAwayFromBestIgnored(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateCancel, TickerId: 1, Side: domain.Sell, Price: 10100, Qty: 50})

	bbo, _ := r.BBO(1)
	if bbo.AskPrice != 10050 || bbo.AskQty != 100 {
		t.Fatalf("expected level untouched by cancel at a non-best price, got %+v", bbo)
	}
}

func TestProcessUpdateBuyTradeErodesAskNotBid(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 100})

	// a Buy-side trade report means the aggressor bought, hitting the ask
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateTrade, TickerId: 1, Side: domain.Buy, Price: 10050, Qty: 40})

	bbo, _ := r.BBO(1)
	if bbo.AskQty != 60 {
		t.Fatalf("expected ask eroded by the buy-side trade, got %d", bbo.AskQty)
	}
	if bbo.BidQty != 100 {
		t.Fatalf("expected bid untouched by a buy-side trade, got %d", bbo.BidQty)
	}
}

func TestProcessUpdateSellTradeErodesBidNotAsk(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Sell, Price: 10050, Qty: 100})

	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateTrade, TickerId: 1, Side: domain.Sell, Price: 9950, Qty: 100})

	bbo, _ := r.BBO(1)
	if bbo.BidQty != 0 {
		t.Fatalf("expected bid fully eroded by the sell-side trade, got %d", bbo.BidQty)
	}
	if bbo.AskQty != 100 {
		t.Fatalf("expected ask untouched by a sell-side trade, got %d", bbo.AskQty)
	}
}

func TestProcessUpdateClearResetsBBO(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateClear, TickerId: 1})

	bbo, _ := r.BBO(1)
	if bbo != (domain.BBO{}) {
		t.Fatalf("expected a zero-value bbo after clear, got %+v", bbo)
	}
}

func TestReserveCreatesEmptyEntriesWithoutOverwriting(t *testing.T) {
	r := newReceiver()
	r.ProcessUpdate(wire.MarketUpdate{Type: domain.UpdateAdd, TickerId: 1, Side: domain.Buy, Price: 9950, Qty: 100})

	r.Reserve([]domain.TickerId{1, 2})
	if r.TickerCount() != 2 {
		t.Fatalf("expected 2 tracked tickers, got %d", r.TickerCount())
	}
	bbo, _ := r.BBO(1)
	if bbo.BidPrice != 9950 {
		t.Fatal("expected Reserve not to overwrite existing state")
	}
}
