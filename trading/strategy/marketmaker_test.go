package strategy

import (
	"testing"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/trading/features"
)

func mmFeatures(tickerId domain.TickerId, fairValue, spread domain.Price, imbalance float64) features.TickerFeatures {
	return features.TickerFeatures{
		TickerId:    tickerId,
		FairValue:   fairValue,
		Spread:      spread,
		MidPrice:    fairValue,
		Imbalance:   imbalance,
		TradeSignal: 0,
	}
}

func TestMarketMakerNewIsActiveWithNoQuotesYet(t *testing.T) {
	mm := MarketMakerForTicker(1)
	if !mm.IsActive() {
		t.Fatal("expected a fresh market maker to be active")
	}
	if mm.Position() != 0 {
		t.Fatalf("expected zero position, got %d", mm.Position())
	}
}

func TestMarketMakerActivateDeactivate(t *testing.T) {
	mm := MarketMakerForTicker(1)
	mm.Deactivate()
	if mm.IsActive() {
		t.Fatal("expected deactivated")
	}
	mm.Activate()
	if !mm.IsActive() {
		t.Fatal("expected reactivated")
	}
}

func TestMarketMakerOnFeaturesGeneratesTwoSidedQuote(t *testing.T) {
	mm := MarketMakerForTicker(1)
	f := mmFeatures(1, 10000, 100, 0)

	action := mm.OnFeatures(f)
	if action.Kind != ActionQuote {
		t.Fatalf("expected a quote action, got %v", action.Kind)
	}
	if !action.Quote.IsTwoSided() {
		t.Fatal("expected both sides quoted")
	}
	if action.Quote.Bid.Price >= 10000 || action.Quote.Ask.Price <= 10000 {
		t.Fatalf("expected bid below and ask above fair value, got %+v", action.Quote)
	}
	if action.Quote.Bid.Qty != 100 || action.Quote.Ask.Qty != 100 {
		t.Fatalf("expected base qty on both sides, got %+v", action.Quote)
	}
}

func TestMarketMakerInactiveReturnsNoAction(t *testing.T) {
	mm := MarketMakerForTicker(1)
	mm.Deactivate()

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	if action.Kind != ActionNone {
		t.Fatalf("expected no action, got %v", action.Kind)
	}
}

func TestMarketMakerInvalidFeaturesReturnsNoAction(t *testing.T) {
	mm := MarketMakerForTicker(1)
	action := mm.OnFeatures(features.TickerFeatures{TickerId: 1})
	if action.Kind != ActionNone {
		t.Fatalf("expected no action, got %v", action.Kind)
	}
}

func TestMarketMakerQuoteSpreadAtLeastTwiceHalfSpread(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.HalfSpread = 50
	cfg.MinSpread = 20
	mm := NewMarketMaker(cfg)

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	spread := action.Quote.Ask.Price - action.Quote.Bid.Price
	if spread < 100 {
		t.Fatalf("expected spread at least 100, got %d", spread)
	}
}

func TestMarketMakerNoUpdateWithinThreshold(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.PriceUpdateThreshold = 10
	mm := NewMarketMaker(cfg)

	if a := mm.OnFeatures(mmFeatures(1, 10000, 100, 0)); a.Kind != ActionQuote {
		t.Fatal("expected first update to quote")
	}
	if a := mm.OnFeatures(mmFeatures(1, 10005, 100, 0)); a.Kind != ActionNone {
		t.Fatal("expected small move to suppress re-quote")
	}
	if a := mm.OnFeatures(mmFeatures(1, 10050, 100, 0)); a.Kind != ActionQuote {
		t.Fatal("expected large move to trigger re-quote")
	}
}

func TestMarketMakerLongPositionSkewsQuoteSizeDown(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.BaseQty = 100
	cfg.PositionSkewFactor = 0.5
	cfg.MaxPosition = 1000
	mm := NewMarketMaker(cfg)
	mm.SetPosition(500)

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	if action.Quote.Bid.Qty >= 100 {
		t.Fatalf("expected reduced bid qty for a long position, got %d", action.Quote.Bid.Qty)
	}
	if action.Quote.Ask.Qty < 100 {
		t.Fatalf("expected ask qty at least base, got %d", action.Quote.Ask.Qty)
	}
}

func TestMarketMakerShortPositionSkewsAskDown(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.BaseQty = 100
	cfg.PositionSkewFactor = 0.5
	cfg.MaxPosition = 1000
	mm := NewMarketMaker(cfg)
	mm.SetPosition(-500)

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	if action.Quote.Ask.Qty >= 100 {
		t.Fatalf("expected reduced ask qty for a short position, got %d", action.Quote.Ask.Qty)
	}
	if action.Quote.Bid.Qty < 100 {
		t.Fatalf("expected bid qty at least base, got %d", action.Quote.Bid.Qty)
	}
}

func TestMarketMakerStopsQuotingAtMaxLongPosition(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.MaxPosition = 1000
	mm := NewMarketMaker(cfg)
	mm.SetPosition(1000)

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	if action.Quote.Bid != nil {
		t.Fatal("expected no bid at max long position")
	}
	if action.Quote.Ask == nil {
		t.Fatal("expected ask still quoted at max long position")
	}
}

func TestMarketMakerStopsSellingAtMaxShortPosition(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.MaxPosition = 1000
	mm := NewMarketMaker(cfg)
	mm.SetPosition(-1000)

	action := mm.OnFeatures(mmFeatures(1, 10000, 100, 0))
	if action.Quote.Ask != nil {
		t.Fatal("expected no ask at max short position")
	}
	if action.Quote.Bid == nil {
		t.Fatal("expected bid still quoted at max short position")
	}
}

func TestMarketMakerImbalanceWidensSpread(t *testing.T) {
	cfg := DefaultMarketMakerConfig(1)
	cfg.HalfSpread = 50

	mm1 := NewMarketMaker(cfg)
	action1 := mm1.OnFeatures(mmFeatures(1, 10000, 100, 0))
	spread1 := action1.Quote.Ask.Price - action1.Quote.Bid.Price

	mm2 := NewMarketMaker(cfg)
	action2 := mm2.OnFeatures(mmFeatures(1, 10000, 100, 0.8))
	spread2 := action2.Quote.Ask.Price - action2.Quote.Bid.Price

	if spread2 < spread1 {
		t.Fatalf("expected higher imbalance to widen spread: %d vs %d", spread2, spread1)
	}
}

func TestMarketMakerResetClearsQuotesAndAllowsRequote(t *testing.T) {
	mm := MarketMakerForTicker(1)
	f := mmFeatures(1, 10000, 100, 0)
	mm.OnFeatures(f)

	mm.Reset()
	action := mm.OnFeatures(f)
	if action.Kind != ActionQuote {
		t.Fatal("expected a re-quote after reset at the same price")
	}
}
