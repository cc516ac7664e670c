package strategy

import (
	"testing"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/trading/features"
)

func ltFeatures(tickerId domain.TickerId, fairValue, spread domain.Price, tradeSignal float64) features.TickerFeatures {
	return features.TickerFeatures{
		TickerId:    tickerId,
		FairValue:   fairValue,
		Spread:      spread,
		MidPrice:    fairValue,
		Imbalance:   0,
		TradeSignal: tradeSignal,
	}
}

func TestLiquidityTakerNewIsActiveWithNoOrdersYet(t *testing.T) {
	lt := LiquidityTakerForTicker(1)
	if !lt.IsActive() || lt.OrdersSent() != 0 {
		t.Fatal("expected a fresh liquidity taker active with no orders sent")
	}
}

func TestLiquidityTakerBuySignalAboveThreshold(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1)
	cfg.ScaleWithSignal = false
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.5), clock.Nanos(1_000_000_000))
	if action.Kind != ActionTake || action.Take.Side != domain.Buy || action.Take.Qty != 100 {
		t.Fatalf("expected a base-qty buy take, got %+v", action)
	}
}

func TestLiquidityTakerSellSignalBelowThreshold(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1)
	cfg.ScaleWithSignal = false
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, -0.5), clock.Nanos(1_000_000_000))
	if action.Kind != ActionTake || action.Take.Side != domain.Sell || action.Take.Qty != 100 {
		t.Fatalf("expected a base-qty sell take, got %+v", action)
	}
}

func TestLiquidityTakerSignalBelowThresholdNoAction(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.5)
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.3), clock.Nanos(1_000_000_000))
	if action.Kind != ActionNone {
		t.Fatalf("expected no action, got %v", action.Kind)
	}
}

func TestLiquidityTakerInactiveNoAction(t *testing.T) {
	lt := LiquidityTakerForTicker(1)
	lt.Deactivate()

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.8), clock.Nanos(1_000_000_000))
	if action.Kind != ActionNone {
		t.Fatal("expected deactivated strategy to take no action")
	}
}

func TestLiquidityTakerInvalidFeaturesNoAction(t *testing.T) {
	lt := LiquidityTakerForTicker(1)
	action := lt.OnFeaturesSimple(features.TickerFeatures{TickerId: 1}, clock.Nanos(1_000_000_000))
	if action.Kind != ActionNone {
		t.Fatal("expected invalid features to produce no action")
	}
}

func TestLiquidityTakerSignalScalingAtMaxSignal(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.BaseQty = 100
	cfg.MaxQty = 500
	cfg.ScaleWithSignal = true
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 1.0), clock.Nanos(1_000_000_000))
	if action.Kind != ActionTake || action.Take.Qty != 500 {
		t.Fatalf("expected max qty at max signal, got %+v", action)
	}
}

func TestLiquidityTakerNoSignalScalingUsesBaseQty(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.BaseQty = 100
	cfg.MaxQty = 500
	cfg.ScaleWithSignal = false
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.9), clock.Nanos(1_000_000_000))
	if action.Kind != ActionTake || action.Take.Qty != 100 {
		t.Fatalf("expected base qty when scaling disabled, got %+v", action)
	}
}

func TestLiquidityTakerRateLimiting(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MinOrderIntervalNanos = 100_000_000
	lt := NewLiquidityTaker(cfg)

	f := ltFeatures(1, 10000, 100, 0.5)

	if a := lt.OnFeaturesSimple(f, clock.Nanos(1_000_000_000)); a.Kind != ActionTake {
		t.Fatal("expected first order to go through")
	}
	if a := lt.OnFeaturesSimple(f, clock.Nanos(1_000_000_001)); a.Kind != ActionNone {
		t.Fatal("expected immediate second order to be rate-limited")
	}
	if a := lt.OnFeaturesSimple(f, clock.Nanos(1_500_000_000)); a.Kind != ActionTake {
		t.Fatal("expected order after the cooldown interval to go through")
	}
}

func TestLiquidityTakerCooldownIncreasesInterval(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MinOrderIntervalNanos = 100_000_000
	cfg.CooldownFactor = 2.0
	lt := NewLiquidityTaker(cfg)

	lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.5), clock.Nanos(1_000_000_000))
	if lt.effectiveIntervalNanos <= 100_000_000 {
		t.Fatalf("expected interval to grow after a take, got %d", lt.effectiveIntervalNanos)
	}
}

func TestLiquidityTakerResetCooldown(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MinOrderIntervalNanos = 100_000_000
	cfg.CooldownFactor = 2.0
	lt := NewLiquidityTaker(cfg)

	lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.5), clock.Nanos(1_000_000_000))
	lt.ResetCooldown()
	if lt.effectiveIntervalNanos != 100_000_000 {
		t.Fatalf("expected interval back to minimum, got %d", lt.effectiveIntervalNanos)
	}
}

func TestLiquidityTakerMaxLongPositionBlocksBuy(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MaxPosition = 1000
	lt := NewLiquidityTaker(cfg)
	lt.SetPosition(1000)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.8), clock.Nanos(1_000_000_000))
	if action.Kind != ActionNone {
		t.Fatal("expected buy to be blocked at max long position")
	}
}

func TestLiquidityTakerLongPositionStillAllowsSell(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MaxPosition = 1000
	lt := NewLiquidityTaker(cfg)
	lt.SetPosition(1000)

	action := lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, -0.8), clock.Nanos(1_000_000_000))
	if action.Kind != ActionTake {
		t.Fatal("expected a long position to still be able to sell down")
	}
}

func TestLiquidityTakerBuyOrderCrossesAboveBestAsk(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.AggressionBps = 10
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeatures(ltFeatures(1, 10000, 100, 0.5), clock.Nanos(1_000_000_000), 9950, 10050)
	if action.Kind != ActionTake || action.Take.Price <= 10050 {
		t.Fatalf("expected a price above best ask, got %+v", action)
	}
}

func TestLiquidityTakerSellOrderCrossesBelowBestBid(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.AggressionBps = 10
	lt := NewLiquidityTaker(cfg)

	action := lt.OnFeatures(ltFeatures(1, 10000, 100, -0.5), clock.Nanos(1_000_000_000), 9950, 10050)
	if action.Kind != ActionTake || action.Take.Price >= 9950 {
		t.Fatalf("expected a price below best bid, got %+v", action)
	}
}

func TestLiquidityTakerOnFillReducesCooldown(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1)
	cfg.MinOrderIntervalNanos = 100_000_000
	lt := NewLiquidityTaker(cfg)
	lt.effectiveIntervalNanos = 400_000_000

	lt.OnFill()
	if lt.effectiveIntervalNanos != 200_000_000 {
		t.Fatalf("expected interval halved, got %d", lt.effectiveIntervalNanos)
	}

	lt.OnFill()
	lt.OnFill()
	lt.OnFill()
	if lt.effectiveIntervalNanos < 100_000_000 {
		t.Fatalf("expected interval floored at the minimum, got %d", lt.effectiveIntervalNanos)
	}
}

func TestLiquidityTakerReset(t *testing.T) {
	lt := LiquidityTakerForTicker(1)
	lt.OnFeaturesSimple(ltFeatures(1, 10000, 100, 0.5), clock.Nanos(1_000_000_000))

	if lt.OrdersSent() == 0 {
		t.Fatal("expected an order to have been sent")
	}

	lt.Reset()
	if lt.OrdersSent() != 0 || lt.lastOrderTimeNanos != 0 {
		t.Fatalf("expected reset state, got orders=%d lastOrder=%d", lt.OrdersSent(), lt.lastOrderTimeNanos)
	}
}

func TestLiquidityTakerOrdersSentCounter(t *testing.T) {
	cfg := DefaultLiquidityTakerConfig(1).WithSymmetricThreshold(0.3)
	cfg.MinOrderIntervalNanos = 1
	lt := NewLiquidityTaker(cfg)

	f := ltFeatures(1, 10000, 100, 0.5)

	lt.OnFeaturesSimple(f, clock.Nanos(1_000_000))
	if lt.OrdersSent() != 1 {
		t.Fatalf("expected 1 order sent, got %d", lt.OrdersSent())
	}
	lt.OnFeaturesSimple(f, clock.Nanos(1_000_000_000))
	if lt.OrdersSent() != 2 {
		t.Fatalf("expected 2 orders sent, got %d", lt.OrdersSent())
	}
}
