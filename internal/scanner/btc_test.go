package scanner

import (
	"testing"

	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/strategy"
)

func TestAssessBTCInfluence_NeverAppliesToBTC(t *testing.T) {
	s := models.Settings{BTCTrendFilter: true, BTCCorrelationSkip: true}
	btc := market.Indicators{EMA20: 48000, EMA50: 50000, MACDHist: -5}
	inf := AssessBTCInfluence(s, "BTC_USDT", strategy.DirectionLong, btc, -8)
	if !inf.ShouldTrade || inf.PositionMultiplier != 1.0 {
		t.Fatalf("influence=%+v, BTC itself must never be adjusted", inf)
	}
}

func TestAssessBTCInfluence_TrendFilterVetoesLongs(t *testing.T) {
	s := models.Settings{BTCTrendFilter: true}
	btc := market.Indicators{EMA20: 48000, EMA50: 50000}
	inf := AssessBTCInfluence(s, "ETHUSDT", strategy.DirectionLong, btc, -4)
	if inf.ShouldTrade {
		t.Fatalf("downtrending btc must veto altcoin longs")
	}
	if inf.SkipReason == "" {
		t.Fatalf("veto must carry a reason")
	}

	// Toggle off: same conditions pass through.
	s.BTCTrendFilter = false
	inf = AssessBTCInfluence(s, "ETHUSDT", strategy.DirectionLong, btc, -4)
	if !inf.ShouldTrade {
		t.Fatalf("disabled filter must not veto")
	}
}

func TestAssessBTCInfluence_CorrelationSkipOnCrash(t *testing.T) {
	s := models.Settings{BTCCorrelationSkip: true}
	inf := AssessBTCInfluence(s, "PEPEUSDT", strategy.DirectionLong, market.Indicators{}, -5.5)
	if inf.ShouldTrade {
		t.Fatalf("sharp btc drop must veto correlated longs")
	}
}

func TestAssessBTCInfluence_MomentumBoostScalesSize(t *testing.T) {
	s := models.Settings{BTCMomentumBoost: true}
	bullish := market.Indicators{EMA20: 51000, EMA50: 50000, MACDHist: 10}
	inf := AssessBTCInfluence(s, "ETHUSDT", strategy.DirectionLong, bullish, 2)
	if !inf.ShouldTrade || inf.PositionMultiplier != 1.2 {
		t.Fatalf("influence=%+v want boost 1.2", inf)
	}

	bearishHist := market.Indicators{EMA20: 51000, EMA50: 50000, MACDHist: -3}
	inf = AssessBTCInfluence(s, "ETHUSDT", strategy.DirectionLong, bearishHist, 2)
	if !inf.ShouldTrade || inf.PositionMultiplier != 0.8 {
		t.Fatalf("influence=%+v want reduction 0.8", inf)
	}
}

func TestAssessBTCInfluence_ShortSideMirrors(t *testing.T) {
	s := models.Settings{BTCTrendFilter: true}
	bullish := market.Indicators{EMA20: 51000, EMA50: 50000}
	inf := AssessBTCInfluence(s, "ETHUSDT", strategy.DirectionShort, bullish, 4)
	if inf.ShouldTrade {
		t.Fatalf("uptrending btc must veto altcoin shorts")
	}
}
