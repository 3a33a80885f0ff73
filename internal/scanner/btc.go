package scanner

import (
	"fmt"

	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/strategy"
)

// Influence is the BTC-derived adjustment for an altcoin signal.
type Influence struct {
	ShouldTrade        bool
	SkipReason         string
	PositionMultiplier float64
}

// AssessBTCInfluence adjusts a non-BTC signal using BTC's own trend and
// momentum plus the broad-market correlation assumption. Each of the three
// adjustments is gated by its own settings toggle. BTC itself is never
// adjusted. The calculator only ever scales or vetoes an existing signal.
func AssessBTCInfluence(s models.Settings, symbol string, direction string, btc market.Indicators, btcChange24hPct float64) Influence {
	inf := Influence{ShouldTrade: true, PositionMultiplier: 1.0}
	if market.IsBTC(symbol) {
		return inf
	}

	btcBullish := btc.EMA20 > 0 && btc.EMA50 > 0 && btc.EMA20 > btc.EMA50
	btcBearish := btc.EMA20 > 0 && btc.EMA50 > 0 && btc.EMA20 < btc.EMA50

	if s.BTCTrendFilter {
		if direction == strategy.DirectionLong && btcBearish && btcChange24hPct <= -3 {
			inf.ShouldTrade = false
			inf.SkipReason = fmt.Sprintf("btc_downtrend (24h %.1f%%)", btcChange24hPct)
			return inf
		}
		if direction == strategy.DirectionShort && btcBullish && btcChange24hPct >= 3 {
			inf.ShouldTrade = false
			inf.SkipReason = fmt.Sprintf("btc_uptrend (24h %.1f%%)", btcChange24hPct)
			return inf
		}
	}

	if s.BTCCorrelationSkip {
		// A sharp BTC drop drags correlated alts with it regardless of
		// their own setup.
		if direction == strategy.DirectionLong && btcChange24hPct <= -5 {
			inf.ShouldTrade = false
			inf.SkipReason = fmt.Sprintf("btc_crash_correlation (24h %.1f%%)", btcChange24hPct)
			return inf
		}
	}

	if s.BTCMomentumBoost {
		switch {
		case direction == strategy.DirectionLong && btc.MACDHist > 0 && btcBullish:
			inf.PositionMultiplier = 1.2
		case direction == strategy.DirectionLong && btc.MACDHist < 0:
			inf.PositionMultiplier = 0.8
		case direction == strategy.DirectionShort && btc.MACDHist < 0 && btcBearish:
			inf.PositionMultiplier = 1.2
		case direction == strategy.DirectionShort && btc.MACDHist > 0:
			inf.PositionMultiplier = 0.8
		}
	}

	return inf
}
