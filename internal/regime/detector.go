package regime

import (
	"autotrader/internal/market"
)

type Regime string

const (
	Trending Regime = "trending"
	Ranging  Regime = "ranging"
	Volatile Regime = "volatile"
)

// Detect classifies the current market from BTC's aggregate indicators.
// Wide Bollinger bands relative to price mean volatile; a strong ADX means
// trending; everything else is ranging. Called once per tick and shared by
// every symbol evaluated in that tick.
func Detect(btc market.Indicators, btcPrice float64) Regime {
	if btcPrice > 0 && btc.BollUpper > btc.BollLower {
		bandWidthPct := (btc.BollUpper - btc.BollLower) / btcPrice * 100
		if bandWidthPct >= 8 {
			return Volatile
		}
	}
	if btc.ADX >= 25 {
		return Trending
	}
	return Ranging
}
