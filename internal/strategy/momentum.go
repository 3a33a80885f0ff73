package strategy

import (
	"fmt"

	"autotrader/internal/market"
	"autotrader/internal/regime"
)

// Momentum trades MACD histogram expansion: the bigger the histogram
// relative to price, the stronger the move.
type Momentum struct{}

func (Momentum) Name() string { return "momentum" }

func (Momentum) HasRequiredData(ind market.Indicators) bool {
	return ind.MACD != 0 || ind.MACDSignal != 0 || ind.MACDHist != 0
}

func (Momentum) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Trending:
		return 0.8
	case regime.Volatile:
		return 0.7
	default:
		return 0.3
	}
}

func (Momentum) Evaluate(mc MarketContext) Result {
	ind := mc.Indicators
	if ind.MACDHist <= 0 || ind.MACD <= ind.MACDSignal {
		return Result{Direction: DirectionLong, Reasons: []string{"macd histogram not positive"}}
	}
	price, _ := mc.Price.Float64()
	if price <= 0 {
		return Result{Direction: DirectionLong, Reasons: []string{"no price"}}
	}
	// Histogram magnitude as basis points of price.
	histBps := ind.MACDHist / price * 10000
	if histBps < 5 {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("macd histogram %.1fbps too small", histBps)}}
	}
	conf := 0.5 + histBps/200
	return Result{
		ShouldTrade: true,
		Confidence:  clamp01(conf),
		Direction:   DirectionLong,
		Reasons: []string{
			fmt.Sprintf("macd histogram %.1fbps of price", histBps),
			"macd above signal line",
		},
	}
}
