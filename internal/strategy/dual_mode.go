package strategy

import (
	"fmt"

	"autotrader/internal/market"
	"autotrader/internal/regime"
)

// Confluence is the dual-mode conservative strategy: at least three of
// four independent bullish conditions must agree before it trades.
type Confluence struct{}

func (Confluence) Name() string { return "confluence" }

func (Confluence) HasRequiredData(ind market.Indicators) bool {
	return ind.RSI > 0 && ind.VolumeRatio > 0 && ind.BollMiddle > 0
}

func (Confluence) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Trending:
		return 0.7
	case regime.Ranging:
		return 0.7
	default:
		return 0.5
	}
}

func (Confluence) Evaluate(mc MarketContext) Result {
	ind := mc.Indicators
	price, _ := mc.Price.Float64()

	agree := 0
	reasons := make([]string, 0, 4)
	if ind.RSI < 45 {
		agree++
		reasons = append(reasons, fmt.Sprintf("rsi %.1f below 45", ind.RSI))
	}
	if ind.MACDHist > 0 {
		agree++
		reasons = append(reasons, "macd histogram positive")
	}
	if ind.VolumeRatio >= 1.2 {
		agree++
		reasons = append(reasons, fmt.Sprintf("volume ratio %.2f elevated", ind.VolumeRatio))
	}
	if price > 0 && ind.BollMiddle > 0 && price < ind.BollMiddle {
		agree++
		reasons = append(reasons, "price below bollinger midline")
	}
	if agree < 3 {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("only %d/4 conditions agree", agree)}}
	}
	return Result{
		ShouldTrade: true,
		Confidence:  clamp01(0.5 + 0.12*float64(agree)),
		Direction:   DirectionLong,
		Reasons:     reasons,
	}
}

// TripleSignal is the dual-mode aggressive strategy: deep oversold plus a
// volume spike plus positive momentum, all mandatory. Fewer trades, higher
// conviction.
type TripleSignal struct{}

func (TripleSignal) Name() string { return "triple_signal" }

func (TripleSignal) HasRequiredData(ind market.Indicators) bool {
	return ind.RSI > 0 && ind.VolumeRatio > 0
}

func (TripleSignal) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Volatile:
		return 0.9
	case regime.Ranging:
		return 0.6
	default:
		return 0.4
	}
}

func (TripleSignal) Evaluate(mc MarketContext) Result {
	ind := mc.Indicators
	if ind.RSI >= 35 {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("rsi %.1f not deeply oversold", ind.RSI)}}
	}
	if ind.VolumeRatio < 2.0 {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("volume ratio %.2f below spike threshold", ind.VolumeRatio)}}
	}
	if ind.MACDHist <= 0 {
		return Result{Direction: DirectionLong, Reasons: []string{"macd histogram not positive"}}
	}
	conf := 0.65 + (35-ind.RSI)/100 + (ind.VolumeRatio-2.0)*0.03
	return Result{
		ShouldTrade: true,
		Confidence:  clamp01(conf),
		Direction:   DirectionLong,
		Reasons: []string{
			fmt.Sprintf("rsi %.1f deeply oversold", ind.RSI),
			fmt.Sprintf("volume spike %.2fx", ind.VolumeRatio),
			"macd histogram positive",
		},
	}
}
