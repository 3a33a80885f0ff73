package strategy

import (
	"fmt"

	"autotrader/internal/market"
	"autotrader/internal/regime"
)

// RSIOversold opens longs when RSI dips below the configured threshold
// with volume confirmation.
type RSIOversold struct{}

func (RSIOversold) Name() string { return "rsi_oversold" }

func (RSIOversold) HasRequiredData(ind market.Indicators) bool {
	return ind.RSI > 0 && ind.VolumeRatio > 0
}

func (RSIOversold) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Ranging:
		return 0.9
	case regime.Volatile:
		return 0.6
	default:
		return 0.4
	}
}

func (RSIOversold) Evaluate(mc MarketContext) Result {
	threshold := mc.Settings.RSIThreshold
	if threshold <= 0 {
		threshold = 30
	}
	volMult := mc.Settings.VolumeMultiplier
	if volMult <= 0 {
		volMult = 1.5
	}
	ind := mc.Indicators
	if ind.RSI > threshold {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("rsi %.1f above threshold %.1f", ind.RSI, threshold)}}
	}
	if ind.VolumeRatio < volMult {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("volume ratio %.2f below %.2f", ind.VolumeRatio, volMult)}}
	}
	// Deeper oversold and stronger volume both push confidence up.
	conf := 0.55 + (threshold-ind.RSI)/threshold*0.5 + (ind.VolumeRatio-volMult)*0.03
	return Result{
		ShouldTrade: true,
		Confidence:  clamp01(conf),
		Direction:   DirectionLong,
		Reasons: []string{
			fmt.Sprintf("rsi oversold %.1f <= %.1f", ind.RSI, threshold),
			fmt.Sprintf("volume ratio %.2f >= %.2f", ind.VolumeRatio, volMult),
		},
	}
}

// RSIOverbought is the short-side mirror used by the margin pipeline:
// RSI above the short threshold with volume confirmation.
type RSIOverbought struct{}

func (RSIOverbought) Name() string { return "rsi_overbought" }

func (RSIOverbought) HasRequiredData(ind market.Indicators) bool {
	return ind.RSI > 0 && ind.VolumeRatio > 0
}

func (RSIOverbought) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Ranging:
		return 0.8
	case regime.Volatile:
		return 0.7
	default:
		return 0.3
	}
}

func (RSIOverbought) Evaluate(mc MarketContext) Result {
	threshold := mc.Settings.ShortRSIThreshold
	if threshold <= 0 {
		threshold = 75
	}
	ind := mc.Indicators
	if ind.RSI < threshold {
		return Result{Direction: DirectionShort, Reasons: []string{fmt.Sprintf("rsi %.1f below short threshold %.1f", ind.RSI, threshold)}}
	}
	if ind.VolumeRatio < 1.2 {
		return Result{Direction: DirectionShort, Reasons: []string{fmt.Sprintf("volume ratio %.2f lacks confirmation", ind.VolumeRatio)}}
	}
	conf := 0.55 + (ind.RSI-threshold)/(100-threshold)*0.4
	return Result{
		ShouldTrade: true,
		Confidence:  clamp01(conf),
		Direction:   DirectionShort,
		Reasons: []string{
			fmt.Sprintf("rsi overbought %.1f >= %.1f", ind.RSI, threshold),
			fmt.Sprintf("volume ratio %.2f confirms", ind.VolumeRatio),
		},
	}
}
