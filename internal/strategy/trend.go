package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"autotrader/internal/market"
	"autotrader/internal/regime"
)

// TrendFollowing rides established trends: ADX strength, EMA alignment and
// directional index agreement must all line up.
type TrendFollowing struct{}

func (TrendFollowing) Name() string { return "trend_following" }

func (TrendFollowing) HasRequiredData(ind market.Indicators) bool {
	return ind.ADX > 0 && ind.EMA20 > 0 && ind.EMA50 > 0 && ind.PlusDI > 0 && ind.MinusDI > 0
}

func (TrendFollowing) RegimeFit(r regime.Regime) float64 {
	switch r {
	case regime.Trending:
		return 1.0
	case regime.Volatile:
		return 0.4
	default:
		return 0.2
	}
}

func (TrendFollowing) Evaluate(mc MarketContext) Result {
	ind := mc.Indicators
	if ind.ADX < 25 {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("adx %.1f too weak", ind.ADX)}}
	}
	if ind.EMA20 <= ind.EMA50 {
		return Result{Direction: DirectionLong, Reasons: []string{"ema20 below ema50"}}
	}
	if ind.PlusDI <= ind.MinusDI {
		return Result{Direction: DirectionLong, Reasons: []string{fmt.Sprintf("+di %.1f not above -di %.1f", ind.PlusDI, ind.MinusDI)}}
	}
	conf := 0.55 + (ind.ADX-25)/100 + (ind.PlusDI-ind.MinusDI)/200
	res := Result{
		ShouldTrade: true,
		Confidence:  clamp01(conf),
		Direction:   DirectionLong,
		Reasons: []string{
			fmt.Sprintf("adx %.1f confirms trend", ind.ADX),
			"ema20 above ema50",
			fmt.Sprintf("+di %.1f above -di %.1f", ind.PlusDI, ind.MinusDI),
		},
	}
	// The slow EMA doubles as a natural invalidation level when it sits
	// below the current price.
	ema50 := decimal.NewFromFloat(ind.EMA50)
	if ema50.GreaterThan(decimal.Zero) && ema50.LessThan(mc.Price) {
		res.SuggestedStopLoss = decPtr(ema50)
	}
	return res
}
