package strategy

import (
	"github.com/shopspring/decimal"

	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/regime"
)

// Direction of a proposed trade.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// MarketContext is everything a strategy may read. Strategies are pure:
// same context in, same result out, no side effects.
type MarketContext struct {
	Symbol     string
	Price      decimal.Decimal
	Indicators market.Indicators
	Regime     regime.Regime
	Settings   models.Settings
}

// Result is a strategy verdict. Confidence is in [0,1]; suggested stops
// take precedence over the scanner's ATR envelope when set.
type Result struct {
	ShouldTrade bool
	Confidence  float64
	Direction   string
	Reasons     []string

	SuggestedStopLoss   *decimal.Decimal
	SuggestedTakeProfit *decimal.Decimal
}

// Strategy is one pluggable trading rule.
type Strategy interface {
	Name() string
	HasRequiredData(ind market.Indicators) bool
	RegimeFit(r regime.Regime) float64
	Evaluate(mc MarketContext) Result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
