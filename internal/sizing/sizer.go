package sizing

import (
	"github.com/shopspring/decimal"

	"autotrader/internal/models"
)

var minOrderUSD = decimal.NewFromInt(5)

// Bounds is the resolved USD band a position size interpolates within.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// ResolveBounds picks fixed-USD bounds when both are configured, otherwise
// derives them as a percentage of the total portfolio value.
func ResolveBounds(s models.Settings, portfolioUSD decimal.Decimal) Bounds {
	if s.MinPositionUSD > 0 && s.MaxPositionUSD > 0 {
		return Bounds{
			Min: decimal.NewFromFloat(s.MinPositionUSD),
			Max: decimal.NewFromFloat(s.MaxPositionUSD),
		}
	}
	hundred := decimal.NewFromInt(100)
	return Bounds{
		Min: portfolioUSD.Mul(decimal.NewFromFloat(s.MinPositionPct)).Div(hundred),
		Max: portfolioUSD.Mul(decimal.NewFromFloat(s.MaxPositionPct)).Div(hundred),
	}
}

// Size interpolates a USD position size from confidence within the bounds.
// Confidence at or below 0.5 floors to the minimum bound; 1.0 reaches the
// maximum. The result is never negative.
func Size(confidence float64, b Bounds) decimal.Decimal {
	t := (confidence - 0.5) / 0.5
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	span := b.Max.Sub(b.Min)
	if span.IsNegative() {
		span = decimal.Zero
	}
	size := b.Min.Add(span.Mul(decimal.NewFromFloat(t)))
	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

// SizeWithMultiplier applies the BTC influence multiplier after the base
// interpolation.
func SizeWithMultiplier(confidence float64, b Bounds, multiplier float64) decimal.Decimal {
	size := Size(confidence, b)
	if multiplier == 1 {
		return size
	}
	if multiplier < 0 {
		multiplier = 0
	}
	return size.Mul(decimal.NewFromFloat(multiplier))
}

// TierSize sizes a dual-mode position. The max bound is additionally capped
// at 25% of the tier's capital allocation, and the result floors at $5 so
// exchange minimum-notional checks do not reject the order.
func TierSize(confidence float64, b Bounds, portfolioUSD decimal.Decimal, tierCapitalPct float64) decimal.Decimal {
	tierCapital := portfolioUSD.Mul(decimal.NewFromFloat(tierCapitalPct)).Div(decimal.NewFromInt(100))
	cap := tierCapital.Mul(decimal.NewFromFloat(0.25))
	if b.Max.GreaterThan(cap) {
		b.Max = cap
	}
	if b.Min.GreaterThan(b.Max) {
		b.Min = b.Max
	}
	size := Size(confidence, b)
	if size.LessThan(minOrderUSD) {
		return minOrderUSD
	}
	return size
}
