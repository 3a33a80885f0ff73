package regime

import (
	"testing"

	"autotrader/internal/market"
)

func TestDetect_VolatileOnWideBands(t *testing.T) {
	ind := market.Indicators{BollUpper: 54500, BollLower: 49000, ADX: 40}
	if got := Detect(ind, 50000); got != Volatile {
		t.Fatalf("regime=%s want=volatile, band width takes precedence", got)
	}
}

func TestDetect_TrendingOnADX(t *testing.T) {
	ind := market.Indicators{BollUpper: 50500, BollLower: 49500, ADX: 30}
	if got := Detect(ind, 50000); got != Trending {
		t.Fatalf("regime=%s want=trending", got)
	}
}

func TestDetect_DefaultsToRanging(t *testing.T) {
	ind := market.Indicators{BollUpper: 50500, BollLower: 49500, ADX: 15}
	if got := Detect(ind, 50000); got != Ranging {
		t.Fatalf("regime=%s want=ranging", got)
	}
	if got := Detect(market.Indicators{}, 0); got != Ranging {
		t.Fatalf("regime=%s want=ranging with no data", got)
	}
}
