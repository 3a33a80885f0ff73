package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Price is a cached ticker snapshot.
type Price struct {
	Symbol       string
	Price        decimal.Decimal
	Change24hPct float64
	UpdatedAt    time.Time
}

// Indicators is the numeric snapshot the ingestion pipeline computes per
// symbol and timeframe. Zero values mean "not computed"; the scanner treats
// missing fields as unknown, never as a skip reason.
type Indicators struct {
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	MACDHist    float64 `json:"macd_hist"`
	BollUpper   float64 `json:"boll_upper"`
	BollMiddle  float64 `json:"boll_middle"`
	BollLower   float64 `json:"boll_lower"`
	EMA20       float64 `json:"ema_20"`
	EMA50       float64 `json:"ema_50"`
	ATR         float64 `json:"atr"`
	VolumeRatio float64 `json:"volume_ratio"`
	ADX         float64 `json:"adx"`
	PlusDI      float64 `json:"plus_di"`
	MinusDI     float64 `json:"minus_di"`
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   float64
}

// Data is the market-data collaborator boundary. A false second return is a
// normal cache miss (TTL expired or never populated), not an error.
type Data interface {
	GetPrice(ctx context.Context, symbol string) (Price, bool, error)
	GetIndicators(ctx context.Context, symbol, timeframe string) (Indicators, bool, error)
	GetKlines(ctx context.Context, symbol, interval string, from time.Time, limit int) ([]Candle, error)
}
