package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier values for dual-mode trades.
const (
	TierNone         = "none"
	TierConservative = "conservative"
	TierAggressive   = "aggressive"
)

// Close reasons written by the engine.
const (
	CloseReasonManualSell = "manual_sell"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	PositionLong  = "long"
	PositionShort = "short"

	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Trade is an executed (or reconciler-synthesized) position record. The
// engine never mutates historical trades except to mark one closed during
// reconciliation.
type Trade struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;index"`

	Symbol    string `gorm:"type:varchar(20);not null;index"`
	BaseAsset string `gorm:"type:varchar(20);not null;index"`

	Side         string `gorm:"type:varchar(4);not null"`  // buy|sell
	PositionSide string `gorm:"type:varchar(5);not null"`  // long|short
	Tier         string `gorm:"type:varchar(12);not null;default:'none'"`

	Quantity   decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	ClosePrice *decimal.Decimal `gorm:"type:numeric(20,10)"`
	AmountUSD  decimal.Decimal  `gorm:"column:amount_usd;type:numeric(30,10);not null"`
	Fee        decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`

	StopLoss        *decimal.Decimal `gorm:"type:numeric(20,10)"`
	TakeProfit      *decimal.Decimal `gorm:"type:numeric(20,10)"`
	TrailingStopPct *float64

	Leverage int  `gorm:"not null;default:1"`
	IsAuto   bool `gorm:"not null;default:false"`

	Status      string  `gorm:"type:varchar(10);not null;default:'open';index"` // open|closed
	CloseReason *string `gorm:"type:varchar(30)"`

	RealizedPnLUSD *decimal.Decimal `gorm:"column:realized_pnl_usd;type:numeric(30,10)"`

	OpenedAt  time.Time  `gorm:"type:timestamptz;not null"`
	ClosedAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// RealizedPnL computes the realized outcome of closing the full position at
// closePrice: net USD after the entry fee, and the percentage against the
// entry notional. Shorts profit from a falling price.
func (t Trade) RealizedPnL(closePrice decimal.Decimal) (decimal.Decimal, float64) {
	move := closePrice.Sub(t.EntryPrice)
	if t.PositionSide == PositionShort {
		move = t.EntryPrice.Sub(closePrice)
	}
	pnlUSD := move.Mul(t.Quantity).Sub(t.Fee)

	pct := 0.0
	if t.AmountUSD.IsPositive() {
		pct, _ = pnlUSD.Div(t.AmountUSD).Mul(decimal.NewFromInt(100)).Float64()
	}
	return pnlUSD, pct
}
