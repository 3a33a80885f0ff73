package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Backtest status values for a TradeSignal.
const (
	BacktestPending = "pending"
	BacktestWin     = "win"
	BacktestLoss    = "loss"
	BacktestTimeout = "timeout"
)

// TradeSignal is the audit record of one scanned symbol in one tick,
// persisted whether or not it executed. The backtester mutates the
// backtest columns exactly once; rows are never deleted.
type TradeSignal struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;index"`

	Symbol    string `gorm:"type:varchar(20);not null;index"`
	Strategy  string `gorm:"type:varchar(40);not null;index"`
	Regime    string `gorm:"type:varchar(15);not null"`
	Direction string `gorm:"type:varchar(5);not null"` // long|short

	RSI         float64         `gorm:"column:rsi;not null"`
	VolumeRatio float64         `gorm:"not null"`
	ATR         decimal.Decimal `gorm:"column:atr;type:numeric(20,10);not null"`

	Confidence float64         `gorm:"not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	StopLoss   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	TakeProfit decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	SkipReason *string `gorm:"type:varchar(80);index"`
	Executed   bool    `gorm:"not null;default:false"`

	BacktestStatus string           `gorm:"type:varchar(10);not null;default:'pending';index"`
	ExitPrice      *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ExitTime       *time.Time       `gorm:"type:timestamptz"`
	PnLPct         *float64         `gorm:"column:pnl_pct"`
	DurationMin    *int             `gorm:"column:duration_min"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradeSignal) TableName() string {
	return "trade_signals"
}
