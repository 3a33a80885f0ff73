package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayState is the per-user, per-calendar-day trading state. Rows are
// created lazily on first write; the day key itself is the rollover, there
// is no explicit reset job.
type DayState struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_day_state_user_day"`
	Day    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_day_state_user_day"` // YYYY-MM-DD

	Paused      bool    `gorm:"not null;default:false"`
	PauseReason *string `gorm:"type:text"`

	DailyPnLUSD decimal.Decimal `gorm:"column:daily_pnl_usd;type:numeric(30,10);not null;default:0"`
	DailyPnLPct float64         `gorm:"column:daily_pnl_pct;not null;default:0"`

	ConsecutiveLosses int `gorm:"not null;default:0"`
	Trades            int `gorm:"not null;default:0"`
	Wins              int `gorm:"not null;default:0"`
	Losses            int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (DayState) TableName() string {
	return "trading_day_states"
}

// DayKey derives the state row key from a clock reading. Injectable so
// tests can simulate day rollover without wall-clock dependence.
func DayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
