package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Settings is the per-user auto-trading configuration, one row per user.
// Writes go through a merge patch so a partial update never clobbers
// unrelated fields.
type Settings struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"type:varchar(64);not null;uniqueIndex"`

	Enabled      bool   `gorm:"not null;default:false"`
	StrategyMode string `gorm:"type:varchar(10);not null;default:'manual'"` // manual|auto
	Strategy     string `gorm:"type:varchar(40);not null;default:'rsi_oversold'"`

	RSIThreshold     float64 `gorm:"column:rsi_threshold;not null;default:30"`
	VolumeMultiplier float64 `gorm:"not null;default:1.5"`

	// Position sizing bounds. Fixed USD bounds win when both are > 0,
	// otherwise the percentage bounds apply against portfolio value.
	MinPositionPct float64 `gorm:"not null;default:2"`
	MaxPositionPct float64 `gorm:"not null;default:5"`
	MinPositionUSD float64 `gorm:"column:min_position_usd;not null;default:0"`
	MaxPositionUSD float64 `gorm:"column:max_position_usd;not null;default:0"`

	DailyLossLimitPct    float64 `gorm:"not null;default:5"`
	MaxConsecutiveLosses int     `gorm:"not null;default:3"`
	MaxPositions         int     `gorm:"not null;default:3"`
	CooldownMinutes      int     `gorm:"not null;default:60"`
	MinExpectedProfitPct float64 `gorm:"not null;default:1"`

	ExcludeTopSymbols bool           `gorm:"not null;default:false"`
	ExcludedSymbols   datatypes.JSON `gorm:"type:jsonb"`

	BTCTrendFilter     bool `gorm:"column:btc_trend_filter;not null;default:true"`
	BTCMomentumBoost   bool `gorm:"column:btc_momentum_boost;not null;default:true"`
	BTCCorrelationSkip bool `gorm:"column:btc_correlation_skip;not null;default:true"`

	DualModeEnabled bool    `gorm:"not null;default:false"`
	ConservativePct float64 `gorm:"not null;default:60"`
	AggressivePct   float64 `gorm:"not null;default:40"`

	TrailingActivationPct  float64 `gorm:"not null;default:1.5"`
	TrailingDistancePct    float64 `gorm:"not null;default:1"`
	TrailingInitialStopPct float64 `gorm:"not null;default:3"`

	ConservativeSymbols       datatypes.JSON `gorm:"type:jsonb"`
	AggressiveSymbols         datatypes.JSON `gorm:"type:jsonb"`
	ConservativeMinConfidence float64        `gorm:"not null;default:0.65"`
	AggressiveMinConfidence   float64        `gorm:"not null;default:0.75"`
	ConservativeCooldownMin   int            `gorm:"not null;default:120"`
	AggressiveCooldownMin     int            `gorm:"not null;default:30"`

	MarginEnabled     bool    `gorm:"not null;default:false"`
	ShortEnabled      bool    `gorm:"not null;default:false"`
	Leverage          int     `gorm:"not null;default:1"`
	ShortRSIThreshold float64 `gorm:"column:short_rsi_threshold;not null;default:75"`

	DefaultTrailingStopPct float64 `gorm:"not null;default:3"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Settings) TableName() string {
	return "trading_settings"
}

// Normalize clamps fields to their documented ranges. Leverage stays in
// [1,10]; tier capital percentages stay in [0,100] but need not sum to 100.
func (s *Settings) Normalize() {
	if s == nil {
		return
	}
	if s.Leverage < 1 {
		s.Leverage = 1
	}
	if s.Leverage > 10 {
		s.Leverage = 10
	}
	s.ConservativePct = clampPct(s.ConservativePct)
	s.AggressivePct = clampPct(s.AggressivePct)
	if s.StrategyMode != "auto" {
		s.StrategyMode = "manual"
	}
}

// ExcludedList decodes the user's explicit symbol exclusion list.
func (s *Settings) ExcludedList() []string {
	return decodeList(s.ExcludedSymbols)
}

// ConservativeList decodes the conservative-tier symbol universe.
func (s *Settings) ConservativeList() []string {
	return decodeList(s.ConservativeSymbols)
}

// AggressiveList decodes the aggressive-tier symbol universe.
func (s *Settings) AggressiveList() []string {
	return decodeList(s.AggressiveSymbols)
}

func decodeList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
