package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// SettingsPatch is a merge patch over Settings: nil fields are left
// untouched. Keeping the merge in memory keeps the policy testable
// independent of storage.
type SettingsPatch struct {
	Enabled      *bool   `json:"enabled"`
	StrategyMode *string `json:"strategy_mode"`
	Strategy     *string `json:"strategy"`

	RSIThreshold     *float64 `json:"rsi_threshold"`
	VolumeMultiplier *float64 `json:"volume_multiplier"`

	MinPositionPct *float64 `json:"min_position_pct"`
	MaxPositionPct *float64 `json:"max_position_pct"`
	MinPositionUSD *float64 `json:"min_position_usd"`
	MaxPositionUSD *float64 `json:"max_position_usd"`

	DailyLossLimitPct    *float64 `json:"daily_loss_limit_pct"`
	MaxConsecutiveLosses *int     `json:"max_consecutive_losses"`
	MaxPositions         *int     `json:"max_positions"`
	CooldownMinutes      *int     `json:"cooldown_minutes"`
	MinExpectedProfitPct *float64 `json:"min_expected_profit_pct"`

	ExcludeTopSymbols *bool    `json:"exclude_top_symbols"`
	ExcludedSymbols   []string `json:"excluded_symbols"`

	BTCTrendFilter     *bool `json:"btc_trend_filter"`
	BTCMomentumBoost   *bool `json:"btc_momentum_boost"`
	BTCCorrelationSkip *bool `json:"btc_correlation_skip"`

	DualModeEnabled *bool    `json:"dual_mode_enabled"`
	ConservativePct *float64 `json:"conservative_pct"`
	AggressivePct   *float64 `json:"aggressive_pct"`

	TrailingActivationPct  *float64 `json:"trailing_activation_pct"`
	TrailingDistancePct    *float64 `json:"trailing_distance_pct"`
	TrailingInitialStopPct *float64 `json:"trailing_initial_stop_pct"`

	ConservativeSymbols       []string `json:"conservative_symbols"`
	AggressiveSymbols         []string `json:"aggressive_symbols"`
	ConservativeMinConfidence *float64 `json:"conservative_min_confidence"`
	AggressiveMinConfidence   *float64 `json:"aggressive_min_confidence"`
	ConservativeCooldownMin   *int     `json:"conservative_cooldown_min"`
	AggressiveCooldownMin     *int     `json:"aggressive_cooldown_min"`

	MarginEnabled     *bool    `json:"margin_enabled"`
	ShortEnabled      *bool    `json:"short_enabled"`
	Leverage          *int     `json:"leverage"`
	ShortRSIThreshold *float64 `json:"short_rsi_threshold"`

	DefaultTrailingStopPct *float64 `json:"default_trailing_stop_pct"`
}

// Apply merges the patch into dst and re-normalizes. Slice fields replace
// the stored list only when non-nil.
func (p SettingsPatch) Apply(dst *Settings) {
	if dst == nil {
		return
	}
	applyBool(&dst.Enabled, p.Enabled)
	applyString(&dst.StrategyMode, p.StrategyMode)
	applyString(&dst.Strategy, p.Strategy)
	applyFloat(&dst.RSIThreshold, p.RSIThreshold)
	applyFloat(&dst.VolumeMultiplier, p.VolumeMultiplier)
	applyFloat(&dst.MinPositionPct, p.MinPositionPct)
	applyFloat(&dst.MaxPositionPct, p.MaxPositionPct)
	applyFloat(&dst.MinPositionUSD, p.MinPositionUSD)
	applyFloat(&dst.MaxPositionUSD, p.MaxPositionUSD)
	applyFloat(&dst.DailyLossLimitPct, p.DailyLossLimitPct)
	applyInt(&dst.MaxConsecutiveLosses, p.MaxConsecutiveLosses)
	applyInt(&dst.MaxPositions, p.MaxPositions)
	applyInt(&dst.CooldownMinutes, p.CooldownMinutes)
	applyFloat(&dst.MinExpectedProfitPct, p.MinExpectedProfitPct)
	applyBool(&dst.ExcludeTopSymbols, p.ExcludeTopSymbols)
	if p.ExcludedSymbols != nil {
		dst.ExcludedSymbols = mustJSONList(p.ExcludedSymbols)
	}
	applyBool(&dst.BTCTrendFilter, p.BTCTrendFilter)
	applyBool(&dst.BTCMomentumBoost, p.BTCMomentumBoost)
	applyBool(&dst.BTCCorrelationSkip, p.BTCCorrelationSkip)
	applyBool(&dst.DualModeEnabled, p.DualModeEnabled)
	applyFloat(&dst.ConservativePct, p.ConservativePct)
	applyFloat(&dst.AggressivePct, p.AggressivePct)
	applyFloat(&dst.TrailingActivationPct, p.TrailingActivationPct)
	applyFloat(&dst.TrailingDistancePct, p.TrailingDistancePct)
	applyFloat(&dst.TrailingInitialStopPct, p.TrailingInitialStopPct)
	if p.ConservativeSymbols != nil {
		dst.ConservativeSymbols = mustJSONList(p.ConservativeSymbols)
	}
	if p.AggressiveSymbols != nil {
		dst.AggressiveSymbols = mustJSONList(p.AggressiveSymbols)
	}
	applyFloat(&dst.ConservativeMinConfidence, p.ConservativeMinConfidence)
	applyFloat(&dst.AggressiveMinConfidence, p.AggressiveMinConfidence)
	applyInt(&dst.ConservativeCooldownMin, p.ConservativeCooldownMin)
	applyInt(&dst.AggressiveCooldownMin, p.AggressiveCooldownMin)
	applyBool(&dst.MarginEnabled, p.MarginEnabled)
	applyBool(&dst.ShortEnabled, p.ShortEnabled)
	applyInt(&dst.Leverage, p.Leverage)
	applyFloat(&dst.ShortRSIThreshold, p.ShortRSIThreshold)
	applyFloat(&dst.DefaultTrailingStopPct, p.DefaultTrailingStopPct)
	dst.Normalize()
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func mustJSONList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}
