package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/models"
)

type ListTradeSignalsParams struct {
	Limit  int
	Offset int

	UserID         *string
	Symbol         *string
	Strategy       *string
	BacktestStatus *string
	Since          *time.Time

	OrderBy string
	Asc     *bool
}

type ListTradesParams struct {
	Limit  int
	Offset int

	UserID *string
	Status *string
	Tier   *string

	OrderBy string
	Asc     *bool
}

// BacktestUpdate carries the one-shot terminal mutation of a signal's
// backtest columns.
type BacktestUpdate struct {
	Status      string
	ExitPrice   *decimal.Decimal
	ExitTime    *time.Time
	PnLPct      *float64
	DurationMin *int
}

// StrategyRecord aggregates terminal backtest outcomes per strategy.
type StrategyRecord struct {
	Strategy string
	Wins     int64
	Losses   int64
}

func (r StrategyRecord) WinRate() float64 {
	total := r.Wins + r.Losses
	if total == 0 {
		return 0.5
	}
	return float64(r.Wins) / float64(total)
}

// Repository is the storage boundary of the decision engine. All writes
// that can race (settings, day state, cooldowns) use merge-on-conflict
// upserts so concurrent ticks never clobber unrelated fields.
type Repository interface {
	// Settings
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	ListEnabledSettings(ctx context.Context) ([]models.Settings, error)
	UpsertSettings(ctx context.Context, item *models.Settings) error

	// Per-day state
	GetDayState(ctx context.Context, userID, day string) (*models.DayState, error)
	UpsertDayState(ctx context.Context, item *models.DayState) error

	// Signals (append-mostly audit trail)
	InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error
	ListTradeSignals(ctx context.Context, params ListTradeSignalsParams) ([]models.TradeSignal, error)
	ListPendingBacktests(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]models.TradeSignal, error)
	UpdateSignalBacktest(ctx context.Context, id uint64, update BacktestUpdate) error
	SweepBacktestTimeouts(ctx context.Context, before time.Time, durationMin int) (int64, error)
	StrategyRecordsSince(ctx context.Context, since time.Time) ([]StrategyRecord, error)

	// Cooldowns (keyed on normalized base asset)
	GetCooldown(ctx context.Context, userID, symbolKey string) (*models.Cooldown, error)
	UpsertCooldown(ctx context.Context, item *models.Cooldown) error
	DeleteExpiredCooldowns(ctx context.Context, before time.Time) (int64, error)

	// Trades
	InsertTrade(ctx context.Context, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	ListOpenTrades(ctx context.Context, userID string) ([]models.Trade, error)
	GetOpenTradeByBaseAsset(ctx context.Context, userID, baseAsset string) (*models.Trade, error)
	CountOpenTrades(ctx context.Context, userID string) (int64, error)
	CloseTrade(ctx context.Context, id uint64, closePrice decimal.Decimal, reason string, closedAt time.Time) error
}
