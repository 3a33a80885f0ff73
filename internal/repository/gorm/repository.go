package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"autotrader/internal/models"
	"autotrader/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Settings ----------------------------------------------------------------

func (s *Store) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Settings
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListEnabledSettings(ctx context.Context) ([]models.Settings, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Settings
	if err := s.db.WithContext(ctx).
		Model(&models.Settings{}).
		Where("enabled = ?", true).
		Order("user_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertSettings(ctx context.Context, item *models.Settings) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.UserID) == "" {
		return nil
	}
	item.Normalize()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(item).Error
}

// --- Day state ---------------------------------------------------------------

func (s *Store) GetDayState(ctx context.Context, userID, day string) (*models.DayState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.DayState
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertDayState(ctx context.Context, item *models.DayState) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"paused",
			"pause_reason",
			"daily_pnl_usd",
			"daily_pnl_pct",
			"consecutive_losses",
			"trades",
			"wins",
			"losses",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- Signals -----------------------------------------------------------------

func (s *Store) InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTradeSignals(ctx context.Context, params repository.ListTradeSignalsParams) ([]models.TradeSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeSignal{})
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Strategy != nil && strings.TrimSpace(*params.Strategy) != "" {
		query = query.Where("strategy = ?", strings.TrimSpace(*params.Strategy))
	}
	if params.BacktestStatus != nil && strings.TrimSpace(*params.BacktestStatus) != "" {
		query = query.Where("backtest_status = ?", strings.TrimSpace(*params.BacktestStatus))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.TradeSignal
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPendingBacktests(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]models.TradeSignal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 200)
	var items []models.TradeSignal
	if err := s.db.WithContext(ctx).
		Model(&models.TradeSignal{}).
		Where("backtest_status = ?", models.BacktestPending).
		Where("created_at <= ?", olderThan).
		Where("created_at >= ?", newerThan).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateSignalBacktest(ctx context.Context, id uint64, update repository.BacktestUpdate) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	// Last writer wins on the backtest columns; each signal is only
	// backtested once so this never races with a conflicting label.
	updates := map[string]any{
		"backtest_status": update.Status,
		"exit_price":      update.ExitPrice,
		"exit_time":       update.ExitTime,
		"pnl_pct":         update.PnLPct,
		"duration_min":    update.DurationMin,
		"updated_at":      time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Model(&models.TradeSignal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) SweepBacktestTimeouts(ctx context.Context, before time.Time, durationMin int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.TradeSignal{}).
		Where("backtest_status = ?", models.BacktestPending).
		Where("created_at < ?", before).
		Updates(map[string]any{
			"backtest_status": models.BacktestTimeout,
			"duration_min":    durationMin,
			"updated_at":      time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) StrategyRecordsSince(ctx context.Context, since time.Time) ([]repository.StrategyRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.StrategyRecord
	err := s.db.WithContext(ctx).
		Model(&models.TradeSignal{}).
		Select(`
			strategy,
			COUNT(*) FILTER (WHERE backtest_status = 'win') AS wins,
			COUNT(*) FILTER (WHERE backtest_status = 'loss') AS losses
		`).
		Where("created_at >= ?", since).
		Where("backtest_status IN ?", []string{models.BacktestWin, models.BacktestLoss}).
		Group("strategy").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Cooldowns ---------------------------------------------------------------

func (s *Store) GetCooldown(ctx context.Context, userID, symbolKey string) (*models.Cooldown, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Cooldown
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol_key = ?", userID, symbolKey).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertCooldown(ctx context.Context, item *models.Cooldown) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.SymbolKey) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "symbol_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"expires_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) DeleteExpiredCooldowns(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.Cooldown{})
	return res.RowsAffected, res.Error
}

// --- Trades ------------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Tier != nil && strings.TrimSpace(*params.Tier) != "" {
		query = query.Where("tier = ?", strings.TrimSpace(*params.Tier))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "opened_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Trade
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Trade
	if err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("user_id = ? AND status = ?", userID, "open").
		Order("opened_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetOpenTradeByBaseAsset(ctx context.Context, userID, baseAsset string) (*models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Trade
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND base_asset = ? AND status = ?", userID, baseAsset, "open").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CountOpenTrades(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("user_id = ? AND status = ?", userID, "open").
		Count(&count).Error
	return count, err
}

func (s *Store) CloseTrade(ctx context.Context, id uint64, closePrice decimal.Decimal, reason string, closedAt time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	var item models.Trade
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, "open").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pnlUSD, _ := item.RealizedPnL(closePrice)
	return s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, "open").
		Updates(map[string]any{
			"status":           "closed",
			"close_price":      closePrice,
			"close_reason":     reason,
			"closed_at":        closedAt,
			"realized_pnl_usd": pnlUSD,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	switch col {
	case "created_at", "updated_at", "opened_at", "confidence", "symbol":
	default:
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
