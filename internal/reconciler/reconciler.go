package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/exchange"
	"autotrader/internal/governor"
	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/notify"
	"autotrader/internal/repository"
)

// cashAssets are balances that are capital, not positions.
var cashAssets = map[string]struct{}{
	"USDT": {}, "USDC": {}, "BUSD": {}, "USD": {}, "EUR": {}, "DAI": {},
}

// OrphanPosition is an exchange holding adopted into an internal trade.
type OrphanPosition struct {
	Asset             string          `json:"asset"`
	ValueUSD          decimal.Decimal `json:"value_usd"`
	TradeID           uint64          `json:"trade_id"`
	TrailingStopAdded bool            `json:"trailing_stop_added"`
}

// MissingPosition is an open internal trade closed as a manual sell.
type MissingPosition struct {
	Asset   string `json:"asset"`
	TradeID uint64 `json:"trade_id"`
	Reason  string `json:"reason"`
}

// Report is the outcome of one reconciliation run. A second run with no
// intervening external change yields empty slices.
type Report struct {
	OrphanPositions      []OrphanPosition  `json:"orphan_positions"`
	MissingFromPortfolio []MissingPosition `json:"missing_from_portfolio"`
}

// Reconciler repairs drift between exchange holdings and internal trade
// records. Both passes compare on the normalized base asset because the two
// sides use different quote-currency suffixes.
type Reconciler struct {
	Repo         repository.Repository
	Exchange     exchange.Client
	Market       market.Data
	Notifier     notify.Notifier
	Governor     *governor.Governor
	Logger       *zap.Logger
	MinOrphanUSD decimal.Decimal
	Now          func() time.Time
}

func New(repo repository.Repository, ex exchange.Client, md market.Data, notifier notify.Notifier, gov *governor.Governor, logger *zap.Logger, minOrphanUSD float64) *Reconciler {
	return &Reconciler{
		Repo:         repo,
		Exchange:     ex,
		Market:       md,
		Notifier:     notifier,
		Governor:     gov,
		Logger:       logger,
		MinOrphanUSD: decimal.NewFromFloat(minOrphanUSD),
		Now:          time.Now,
	}
}

// Reconcile runs the orphan pass then the manual-sell pass for one user.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (Report, error) {
	report := Report{
		OrphanPositions:      []OrphanPosition{},
		MissingFromPortfolio: []MissingPosition{},
	}
	if r == nil || r.Repo == nil || r.Exchange == nil {
		return report, fmt.Errorf("reconciler not configured")
	}

	acct, err := r.Exchange.GetAccount(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("account snapshot: %w", err)
	}
	openTrades, err := r.Repo.ListOpenTrades(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("open trades: %w", err)
	}
	settings, err := r.Repo.GetSettings(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("settings: %w", err)
	}

	tracked := make(map[string]struct{}, len(openTrades))
	for i := range openTrades {
		if openTrades[i].IsOpen() {
			tracked[openTrades[i].BaseAsset] = struct{}{}
		}
	}

	held := make(map[string]exchange.Holding, len(acct.Holdings))
	for _, h := range acct.Holdings {
		held[market.BaseAsset(h.Asset)] = h
	}

	trailingPct := 3.0
	if settings != nil && settings.DefaultTrailingStopPct > 0 {
		trailingPct = settings.DefaultTrailingStopPct
	}

	for _, h := range acct.Holdings {
		base := market.BaseAsset(h.Asset)
		if _, cash := cashAssets[base]; cash {
			continue
		}
		if h.ValueUSD.LessThanOrEqual(r.MinOrphanUSD) {
			continue
		}
		if _, ok := tracked[base]; ok {
			continue
		}
		orphan, err := r.adoptOrphan(ctx, userID, base, h, trailingPct)
		if err != nil {
			r.Logger.Error("orphan adoption failed",
				zap.String("user_id", userID),
				zap.String("asset", base),
				zap.Error(err))
			continue
		}
		tracked[base] = struct{}{}
		report.OrphanPositions = append(report.OrphanPositions, orphan)
	}

	var guardSettings models.Settings
	if settings != nil {
		guardSettings = *settings
	}

	for i := range openTrades {
		t := &openTrades[i]
		if !t.IsOpen() || t.PositionSide != models.PositionLong {
			continue
		}
		if _, ok := held[t.BaseAsset]; ok {
			continue
		}
		missing, err := r.closeManualSell(ctx, userID, guardSettings, t)
		if err != nil {
			r.Logger.Error("manual-sell close failed",
				zap.String("user_id", userID),
				zap.String("asset", t.BaseAsset),
				zap.Error(err))
			continue
		}
		report.MissingFromPortfolio = append(report.MissingFromPortfolio, missing)
	}

	r.Logger.Info("reconcile complete",
		zap.String("user_id", userID),
		zap.Int("orphans_adopted", len(report.OrphanPositions)),
		zap.Int("manual_sells_closed", len(report.MissingFromPortfolio)))
	return report, nil
}

// adoptOrphan synthesizes an open trade for an untracked holding so the
// position becomes risk-managed without forcing a resync sale.
func (r *Reconciler) adoptOrphan(ctx context.Context, userID, base string, h exchange.Holding, trailingPct float64) (OrphanPosition, error) {
	price := decimal.Zero
	if h.Quantity.IsPositive() {
		price = h.ValueUSD.Div(h.Quantity)
	}
	now := r.Now()
	trade := &models.Trade{
		UserID:          userID,
		Symbol:          market.Pair(base),
		BaseAsset:       base,
		Side:            models.SideBuy,
		PositionSide:    models.PositionLong,
		Tier:            models.TierNone,
		Quantity:        h.Quantity,
		EntryPrice:      price,
		AmountUSD:       h.ValueUSD,
		TrailingStopPct: &trailingPct,
		IsAuto:          false,
		Status:          models.TradeStatusOpen,
		OpenedAt:        now,
	}
	if err := r.Repo.InsertTrade(ctx, trade); err != nil {
		return OrphanPosition{}, err
	}

	if r.Notifier != nil {
		r.Notifier.SendAsync(ctx, notify.Notification{
			UserID:    userID,
			EventType: notify.EventOrphanAdopted,
			Title:     fmt.Sprintf("Adopted untracked %s position", base),
			Body:      fmt.Sprintf("%s worth $%s is now tracked with a %.1f%% trailing stop", base, h.ValueUSD.StringFixed(2), trailingPct),
			Priority:  "normal",
		})
	}
	return OrphanPosition{
		Asset:             base,
		ValueUSD:          h.ValueUSD,
		TradeID:           trade.ID,
		TrailingStopAdded: true,
	}, nil
}

// closeManualSell marks an internally open trade closed because the
// exchange no longer holds the asset, and folds the realized outcome into
// the day state so loss pauses trip on exchange-side exits too.
func (r *Reconciler) closeManualSell(ctx context.Context, userID string, s models.Settings, t *models.Trade) (MissingPosition, error) {
	closePrice := t.EntryPrice
	if r.Market != nil {
		if p, ok, err := r.Market.GetPrice(ctx, t.Symbol); err == nil && ok {
			closePrice = p.Price
		}
	}
	if err := r.Repo.CloseTrade(ctx, t.ID, closePrice, models.CloseReasonManualSell, r.Now()); err != nil {
		return MissingPosition{}, err
	}

	pnlUSD, pnlPct := t.RealizedPnL(closePrice)
	if r.Governor != nil {
		if err := r.Governor.RecordClose(ctx, userID, s, pnlUSD, pnlPct); err != nil {
			r.Logger.Error("recording realized close failed",
				zap.String("user_id", userID),
				zap.String("asset", t.BaseAsset),
				zap.Error(err))
		}
	}

	if r.Notifier != nil {
		r.Notifier.SendAsync(ctx, notify.Notification{
			UserID:    userID,
			EventType: notify.EventManualSell,
			Title:     fmt.Sprintf("Manual sell detected for %s", t.BaseAsset),
			Body:      fmt.Sprintf("Open trade %d closed because %s no longer appears in exchange holdings", t.ID, t.BaseAsset),
			Priority:  "normal",
		})
	}
	return MissingPosition{
		Asset:   t.BaseAsset,
		TradeID: t.ID,
		Reason:  models.CloseReasonManualSell,
	}, nil
}

// ReconcileAll runs reconciliation for every enabled user, containing
// failures per user.
func (r *Reconciler) ReconcileAll(ctx context.Context) {
	users, err := r.Repo.ListEnabledSettings(ctx)
	if err != nil {
		r.Logger.Error("list users for reconcile failed", zap.Error(err))
		return
	}
	for i := range users {
		if _, err := r.Reconcile(ctx, users[i].UserID); err != nil {
			r.Logger.Error("reconcile failed",
				zap.String("user_id", users[i].UserID),
				zap.Error(err))
		}
	}
}
