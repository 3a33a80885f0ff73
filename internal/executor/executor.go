package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/exchange"
	"autotrader/internal/governor"
	"autotrader/internal/models"
	"autotrader/internal/notify"
	"autotrader/internal/repository"
	"autotrader/internal/scanner"
	"autotrader/internal/sizing"
	"autotrader/internal/strategy"
)

// Skip reasons assigned by the admission chain, in check order.
const (
	ReasonPaused            = "paused"
	ReasonBelowMinProfit    = "expected_profit_below_min"
	ReasonNoSlots           = "no_slots_available"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonBelowMinSize      = "below_min_order_size"
	ReasonExchangeError     = "exchange_error"
)

const (
	feeBufferPct     = 0.10
	errorCooldown    = 5 * time.Minute
	minOrderUSDValue = 5
)

var minOrderUSD = decimal.NewFromInt(minOrderUSDValue)

// Executor turns admitted candidates into exchange orders and records every
// outcome, executed or skipped, as a signal row.
type Executor struct {
	Repo     repository.Repository
	Exchange exchange.Client
	Governor *governor.Governor
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

func New(repo repository.Repository, ex exchange.Client, gov *governor.Governor, notifier notify.Notifier, logger *zap.Logger) *Executor {
	return &Executor{
		Repo:     repo,
		Exchange: ex,
		Governor: gov,
		Notifier: notifier,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Request is one pipeline run over an already-scanned candidate list.
// AvailableUSD and Slots are consumed as trades execute within the run.
type Request struct {
	UserID     string
	Settings   models.Settings
	Paused     bool
	Candidates []scanner.Candidate
	Account    exchange.Account
	Slots      int

	// Tier customizes dual-mode runs; empty for the single pipeline.
	Tier            string
	TierCapitalPct  float64
	CooldownMinutes int
	TrailingOnly    bool
	Margin          bool
}

// Result summarizes one pipeline run. SpentUSD is the cash consumed by the
// executed trades (posted margin for leveraged ones) so callers can shrink
// the account budget before running another pipeline in the same tick.
type Result struct {
	Executed int
	Skipped  int
	SpentUSD decimal.Decimal
}

// Run walks candidates in confidence order, admits or skips each, and
// persists a signal row for all of them. Failures against the exchange are
// contained per symbol and never abort the run.
func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	var res Result
	availableUSD := req.Account.AvailableUSD
	slots := req.Slots

	for i := range req.Candidates {
		cand := &req.Candidates[i]
		if cand.Skipped() {
			res.Skipped++
			e.persistSignal(ctx, req.UserID, cand, false)
			continue
		}

		size := e.admit(req, cand, slots, availableUSD)
		if cand.Skipped() {
			res.Skipped++
			e.persistSignal(ctx, req.UserID, cand, false)
			continue
		}

		fill, err := e.place(ctx, req, cand, size)
		if err != nil {
			e.Logger.Error("order placement failed",
				zap.String("user_id", req.UserID),
				zap.String("symbol", cand.Symbol),
				zap.Error(err))
			e.setCooldown(ctx, req.UserID, cand.BaseAsset, errorCooldown)
			reason := ReasonExchangeError
			cand.SkipReason = &reason
			res.Skipped++
			e.persistSignal(ctx, req.UserID, cand, false)
			continue
		}

		if err := e.recordFill(ctx, req, cand, size, fill); err != nil {
			e.Logger.Error("recording fill failed",
				zap.String("user_id", req.UserID),
				zap.String("symbol", cand.Symbol),
				zap.Error(err))
		}
		e.persistSignal(ctx, req.UserID, cand, true)
		res.Executed++
		slots--
		cashUsed := size
		if req.Margin && req.Settings.Leverage > 1 {
			cashUsed = size.Div(decimal.NewFromInt(int64(req.Settings.Leverage)))
		}
		availableUSD = availableUSD.Sub(cashUsed)
		res.SpentUSD = res.SpentUSD.Add(cashUsed)
	}
	return res, nil
}

// admit runs the ordered admission checks, assigning the first failing
// reason. It returns the sized USD amount for candidates that reach sizing.
func (e *Executor) admit(req Request, cand *scanner.Candidate, slots int, availableUSD decimal.Decimal) decimal.Decimal {
	if req.Paused {
		setSkip(cand, ReasonPaused)
		return decimal.Zero
	}

	if pct := expectedProfitPct(cand); pct < req.Settings.MinExpectedProfitPct {
		setSkip(cand, fmt.Sprintf("%s (%.2f%% < %.2f%%)", ReasonBelowMinProfit, pct, req.Settings.MinExpectedProfitPct))
		return decimal.Zero
	}

	if slots <= 0 {
		setSkip(cand, ReasonNoSlots)
		return decimal.Zero
	}

	bounds := sizing.ResolveBounds(req.Settings, req.Account.TotalValueUSD)
	var size decimal.Decimal
	if req.Tier != "" {
		size = sizing.TierSize(cand.Confidence, bounds, req.Account.TotalValueUSD, req.TierCapitalPct)
		if cand.PositionMultiplier != 1 {
			size = size.Mul(decimal.NewFromFloat(cand.PositionMultiplier))
		}
	} else {
		size = sizing.SizeWithMultiplier(cand.Confidence, bounds, cand.PositionMultiplier)
	}

	required := size
	if req.Margin && req.Settings.Leverage > 1 {
		required = size.Div(decimal.NewFromInt(int64(req.Settings.Leverage)))
	}
	required = required.Mul(decimal.NewFromFloat(1 + feeBufferPct))
	if required.GreaterThan(availableUSD) {
		setSkip(cand, ReasonInsufficientFunds)
		return decimal.Zero
	}

	if size.LessThan(minOrderUSD) {
		setSkip(cand, ReasonBelowMinSize)
		return decimal.Zero
	}
	return size
}

func (e *Executor) place(ctx context.Context, req Request, cand *scanner.Candidate, size decimal.Decimal) (exchange.Fill, error) {
	order := exchange.OrderRequest{
		ClientOrderID:  uuid.NewString(),
		Symbol:         cand.Symbol,
		Side:           orderSide(cand.Direction),
		Type:           "market",
		QuoteAmountUSD: size,
	}
	if req.TrailingOnly {
		sl := cand.Price.Mul(decimal.NewFromFloat(1 - req.Settings.TrailingInitialStopPct/100))
		trail := req.Settings.TrailingDistancePct
		order.StopLoss = &sl
		order.TrailingStopPct = &trail
	} else {
		order.StopLoss = &cand.StopLoss
		order.TakeProfit = &cand.TakeProfit
	}
	if req.Margin {
		order.Leverage = req.Settings.Leverage
		return e.Exchange.PlaceMarginOrder(ctx, req.UserID, order)
	}
	return e.Exchange.PlaceOrder(ctx, req.UserID, order)
}

func (e *Executor) recordFill(ctx context.Context, req Request, cand *scanner.Candidate, size decimal.Decimal, fill exchange.Fill) error {
	now := e.Now()
	trade := &models.Trade{
		UserID:       req.UserID,
		Symbol:       cand.Symbol,
		BaseAsset:    cand.BaseAsset,
		Side:         orderSide(cand.Direction),
		PositionSide: positionSide(cand.Direction),
		Tier:         tierOrNone(req.Tier),
		Quantity:     fill.Quantity,
		EntryPrice:   fill.Price,
		AmountUSD:    size,
		Fee:          fill.Fee,
		IsAuto:       true,
		Status:       models.TradeStatusOpen,
		OpenedAt:     now,
	}
	if req.TrailingOnly {
		trail := req.Settings.TrailingDistancePct
		trade.TrailingStopPct = &trail
		sl := cand.Price.Mul(decimal.NewFromFloat(1 - req.Settings.TrailingInitialStopPct/100))
		trade.StopLoss = &sl
	} else {
		trade.StopLoss = &cand.StopLoss
		trade.TakeProfit = &cand.TakeProfit
	}
	if req.Margin {
		trade.Leverage = req.Settings.Leverage
	}
	if err := e.Repo.InsertTrade(ctx, trade); err != nil {
		return err
	}

	if err := e.Governor.RecordOpen(ctx, req.UserID); err != nil {
		e.Logger.Warn("day counter update failed", zap.String("user_id", req.UserID), zap.Error(err))
	}

	cooldownMin := req.Settings.CooldownMinutes
	if req.CooldownMinutes > 0 {
		cooldownMin = req.CooldownMinutes
	}
	e.setCooldown(ctx, req.UserID, cand.BaseAsset, time.Duration(cooldownMin)*time.Minute)

	if e.Notifier != nil {
		e.Notifier.SendAsync(ctx, notify.Notification{
			UserID:    req.UserID,
			EventType: notify.EventTradeOpened,
			Title:     fmt.Sprintf("Opened %s %s", positionSide(cand.Direction), cand.Symbol),
			Body:      fmt.Sprintf("%s %s at %s for $%s (confidence %.2f)", cand.Strategy, cand.Symbol, fill.Price.StringFixed(4), size.StringFixed(2), cand.Confidence),
			Priority:  "normal",
			Metadata: map[string]any{
				"symbol":   cand.Symbol,
				"strategy": cand.Strategy,
				"tier":     tierOrNone(req.Tier),
			},
		})
	}
	return nil
}

func (e *Executor) persistSignal(ctx context.Context, userID string, cand *scanner.Candidate, executed bool) {
	sig := &models.TradeSignal{
		UserID:         userID,
		Symbol:         cand.Symbol,
		Strategy:       cand.Strategy,
		Regime:         string(cand.Regime),
		Direction:      cand.Direction,
		RSI:            cand.Indicators.RSI,
		VolumeRatio:    cand.Indicators.VolumeRatio,
		ATR:            cand.ATR,
		Confidence:     cand.Confidence,
		EntryPrice:     cand.Price,
		StopLoss:       cand.StopLoss,
		TakeProfit:     cand.TakeProfit,
		SkipReason:     cand.SkipReason,
		Executed:       executed,
		BacktestStatus: models.BacktestPending,
	}
	if err := e.Repo.InsertTradeSignal(ctx, sig); err != nil {
		e.Logger.Warn("signal persist failed",
			zap.String("user_id", userID),
			zap.String("symbol", cand.Symbol),
			zap.Error(err))
	}
}

func (e *Executor) setCooldown(ctx context.Context, userID, baseAsset string, d time.Duration) {
	cd := &models.Cooldown{
		UserID:    userID,
		SymbolKey: baseAsset,
		ExpiresAt: e.Now().Add(d),
	}
	if err := e.Repo.UpsertCooldown(ctx, cd); err != nil {
		e.Logger.Warn("cooldown upsert failed",
			zap.String("user_id", userID),
			zap.String("symbol_key", baseAsset),
			zap.Error(err))
	}
}

// expectedProfitPct is the take-profit distance from entry as a percentage,
// directional so shorts measure the downward move.
func expectedProfitPct(cand *scanner.Candidate) float64 {
	if !cand.Price.IsPositive() || !cand.TakeProfit.IsPositive() {
		return 0
	}
	move := cand.TakeProfit.Sub(cand.Price)
	if cand.Direction == strategy.DirectionShort {
		move = cand.Price.Sub(cand.TakeProfit)
	}
	pct, _ := move.Div(cand.Price).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func setSkip(cand *scanner.Candidate, reason string) {
	if cand.SkipReason == nil {
		cand.SkipReason = &reason
	}
}

func orderSide(direction string) string {
	if direction == strategy.DirectionShort {
		return models.SideSell
	}
	return models.SideBuy
}

func positionSide(direction string) string {
	if direction == strategy.DirectionShort {
		return models.PositionShort
	}
	return models.PositionLong
}

func tierOrNone(tier string) string {
	if tier == "" {
		return models.TierNone
	}
	return tier
}
