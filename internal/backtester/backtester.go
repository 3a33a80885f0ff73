package backtester

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/repository"
	"autotrader/internal/strategy"
)

const (
	klineInterval = "1m"
	// timeoutDurationMin is the fixed duration recorded on swept signals.
	timeoutDurationMin = 1440
)

// Backtester retroactively labels pending signals against subsequent
// 1-minute candles. It runs on its own cadence, fully independent of the
// live tick, and only ever writes the backtest columns.
type Backtester struct {
	Repo      repository.Repository
	Market    market.Data
	Logger    *zap.Logger
	Grace     time.Duration
	MaxAge    time.Duration
	BatchSize int
	Now       func() time.Time
}

func New(repo repository.Repository, md market.Data, logger *zap.Logger, grace, maxAge time.Duration) *Backtester {
	return &Backtester{
		Repo:      repo,
		Market:    md,
		Logger:    logger,
		Grace:     grace,
		MaxAge:    maxAge,
		BatchSize: 200,
		Now:       time.Now,
	}
}

// Run sweeps expired signals to timeout, then labels one batch of pending
// signals inside the grace/max-age window.
func (b *Backtester) Run(ctx context.Context) error {
	if b == nil || b.Repo == nil || b.Market == nil {
		return fmt.Errorf("backtester not configured")
	}
	now := b.Now()

	swept, err := b.Repo.SweepBacktestTimeouts(ctx, now.Add(-b.MaxAge), timeoutDurationMin)
	if err != nil {
		return fmt.Errorf("sweep timeouts: %w", err)
	}
	if swept > 0 {
		b.Logger.Info("swept stale signals to timeout", zap.Int64("count", swept))
	}

	signals, err := b.Repo.ListPendingBacktests(ctx, now.Add(-b.Grace), now.Add(-b.MaxAge), b.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending signals: %w", err)
	}

	labeled := 0
	for i := range signals {
		sig := &signals[i]
		update, ok, err := b.label(ctx, sig, now)
		if err != nil {
			b.Logger.Warn("backtest label failed",
				zap.Uint64("signal_id", sig.ID),
				zap.String("symbol", sig.Symbol),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := b.Repo.UpdateSignalBacktest(ctx, sig.ID, update); err != nil {
			b.Logger.Warn("backtest update failed",
				zap.Uint64("signal_id", sig.ID),
				zap.Error(err))
			continue
		}
		labeled++
	}
	if labeled > 0 {
		b.Logger.Info("backtest batch complete",
			zap.Int("labeled", labeled),
			zap.Int("scanned", len(signals)))
	}
	return nil
}

func (b *Backtester) label(ctx context.Context, sig *models.TradeSignal, now time.Time) (repository.BacktestUpdate, bool, error) {
	limit := int(now.Sub(sig.CreatedAt).Minutes()) + 1
	if limit > timeoutDurationMin {
		limit = timeoutDurationMin
	}
	candles, err := b.Market.GetKlines(ctx, sig.Symbol, klineInterval, sig.CreatedAt, limit)
	if err != nil {
		return repository.BacktestUpdate{}, false, err
	}
	return Label(sig, candles)
}

// Label scans candles in chronological order and resolves a signal to its
// terminal status. Within one candle the stop-loss is checked before the
// take-profit, so a candle that could have touched both resolves to the
// worse outcome. The same candle sequence always yields the same result.
func Label(sig *models.TradeSignal, candles []market.Candle) (repository.BacktestUpdate, bool, error) {
	if !sig.EntryPrice.IsPositive() {
		return repository.BacktestUpdate{}, false, fmt.Errorf("signal %d has no entry price", sig.ID)
	}
	short := sig.Direction == strategy.DirectionShort

	for i := range candles {
		c := &candles[i]
		if c.OpenTime.Before(sig.CreatedAt) {
			continue
		}

		var status string
		var exit decimal.Decimal
		switch {
		case !short && sig.StopLoss.IsPositive() && c.Low.LessThanOrEqual(sig.StopLoss):
			status, exit = models.BacktestLoss, sig.StopLoss
		case !short && sig.TakeProfit.IsPositive() && c.High.GreaterThanOrEqual(sig.TakeProfit):
			status, exit = models.BacktestWin, sig.TakeProfit
		case short && sig.StopLoss.IsPositive() && c.High.GreaterThanOrEqual(sig.StopLoss):
			status, exit = models.BacktestLoss, sig.StopLoss
		case short && sig.TakeProfit.IsPositive() && c.Low.LessThanOrEqual(sig.TakeProfit):
			status, exit = models.BacktestWin, sig.TakeProfit
		default:
			continue
		}

		pnl := pnlPct(sig.EntryPrice, exit, short)
		exitTime := c.OpenTime
		durationMin := int(exitTime.Sub(sig.CreatedAt).Minutes())
		return repository.BacktestUpdate{
			Status:      status,
			ExitPrice:   &exit,
			ExitTime:    &exitTime,
			PnLPct:      &pnl,
			DurationMin: &durationMin,
		}, true, nil
	}
	return repository.BacktestUpdate{}, false, nil
}

func pnlPct(entry, exit decimal.Decimal, short bool) float64 {
	move := exit.Sub(entry)
	if short {
		move = entry.Sub(exit)
	}
	pct, _ := move.Div(entry).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
