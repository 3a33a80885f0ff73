package backtester

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/market"
	"autotrader/internal/models"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func candle(t time.Time, low, high float64) market.Candle {
	return market.Candle{
		OpenTime: t,
		Open:     dec((low + high) / 2),
		High:     dec(high),
		Low:      dec(low),
		Close:    dec((low + high) / 2),
	}
}

func longSignal(entry, sl, tp float64, detectedAt time.Time) *models.TradeSignal {
	return &models.TradeSignal{
		ID:         1,
		Direction:  "long",
		EntryPrice: dec(entry),
		StopLoss:   dec(sl),
		TakeProfit: dec(tp),
		CreatedAt:  detectedAt,
	}
}

func TestLabel_StopLossTouchedFirstIsLoss(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(1*time.Minute), 98, 102),
		candle(t0.Add(2*time.Minute), 94, 99),
		candle(t0.Add(3*time.Minute), 100, 111),
	}

	update, ok, err := Label(sig, candles)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestLoss {
		t.Fatalf("status=%s want=loss", update.Status)
	}
	if update.ExitPrice.Cmp(dec(95)) != 0 {
		t.Fatalf("exit=%s want=95, exit is the stop level not the candle low", update.ExitPrice.String())
	}
	if update.ExitTime == nil || !update.ExitTime.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("exit time=%v want detection+2m", update.ExitTime)
	}
	if update.DurationMin == nil || *update.DurationMin != 2 {
		t.Fatalf("duration=%v want=2", update.DurationMin)
	}
	if *update.PnLPct >= 0 {
		t.Fatalf("pnl=%v want negative", *update.PnLPct)
	}
}

func TestLabel_TakeProfitIsWin(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(1*time.Minute), 99, 104),
		candle(t0.Add(2*time.Minute), 103, 112),
	}

	update, ok, err := Label(sig, candles)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestWin {
		t.Fatalf("status=%s want=win", update.Status)
	}
	if update.ExitPrice.Cmp(dec(110)) != 0 {
		t.Fatalf("exit=%s want=110", update.ExitPrice.String())
	}
	if *update.PnLPct != 10 {
		t.Fatalf("pnl=%v want=10", *update.PnLPct)
	}
}

func TestLabel_BothBoundsInOneCandleResolvesToLoss(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(1*time.Minute), 94, 111),
	}

	update, ok, err := Label(sig, candles)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestLoss {
		t.Fatalf("status=%s want=loss on conservative tie-break", update.Status)
	}
}

func TestLabel_NeitherBoundStaysPending(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(1*time.Minute), 97, 103),
		candle(t0.Add(2*time.Minute), 96, 105),
	}

	_, ok, err := Label(sig, candles)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ok {
		t.Fatalf("untouched bounds must stay pending")
	}
}

func TestLabel_ShortInvertsBounds(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := &models.TradeSignal{
		ID:         2,
		Direction:  "short",
		EntryPrice: dec(100),
		StopLoss:   dec(105),
		TakeProfit: dec(92),
		CreatedAt:  t0,
	}

	// High breaches the stop above entry.
	update, ok, err := Label(sig, []market.Candle{candle(t0.Add(1*time.Minute), 101, 106)})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestLoss {
		t.Fatalf("status=%s want=loss when high breaches short stop", update.Status)
	}
	if *update.PnLPct >= 0 {
		t.Fatalf("pnl=%v want negative", *update.PnLPct)
	}

	// Low reaches the profit target below entry.
	update, ok, err = Label(sig, []market.Candle{candle(t0.Add(1*time.Minute), 91, 99)})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestWin {
		t.Fatalf("status=%s want=win when low reaches short target", update.Status)
	}
	if *update.PnLPct != 8 {
		t.Fatalf("pnl=%v want=8", *update.PnLPct)
	}
}

func TestLabel_Deterministic(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(1*time.Minute), 98, 102),
		candle(t0.Add(2*time.Minute), 94, 112),
		candle(t0.Add(3*time.Minute), 90, 120),
	}

	first, ok1, _ := Label(sig, candles)
	second, ok2, _ := Label(sig, candles)
	if !ok1 || !ok2 {
		t.Fatalf("both runs must resolve")
	}
	if first.Status != second.Status || !first.ExitTime.Equal(*second.ExitTime) || first.ExitPrice.Cmp(*second.ExitPrice) != 0 {
		t.Fatalf("labeling not deterministic: %+v vs %+v", first, second)
	}
}

func TestLabel_IgnoresCandlesBeforeDetection(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sig := longSignal(100, 95, 110, t0)
	candles := []market.Candle{
		candle(t0.Add(-2*time.Minute), 90, 96),
		candle(t0.Add(1*time.Minute), 103, 111),
	}

	update, ok, err := Label(sig, candles)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if update.Status != models.BacktestWin {
		t.Fatalf("status=%s want=win, pre-detection candles must not count", update.Status)
	}
}
