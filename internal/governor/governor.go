package governor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/internal/notify"
	"autotrader/internal/repository"
)

// freedCashThreshold is the share of portfolio value held as cash that, at
// the position cap, signals a manual external sell and grants one extra slot.
const freedCashThreshold = 0.30

// Governor owns the per-day pause state machine and the per-tick slot
// budget. State transitions happen on trade closes; only an explicit user
// start clears a pause.
type Governor struct {
	Repo     repository.Repository
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

func New(repo repository.Repository, notifier notify.Notifier, logger *zap.Logger) *Governor {
	return &Governor{Repo: repo, Notifier: notifier, Logger: logger, Now: time.Now}
}

// State loads today's day state, returning a zero-valued row when none
// exists yet. The row is only persisted on first write.
func (g *Governor) State(ctx context.Context, userID string) (*models.DayState, error) {
	day := models.DayKey(g.Now())
	st, err := g.Repo.GetDayState(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("load day state: %w", err)
	}
	if st == nil {
		st = &models.DayState{UserID: userID, Day: day}
	}
	return st, nil
}

// RecordOpen bumps today's trade counter after a fill.
func (g *Governor) RecordOpen(ctx context.Context, userID string) error {
	st, err := g.State(ctx, userID)
	if err != nil {
		return err
	}
	st.Trades++
	return g.Repo.UpsertDayState(ctx, st)
}

// RecordClose folds a realized close into the day state and trips the pause
// when either loss threshold is breached. A winning close resets the
// consecutive-loss counter but never unpauses.
func (g *Governor) RecordClose(ctx context.Context, userID string, s models.Settings, pnlUSD decimal.Decimal, pnlPct float64) error {
	st, err := g.State(ctx, userID)
	if err != nil {
		return err
	}

	st.DailyPnLUSD = st.DailyPnLUSD.Add(pnlUSD)
	st.DailyPnLPct += pnlPct
	if pnlUSD.IsNegative() {
		st.Losses++
		st.ConsecutiveLosses++
	} else {
		st.Wins++
		st.ConsecutiveLosses = 0
	}

	reason := ""
	switch {
	case s.MaxConsecutiveLosses > 0 && st.ConsecutiveLosses >= s.MaxConsecutiveLosses:
		reason = fmt.Sprintf("%d consecutive losses (max %d)", st.ConsecutiveLosses, s.MaxConsecutiveLosses)
	case s.DailyLossLimitPct > 0 && st.DailyPnLPct <= -s.DailyLossLimitPct:
		reason = fmt.Sprintf("daily loss %.2f%% breached limit %.2f%%", st.DailyPnLPct, s.DailyLossLimitPct)
	}
	if reason != "" && !st.Paused {
		st.Paused = true
		st.PauseReason = &reason
		g.Logger.Warn("auto-trading paused",
			zap.String("user_id", userID),
			zap.String("reason", reason))
		if g.Notifier != nil {
			g.Notifier.SendAsync(ctx, notify.Notification{
				UserID:    userID,
				EventType: notify.EventTradingPaused,
				Title:     "Auto-trading paused",
				Body:      reason,
				Priority:  "high",
			})
		}
	}

	return g.Repo.UpsertDayState(ctx, st)
}

// Resume clears the pause for today and re-enables the settings flag. This
// is the only path out of PAUSED.
func (g *Governor) Resume(ctx context.Context, userID string) error {
	st, err := g.State(ctx, userID)
	if err != nil {
		return err
	}
	st.Paused = false
	st.PauseReason = nil
	if err := g.Repo.UpsertDayState(ctx, st); err != nil {
		return err
	}

	s, err := g.Repo.GetSettings(ctx, userID)
	if err != nil {
		return err
	}
	if s != nil && !s.Enabled {
		s.Enabled = true
		if err := g.Repo.UpsertSettings(ctx, s); err != nil {
			return err
		}
	}
	g.Logger.Info("auto-trading resumed", zap.String("user_id", userID))
	return nil
}

// AvailableSlots computes how many positions may be opened this tick. At the
// cap, a cash balance of at least 30% of portfolio value is taken as
// evidence of a manual sell and grants exactly one extra slot.
func (g *Governor) AvailableSlots(userID string, s models.Settings, activePositions int, acct exchange.Account) int {
	slots := s.MaxPositions - activePositions
	if slots < 0 {
		slots = 0
	}
	if slots == 0 && acct.TotalValueUSD.IsPositive() {
		cashRatio, _ := acct.AvailableUSD.Div(acct.TotalValueUSD).Float64()
		if cashRatio >= freedCashThreshold {
			g.Logger.Info("granting extra slot on freed cash heuristic",
				zap.String("user_id", userID),
				zap.Float64("cash_ratio", cashRatio),
				zap.Int("active_positions", activePositions))
			return 1
		}
	}
	return slots
}
