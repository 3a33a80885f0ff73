package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/executor"
	"autotrader/internal/governor"
	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/regime"
	"autotrader/internal/repository"
	"autotrader/internal/scanner"
	"autotrader/internal/strategy"
)

const strategyRecordWindow = 7 * 24 * time.Hour

// tierCap is the hard limit of concurrent positions per dual-mode tier.
const tierCap = 2

// Engine runs one decision tick across every user with auto-trading
// enabled. Per-user processing is independent and runs under a bounded
// worker pool; a failure in one user never aborts the others.
type Engine struct {
	Cfg      config.EngineConfig
	Repo     repository.Repository
	Market   market.Data
	Exchange exchange.Client
	Scanner  *scanner.Scanner
	Executor *executor.Executor
	Governor *governor.Governor
	Registry *strategy.Registry
	Logger   *zap.Logger
	Now      func() time.Time
}

// Tick processes all enabled users once.
func (e *Engine) Tick(ctx context.Context) error {
	if e == nil || e.Repo == nil {
		return fmt.Errorf("engine not configured")
	}

	users, err := e.Repo.ListEnabledSettings(ctx)
	if err != nil {
		return fmt.Errorf("list enabled users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	concurrency := e.Cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range users {
		s := users[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.Logger.Error("user tick panicked",
						zap.String("user_id", s.UserID),
						zap.Any("panic", r))
				}
			}()
			if err := e.processUser(ctx, s); err != nil {
				e.Logger.Error("user tick failed",
					zap.String("user_id", s.UserID),
					zap.Error(err))
			}
		}()
	}
	wg.Wait()
	return nil
}

// processUser runs one user's full decision pipeline. Steps are strictly
// sequential: state load, regime detection, scan, execution. Available cash
// and slots shrink as trades execute within the tick.
func (e *Engine) processUser(ctx context.Context, s models.Settings) error {
	state, err := e.Governor.State(ctx, s.UserID)
	if err != nil {
		return err
	}

	btcInd, btcPrice, btcChange := e.btcSnapshot(ctx)
	reg := regime.Detect(btcInd, btcPrice)

	acct, err := e.Exchange.GetAccount(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}
	openTrades, err := e.Repo.ListOpenTrades(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("open trades: %w", err)
	}

	base := &tickContext{
		settings:   s,
		paused:     state.Paused,
		regime:     reg,
		btc:        btcInd,
		btcChange:  btcChange,
		account:    acct,
		openTrades: openTrades,
	}

	if s.DualModeEnabled {
		if err := e.runDualMode(ctx, base); err != nil {
			return err
		}
	} else {
		if err := e.runSingle(ctx, base); err != nil {
			return err
		}
	}

	if s.MarginEnabled && s.ShortEnabled {
		if err := e.runMarginShorts(ctx, base); err != nil {
			return err
		}
	}
	return nil
}

// tickContext is shared across the pipelines of one user's tick. spend
// shrinks the cash budget after each pipeline so later passes never budget
// against money an earlier pass already committed.
type tickContext struct {
	settings   models.Settings
	paused     bool
	regime     regime.Regime
	btc        market.Indicators
	btcChange  float64
	account    exchange.Account
	openTrades []models.Trade
}

func (tc *tickContext) spend(usd decimal.Decimal) {
	tc.account.AvailableUSD = tc.account.AvailableUSD.Sub(usd)
	if tc.account.AvailableUSD.IsNegative() {
		tc.account.AvailableUSD = decimal.Zero
	}
}

// runSingle is the default long pipeline with one active strategy.
func (e *Engine) runSingle(ctx context.Context, tc *tickContext) error {
	strat := e.selectStrategy(ctx, tc.settings, tc.regime)
	universe := scanner.Universe(e.Cfg.Universe, e.Cfg.TopSymbols, tc.settings)

	cands, err := e.Scanner.Scan(ctx, scanner.Request{
		UserID:     tc.settings.UserID,
		Settings:   tc.settings,
		Strategy:   strat,
		Regime:     tc.regime,
		Universe:   universe,
		BTC:        tc.btc,
		BTCChange:  tc.btcChange,
		OpenTrades: tc.openTrades,
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	slots := e.Governor.AvailableSlots(tc.settings.UserID, tc.settings, countOpenLongs(tc.openTrades), tc.account)
	res, err := e.Executor.Run(ctx, executor.Request{
		UserID:     tc.settings.UserID,
		Settings:   tc.settings,
		Paused:     tc.paused,
		Candidates: cands,
		Account:    tc.account,
		Slots:      slots,
	})
	if err != nil {
		return err
	}
	tc.spend(res.SpentUSD)
	e.logRun(tc.settings.UserID, string(tc.regime), strat.Name(), res)
	return nil
}

// runDualMode replaces the single pipeline with two tier pipelines, each
// with its own universe, strategy, confidence gate, cooldown and capital
// share. Tier trades exit via trailing stop only.
func (e *Engine) runDualMode(ctx context.Context, tc *tickContext) error {
	tiers := []struct {
		name          string
		strategyID    string
		universe      []string
		minConfidence float64
		capitalPct    float64
		cooldownMin   int
	}{
		{
			name:          models.TierConservative,
			strategyID:    "confluence",
			universe:      tc.settings.ConservativeList(),
			minConfidence: tc.settings.ConservativeMinConfidence,
			capitalPct:    tc.settings.ConservativePct,
			cooldownMin:   tc.settings.ConservativeCooldownMin,
		},
		{
			name:          models.TierAggressive,
			strategyID:    "triple_signal",
			universe:      tc.settings.AggressiveList(),
			minConfidence: tc.settings.AggressiveMinConfidence,
			capitalPct:    tc.settings.AggressivePct,
			cooldownMin:   tc.settings.AggressiveCooldownMin,
		},
	}

	for _, tier := range tiers {
		if len(tier.universe) == 0 {
			continue
		}
		strat := e.Registry.Resolve(tier.strategyID)
		cands, err := e.Scanner.Scan(ctx, scanner.Request{
			UserID:        tc.settings.UserID,
			Settings:      tc.settings,
			Strategy:      strat,
			Regime:        tc.regime,
			Universe:      tier.universe,
			BTC:           tc.btc,
			BTCChange:     tc.btcChange,
			OpenTrades:    tc.openTrades,
			MinConfidence: tier.minConfidence,
		})
		if err != nil {
			return fmt.Errorf("scan %s tier: %w", tier.name, err)
		}

		slots := tierCap - countOpenTier(tc.openTrades, tier.name)
		if slots < 0 {
			slots = 0
		}
		res, err := e.Executor.Run(ctx, executor.Request{
			UserID:          tc.settings.UserID,
			Settings:        tc.settings,
			Paused:          tc.paused,
			Candidates:      cands,
			Account:         tc.account,
			Slots:           slots,
			Tier:            tier.name,
			TierCapitalPct:  tier.capitalPct,
			CooldownMinutes: tier.cooldownMin,
			TrailingOnly:    true,
		})
		if err != nil {
			return err
		}
		tc.spend(res.SpentUSD)
		e.logRun(tc.settings.UserID, string(tc.regime), strat.Name(), res)
	}
	return nil
}

// runMarginShorts is the second pass over the same tick: overbought shorts
// on margin, capped at half the position limit.
func (e *Engine) runMarginShorts(ctx context.Context, tc *tickContext) error {
	strat := e.Registry.Resolve("rsi_overbought")
	universe := scanner.Universe(e.Cfg.Universe, e.Cfg.TopSymbols, tc.settings)

	cands, err := e.Scanner.Scan(ctx, scanner.Request{
		UserID:     tc.settings.UserID,
		Settings:   tc.settings,
		Strategy:   strat,
		Regime:     tc.regime,
		Universe:   universe,
		BTC:        tc.btc,
		BTCChange:  tc.btcChange,
		OpenTrades: tc.openTrades,
	})
	if err != nil {
		return fmt.Errorf("scan shorts: %w", err)
	}

	slots := tc.settings.MaxPositions/2 - countOpenShorts(tc.openTrades)
	if slots < 0 {
		slots = 0
	}
	res, err := e.Executor.Run(ctx, executor.Request{
		UserID:     tc.settings.UserID,
		Settings:   tc.settings,
		Paused:     tc.paused,
		Candidates: cands,
		Account:    tc.account,
		Slots:      slots,
		Margin:     true,
	})
	if err != nil {
		return err
	}
	tc.spend(res.SpentUSD)
	e.logRun(tc.settings.UserID, string(tc.regime), strat.Name(), res)
	return nil
}

// selectStrategy resolves the user's strategy. Auto mode scores every
// registered strategy by regime fit plus recent backtest win rate; manual
// mode resolves the configured id with fallback to the default.
func (e *Engine) selectStrategy(ctx context.Context, s models.Settings, reg regime.Regime) strategy.Strategy {
	if s.StrategyMode != "auto" {
		return e.Registry.Resolve(s.Strategy)
	}
	records, err := e.Repo.StrategyRecordsSince(ctx, e.now().Add(-strategyRecordWindow))
	if err != nil {
		e.Logger.Warn("strategy records unavailable, using configured strategy",
			zap.String("user_id", s.UserID), zap.Error(err))
		return e.Registry.Resolve(s.Strategy)
	}
	return e.Registry.SelectAuto(reg, records)
}

func (e *Engine) btcSnapshot(ctx context.Context) (market.Indicators, float64, float64) {
	sym := market.Pair("BTC")
	ind, _, err := e.Market.GetIndicators(ctx, sym, e.Scanner.Timeframe)
	if err != nil {
		e.Logger.Warn("btc indicators unavailable", zap.Error(err))
	}
	price, ok, err := e.Market.GetPrice(ctx, sym)
	if err != nil || !ok {
		return ind, 0, 0
	}
	px, _ := price.Price.Float64()
	return ind, px, price.Change24hPct
}

func (e *Engine) logRun(userID, reg, strat string, res executor.Result) {
	e.Logger.Info("pipeline run complete",
		zap.String("user_id", userID),
		zap.String("regime", reg),
		zap.String("strategy", strat),
		zap.Int("executed", res.Executed),
		zap.Int("skipped", res.Skipped))
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func countOpenLongs(trades []models.Trade) int {
	n := 0
	for i := range trades {
		if trades[i].IsOpen() && trades[i].PositionSide == models.PositionLong {
			n++
		}
	}
	return n
}

func countOpenShorts(trades []models.Trade) int {
	n := 0
	for i := range trades {
		if trades[i].IsOpen() && trades[i].PositionSide == models.PositionShort {
			n++
		}
	}
	return n
}

func countOpenTier(trades []models.Trade, tier string) int {
	n := 0
	for i := range trades {
		if trades[i].IsOpen() && trades[i].Tier == tier {
			n++
		}
	}
	return n
}
