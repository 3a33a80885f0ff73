package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autotrader/internal/market"
	"autotrader/internal/models"
	"autotrader/internal/regime"
	"autotrader/internal/repository"
	"autotrader/internal/strategy"
)

// Skip reasons assigned during scanning. The executor appends its own set.
const (
	ReasonNoTrigger      = "no_trigger"
	ReasonCooldownActive = "cooldown_active"
	ReasonPositionExists = "position_exists"
)

// pyramidingThresholdUSD is the existing-position value above which a new
// entry in the same symbol is refused.
var pyramidingThresholdUSD = decimal.NewFromInt(10)

// Candidate is one scanned symbol with everything the executor and the
// backtester need. SkipReason nil means the candidate is admissible.
type Candidate struct {
	Symbol     string
	BaseAsset  string
	Price      decimal.Decimal
	Indicators market.Indicators

	Strategy   string
	Regime     regime.Regime
	Direction  string
	Confidence float64
	Reasons    []string

	ATR        decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal

	PositionMultiplier float64
	SkipReason         *string
}

// Skipped returns true once any check has assigned a reason.
func (c *Candidate) Skipped() bool { return c.SkipReason != nil }

func (c *Candidate) skip(reason string) {
	if c.SkipReason == nil {
		r := reason
		c.SkipReason = &r
	}
}

// Scanner walks a symbol universe, evaluates one strategy per symbol, and
// produces the tick's candidate list. It never executes anything; its only
// outputs are candidates with an optional skip reason.
type Scanner struct {
	Repo      repository.Repository
	Market    market.Data
	Logger    *zap.Logger
	Timeframe string
	Now       func() time.Time
}

func New(repo repository.Repository, md market.Data, logger *zap.Logger) *Scanner {
	return &Scanner{
		Repo:      repo,
		Market:    md,
		Logger:    logger,
		Timeframe: "1h",
		Now:       time.Now,
	}
}

// Request carries the per-tick inputs the scanner needs but does not own.
type Request struct {
	UserID     string
	Settings   models.Settings
	Strategy   strategy.Strategy
	Regime     regime.Regime
	Universe   []string
	BTC        market.Indicators
	BTCChange  float64
	OpenTrades []models.Trade
	// MinConfidence above zero discards triggered candidates below it
	// before any further checks (dual-mode tiers use this).
	MinConfidence float64
}

// Scan evaluates every symbol in the universe and returns candidates sorted
// by descending confidence, ties keeping scan order. Cache misses and
// missing indicator fields skip the symbol silently; only evaluated symbols
// produce candidates. Non-triggering symbols are kept solely when they show
// a partial setup worth backtesting.
func (sc *Scanner) Scan(ctx context.Context, req Request) ([]Candidate, error) {
	if sc == nil || sc.Market == nil || req.Strategy == nil {
		return nil, fmt.Errorf("scanner not configured")
	}

	out := make([]Candidate, 0, len(req.Universe))
	for _, symbol := range req.Universe {
		cand, ok, err := sc.scanSymbol(ctx, req, symbol)
		if err != nil {
			sc.Logger.Warn("scan symbol failed",
				zap.String("user_id", req.UserID),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		if ok {
			out = append(out, cand)
		}
	}

	sortByConfidence(out)
	return out, nil
}

func (sc *Scanner) scanSymbol(ctx context.Context, req Request, symbol string) (Candidate, bool, error) {
	price, ok, err := sc.Market.GetPrice(ctx, symbol)
	if err != nil || !ok {
		return Candidate{}, false, err
	}
	ind, ok, err := sc.Market.GetIndicators(ctx, symbol, sc.Timeframe)
	if err != nil || !ok {
		return Candidate{}, false, err
	}
	if !req.Strategy.HasRequiredData(ind) {
		return Candidate{}, false, nil
	}

	res := req.Strategy.Evaluate(strategy.MarketContext{
		Symbol:     symbol,
		Price:      price.Price,
		Indicators: ind,
		Regime:     req.Regime,
		Settings:   req.Settings,
	})

	cand := Candidate{
		Symbol:             symbol,
		BaseAsset:          market.BaseAsset(symbol),
		Price:              price.Price,
		Indicators:         ind,
		Strategy:           req.Strategy.Name(),
		Regime:             req.Regime,
		Direction:          res.Direction,
		Confidence:         res.Confidence,
		Reasons:            res.Reasons,
		PositionMultiplier: 1.0,
	}

	if !res.ShouldTrade {
		if !interesting(ind) {
			return Candidate{}, false, nil
		}
		cand.skip(ReasonNoTrigger)
		cand.computeStops(res)
		return cand, true, nil
	}

	if req.MinConfidence > 0 && res.Confidence < req.MinConfidence {
		cand.skip(fmt.Sprintf("confidence_below_tier_min (%.2f < %.2f)", res.Confidence, req.MinConfidence))
	}

	if !cand.Skipped() {
		inf := AssessBTCInfluence(req.Settings, symbol, res.Direction, req.BTC, req.BTCChange)
		cand.PositionMultiplier = inf.PositionMultiplier
		if !inf.ShouldTrade {
			cand.skip(inf.SkipReason)
		}
	}

	if !cand.Skipped() {
		onCooldown, err := sc.onCooldown(ctx, req.UserID, cand.BaseAsset)
		if err != nil {
			return Candidate{}, false, err
		}
		if onCooldown {
			cand.skip(ReasonCooldownActive)
		}
	}

	if !cand.Skipped() && hasOpenPosition(req.OpenTrades, cand.BaseAsset) {
		cand.skip(ReasonPositionExists)
	}

	// Stops are computed for every persisted candidate, skipped or not,
	// so the backtester can label it later.
	cand.computeStops(res)
	return cand, true, nil
}

func (sc *Scanner) onCooldown(ctx context.Context, userID, baseAsset string) (bool, error) {
	cd, err := sc.Repo.GetCooldown(ctx, userID, baseAsset)
	if err != nil {
		return false, err
	}
	return cd != nil && cd.ExpiresAt.After(sc.Now()), nil
}

// interesting gates which non-triggering scans are worth keeping for the
// audit log and backtester.
func interesting(ind market.Indicators) bool {
	return ind.RSI < 40 || ind.VolumeRatio >= 2.0
}

func hasOpenPosition(trades []models.Trade, baseAsset string) bool {
	for i := range trades {
		t := &trades[i]
		if t.IsOpen() && t.BaseAsset == baseAsset && t.AmountUSD.GreaterThanOrEqual(pyramidingThresholdUSD) {
			return true
		}
	}
	return false
}

// computeStops resolves ATR and the stop-loss/take-profit pair. Strategy
// suggestions win over the default ATR envelope; ATR falls back to 2% of
// price when the 14-period value is unavailable.
func (c *Candidate) computeStops(res strategy.Result) {
	atr := decimal.NewFromFloat(c.Indicators.ATR)
	if !atr.IsPositive() {
		atr = c.Price.Mul(decimal.NewFromFloat(0.02))
	}
	c.ATR = atr

	slDelta := atr.Mul(decimal.NewFromInt(2))
	tpDelta := atr.Mul(decimal.NewFromInt(3))
	if c.Direction == strategy.DirectionShort {
		c.StopLoss = c.Price.Add(slDelta)
		c.TakeProfit = c.Price.Sub(tpDelta)
	} else {
		c.StopLoss = c.Price.Sub(slDelta)
		c.TakeProfit = c.Price.Add(tpDelta)
	}
	if res.SuggestedStopLoss != nil && res.SuggestedStopLoss.IsPositive() {
		c.StopLoss = *res.SuggestedStopLoss
	}
	if res.SuggestedTakeProfit != nil && res.SuggestedTakeProfit.IsPositive() {
		c.TakeProfit = *res.SuggestedTakeProfit
	}
	if c.StopLoss.IsNegative() {
		c.StopLoss = decimal.Zero
	}
	if c.TakeProfit.IsNegative() {
		c.TakeProfit = decimal.Zero
	}
}

func sortByConfidence(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})
}

// Universe builds the symbol list for the single-strategy pipeline from the
// configured universe minus the top-symbols exclusion and the user's own
// exclusion list. Comparison is on the normalized base asset.
func Universe(configured, topSymbols []string, s models.Settings) []string {
	excluded := make(map[string]struct{})
	if s.ExcludeTopSymbols {
		for _, sym := range topSymbols {
			excluded[market.BaseAsset(sym)] = struct{}{}
		}
	}
	for _, sym := range s.ExcludedList() {
		excluded[market.BaseAsset(sym)] = struct{}{}
	}

	out := make([]string, 0, len(configured))
	seen := make(map[string]struct{})
	for _, sym := range configured {
		base := market.BaseAsset(sym)
		if base == "" {
			continue
		}
		if _, skip := excluded[base]; skip {
			continue
		}
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, strings.ToUpper(strings.TrimSpace(sym)))
	}
	return out
}
