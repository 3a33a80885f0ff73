package reconciler

import (
	"context"
	"testing"
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

type stubRepo struct {
	settings  map[string]*models.Settings
	dayStates map[string]*models.DayState
	trades    []models.Trade
	nextID    uint64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		settings:  map[string]*models.Settings{},
		dayStates: map[string]*models.DayState{},
		nextID:    1,
	}
}

func (s *stubRepo) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	if v, ok := s.settings[userID]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}
func (s *stubRepo) ListEnabledSettings(ctx context.Context) ([]models.Settings, error) {
	var out []models.Settings
	for _, v := range s.settings {
		if v.Enabled {
			out = append(out, *v)
		}
	}
	return out, nil
}
func (s *stubRepo) UpsertSettings(ctx context.Context, item *models.Settings) error {
	cp := *item
	s.settings[item.UserID] = &cp
	return nil
}
func (s *stubRepo) GetDayState(ctx context.Context, userID, day string) (*models.DayState, error) {
	if v, ok := s.dayStates[userID+"|"+day]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}
func (s *stubRepo) UpsertDayState(ctx context.Context, item *models.DayState) error {
	cp := *item
	s.dayStates[item.UserID+"|"+item.Day] = &cp
	return nil
}
func (s *stubRepo) InsertTradeSignal(ctx context.Context, item *models.TradeSignal) error {
	return nil
}
func (s *stubRepo) ListTradeSignals(ctx context.Context, params repository.ListTradeSignalsParams) ([]models.TradeSignal, error) {
	return nil, nil
}
func (s *stubRepo) ListPendingBacktests(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]models.TradeSignal, error) {
	return nil, nil
}
func (s *stubRepo) UpdateSignalBacktest(ctx context.Context, id uint64, update repository.BacktestUpdate) error {
	return nil
}
func (s *stubRepo) SweepBacktestTimeouts(ctx context.Context, before time.Time, durationMin int) (int64, error) {
	return 0, nil
}
func (s *stubRepo) StrategyRecordsSince(ctx context.Context, since time.Time) ([]repository.StrategyRecord, error) {
	return nil, nil
}
func (s *stubRepo) GetCooldown(ctx context.Context, userID, symbolKey string) (*models.Cooldown, error) {
	return nil, nil
}
func (s *stubRepo) UpsertCooldown(ctx context.Context, item *models.Cooldown) error { return nil }
func (s *stubRepo) DeleteExpiredCooldowns(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}
func (s *stubRepo) InsertTrade(ctx context.Context, item *models.Trade) error {
	item.ID = s.nextID
	s.nextID++
	s.trades = append(s.trades, *item)
	return nil
}
func (s *stubRepo) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	return nil, nil
}
func (s *stubRepo) ListOpenTrades(ctx context.Context, userID string) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range s.trades {
		if t.UserID == userID && t.Status == models.TradeStatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}
func (s *stubRepo) GetOpenTradeByBaseAsset(ctx context.Context, userID, baseAsset string) (*models.Trade, error) {
	return nil, nil
}
func (s *stubRepo) CountOpenTrades(ctx context.Context, userID string) (int64, error) { return 0, nil }
func (s *stubRepo) CloseTrade(ctx context.Context, id uint64, closePrice decimal.Decimal, reason string, closedAt time.Time) error {
	for i := range s.trades {
		if s.trades[i].ID == id && s.trades[i].Status == models.TradeStatusOpen {
			pnlUSD, _ := s.trades[i].RealizedPnL(closePrice)
			s.trades[i].Status = models.TradeStatusClosed
			s.trades[i].ClosePrice = &closePrice
			s.trades[i].CloseReason = &reason
			s.trades[i].ClosedAt = &closedAt
			s.trades[i].RealizedPnLUSD = &pnlUSD
		}
	}
	return nil
}

type stubExchange struct {
	account exchange.Account
}

func (e *stubExchange) PlaceOrder(ctx context.Context, userID string, req exchange.OrderRequest) (exchange.Fill, error) {
	return exchange.Fill{}, nil
}
func (e *stubExchange) PlaceMarginOrder(ctx context.Context, userID string, req exchange.OrderRequest) (exchange.Fill, error) {
	return exchange.Fill{}, nil
}
func (e *stubExchange) CancelOrder(ctx context.Context, userID, symbol, orderID string) error {
	return nil
}
func (e *stubExchange) GetAccount(ctx context.Context, userID string) (exchange.Account, error) {
	return e.account, nil
}

type stubMarket struct {
	prices map[string]decimal.Decimal
}

func (m *stubMarket) GetPrice(ctx context.Context, symbol string) (market.Price, bool, error) {
	if p, ok := m.prices[market.BaseAsset(symbol)]; ok {
		return market.Price{Symbol: symbol, Price: p}, true, nil
	}
	return market.Price{}, false, nil
}
func (m *stubMarket) GetIndicators(ctx context.Context, symbol, timeframe string) (market.Indicators, bool, error) {
	return market.Indicators{}, false, nil
}
func (m *stubMarket) GetKlines(ctx context.Context, symbol, interval string, from time.Time, limit int) ([]market.Candle, error) {
	return nil, nil
}

type stubNotifier struct {
	sent []notify.Notification
}

func (n *stubNotifier) Send(ctx context.Context, item notify.Notification) error {
	n.sent = append(n.sent, item)
	return nil
}
func (n *stubNotifier) SendAsync(ctx context.Context, item notify.Notification) {
	n.sent = append(n.sent, item)
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func holding(asset string, qty, valueUSD float64) exchange.Holding {
	return exchange.Holding{Asset: asset, Quantity: dec(qty), ValueUSD: dec(valueUSD)}
}

func newTestReconciler(repo *stubRepo, ex *stubExchange, md market.Data, n *stubNotifier) *Reconciler {
	gov := governor.New(repo, n, zap.NewNop())
	r := New(repo, ex, md, n, gov, zap.NewNop(), 20)
	r.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	gov.Now = r.Now
	return r
}

func openTrade(userID, base string) models.Trade {
	return models.Trade{
		UserID:       userID,
		Symbol:       base + "USDT",
		BaseAsset:    base,
		Side:         models.SideBuy,
		PositionSide: models.PositionLong,
		Tier:         models.TierNone,
		Quantity:     dec(1),
		EntryPrice:   dec(100),
		AmountUSD:    dec(100),
		Status:       models.TradeStatusOpen,
		OpenedAt:     time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconcile_AdoptsOrphanAboveThreshold(t *testing.T) {
	repo := newStubRepo()
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{
			holding("USDT", 500, 500),
			holding("BONK", 1000000, 25),
		},
	}}
	n := &stubNotifier{}
	r := newTestReconciler(repo, ex, &stubMarket{}, n)

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.OrphanPositions) != 1 {
		t.Fatalf("orphans=%d want=1", len(report.OrphanPositions))
	}
	orphan := report.OrphanPositions[0]
	if orphan.Asset != "BONK" || !orphan.TrailingStopAdded {
		t.Fatalf("orphan=%+v", orphan)
	}

	if len(repo.trades) != 1 {
		t.Fatalf("trades=%d want=1", len(repo.trades))
	}
	trade := repo.trades[0]
	if trade.IsAuto {
		t.Fatalf("adopted trades are not automatic entries")
	}
	if trade.Symbol != "BONKUSDT" || trade.Status != models.TradeStatusOpen {
		t.Fatalf("trade=%+v", trade)
	}
	if trade.TrailingStopPct == nil || *trade.TrailingStopPct != 3.0 {
		t.Fatalf("trailing=%v want default 3.0", trade.TrailingStopPct)
	}
	if trade.EntryPrice.Cmp(dec(25).Div(dec(1000000))) != 0 {
		t.Fatalf("entry price=%s want value/quantity", trade.EntryPrice.String())
	}

	if len(n.sent) != 1 || n.sent[0].EventType != notify.EventOrphanAdopted {
		t.Fatalf("notifications=%v", n.sent)
	}
}

func TestReconcile_SkipsCashAndDust(t *testing.T) {
	repo := newStubRepo()
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{
			holding("USDT", 1000, 1000),
			holding("USDC", 200, 200),
			holding("DAI", 50, 50),
			holding("SHIB", 100000, 12), // below the $20 floor
			holding("PEPE", 100000, 20), // exactly at the floor, still dust
		},
	}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.OrphanPositions) != 0 || len(repo.trades) != 0 {
		t.Fatalf("report=%+v trades=%d want nothing adopted", report, len(repo.trades))
	}
}

func TestReconcile_UsesConfiguredTrailingStop(t *testing.T) {
	repo := newStubRepo()
	repo.settings["u1"] = &models.Settings{UserID: "u1", Enabled: true, DefaultTrailingStopPct: 5}
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{holding("SOL", 2, 300)},
	}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	if _, err := r.Reconcile(context.Background(), "u1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := repo.trades[0].TrailingStopPct; got == nil || *got != 5 {
		t.Fatalf("trailing=%v want=5", got)
	}
}

func TestReconcile_TrackedHoldingNotReadopted(t *testing.T) {
	repo := newStubRepo()
	tr := openTrade("u1", "ETH")
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Exchange reports the same position under a different quote suffix.
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{holding("ETH_USD", 1, 100)},
	}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.OrphanPositions) != 0 || len(report.MissingFromPortfolio) != 0 {
		t.Fatalf("report=%+v want no drift", report)
	}
	if len(repo.trades) != 1 {
		t.Fatalf("trades=%d want just the seeded one", len(repo.trades))
	}
}

func TestReconcile_ClosesManualSell(t *testing.T) {
	repo := newStubRepo()
	tr := openTrade("u1", "DOGE")
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{holding("USDT", 500, 500)},
	}}
	md := &stubMarket{prices: map[string]decimal.Decimal{"DOGE": dec(110)}}
	n := &stubNotifier{}
	r := newTestReconciler(repo, ex, md, n)

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.MissingFromPortfolio) != 1 {
		t.Fatalf("missing=%d want=1", len(report.MissingFromPortfolio))
	}
	missing := report.MissingFromPortfolio[0]
	if missing.Asset != "DOGE" || missing.Reason != models.CloseReasonManualSell {
		t.Fatalf("missing=%+v", missing)
	}

	closed := repo.trades[0]
	if closed.Status != models.TradeStatusClosed {
		t.Fatalf("status=%s want closed", closed.Status)
	}
	if closed.CloseReason == nil || *closed.CloseReason != models.CloseReasonManualSell {
		t.Fatalf("close reason=%v", closed.CloseReason)
	}
	if closed.ClosePrice == nil || closed.ClosePrice.Cmp(dec(110)) != 0 {
		t.Fatalf("close price=%v want current market 110", closed.ClosePrice)
	}
	if len(n.sent) != 1 || n.sent[0].EventType != notify.EventManualSell {
		t.Fatalf("notifications=%v", n.sent)
	}
}

func TestReconcile_ManualSellFallsBackToEntryPrice(t *testing.T) {
	repo := newStubRepo()
	tr := openTrade("u1", "ADA")
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ex := &stubExchange{account: exchange.Account{}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	if _, err := r.Reconcile(context.Background(), "u1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	closed := repo.trades[0]
	if closed.ClosePrice == nil || closed.ClosePrice.Cmp(dec(100)) != 0 {
		t.Fatalf("close price=%v want entry price fallback", closed.ClosePrice)
	}
}

func TestReconcile_ShortPositionsNotTreatedAsManualSell(t *testing.T) {
	repo := newStubRepo()
	tr := openTrade("u1", "ETH")
	tr.Side = models.SideSell
	tr.PositionSide = models.PositionShort
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Shorts never appear as holdings, so their absence is expected.
	ex := &stubExchange{account: exchange.Account{}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.MissingFromPortfolio) != 0 {
		t.Fatalf("report=%+v, short absence is not drift", report)
	}
	if repo.trades[0].Status != models.TradeStatusOpen {
		t.Fatalf("short must stay open")
	}
}

func TestReconcile_LosingExitFeedsDayStateAndPauses(t *testing.T) {
	repo := newStubRepo()
	repo.settings["u1"] = &models.Settings{
		UserID:               "u1",
		Enabled:              true,
		MaxConsecutiveLosses: 1,
		DailyLossLimitPct:    50,
	}
	tr := openTrade("u1", "DOGE")
	tr.IsAuto = true
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Stopped out on the exchange side: asset gone, price halved.
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{holding("USDT", 500, 500)},
	}}
	md := &stubMarket{prices: map[string]decimal.Decimal{"DOGE": dec(50)}}
	n := &stubNotifier{}
	r := newTestReconciler(repo, ex, md, n)

	report, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.MissingFromPortfolio) != 1 {
		t.Fatalf("missing=%d want=1", len(report.MissingFromPortfolio))
	}

	closed := repo.trades[0]
	if closed.RealizedPnLUSD == nil || closed.RealizedPnLUSD.Cmp(dec(-50)) != 0 {
		t.Fatalf("realized pnl=%v want=-50", closed.RealizedPnLUSD)
	}

	day := repo.dayStates["u1|"+models.DayKey(r.Now())]
	if day == nil {
		t.Fatalf("day state never written for a realized close")
	}
	if day.Losses != 1 || day.ConsecutiveLosses != 1 {
		t.Fatalf("day state=%+v want one recorded loss", day)
	}
	if day.DailyPnLUSD.Cmp(dec(-50)) != 0 {
		t.Fatalf("daily pnl=%s want=-50", day.DailyPnLUSD.String())
	}
	if !day.Paused || day.PauseReason == nil {
		t.Fatalf("day state=%+v want paused at the consecutive-loss limit", day)
	}

	paused := 0
	for _, sent := range n.sent {
		if sent.EventType == notify.EventTradingPaused {
			paused++
		}
	}
	if paused != 1 {
		t.Fatalf("pause notifications=%d want=1", paused)
	}
}

func TestReconcile_WinningExitResetsLossStreak(t *testing.T) {
	repo := newStubRepo()
	repo.settings["u1"] = &models.Settings{
		UserID:               "u1",
		Enabled:              true,
		MaxConsecutiveLosses: 3,
	}
	day := models.DayKey(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo.dayStates["u1|"+day] = &models.DayState{
		UserID:            "u1",
		Day:               day,
		ConsecutiveLosses: 2,
		Losses:            2,
	}
	tr := openTrade("u1", "ADA")
	if err := repo.InsertTrade(context.Background(), &tr); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ex := &stubExchange{account: exchange.Account{}}
	md := &stubMarket{prices: map[string]decimal.Decimal{"ADA": dec(120)}}
	r := newTestReconciler(repo, ex, md, &stubNotifier{})

	if _, err := r.Reconcile(context.Background(), "u1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	st := repo.dayStates["u1|"+day]
	if st.Wins != 1 || st.ConsecutiveLosses != 0 {
		t.Fatalf("day state=%+v want the streak reset", st)
	}
	if st.Paused {
		t.Fatalf("winning close must not pause")
	}
}

func TestReconcile_SecondRunIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	ex := &stubExchange{account: exchange.Account{
		Holdings: []exchange.Holding{holding("BONK", 1000000, 25)},
	}}
	r := newTestReconciler(repo, ex, &stubMarket{}, &stubNotifier{})

	first, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.OrphanPositions) != 1 {
		t.Fatalf("first=%+v", first)
	}

	second, err := r.Reconcile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.OrphanPositions) != 0 || len(second.MissingFromPortfolio) != 0 {
		t.Fatalf("second=%+v want empty report", second)
	}
	if len(repo.trades) != 1 {
		t.Fatalf("trades=%d, adoption must not repeat", len(repo.trades))
	}
}
