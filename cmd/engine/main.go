package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autotrader/internal/backtester"
	"autotrader/internal/config"
	cronrunner "autotrader/internal/cron"
	"autotrader/internal/db"
	"autotrader/internal/engine"
	"autotrader/internal/exchange"
	"autotrader/internal/executor"
	"autotrader/internal/governor"
	"autotrader/internal/handler"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/notify"
	"autotrader/internal/reconciler"
	gormrepository "autotrader/internal/repository/gorm"
	"autotrader/internal/scanner"
	"autotrader/internal/strategy"
)

func main() {
	cfgPath := os.Getenv("AT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("AT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	marketHTTP := &http.Client{Timeout: cfg.Market.Timeout}
	marketSource := market.NewHTTPSource(marketHTTP, cfg.Market.BaseURL)
	marketData := market.NewCache(marketSource, cfg.Market.PriceTTL, cfg.Market.IndicatorTTL)

	exchangeHTTP := &http.Client{Timeout: cfg.Exchange.Timeout}
	exchangeClient := exchange.NewHTTPClient(exchangeHTTP, cfg.Exchange.BaseURL)

	notifier := &notify.WebhookNotifier{
		URL:    cfg.Notify.WebhookURL,
		HTTP:   &http.Client{Timeout: cfg.Notify.Timeout},
		Logger: logger,
	}

	registry := strategy.NewRegistry(logger, cfg.Engine.DefaultStrategy)
	for _, s := range []strategy.Strategy{
		strategy.RSIOversold{},
		strategy.RSIOverbought{},
		strategy.TrendFollowing{},
		strategy.Momentum{},
		strategy.Confluence{},
		strategy.TripleSignal{},
	} {
		if err := registry.Register(s); err != nil {
			logger.Fatal("strategy registration failed", zap.String("strategy", s.Name()), zap.Error(err))
		}
	}
	if err := registry.Validate(); err != nil {
		logger.Fatal("strategy registry invalid", zap.Error(err))
	}

	gov := governor.New(store, notifier, logger)
	scan := scanner.New(store, marketData, logger)
	exec := executor.New(store, exchangeClient, gov, notifier, logger)
	bt := backtester.New(store, marketData, logger, cfg.Backtester.GracePeriod, cfg.Backtester.MaxAge)
	bt.BatchSize = cfg.Backtester.BatchSize
	recon := reconciler.New(store, exchangeClient, marketData, notifier, gov, logger, cfg.Reconciler.MinOrphanUSD)

	eng := &engine.Engine{
		Cfg:      cfg.Engine,
		Repo:     store,
		Market:   marketData,
		Exchange: exchangeClient,
		Scanner:  scan,
		Executor: exec,
		Governor: gov,
		Registry: registry,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)
	settingsHandler := &handler.SettingsHandler{Repo: store}
	settingsHandler.Register(router)
	stateHandler := &handler.StateHandler{Repo: store, Governor: gov}
	stateHandler.Register(router)
	signalsHandler := &handler.SignalsHandler{Repo: store}
	signalsHandler.Register(router)
	tradesHandler := &handler.TradesHandler{Repo: store}
	tradesHandler.Register(router)
	reconcileHandler := &handler.ReconcileHandler{Reconciler: recon}
	reconcileHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)

	if cfg.Engine.Enabled {
		spec := "@every " + cfg.Engine.TickInterval.String()
		_, err := cronRunner.Add(spec, func(ctx context.Context) {
			if err := eng.Tick(ctx); err != nil {
				logger.Warn("trading tick failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("cron register trading tick failed", zap.Error(err))
		}
	}

	if cfg.Backtester.Enabled {
		spec := "@every " + cfg.Backtester.ScanInterval.String()
		_, err := cronRunner.Add(spec, func(ctx context.Context) {
			if err := bt.Run(ctx); err != nil {
				logger.Warn("backtester run failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Fatal("cron register backtester failed", zap.Error(err))
		}
	}

	if cfg.Reconciler.Enabled {
		spec := "@every " + cfg.Reconciler.ScanInterval.String()
		_, err := cronRunner.Add(spec, func(ctx context.Context) {
			recon.ReconcileAll(ctx)
		})
		if err != nil {
			logger.Fatal("cron register reconciler failed", zap.Error(err))
		}
	}

	_, err = cronRunner.Add("@every 1h", func(ctx context.Context) {
		n, err := store.DeleteExpiredCooldowns(ctx, time.Now().Add(-time.Hour))
		if err != nil {
			logger.Warn("cooldown cleanup failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("expired cooldowns removed", zap.Int64("count", n))
		}
	})
	if err != nil {
		logger.Warn("cron register cooldown cleanup failed", zap.Error(err))
	}

	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
