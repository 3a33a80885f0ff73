package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`

	Engine     EngineConfig     `mapstructure:"engine"`
	Market     MarketConfig     `mapstructure:"market"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Backtester BacktesterConfig `mapstructure:"backtester"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// EngineConfig drives the root auto-trading tick.
type EngineConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	Concurrency     int           `mapstructure:"concurrency"`
	Universe        []string      `mapstructure:"universe"`
	TopSymbols      []string      `mapstructure:"top_symbols"`
	DefaultStrategy string        `mapstructure:"default_strategy"`
}

type MarketConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PriceTTL     time.Duration `mapstructure:"price_ttl"`
	IndicatorTTL time.Duration `mapstructure:"indicator_ttl"`
}

type ExchangeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BacktesterConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type ReconcilerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	MinOrphanUSD float64       `mapstructure:"min_orphan_usd"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("engine.enabled", true)
	v.SetDefault("engine.tick_interval", "30s")
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.universe", []string{})
	v.SetDefault("engine.top_symbols", []string{
		"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "TRX", "AVAX", "DOT",
	})
	v.SetDefault("engine.default_strategy", "rsi_oversold")

	v.SetDefault("market.base_url", "http://localhost:9101")
	v.SetDefault("market.timeout", "10s")
	v.SetDefault("market.price_ttl", "30s")
	v.SetDefault("market.indicator_ttl", "60s")
	v.SetDefault("exchange.base_url", "http://localhost:9102")
	v.SetDefault("exchange.timeout", "15s")

	v.SetDefault("backtester.enabled", true)
	v.SetDefault("backtester.scan_interval", "1m")
	v.SetDefault("backtester.grace_period", "5m")
	v.SetDefault("backtester.max_age", "24h")
	v.SetDefault("backtester.batch_size", 200)

	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.scan_interval", "10m")
	v.SetDefault("reconciler.min_orphan_usd", 20)

	v.SetDefault("notify.timeout", "5s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
