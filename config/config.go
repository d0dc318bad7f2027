// Package config loads fxengine settings from an optional YAML file, a
// .env file and FXENGINE_* environment variables, in increasing order
// of precedence. Keys are dotted and hyphenated (order.open.spread-max);
// the matching variable is FXENGINE_ORDER_OPEN_SPREAD_MAX.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"fxengine/internal/indicator"
	"fxengine/internal/logger"
	"fxengine/internal/marketdata/timeframe"
	"fxengine/internal/markethours"
	"fxengine/internal/portfolio"
)

const EnvPrefix = "FXENGINE"

// Config holds all application configuration.
type Config struct {
	Symbol      string            `mapstructure:"symbol"`
	Chart       ChartConfig       `mapstructure:"chart"`
	Indicators  IndicatorsConfig  `mapstructure:"indicators"`
	Order       OrderConfig       `mapstructure:"order"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Redis       RedisConfig       `mapstructure:"redis"`
	SQLite      SQLiteConfig      `mapstructure:"sqlite"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`

	// Derived by Load.
	Timeframe      timeframe.Timeframe   `mapstructure:"-"`
	Location       *time.Location        `mapstructure:"-"`
	Schedule       *markethours.Schedule `mapstructure:"-"`
	TripleSwap     time.Weekday          `mapstructure:"-"`
	SwapLong       decimal.Decimal       `mapstructure:"-"`
	SwapShort      decimal.Decimal       `mapstructure:"-"`
	InitialBalance decimal.Decimal       `mapstructure:"-"`
}

type ChartConfig struct {
	Timeframe string `mapstructure:"timeframe"`
	Digits    int32  `mapstructure:"digits"`
	History   int    `mapstructure:"history"`
	Location  string `mapstructure:"location"` // broker server time zone
}

type IndicatorsConfig struct {
	Enabled     []string        `mapstructure:"enabled"`
	RunInterval int             `mapstructure:"run-interval"` // minutes of candle time
	Timeout     time.Duration   `mapstructure:"timeout"`
	RSI         PeriodConfig    `mapstructure:"rsi"`
	MACD        MACDConfig      `mapstructure:"macd"`
	ADX         ADXConfig       `mapstructure:"adx"`
	CCI         PeriodConfig    `mapstructure:"cci"`
	Envelopes   EnvelopesConfig `mapstructure:"envelopes"`
}

type PeriodConfig struct {
	Period int `mapstructure:"period"`
}

type MACDConfig struct {
	Fast   int `mapstructure:"fast"`
	Slow   int `mapstructure:"slow"`
	Signal int `mapstructure:"signal"`
}

type ADXConfig struct {
	Period    int     `mapstructure:"period"`
	Threshold float64 `mapstructure:"threshold"`
}

type EnvelopesConfig struct {
	Period    int     `mapstructure:"period"`
	Deviation float64 `mapstructure:"deviation"` // percent
}

type OrderConfig struct {
	Open    OpenConfig    `mapstructure:"open"`
	Safe    SafeConfig    `mapstructure:"safe"`
	Swap    SwapConfig    `mapstructure:"swap"`
	Balance BalanceConfig `mapstructure:"balance"`
}

type OpenConfig struct {
	OnlyStrong   bool                    `mapstructure:"only-strong"`
	MaxPositions int                     `mapstructure:"max-positions"`
	SpreadMax    int                     `mapstructure:"spread-max"`
	TradingMin   int                     `mapstructure:"trading-min"`
	Window       map[string]WindowConfig `mapstructure:"window"` // keyed by weekday name
	Holidays     []string                `mapstructure:"holidays"`
}

type WindowConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type SafeConfig struct {
	TakeProfit int `mapstructure:"take-profit"`
	StopLoss   int `mapstructure:"stop-loss"`
}

type SwapConfig struct {
	Long   string `mapstructure:"long"`
	Short  string `mapstructure:"short"`
	Triple string `mapstructure:"triple"`
}

type BalanceConfig struct {
	Initial string `mapstructure:"initial"`
}

type PerformanceConfig struct {
	SideMin int `mapstructure:"side-min"`
}

type FeedConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api-key"`
	TOTPSecret     string        `mapstructure:"totp-secret"`
	ReconnectEvery time.Duration `mapstructure:"reconnect-every"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"` // empty disables the journal
}

type WebhookConfig struct {
	URL       string `mapstructure:"url"`
	PerMinute int    `mapstructure:"per-minute"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// Load reads configuration. path may be empty, in which case config.yaml
// is looked up in the working directory and ./config and skipped when
// absent. A .env file in the working directory is applied first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbol", "EURUSD")

	v.SetDefault("chart.timeframe", "M15")
	v.SetDefault("chart.digits", 5)
	v.SetDefault("chart.history", 0)
	v.SetDefault("chart.location", "UTC")

	v.SetDefault("indicators.enabled", []string{"ADX", "AC", "MACD"})
	v.SetDefault("indicators.run-interval", 0)
	v.SetDefault("indicators.timeout", 5*time.Second)
	p := indicator.DefaultParams()
	v.SetDefault("indicators.rsi.period", p.RSIPeriod)
	v.SetDefault("indicators.macd.fast", p.MACDFast)
	v.SetDefault("indicators.macd.slow", p.MACDSlow)
	v.SetDefault("indicators.macd.signal", p.MACDSignal)
	v.SetDefault("indicators.adx.period", p.ADXPeriod)
	v.SetDefault("indicators.adx.threshold", p.ADXThreshold)
	v.SetDefault("indicators.cci.period", p.CCIPeriod)
	v.SetDefault("indicators.envelopes.period", p.EnvelopesPeriod)
	v.SetDefault("indicators.envelopes.deviation", p.EnvelopesDeviation)

	r := portfolio.DefaultRules()
	v.SetDefault("order.open.only-strong", r.OnlyStrong)
	v.SetDefault("order.open.max-positions", r.MaxOpen)
	v.SetDefault("order.open.spread-max", r.MaxSpread)
	v.SetDefault("order.open.trading-min", r.MinTradingDiff)
	for _, wd := range weekdays {
		v.SetDefault("order.open.window."+wd+".start", "00:00:00")
		v.SetDefault("order.open.window."+wd+".end", "23:59:59")
	}
	v.SetDefault("order.open.holidays", []string{})
	v.SetDefault("order.safe.take-profit", r.TakeProfit)
	v.SetDefault("order.safe.stop-loss", r.StopLoss)
	v.SetDefault("order.swap.long", r.SwapLong.String())
	v.SetDefault("order.swap.short", r.SwapShort.String())
	v.SetDefault("order.swap.triple", strings.ToUpper(r.TripleSwap.String()))
	v.SetDefault("order.balance.initial", "0")

	v.SetDefault("performance.side-min", portfolio.DefaultSideMin)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.api-key", "")
	v.SetDefault("feed.totp-secret", "")
	v.SetDefault("feed.reconnect-every", 2*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sqlite.path", "")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.per-minute", 30)

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
}

func (c *Config) validate() error {
	var err error
	if strings.TrimSpace(c.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if c.Timeframe, err = timeframe.Parse(c.Chart.Timeframe); err != nil {
		return fmt.Errorf("chart.timeframe: %w", err)
	}
	if c.Chart.Digits < 0 || c.Chart.Digits > 10 {
		return fmt.Errorf("chart.digits: %d out of range [0, 10]", c.Chart.Digits)
	}
	if c.Chart.History < 0 {
		return fmt.Errorf("chart.history: %d is negative", c.Chart.History)
	}
	if c.Location, err = time.LoadLocation(strings.TrimSpace(c.Chart.Location)); err != nil {
		return fmt.Errorf("chart.location: %w", err)
	}

	if err := c.validateIndicators(); err != nil {
		return err
	}

	o := c.Order
	if o.Open.MaxPositions < 0 {
		return fmt.Errorf("order.open.max-positions: %d is negative", o.Open.MaxPositions)
	}
	if o.Open.SpreadMax < 0 {
		return fmt.Errorf("order.open.spread-max: %d is negative", o.Open.SpreadMax)
	}
	if o.Safe.TakeProfit <= 0 || o.Safe.StopLoss <= 0 {
		return fmt.Errorf("order.safe: take-profit (%d) and stop-loss (%d) must be positive",
			o.Safe.TakeProfit, o.Safe.StopLoss)
	}
	if c.Schedule, err = o.Open.schedule(); err != nil {
		return err
	}
	if c.TripleSwap, err = markethours.ParseWeekday(o.Swap.Triple); err != nil {
		return fmt.Errorf("order.swap.triple: %w", err)
	}
	if c.SwapLong, err = decimal.NewFromString(o.Swap.Long); err != nil {
		return fmt.Errorf("order.swap.long: %w", err)
	}
	if c.SwapShort, err = decimal.NewFromString(o.Swap.Short); err != nil {
		return fmt.Errorf("order.swap.short: %w", err)
	}
	if c.InitialBalance, err = decimal.NewFromString(o.Balance.Initial); err != nil {
		return fmt.Errorf("order.balance.initial: %w", err)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Feed.ReconnectEvery < 0 {
		return fmt.Errorf("feed.reconnect-every: %s is negative", c.Feed.ReconnectEvery)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) validateIndicators() error {
	ic := &c.Indicators
	if len(ic.Enabled) == 0 {
		return errors.New("indicators.enabled: at least one indicator is required")
	}
	if err := c.IndicatorParams().Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	seen := make(map[string]bool, len(ic.Enabled))
	for i, name := range ic.Enabled {
		name = strings.ToUpper(strings.TrimSpace(name))
		if seen[name] {
			return fmt.Errorf("indicators.enabled: %s listed twice", name)
		}
		seen[name] = true
		if _, err := indicator.New(name, c.IndicatorParams()); err != nil {
			return fmt.Errorf("indicators.enabled: %w", err)
		}
		ic.Enabled[i] = name
	}
	if ic.RunInterval < 0 {
		return fmt.Errorf("indicators.run-interval: %d is negative", ic.RunInterval)
	}
	if ic.Timeout <= 0 {
		return fmt.Errorf("indicators.timeout: %s must be positive", ic.Timeout)
	}
	return nil
}

func (o OpenConfig) schedule() (*markethours.Schedule, error) {
	windows := make(map[time.Weekday]markethours.Window, len(o.Window))
	for name, w := range o.Window {
		wd, err := markethours.ParseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("order.open.window.%s: %w", name, err)
		}
		start, err := markethours.ParseClock(w.Start)
		if err != nil {
			return nil, fmt.Errorf("order.open.window.%s.start: %w", name, err)
		}
		end, err := markethours.ParseClock(w.End)
		if err != nil {
			return nil, fmt.Errorf("order.open.window.%s.end: %w", name, err)
		}
		windows[wd] = markethours.Window{Start: start, End: end}
	}
	s, err := markethours.NewSchedule(windows, o.Holidays)
	if err != nil {
		return nil, fmt.Errorf("order.open: %w", err)
	}
	return s, nil
}

// IndicatorParams returns the indicator settings.
func (c *Config) IndicatorParams() indicator.Params {
	ic := c.Indicators
	return indicator.Params{
		RSIPeriod:          ic.RSI.Period,
		MACDFast:           ic.MACD.Fast,
		MACDSlow:           ic.MACD.Slow,
		MACDSignal:         ic.MACD.Signal,
		ADXPeriod:          ic.ADX.Period,
		ADXThreshold:       ic.ADX.Threshold,
		CCIPeriod:          ic.CCI.Period,
		EnvelopesPeriod:    ic.Envelopes.Period,
		EnvelopesDeviation: ic.Envelopes.Deviation,
	}
}

// RunInterval is the minimum candle-time gap between consensus signals.
func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.Indicators.RunInterval) * time.Minute
}

// Rules returns the order engine limits. Call only on a loaded Config.
func (c *Config) Rules() portfolio.Rules {
	o := c.Order
	return portfolio.Rules{
		OnlyStrong:     o.Open.OnlyStrong,
		MaxOpen:        o.Open.MaxPositions,
		MaxSpread:      o.Open.SpreadMax,
		MinTradingDiff: o.Open.TradingMin,
		TakeProfit:     o.Safe.TakeProfit,
		StopLoss:       o.Safe.StopLoss,
		SwapLong:       c.SwapLong,
		SwapShort:      c.SwapShort,
		TripleSwap:     c.TripleSwap,
		Schedule:       c.Schedule,
	}
}
