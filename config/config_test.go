package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxengine/internal/marketdata/timeframe"
)

// chdir runs the test in an empty directory so no stray config.yaml or
// .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "EURUSD", cfg.Symbol)
	assert.Equal(t, timeframe.M15, cfg.Timeframe)
	assert.Equal(t, int32(5), cfg.Chart.Digits)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []string{"ADX", "AC", "MACD"}, cfg.Indicators.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Indicators.Timeout)
	assert.Equal(t, time.Duration(0), cfg.RunInterval())

	r := cfg.Rules()
	assert.Equal(t, 12, r.MaxSpread)
	assert.Equal(t, 150, r.TakeProfit)
	assert.Equal(t, 100, r.StopLoss)
	assert.Equal(t, 999, r.MaxOpen)
	assert.Equal(t, -1, r.MinTradingDiff)
	assert.Equal(t, time.Wednesday, r.TripleSwap)
	assert.True(t, r.SwapLong.Equal(decimal.RequireFromString("-5.46")))
	assert.True(t, r.SwapShort.Equal(decimal.RequireFromString("0.61")))
	assert.True(t, cfg.InitialBalance.IsZero())
	assert.Equal(t, -1000, cfg.Performance.SideMin)

	wed := time.Date(2024, 3, 13, 23, 59, 59, 0, time.UTC)
	assert.True(t, r.Schedule.IsOpen(wed))
	assert.False(t, r.Schedule.IsOpen(wed.AddDate(0, 0, 3)), "saturday")

	p := cfg.IndicatorParams()
	assert.Equal(t, 14, p.RSIPeriod)
	assert.Equal(t, 26, p.MACDSlow)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.SQLite.Path)
	assert.Equal(t, 30, cfg.Webhook.PerMinute)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "fx.yaml", `
symbol: GBPUSD
chart:
  timeframe: H1
  digits: 5
indicators:
  enabled: [rsi, cci]
  run-interval: 60
order:
  open:
    only-strong: true
    window:
      monday:
        start: "08:00"
    holidays: ["2024-12-25"]
  swap:
    long: -3.2
    triple: fri
`)
	writeFile(t, dir, ".env", "FXENGINE_ORDER_SAFE_TAKE_PROFIT=200\n")
	t.Setenv("FXENGINE_ORDER_OPEN_SPREAD_MAX", "20")
	t.Setenv("FXENGINE_INDICATORS_TIMEOUT", "750ms")
	t.Cleanup(func() { os.Unsetenv("FXENGINE_ORDER_SAFE_TAKE_PROFIT") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "GBPUSD", cfg.Symbol)
	assert.Equal(t, timeframe.H1, cfg.Timeframe)
	assert.Equal(t, []string{"RSI", "CCI"}, cfg.Indicators.Enabled)
	assert.Equal(t, time.Hour, cfg.RunInterval())
	assert.Equal(t, 750*time.Millisecond, cfg.Indicators.Timeout)

	r := cfg.Rules()
	assert.True(t, r.OnlyStrong)
	assert.Equal(t, 20, r.MaxSpread)
	assert.Equal(t, 200, r.TakeProfit)
	assert.Equal(t, time.Friday, r.TripleSwap)
	assert.True(t, r.SwapLong.Equal(decimal.RequireFromString("-3.2")))

	mon := time.Date(2024, 3, 11, 7, 59, 59, 0, time.UTC)
	assert.False(t, r.Schedule.IsOpen(mon))
	assert.True(t, r.Schedule.IsOpen(mon.Add(time.Second)))
	assert.True(t, r.Schedule.IsOpen(mon.Add(16*time.Hour)), "default end kept")
	assert.False(t, r.Schedule.IsOpen(time.Date(2024, 12, 25, 12, 0, 0, 0, time.UTC)))
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"timeframe", map[string]string{"FXENGINE_CHART_TIMEFRAME": "M7"}, "chart.timeframe"},
		{"indicator", map[string]string{"FXENGINE_INDICATORS_ENABLED": "ADX,RVI"}, "indicators.enabled"},
		{"duplicate", map[string]string{"FXENGINE_INDICATORS_ENABLED": "ADX,adx"}, "twice"},
		{"cci period", map[string]string{"FXENGINE_INDICATORS_CCI_PERIOD": "0"}, "cci.period"},
		{"macd order", map[string]string{"FXENGINE_INDICATORS_MACD_FAST": "30"}, "macd.fast"},
		{"adx threshold", map[string]string{"FXENGINE_INDICATORS_ADX_THRESHOLD": "-5"}, "adx.threshold"},
		{"envelopes deviation", map[string]string{"FXENGINE_INDICATORS_ENVELOPES_DEVIATION": "-0.1"}, "envelopes.deviation"},
		{"triple", map[string]string{"FXENGINE_ORDER_SWAP_TRIPLE": "someday"}, "order.swap.triple"},
		{"clock", map[string]string{"FXENGINE_ORDER_OPEN_WINDOW_FRIDAY_END": "25:00"}, "order.open.window.friday.end"},
		{"window order", map[string]string{"FXENGINE_ORDER_OPEN_WINDOW_TUESDAY_START": "12:00", "FXENGINE_ORDER_OPEN_WINDOW_TUESDAY_END": "11:00"}, "starts after"},
		{"swap", map[string]string{"FXENGINE_ORDER_SWAP_SHORT": "x"}, "order.swap.short"},
		{"stop loss", map[string]string{"FXENGINE_ORDER_SAFE_STOP_LOSS": "0"}, "stop-loss"},
		{"log level", map[string]string{"FXENGINE_LOG_LEVEL": "loud"}, "log.level"},
		{"location", map[string]string{"FXENGINE_CHART_LOCATION": "Mars/Olympus"}, "chart.location"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chdir(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_ServerLocation(t *testing.T) {
	chdir(t)
	t.Setenv("FXENGINE_CHART_LOCATION", "Europe/Athens")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Athens", cfg.Location.String())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := chdir(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
