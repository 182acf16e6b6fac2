package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const envPrefix = "BOT"

type Config struct {
	OKX      OKX      `mapstructure:"okx"`
	Trading  Trading  `mapstructure:"trading"`
	Strategy Strategy `mapstructure:"strategy"`
	Scanner  Scanner  `mapstructure:"scanner"`
	Executor Executor `mapstructure:"executor"`
	Control  Control  `mapstructure:"control"`
	Notify   Notify   `mapstructure:"notify"`
	Log      Log      `mapstructure:"log"`
	Admin    Admin    `mapstructure:"admin"`
	DB       DB       `mapstructure:"db"`
	Tracing  Tracing  `mapstructure:"tracing"`
}

type OKX struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	APIKey     string        `mapstructure:"api_key"`
	APISecret  string        `mapstructure:"api_secret"`
	Passphrase string        `mapstructure:"passphrase"`
	Simulated  bool          `mapstructure:"simulated"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Trading struct {
	Variants    []string `mapstructure:"variants" validate:"min=1,dive,oneof=ma25 ma60 ema_original ema_new"`
	Timeframe   string   `mapstructure:"timeframe" validate:"required"`
	Amount      float64  `mapstructure:"amount" validate:"gt=0"`
	Leverage    int      `mapstructure:"leverage" validate:"min=1,max=125"`
	MarginMode  string   `mapstructure:"margin_mode" validate:"oneof=cross isolated"`
	HistoryBars int      `mapstructure:"history_bars" validate:"min=100,max=300"`
	MaxBars     int      `mapstructure:"max_bars" validate:"gtefield=HistoryBars"`
}

type MAVariant struct {
	Window           int     `mapstructure:"window" validate:"min=2"`
	TakeProfitPoints float64 `mapstructure:"take_profit_points" validate:"gt=0"`
	// StopPoints replaces the rolling extreme stop when positive.
	StopPoints float64 `mapstructure:"stop_points" validate:"gte=0"`
}

type Strategy struct {
	MA25            MAVariant `mapstructure:"ma25"`
	MA60            MAVariant `mapstructure:"ma60"`
	StopLookback    int       `mapstructure:"stop_lookback" validate:"min=1"`
	StopThenReverse bool      `mapstructure:"stop_then_reverse"`

	EMAOriginal struct {
		TakeProfitPct float64 `mapstructure:"take_profit_pct" validate:"gt=0"`
		StopLossPct   float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lt=1"`
	} `mapstructure:"ema_original"`

	EMANew struct {
		StopLossPct    float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lt=1"`
		TakeProfitGain float64 `mapstructure:"take_profit_gain" validate:"gt=0"`
	} `mapstructure:"ema_new"`
}

type Scanner struct {
	Mode            string        `mapstructure:"mode" validate:"oneof=single multi"`
	Symbol          string        `mapstructure:"symbol" validate:"required_if=Mode single"`
	Symbols         []string      `mapstructure:"symbols"`
	Tick            time.Duration `mapstructure:"tick" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch_size" validate:"min=1"`
	BatchPause      time.Duration `mapstructure:"batch_pause" validate:"gte=0"`
	CyclePause      time.Duration `mapstructure:"cycle_pause" validate:"gte=0"`
	ErrorDelay      time.Duration `mapstructure:"error_delay" validate:"gte=0"`
	UniverseRefresh time.Duration `mapstructure:"universe_refresh" validate:"gt=0"`
}

const (
	FallbackFull      = "full"
	FallbackRemainder = "remainder"
)

type Executor struct {
	FillWait time.Duration `mapstructure:"fill_wait" validate:"gte=0"`
	// FallbackAmount is the size of the market order after an unfilled limit.
	FallbackAmount string `mapstructure:"fallback_amount" validate:"oneof=full remainder"`
}

const (
	ControlFile   = "file"
	ControlMemory = "memory"
)

type Control struct {
	// Source "memory" keeps the signal in process; start/stop then only
	// work through the admin API and the chat commands.
	Source       string        `mapstructure:"source" validate:"oneof=file memory"`
	File         string        `mapstructure:"file" validate:"required_if=Source file"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

type Notify struct {
	FeishuWebhook  string        `mapstructure:"feishu_webhook" validate:"omitempty,url"`
	Title          string        `mapstructure:"title"`
	TelegramToken  string        `mapstructure:"telegram_token"`
	TelegramChatID int64         `mapstructure:"telegram_chat_id"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Log struct {
	File    string `mapstructure:"file"`
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Service string `mapstructure:"service" validate:"required"`
}

type Admin struct {
	Addr     string        `mapstructure:"addr"`
	TailPoll time.Duration `mapstructure:"tail_poll" validate:"gt=0"`
}

type DB struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

type Tracing struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port    int    `mapstructure:"port"`
	// SampleRate below 1 switches to probabilistic sampling.
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Options carries the command line inputs that shape the config.
type Options struct {
	Path   string
	Mode   string
	Symbol string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("okx.base_url", "https://www.okx.com")
	v.SetDefault("okx.api_key", "")
	v.SetDefault("okx.api_secret", "")
	v.SetDefault("okx.passphrase", "")
	v.SetDefault("okx.simulated", false)
	v.SetDefault("okx.timeout", 10*time.Second)

	v.SetDefault("trading.variants", []string{"ma25"})
	v.SetDefault("trading.timeframe", "1m")
	v.SetDefault("trading.amount", 0.01)
	v.SetDefault("trading.leverage", 10)
	v.SetDefault("trading.margin_mode", "cross")
	v.SetDefault("trading.history_bars", 300)
	v.SetDefault("trading.max_bars", 600)

	v.SetDefault("strategy.ma25.window", 25)
	v.SetDefault("strategy.ma25.take_profit_points", 2000.0)
	v.SetDefault("strategy.ma25.stop_points", 0.0)
	v.SetDefault("strategy.ma60.window", 60)
	v.SetDefault("strategy.ma60.take_profit_points", 750.0)
	v.SetDefault("strategy.ma60.stop_points", 0.0)
	v.SetDefault("strategy.stop_lookback", 144)
	v.SetDefault("strategy.stop_then_reverse", true)
	v.SetDefault("strategy.ema_original.take_profit_pct", 0.04)
	v.SetDefault("strategy.ema_original.stop_loss_pct", 0.02)
	v.SetDefault("strategy.ema_new.stop_loss_pct", 0.05)
	v.SetDefault("strategy.ema_new.take_profit_gain", 0.20)

	v.SetDefault("scanner.mode", "single")
	v.SetDefault("scanner.symbol", "BTC-USDT-SWAP")
	v.SetDefault("scanner.symbols", []string{})
	v.SetDefault("scanner.tick", 5*time.Second)
	v.SetDefault("scanner.batch_size", 10)
	v.SetDefault("scanner.batch_pause", time.Second)
	v.SetDefault("scanner.cycle_pause", 5*time.Second)
	v.SetDefault("scanner.error_delay", 5*time.Second)
	v.SetDefault("scanner.universe_refresh", time.Hour)

	v.SetDefault("executor.fill_wait", 2*time.Second)
	v.SetDefault("executor.fallback_amount", FallbackFull)

	v.SetDefault("control.source", ControlFile)
	v.SetDefault("control.file", "control_signal.txt")
	v.SetDefault("control.poll_interval", 2*time.Second)

	v.SetDefault("notify.feishu_webhook", "")
	v.SetDefault("notify.title", "Trade notification")
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("log.file", "strategy.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service", "signal_bot")

	v.SetDefault("admin.addr", ":8080")
	v.SetDefault("admin.tail_poll", 100*time.Millisecond)

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.sample_rate", 1.0)
}

func newViper(opts Options) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", opts.Path)
		}
	}
	// command line flags win over file and env
	if opts.Mode != "" {
		v.Set("scanner.mode", opts.Mode)
	}
	if opts.Symbol != "" {
		v.Set("scanner.symbol", opts.Symbol)
	}
	return v, nil
}

// NewConfig loads defaults, the optional file and BOT_* env overrides, then
// validates the result.
func NewConfig(opts Options) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "validate config")
	}
	return nil
}

// Dump renders the effective settings (file, env and defaults merged) as yaml.
func Dump(opts Options) (string, error) {
	v, err := newViper(opts)
	if err != nil {
		return "", err
	}
	settings := v.AllSettings()
	if okx, ok := settings["okx"].(map[string]any); ok {
		for _, k := range []string{"api_key", "api_secret", "passphrase"} {
			if s, _ := okx[k].(string); s != "" {
				okx[k] = "***"
			}
		}
	}
	bs, err := yaml.Marshal(settings)
	if err != nil {
		return "", errors.Wrap(err, "marshal config to yaml")
	}
	return string(bs), nil
}
