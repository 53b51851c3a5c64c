// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "config.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// App captures process-wide runtime settings such as name, environment, metrics, and logging.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsAddr string `yaml:"metrics_addr"`
	EventsPath  string `yaml:"events_path"`
	WSAddr      string `yaml:"ws_addr"`
}

// Broker describes the OANDA REST endpoint, credentials and retry budget.
type Broker struct {
	BaseURL     string  `yaml:"base_url" validate:"required,url"`
	AccountID   string  `yaml:"account_id"`
	APIToken    string  `yaml:"api_token"`
	TimeoutSecs int     `yaml:"timeout_secs" validate:"gt=0"`
	Retries     int     `yaml:"retries" validate:"gte=1"`
	BackoffSecs float64 `yaml:"backoff_secs" validate:"gte=0"`
	DryRun      bool    `yaml:"dry_run"`
}

// Trading holds the instrument list, cadence, indicator periods and rule thresholds.
type Trading struct {
	Strategy             string   `yaml:"strategy"`
	Pairs                []string `yaml:"pairs" validate:"required,min=1,dive,required"`
	TradeAmountUnits     int64    `yaml:"trade_amount_units" validate:"gt=0"`
	TradeIntervalSecs    int      `yaml:"trade_interval_secs" validate:"gt=0"`
	SessionDurationSecs  int      `yaml:"session_duration_secs" validate:"gte=0"`
	RSIPeriod            int      `yaml:"rsi_period" validate:"gte=2"`
	EMAPeriod            int      `yaml:"ema_period" validate:"gte=1"`
	RSIBuyThreshold      float64  `yaml:"rsi_buy_threshold" validate:"gte=0,lte=100"`
	RSISellThreshold     float64  `yaml:"rsi_sell_threshold" validate:"gte=0,lte=100"`
	StopLossPercentage   float64  `yaml:"stop_loss_percentage" validate:"gte=0"`
	TakeProfitPercentage float64  `yaml:"take_profit_percentage" validate:"gte=0"`
}

// Risk encodes guard-rails for how much size a single order may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade" validate:"gte=0"`
}

// Schedule bounds when the scheduler may start sessions. Hours are UTC and inclusive.
type Schedule struct {
	WeekdaysOnly      bool `yaml:"weekdays_only"`
	StartHour         int  `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour           int  `yaml:"end_hour" validate:"gte=0,lte=23"`
	CheckIntervalSecs int  `yaml:"check_interval_secs" validate:"gt=0"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Broker   Broker   `yaml:"broker"`
	Trading  Trading  `yaml:"trading"`
	Risk     Risk     `yaml:"risk"`
	Schedule Schedule `yaml:"schedule"`
}

// Defaults returns the configuration used for any key a file leaves out.
func Defaults() *Config {
	return &Config{
		App: App{
			Name:     "autogecko",
			Env:      "practice",
			LogLevel: "info",
			LogFile:  "trade_log.txt",
		},
		Broker: Broker{
			BaseURL:     "https://api-fxpractice.oanda.com/v3",
			TimeoutSecs: 10,
			Retries:     3,
			BackoffSecs: 2,
		},
		Trading: Trading{
			Strategy:             "rsi_ema",
			Pairs:                []string{"EUR_USD"},
			TradeAmountUnits:     1000,
			TradeIntervalSecs:    30,
			SessionDurationSecs:  3600,
			RSIPeriod:            14,
			EMAPeriod:            20,
			RSIBuyThreshold:      30,
			RSISellThreshold:     70,
			StopLossPercentage:   0.02,
			TakeProfitPercentage: 0.03,
		},
		Schedule: Schedule{
			StartHour:         0,
			EndHour:           23,
			CheckIntervalSecs: 300,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Defaults()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault behaves like Load but falls back to Defaults on any error,
// returning the error alongside so the caller can log it.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Defaults(), err
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field ranges and reports every violation in one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Redacted returns a copy safe to print, with the API token masked.
func (c Config) Redacted() Config {
	out := c
	out.Trading.Pairs = append([]string(nil), c.Trading.Pairs...)
	if out.Broker.APIToken != "" {
		out.Broker.APIToken = "****"
	}
	return out
}
