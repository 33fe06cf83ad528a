package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Forecast  ForecastConfig
	Aging     AgingConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// ForecastConfig holds stockout forecasting policy
type ForecastConfig struct {
	WindowDays      int  // trailing window for the burn rate average
	IncludeZeroDays bool // count zero-consumption days in the average
}

// AgingConfig holds inventory aging policy
type AgingConfig struct {
	ThresholdDays int // oldest-lot age beyond which a SKU is flagged as aging
}

// TelemetryConfig holds OpenTelemetry metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTLP gRPC endpoint, e.g. "localhost:4317"
	ServiceName       string
	ExportInterval    time.Duration
	Insecure          bool // non-TLS connection, development only
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with COSTING_ prefix (e.g. COSTING_FORECAST_WINDOW_DAYS)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("COSTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Forecast: ForecastConfig{
			WindowDays:      v.GetInt("forecast.window_days"),
			IncludeZeroDays: v.GetBool("forecast.include_zero_days"),
		},
		Aging: AgingConfig{
			ThresholdDays: v.GetInt("aging.threshold_days"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers built-in defaults
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "costing-engine")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("forecast.window_days", 7)
	v.SetDefault("forecast.include_zero_days", true)

	v.SetDefault("aging.threshold_days", 90)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "costing-engine")
	v.SetDefault("telemetry.export_interval", 60*time.Second)
	v.SetDefault("telemetry.insecure", false)
}

// validate rejects configurations the engine cannot run with
func (c *Config) validate() error {
	if c.Forecast.WindowDays <= 0 {
		return fmt.Errorf("forecast.window_days must be positive, got %d", c.Forecast.WindowDays)
	}
	if c.Aging.ThresholdDays <= 0 {
		return fmt.Errorf("aging.threshold_days must be positive, got %d", c.Aging.ThresholdDays)
	}
	return nil
}
