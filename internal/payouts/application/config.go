package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines payout engine tunables. Values come from a YAML file pointed
// at by PAYOUTS_CONFIG, with env fallbacks for the common ones.
type Config struct {
	FeeRate         float64
	TopUpBufferPct  float64
	DefaultCurrency string
	RailTimeout     time.Duration
	OpsWebhookURL   string
	Audit           AuditConfig
}

// AuditConfig defines the settlement audit schedule.
type AuditConfig struct {
	Schedule string `yaml:"schedule"`
	Lookback int    `yaml:"lookback_days"`
}

// fileConfig mirrors Config for yaml decoding. Pointer fields distinguish
// absent keys from zero values so a partial file does not clobber env
// settings; durations are strings in time.ParseDuration form.
type fileConfig struct {
	FeeRate         *float64     `yaml:"fee_rate"`
	TopUpBufferPct  *float64     `yaml:"topup_buffer_pct"`
	DefaultCurrency string       `yaml:"default_currency"`
	RailTimeout     string       `yaml:"rail_timeout"`
	OpsWebhookURL   string       `yaml:"ops_webhook_url"`
	Audit           *AuditConfig `yaml:"audit"`
}

func (f fileConfig) apply(cfg *Config) error {
	if f.FeeRate != nil {
		cfg.FeeRate = *f.FeeRate
	}
	if f.TopUpBufferPct != nil {
		cfg.TopUpBufferPct = *f.TopUpBufferPct
	}
	if f.DefaultCurrency != "" {
		cfg.DefaultCurrency = f.DefaultCurrency
	}
	if f.RailTimeout != "" {
		parsed, err := time.ParseDuration(f.RailTimeout)
		if err != nil {
			return errors.New("payouts config: invalid rail_timeout: " + f.RailTimeout)
		}
		cfg.RailTimeout = parsed
	}
	if f.OpsWebhookURL != "" {
		cfg.OpsWebhookURL = f.OpsWebhookURL
	}
	if f.Audit != nil {
		if f.Audit.Schedule != "" {
			cfg.Audit.Schedule = f.Audit.Schedule
		}
		if f.Audit.Lookback > 0 {
			cfg.Audit.Lookback = f.Audit.Lookback
		}
	}
	return nil
}

// LoadConfig loads engine config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		FeeRate:         getenvFloatDefault("PAYOUTS_FEE_RATE", 0.0025),
		TopUpBufferPct:  getenvFloatDefault("PAYOUTS_TOPUP_BUFFER_PCT", 0.05),
		DefaultCurrency: getenvDefault("PAYOUTS_CURRENCY", "usd"),
		RailTimeout:     getenvDuration("PAYOUTS_RAIL_TIMEOUT", 30*time.Second),
		OpsWebhookURL:   os.Getenv("PAYOUTS_OPS_WEBHOOK_URL"),
		Audit: AuditConfig{
			Schedule: getenvDefault("PAYOUTS_AUDIT_SCHEDULE", "0 6 * * *"),
			Lookback: getenvIntDefault("PAYOUTS_AUDIT_LOOKBACK_DAYS", 7),
		},
	}

	if path := os.Getenv("PAYOUTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		if err := file.apply(&cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		return cfg, errors.New("payouts config: fee rate out of range")
	}
	if cfg.TopUpBufferPct < 0 {
		return cfg, errors.New("payouts config: negative top-up buffer")
	}
	if cfg.RailTimeout <= 0 {
		cfg.RailTimeout = 30 * time.Second
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
