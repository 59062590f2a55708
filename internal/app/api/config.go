package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"
)

// Config carries environment-driven settings shared by the API, worker, and purger.
type Config struct {
	Port        string
	PostgresDSN string
	RedisAddr   string

	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool

	GatewayURL     string
	GatewaySecret  string
	GatewayTimeout time.Duration
	GatewayRPS     float64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxConcurrency  int
	OutboxRetention    time.Duration

	AllowedOrigins []string
}

// LoadConfig reads environment variables, plus an optional file named by
// CONFIG_FILE, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (Config, error) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("TEMPORAL_ADDRESS", client.DefaultHostPort)
	v.SetDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace)
	v.SetDefault("TEMPORAL_DISABLED", false)
	v.SetDefault("PAYMENT_GATEWAY_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_GATEWAY_RPS", 20)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OUTBOX_CONCURRENCY", 4)
	v.SetDefault("OUTBOX_RETENTION", "168h")
	v.AutomaticEnv()
	for _, key := range []string{"POSTGRES_DSN", "REDIS_ADDR", "PAYMENT_GATEWAY_URL", "PAYMENT_GATEWAY_SECRET", "CORS_ALLOWED_ORIGINS"} {
		_ = v.BindEnv(key)
	}

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:               strings.TrimSpace(v.GetString("PORT")),
		PostgresDSN:        strings.TrimSpace(v.GetString("POSTGRES_DSN")),
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		TemporalAddress:    strings.TrimSpace(v.GetString("TEMPORAL_ADDRESS")),
		TemporalNamespace:  strings.TrimSpace(v.GetString("TEMPORAL_NAMESPACE")),
		TemporalDisabled:   v.GetBool("TEMPORAL_DISABLED"),
		GatewayURL:         strings.TrimSpace(v.GetString("PAYMENT_GATEWAY_URL")),
		GatewaySecret:      v.GetString("PAYMENT_GATEWAY_SECRET"),
		GatewayTimeout:     v.GetDuration("PAYMENT_GATEWAY_TIMEOUT"),
		GatewayRPS:         v.GetFloat64("PAYMENT_GATEWAY_RPS"),
		OutboxPollInterval: v.GetDuration("OUTBOX_POLL_INTERVAL"),
		OutboxBatchSize:    v.GetInt("OUTBOX_BATCH_SIZE"),
		OutboxConcurrency:  v.GetInt("OUTBOX_CONCURRENCY"),
		OutboxRetention:    v.GetDuration("OUTBOX_RETENTION"),
		AllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_GATEWAY_TIMEOUT must be positive"))
	}
	if c.GatewayRPS <= 0 {
		errs = append(errs, errors.New("PAYMENT_GATEWAY_RPS must be positive"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxConcurrency <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE and OUTBOX_CONCURRENCY must be positive"))
	}
	if c.OutboxRetention <= 0 {
		errs = append(errs, errors.New("OUTBOX_RETENTION must be positive"))
	}
	if c.GatewayURL != "" && c.GatewaySecret == "" {
		errs = append(errs, errors.New("PAYMENT_GATEWAY_SECRET is required with PAYMENT_GATEWAY_URL"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
