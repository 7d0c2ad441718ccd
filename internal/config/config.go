package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string   `mapstructure:"environment"`
	Hostname    string   `mapstructure:"hostname"`
	LogLines    int      `mapstructure:"log_lines"`
	Actions     []string `mapstructure:"actions"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SinkConfig describes the Slack webhook and the delivery retry policy.
type SinkConfig struct {
	WebhookURL   string        `mapstructure:"webhook_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryInitial time.Duration `mapstructure:"retry_initial"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
}

type WatchConfig struct {
	ReconnectInitial time.Duration `mapstructure:"reconnect_initial"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
	LogFetchTimeout  time.Duration `mapstructure:"log_fetch_timeout"`
	IdleTTL          time.Duration `mapstructure:"idle_ttl"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config is the top-level configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Logging LoggingConfig `mapstructure:"log"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Watch   WatchConfig   `mapstructure:"watch"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// CoreConfig is the immutable subset the notification pipeline is built from.
type CoreConfig struct {
	SinkURL      string
	EnvLabel     string
	HostLabel    string
	LogLineCount int
}

func (c *Config) Core() CoreConfig {
	return CoreConfig{
		SinkURL:      c.Sink.WebhookURL,
		EnvLabel:     c.App.Environment,
		HostLabel:    c.App.Hostname,
		LogLineCount: c.App.LogLines,
	}
}

// ParsedActions returns the configured notification actions.
func (c *Config) ParsedActions() ([]domain.Action, error) {
	actions := make([]domain.Action, 0, len(c.App.Actions))
	for _, raw := range c.App.Actions {
		a, err := domain.ParseAction(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// ConfigurationError is a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// Legacy environment variable names accepted alongside the namespaced ones.
var envAliases = map[string][]string{
	"sink.webhook_url":        {"HARBINGER_WEBHOOK_URL", "SLACK_WEBHOOK_URL"},
	"app.environment":         {"APP_ENVIRONMENT", "MONITOR_ENV"},
	"app.hostname":            {"APP_HOSTNAME", "MONITOR_HOST"},
	"app.log_lines":           {"APP_LOG_LINES", "LOG_LINES"},
	"watch.reconnect_initial": {"WATCH_RECONNECT_INITIAL", "RETRY_INTERVAL"},
}

// legacyAttemptsEnv counts total sends, where sink.max_retries counts retries after the first.
const legacyAttemptsEnv = "MAX_RETRIES"

var durationKeys = []string{
	"sink.timeout",
	"sink.retry_initial",
	"sink.retry_max",
	"watch.reconnect_initial",
	"watch.reconnect_max",
	"watch.log_fetch_timeout",
	"watch.idle_ttl",
	"watch.eviction_interval",
	"watch.shutdown_grace",
}

// InitConfig registers defaults and environment bindings, then reads the optional config file.
func InitConfig(cfgFile string) error {
	// Existing environment variables take precedence over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	viper.SetDefault("app.environment", "production")
	viper.SetDefault("app.hostname", hostname)
	viper.SetDefault("app.log_lines", 5)
	viper.SetDefault("app.actions", actionNames(domain.AllActions))
	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("sink.webhook_url", "")
	viper.SetDefault("sink.timeout", 10*time.Second)
	viper.SetDefault("sink.max_retries", 3)
	viper.SetDefault("sink.retry_initial", time.Second)
	viper.SetDefault("sink.retry_max", 30*time.Second)
	viper.SetDefault("watch.reconnect_initial", time.Second)
	viper.SetDefault("watch.reconnect_max", 30*time.Second)
	viper.SetDefault("watch.log_fetch_timeout", 2*time.Second)
	viper.SetDefault("watch.idle_ttl", time.Hour)
	viper.SetDefault("watch.eviction_interval", 5*time.Minute)
	viper.SetDefault("watch.workers", 4)
	viper.SetDefault("watch.queue_size", 64)
	viper.SetDefault("watch.shutdown_grace", 10*time.Second)
	viper.SetDefault("http.enabled", true)
	viper.SetDefault("http.addr", ":9188")

	// Enable automatic environment variable binding.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range envAliases {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	// Specify the config file details.
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// Read the config file if available.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	return nil
}

// Load unmarshals the configuration into the Config struct and validates it.
func Load() (*Config, error) {
	// Bare numbers are seconds, as in the legacy RETRY_INTERVAL variable.
	for _, key := range durationKeys {
		raw := strings.TrimSpace(viper.GetString(key))
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			viper.Set(key, raw+"s")
		}
	}

	if err := applyLegacyAttempts(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sink.WebhookURL) == "" {
		return &ConfigurationError{Key: "sink.webhook_url", Reason: "required (set SLACK_WEBHOOK_URL or HARBINGER_WEBHOOK_URL)"}
	}
	if c.App.LogLines < 0 {
		return &ConfigurationError{Key: "app.log_lines", Reason: "must not be negative"}
	}
	if c.Sink.MaxRetries < 0 {
		return &ConfigurationError{Key: "sink.max_retries", Reason: "must not be negative"}
	}
	if c.Watch.Workers < 1 {
		return &ConfigurationError{Key: "watch.workers", Reason: "must be at least 1"}
	}
	if c.Watch.QueueSize < 1 {
		return &ConfigurationError{Key: "watch.queue_size", Reason: "must be at least 1"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return &ConfigurationError{Key: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if _, err := c.ParsedActions(); err != nil {
		return &ConfigurationError{Key: "app.actions", Reason: err.Error()}
	}
	return nil
}

func applyLegacyAttempts() error {
	raw, ok := os.LookupEnv(legacyAttemptsEnv)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil
	}
	if _, set := os.LookupEnv("SINK_MAX_RETRIES"); set {
		return nil
	}
	attempts, err := strconv.Atoi(raw)
	if err != nil || attempts < 1 {
		return &ConfigurationError{Key: "sink.max_retries", Reason: fmt.Sprintf("%s must be a positive number of attempts, got %q", legacyAttemptsEnv, raw)}
	}
	viper.Set("sink.max_retries", attempts-1)
	return nil
}

func actionNames(actions []domain.Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names
}
