package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// HTTP Server
	Port string `toml:"port"`

	// Database
	SQLiteDBPath string `toml:"sqlite_db_path"`

	// Location that turns instants into budget days.
	Timezone string `toml:"timezone"`

	// Auth
	JWTSecret string `toml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer"`

	// Exchange rates
	ExchangeRateAPIKey  string        `toml:"exchange_rate_api_key"`
	ExchangeRateBaseURL string        `toml:"exchange_rate_base_url"`
	FXTimeout           time.Duration `toml:"fx_timeout"`
	FXCacheTTL          time.Duration `toml:"fx_cache_ttl"`

	// AMQP; an empty URL disables ledger events.
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets journal
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleSheetName          string `toml:"google_sheet_name"`
	GoogleServiceAccountJSON string `toml:"google_service_account_json"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`

	// Scheduler, wall-clock HH:MM in UTC
	RecurringRunAt   string `toml:"recurring_run_at"`
	RatesRunAt       string `toml:"rates_run_at"`
	AlertsRunAt      string `toml:"alerts_run_at"`
	SweepConcurrency int    `toml:"sweep_concurrency"`

	// HTTP rate limiting per client
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func defaults() *Config {
	return &Config{
		Port:                "8081",
		SQLiteDBPath:        "./data/dailybudget.db",
		Timezone:            "UTC",
		ExchangeRateBaseURL: "https://v6.exchangerate-api.com/v6",
		FXTimeout:           10 * time.Second,
		FXCacheTTL:          time.Hour,
		AMQPExchange:        "dailybudget",
		AMQPQueue:           "ledger_journal",
		GoogleSheetName:     "Journal",
		RecurringRunAt:      "00:00",
		RatesRunAt:          "23:55",
		AlertsRunAt:         "06:00",
		SweepConcurrency:    4,
		RateLimitRPS:        5,
		RateLimitBurst:      20,
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)

	cfg.ExchangeRateAPIKey = getEnv("EXCHANGE_RATE_API_KEY", cfg.ExchangeRateAPIKey)
	cfg.ExchangeRateBaseURL = getEnv("EXCHANGE_RATE_BASE_URL", cfg.ExchangeRateBaseURL)
	cfg.FXTimeout = getEnvDuration("FX_TIMEOUT", cfg.FXTimeout)
	cfg.FXCacheTTL = getEnvDuration("FX_CACHE_TTL", cfg.FXCacheTTL)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE",
		getEnv("GOOGLE_APPLICATION_CREDENTIALS", cfg.GoogleServiceAccountFile))

	cfg.RecurringRunAt = getEnv("RECURRING_RUN_AT", cfg.RecurringRunAt)
	cfg.RatesRunAt = getEnv("RATES_RUN_AT", cfg.RatesRunAt)
	cfg.AlertsRunAt = getEnv("ALERTS_RUN_AT", cfg.AlertsRunAt)
	cfg.SweepConcurrency = getEnvInt("SWEEP_CONCURRENCY", cfg.SweepConcurrency)

	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	return cfg, nil
}

// Location resolves Timezone. Validate has already rejected unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings every binary depends on.
func (c *Config) Validate() error {
	return joinProblems(c.problems())
}

// ValidateAPI additionally requires the token secret.
func (c *Config) ValidateAPI() error {
	problems := c.problems()
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required for the API")
	} else if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	return joinProblems(problems)
}

// ValidateJournal additionally requires the AMQP and Sheets settings the
// journal worker consumes.
func (c *Config) ValidateJournal() error {
	problems := c.problems()
	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required for the journal worker")
	}
	if c.GoogleSpreadsheetID == "" {
		problems = append(problems, "GOOGLE_SPREADSHEET_ID is required for the journal worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		problems = append(problems, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return joinProblems(problems)
}

func (c *Config) problems() []string {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.ExchangeRateBaseURL != "" {
		if u, err := url.Parse(c.ExchangeRateBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid exchange rate base URL '%s': must be http or https", c.ExchangeRateBaseURL))
		}
	}
	if c.FXTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid FX timeout %v: must be at least 1 second", c.FXTimeout))
	}
	if c.FXCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid FX cache TTL %v: cannot be negative", c.FXCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for key, v := range map[string]string{
		"RECURRING_RUN_AT": c.RecurringRunAt,
		"RATES_RUN_AT":     c.RatesRunAt,
		"ALERTS_RUN_AT":    c.AlertsRunAt,
	} {
		if _, _, err := ParseClock(v); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", key, v, err))
		}
	}
	if c.SweepConcurrency < 1 || c.SweepConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid sweep concurrency %d: must be between 1 and 64", c.SweepConcurrency))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	return errors
}

func joinProblems(errors []string) error {
	if len(errors) == 0 {
		return nil
	}
	// map iteration above is unordered
	sort.Strings(errors)
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
}

// ParseClock parses an HH:MM wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	return t.Hour(), t.Minute(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
