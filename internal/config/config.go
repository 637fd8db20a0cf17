// Package config loads corpreg's runtime configuration from environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// Environment gates the production base-URL guard: "production" or
	// "development".
	Environment string `env:"APP_ENV" envDefault:"development"`

	// Server
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Incoming auth + rate limiting
	APIKeys               []string `env:"APP_API_KEYS" envSeparator:","`
	IncomingRateLimit     int      `env:"APP_INCOMING_RATE_LIMIT" envDefault:"60"`
	RedisURL              string   `env:"REDIS_URL"`

	// Request deadlines
	RequestTimeoutMs    int `env:"APP_REQUEST_TIMEOUT" envDefault:"15000"`
	ExternalAPITimeoutMs int `env:"APP_EXTERNAL_API_TIMEOUT" envDefault:"5000"`

	// GUS
	GUSUserKey          string `env:"GUS_USER_KEY"`
	GUSBaseURL          string `env:"GUS_BASE_URL" envDefault:"https://wyszukiwarkaregon.stat.gov.pl"`
	GUSWSDLURL          string `env:"GUS_WSDL_URL" envDefault:"https://wyszukiwarkaregonpubl.stat.gov.pl/wsBIR1_1/wsBIR1_1.asmx"`
	GUSMaxRequestsPerSec int    `env:"GUS_MAX_REQUESTS_PER_SECOND" envDefault:"10"`
	GUSMaxRetries       int    `env:"GUS_MAX_RETRIES" envDefault:"2"`
	GUSInitialDelayMs   int    `env:"GUS_INITIAL_DELAY" envDefault:"100"`

	// KRS
	KRSBaseURL        string `env:"KRS_BASE_URL" envDefault:"https://api-krs.ms.gov.pl"`
	KRSMaxRetries     int    `env:"KRS_MAX_RETRIES" envDefault:"2"`
	KRSInitialDelayMs int    `env:"KRS_INITIAL_DELAY" envDefault:"200"`

	// CEIDG
	CEIDGBaseURL        string `env:"CEIDG_BASE_URL" envDefault:"https://dane.biznes.gov.pl/api/ceidg/v3"`
	CEIDGJWTToken       string `env:"CEIDG_JWT_TOKEN"`
	CEIDGMaxRetries     int    `env:"CEIDG_MAX_RETRIES" envDefault:"2"`
	CEIDGInitialDelayMs int    `env:"CEIDG_INITIAL_DELAY" envDefault:"150"`

	// Operational alerting (optional)
	SlackBotToken   string `env:"SLACK_BOT_TOKEN"`
	SlackOpsChannel string `env:"SLACK_OPS_CHANNEL"`
}

// defaultedBaseURLs names the config fields the production guard checks,
// paired with the default value that must not survive into production.
var defaultedBaseURLs = map[string]string{
	"GUS_BASE_URL":   "https://wyszukiwarkaregon.stat.gov.pl",
	"GUS_WSDL_URL":   "https://wyszukiwarkaregonpubl.stat.gov.pl/wsBIR1_1/wsBIR1_1.asmx",
	"KRS_BASE_URL":   "https://api-krs.ms.gov.pl",
	"CEIDG_BASE_URL": "https://dane.biznes.gov.pl/api/ceidg/v3",
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the production guard: in production, every upstream base
// URL must be set explicitly rather than falling back to its default, and an
// API key must be configured.
func (c *Config) Validate() error {
	if !strings.EqualFold(c.Environment, "production") {
		return nil
	}

	var offenders []string
	current := map[string]string{
		"GUS_BASE_URL":   c.GUSBaseURL,
		"GUS_WSDL_URL":   c.GUSWSDLURL,
		"KRS_BASE_URL":   c.KRSBaseURL,
		"CEIDG_BASE_URL": c.CEIDGBaseURL,
	}
	for name, defaultVal := range defaultedBaseURLs {
		if current[name] == defaultVal {
			offenders = append(offenders, name)
		}
	}
	if len(offenders) > 0 {
		return fmt.Errorf("production guard: %s must be set explicitly (not left at their default)", strings.Join(offenders, ", "))
	}

	if c.GUSUserKey == "" {
		return fmt.Errorf("production guard: GUS_USER_KEY is required")
	}
	if c.CEIDGJWTToken == "" {
		return fmt.Errorf("production guard: CEIDG_JWT_TOKEN is required")
	}
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("production guard: APP_API_KEYS is required")
	}
	return nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
