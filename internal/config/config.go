// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	Etsy          EtsyConfig          `yaml:"etsy"`
	Ebay          EbayConfig          `yaml:"ebay"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PublicURL is the externally reachable base URL of this server.
	// Marketplace image references are built against it.
	PublicURL string `yaml:"public_url"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// UploadsConfig defines where product photos are stored and served from.
type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	BasePath string `yaml:"base_path"`
}

// EtsyConfig defines Etsy API and OAuth settings.
type EtsyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	APIBaseURL   string `yaml:"api_base_url"`
	Scopes       string `yaml:"scopes"`

	// Listing defaults required by the Etsy create-listing call. These are
	// deployment-specific, not computed.
	WhoMade           string `yaml:"who_made"`
	WhenMade          string `yaml:"when_made"`
	IsSupply          bool   `yaml:"is_supply"`
	TaxonomyID        int    `yaml:"taxonomy_id"`
	ShippingProfileID int64  `yaml:"shipping_profile_id"`
}

// EbayConfig defines eBay API and OAuth settings.
type EbayConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	APIBaseURL   string `yaml:"api_base_url"`
	Scopes       string `yaml:"scopes"`
	Marketplace  string `yaml:"marketplace"`
	Currency     string `yaml:"currency"`

	// Offer defaults. Policy ids come from the seller account configuration.
	CategoryID          string `yaml:"category_id"`
	FulfillmentPolicyID string `yaml:"fulfillment_policy_id"`
	PaymentPolicyID     string `yaml:"payment_policy_id"`
	ReturnPolicyID      string `yaml:"return_policy_id"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines eBay API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// ScheduleConfig defines background sweep intervals.
type ScheduleConfig struct {
	TokenRefreshInterval time.Duration `yaml:"token_refresh_interval"`
	TokenRefreshWindow   time.Duration `yaml:"token_refresh_window"`
	StatsInterval        time.Duration `yaml:"stats_interval"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyUploadsDefaults(&cfg.Uploads)
	applyEtsyDefaults(&cfg.Etsy)
	applyEbayDefaults(&cfg.Ebay)
	applyScheduleDefaults(&cfg.Schedule)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.PublicURL == "" {
		s.PublicURL = fmt.Sprintf("http://localhost:%d", s.Port)
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyUploadsDefaults(u *UploadsConfig) {
	if u.Dir == "" {
		u.Dir = "uploads"
	}
	if u.BasePath == "" {
		u.BasePath = "/static/uploads"
	}
}

func applyEtsyDefaults(e *EtsyConfig) {
	if e.AuthURL == "" {
		e.AuthURL = "https://www.etsy.com/oauth/connect"
	}
	if e.TokenURL == "" {
		e.TokenURL = "https://api.etsy.com/v3/public/oauth/token" //nolint:gosec // not a credential
	}
	if e.APIBaseURL == "" {
		e.APIBaseURL = "https://openapi.etsy.com/v3"
	}
	if e.Scopes == "" {
		e.Scopes = "listings_r listings_w"
	}
	if e.WhoMade == "" {
		e.WhoMade = "someone_else"
	}
	if e.WhenMade == "" {
		e.WhenMade = "2020_2025"
	}
	if e.TaxonomyID == 0 {
		e.TaxonomyID = 1
	}
}

func applyEbayDefaults(e *EbayConfig) {
	if e.AuthURL == "" {
		e.AuthURL = "https://auth.ebay.com/oauth2/authorize"
	}
	if e.TokenURL == "" {
		e.TokenURL = "https://api.ebay.com/identity/v1/oauth2/token" //nolint:gosec // not a credential
	}
	if e.APIBaseURL == "" {
		e.APIBaseURL = "https://api.ebay.com"
	}
	if e.Scopes == "" {
		e.Scopes = "https://api.ebay.com/oauth/api_scope " +
			"https://api.ebay.com/oauth/api_scope/sell.inventory " +
			"https://api.ebay.com/oauth/api_scope/sell.marketing"
	}
	if e.Marketplace == "" {
		e.Marketplace = "EBAY_US"
	}
	if e.Currency == "" {
		e.Currency = "USD"
	}
	if e.CategoryID == "" {
		e.CategoryID = "9355"
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.TokenRefreshInterval == 0 {
		s.TokenRefreshInterval = 10 * time.Minute
	}
	if s.TokenRefreshWindow == 0 {
		s.TokenRefreshWindow = 15 * time.Minute
	}
	if s.StatsInterval == 0 {
		s.StatsInterval = time.Minute
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	if cfg.Etsy.ClientID == "" {
		errs = append(errs, fmt.Errorf("etsy.client_id is required"))
	}
	if cfg.Etsy.RedirectURI == "" {
		errs = append(errs, fmt.Errorf("etsy.redirect_uri is required"))
	}
	if cfg.Ebay.ClientID == "" {
		errs = append(errs, fmt.Errorf("ebay.client_id is required"))
	}
	if cfg.Ebay.RedirectURI == "" {
		errs = append(errs, fmt.Errorf("ebay.redirect_uri is required"))
	}

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(
			errs,
			fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"),
		)
	}

	return errors.Join(errs...)
}
