package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"invoicewatch/internal/api"
	"invoicewatch/internal/logger"
	"invoicewatch/internal/session"
	"invoicewatch/internal/stream"
	"invoicewatch/pkg/models"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Invoicing server
	APIBaseURL        string
	WSURL             string // Overrides the push channel URL derived from APIBaseURL
	RequestsPerSecond float64
	HTTPTimeout       time.Duration

	// Session
	Branch         string
	BranchFilter   string
	HistoryDays    int
	ReconnectDelay time.Duration
	RefreshMin     time.Duration
	RefreshMax     time.Duration
	AutoRefresh    bool
	Timezone       string

	// Read API
	ListenAddr string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string

	location *time.Location
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	apiDefaults := api.DefaultConfig()
	sessionDefaults := session.DefaultConfig()

	v.SetDefault("API_BASE_URL", apiDefaults.BaseURL)
	v.SetDefault("WS_URL", "")
	v.SetDefault("REQUESTS_PER_SECOND", apiDefaults.RequestsPerSecond)
	v.SetDefault("HTTP_TIMEOUT", apiDefaults.Timeout)
	v.SetDefault("BRANCH", models.DefaultBranch)
	v.SetDefault("BRANCH_FILTER", api.AllBranches)
	v.SetDefault("HISTORY_DAYS", sessionDefaults.HistoryDays)
	v.SetDefault("RECONNECT_DELAY", sessionDefaults.ReconnectDelay)
	v.SetDefault("REFRESH_MIN", sessionDefaults.RefreshMin)
	v.SetDefault("REFRESH_MAX", sessionDefaults.RefreshMax)
	v.SetDefault("AUTO_REFRESH", sessionDefaults.AutoRefresh)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("LISTEN_ADDR", "")
	v.SetDefault("GOOGLE_SHEET_URL", "")
	v.SetDefault("GOOGLE_SHEET_WORKSHEET", "DailySales")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("LOG_OUTPUT", "stderr")
}

// Load reads configuration from the environment and any flags bound to the
// global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	SetDefaults(v)

	config := &Config{
		APIBaseURL:           strings.TrimSpace(v.GetString("API_BASE_URL")),
		WSURL:                strings.TrimSpace(v.GetString("WS_URL")),
		RequestsPerSecond:    v.GetFloat64("REQUESTS_PER_SECOND"),
		HTTPTimeout:          v.GetDuration("HTTP_TIMEOUT"),
		Branch:               strings.TrimSpace(v.GetString("BRANCH")),
		BranchFilter:         strings.TrimSpace(v.GetString("BRANCH_FILTER")),
		HistoryDays:          v.GetInt("HISTORY_DAYS"),
		ReconnectDelay:       v.GetDuration("RECONNECT_DELAY"),
		RefreshMin:           v.GetDuration("REFRESH_MIN"),
		RefreshMax:           v.GetDuration("REFRESH_MAX"),
		AutoRefresh:          v.GetBool("AUTO_REFRESH"),
		Timezone:             strings.TrimSpace(v.GetString("TIMEZONE")),
		ListenAddr:           v.GetString("LISTEN_ADDR"),
		GoogleSheetURL:       v.GetString("GOOGLE_SHEET_URL"),
		GoogleSheetWorksheet: v.GetString("GOOGLE_SHEET_WORKSHEET"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		LogTimeFormat:        v.GetString("LOG_TIME_FORMAT"),
		LogOutput:            v.GetString("LOG_OUTPUT"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: API_BASE_URL is required", ErrInvalidConfig)
	}
	if c.Branch == "" {
		return fmt.Errorf("%w: BRANCH is required", ErrInvalidConfig)
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("%w: HISTORY_DAYS must be positive, got %d", ErrInvalidConfig, c.HistoryDays)
	}
	if c.RefreshMin <= 0 || c.RefreshMax < c.RefreshMin {
		return fmt.Errorf("%w: REFRESH_MIN (%s) must be positive and not above REFRESH_MAX (%s)",
			ErrInvalidConfig, c.RefreshMin, c.RefreshMax)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: RECONNECT_DELAY must be positive", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: REQUESTS_PER_SECOND must not be negative", ErrInvalidConfig)
	}

	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: TIMEZONE %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	c.location = loc
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Location returns the timezone calendar days are computed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// APIConfig returns the invoicing server client configuration.
func (c *Config) APIConfig() api.Config {
	cfg := api.DefaultConfig()
	cfg.BaseURL = c.APIBaseURL
	cfg.Timeout = c.HTTPTimeout
	cfg.RequestsPerSecond = c.RequestsPerSecond
	return cfg
}

// SessionConfig returns the dashboard session configuration.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Branch:         c.Branch,
		FilterBranch:   c.BranchFilter,
		HistoryDays:    c.HistoryDays,
		RefreshMin:     c.RefreshMin,
		RefreshMax:     c.RefreshMax,
		AutoRefresh:    c.AutoRefresh,
		ReconnectDelay: c.ReconnectDelay,
		Location:       c.Location(),
	}
}

// StreamURL returns the push channel URL: WS_URL when set, otherwise the
// branch channel on the API host.
func (c *Config) StreamURL() (string, error) {
	if c.WSURL != "" {
		return c.WSURL, nil
	}
	return stream.URLFor(c.APIBaseURL, c.Branch)
}
