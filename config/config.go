package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	TrustProxy bool   `toml:"trust_proxy"`
	BodyLimit  int    `toml:"body_limit"` // bytes
}

type DatabaseConfig struct {
	DSN             string `toml:"dsn"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
}

type SessionConfig struct {
	Driver          string `toml:"driver"` // "mysql" or "redis"
	CookieName      string `toml:"cookie_name"`
	CookieSecure    bool   `toml:"cookie_secure"`
	Expiration      string `toml:"expiration"`
	ExtendedDays    int    `toml:"extended_days"` // lifetime when "stay logged in" is checked
	GCSchedule      string `toml:"gc_schedule"`
	RedisKeyPrefix  string `toml:"redis_key_prefix"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type SMTPConfig struct {
	Server             string `toml:"server"`
	Port               int    `toml:"port"`
	UseSTARTTLS        bool   `toml:"use_starttls"` // true for port 587, false for port 465
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	Username           string `toml:"username"` // relay credentials; empty means per-user auth
	Password           string `toml:"password"`
	Timeout            string `toml:"timeout"`
}

type MailConfig struct {
	Domain string `toml:"domain"` // local mail domain, appended to bare usernames
}

type JWTConfig struct {
	Secret string `toml:"secret"`
	TTL    string `toml:"ttl"`
}

type EncryptionConfig struct {
	Secret string `toml:"secret"` // mixed into per-user email keys
	Key    string `toml:"key"`    // 32-byte key for session secrets
}

type StorageConfig struct {
	Root         string `toml:"root"`
	DefaultQuota int64  `toml:"default_quota"`
	UsageTTL     string `toml:"usage_ttl"`
}

type SecurityConfig struct {
	MaxLoginAttempts int    `toml:"max_login_attempts"`
	BlockDuration    string `toml:"block_duration"`
	BoltPath         string `toml:"bolt_path"`
	CleanupSchedule  string `toml:"cleanup_schedule"`
	CSRF             bool   `toml:"csrf"`
}

type RateLimitConfig struct {
	Requests int    `toml:"requests"`
	Window   string `toml:"window"`
}

type DateTimeConfig struct {
	Timezone       string `toml:"timezone"`
	Locale         string `toml:"locale"`
	DateFormat     string `toml:"date_format"`
	TimeFormat     string `toml:"time_format"`
	DateTimeFormat string `toml:"datetime_format"`
}

type I18nConfig struct {
	DefaultLanguage string `toml:"default_language"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Session    SessionConfig    `toml:"session"`
	Redis      RedisConfig      `toml:"redis"`
	SMTP       SMTPConfig       `toml:"smtp"`
	Mail       MailConfig       `toml:"mail"`
	JWT        JWTConfig        `toml:"jwt"`
	Encryption EncryptionConfig `toml:"encryption"`
	Storage    StorageConfig    `toml:"storage"`
	Security   SecurityConfig   `toml:"security"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	DateTime   DateTimeConfig   `toml:"datetime"`
	I18n       I18nConfig       `toml:"i18n"`
	Log        LogConfig        `toml:"log"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	var config Config

	config.Server.Port = 5000
	config.Server.BodyLimit = 60 * 1024 * 1024

	config.Database.MaxOpenConns = 20
	config.Database.MaxIdleConns = 5
	config.Database.ConnMaxLifetime = "5m"

	config.Session.Driver = "mysql"
	config.Session.CookieName = "sessionId"
	config.Session.Expiration = "24h"
	config.Session.ExtendedDays = 30
	config.Session.GCSchedule = "@every 15m"
	config.Session.RedisKeyPrefix = "sess:"

	config.Redis.Addr = "127.0.0.1:6379"

	config.SMTP.Server = "127.0.0.1"
	config.SMTP.Port = 587 // Default to STARTTLS port
	config.SMTP.UseSTARTTLS = true
	config.SMTP.Timeout = "30s"

	config.Mail.Domain = "eliano.dev"

	config.JWT.TTL = "24h"

	config.Storage.Root = "user_storage"
	config.Storage.DefaultQuota = 104857600 // 100MB
	config.Storage.UsageTTL = "30s"

	config.Security.MaxLoginAttempts = 4
	config.Security.BlockDuration = "1h"
	config.Security.BoltPath = "data/security.db"
	config.Security.CleanupSchedule = "@every 5m"

	config.RateLimit.Requests = 300
	config.RateLimit.Window = "1m"

	config.DateTime.Timezone = "America/Sao_Paulo"
	config.DateTime.Locale = "pt-BR"
	config.DateTime.DateFormat = "dd/MM/yyyy"
	config.DateTime.TimeFormat = "HH:mm:ss"
	config.DateTime.DateTimeFormat = "dd/MM/yyyy HH:mm:ss"

	config.I18n.DefaultLanguage = "pt"
	config.Log.Level = "info"
	config.Metrics.Path = "/metrics"

	return &config
}

func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if _, err := toml.DecodeFile(filepath, config); err != nil {
		return nil, err
	}

	config.Mail.Domain = strings.TrimPrefix(strings.ToLower(config.Mail.Domain), "@")
	config.Session.Driver = strings.ToLower(config.Session.Driver)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Encryption.Secret == "" {
		return fmt.Errorf("encryption.secret is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("encryption.key must be exactly 32 bytes")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.Session.Driver {
	case "mysql", "redis":
	default:
		return fmt.Errorf("unknown session driver %q", c.Session.Driver)
	}

	durations := map[string]string{
		"database.conn_max_lifetime": c.Database.ConnMaxLifetime,
		"session.expiration":         c.Session.Expiration,
		"smtp.timeout":               c.SMTP.Timeout,
		"jwt.ttl":                    c.JWT.TTL,
		"storage.usage_ttl":          c.Storage.UsageTTL,
		"security.block_duration":    c.Security.BlockDuration,
		"rate_limit.window":          c.RateLimit.Window,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if _, err := c.DateTime.Location(); err != nil {
		return fmt.Errorf("datetime.timezone: %w", err)
	}
	return nil
}

// Address is the listen address of the HTTP server
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper method to get the appropriate SMTP port based on encryption
func (c *SMTPConfig) GetPort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.UseSTARTTLS {
		return 587 // STARTTLS port
	}
	return 465 // SSL/TLS port
}

// Address returns host:port of the relay.
func (c *SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.GetPort())
}

// TimeoutDuration falls back to 30 seconds when unset.
func (c *SMTPConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// Location loads the configured server timezone.
func (c *DateTimeConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *SessionConfig) ExpirationDuration() time.Duration {
	return parseDurationOr(c.Expiration, 24*time.Hour)
}

// ExtendedDuration is the session lifetime used for "stay logged in".
func (c *SessionConfig) ExtendedDuration() time.Duration {
	if c.ExtendedDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.ExtendedDays) * 24 * time.Hour
}

func (c *SecurityConfig) BlockDurationValue() time.Duration {
	return parseDurationOr(c.BlockDuration, time.Hour)
}

func (c *RateLimitConfig) WindowDuration() time.Duration {
	return parseDurationOr(c.Window, time.Minute)
}

func (c *StorageConfig) UsageTTLDuration() time.Duration {
	return parseDurationOr(c.UsageTTL, 30*time.Second)
}

func (c *JWTConfig) TTLDuration() time.Duration {
	return parseDurationOr(c.TTL, 24*time.Hour)
}

func (c *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return parseDurationOr(c.ConnMaxLifetime, 5*time.Minute)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
