package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rendeza/rendeza/internal/pkg/billing"
	"github.com/rendeza/rendeza/internal/pkg/env"
)

// Config is the process configuration, read once at startup.
type Config struct {
	App      AppConfig
	Allpay   AllpayConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Mail     MailConfig
	Archive  ArchiveConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Env            string        `validate:"required,oneof=dev prod test"`
	Host           string        `validate:"required"`
	Port           string        `validate:"required,numeric"`
	BaseURL        string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

// AllpayConfig may be left empty; payment endpoints then answer with a
// configuration error instead of the process refusing to start.
type AllpayConfig struct {
	APIURL   string `validate:"omitempty,url"`
	Login    string
	APIKey   string
	Currency string `validate:"required,len=3"`
	Lang     string `validate:"required"`
	Timeout  time.Duration
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string
	Password string
	Name     string
}

// DSN is the go-sql-driver/mysql connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// MigrateURL is the golang-migrate connection string.
func (d DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type CacheConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0,lt=65536"`
	Password string
	DB       int `validate:"gte=0"`
}

// Addr is the host:port of the Redis server.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string `validate:"omitempty,email"`
	To       string `validate:"omitempty,email"`
}

// Enabled reports whether an SMTP server is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type ArchiveConfig struct {
	Enabled         bool
	Bucket          string `validate:"required_if=Enabled true"`
	Region          string `validate:"required_if=Enabled true"`
	Endpoint        string `validate:"omitempty,url"`
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

type AdminConfig struct {
	User         string
	PasswordHash string
}

// Enabled reports whether the admin endpoints can be reached at all.
func (a AdminConfig) Enabled() bool {
	return a.User != "" && a.PasswordHash != ""
}

// Load builds the configuration from the environment and validates it.
// env.SetupEnvFile should have been called before.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:            env.GetEnv("APP_ENV", "prod"),
			Host:           env.GetEnv("APP_HOST", "localhost"),
			Port:           env.GetEnv("APP_PORT", "4000"),
			BaseURL:        strings.TrimRight(env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000"), "/"),
			RequestTimeout: getDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
		},
		Allpay: AllpayConfig{
			APIURL:   env.GetEnv("ALLPAY_API_URL", billing.DefaultAllpayAPIURL),
			Login:    env.GetEnv("ALLPAY_LOGIN", ""),
			APIKey:   env.GetEnv("ALLPAY_API_KEY", ""),
			Currency: env.GetEnv("ALLPAY_CURRENCY", billing.DefaultCurrency),
			Lang:     env.GetEnv("ALLPAY_LANG", billing.DefaultLang),
			Timeout:  getDuration("ALLPAY_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     getInt("CACHE_PORT", 6379),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       getInt("CACHE_DB", 0),
		},
		Mail: MailConfig{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "587"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
			From:     env.GetEnv("MAIL_FROM", "contact@rendeza.com"),
			To:       env.GetEnv("MAIL_ONBOARDING_TO", "benji@rendeza.com"),
		},
		Archive: ArchiveConfig{
			Enabled:         getBool("ARCHIVE_ENABLED", false),
			Bucket:          env.GetEnv("ARCHIVE_BUCKET", ""),
			Region:          env.GetEnv("ARCHIVE_REGION", ""),
			Endpoint:        env.GetEnv("ARCHIVE_ENDPOINT", ""),
			AccessKeyID:     env.GetEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			Prefix:          env.GetEnv("ARCHIVE_PREFIX", "webhooks"),
		},
		Admin: AdminConfig{
			User:         env.GetEnv("ADMIN_USER", ""),
			PasswordHash: env.GetEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// AllpayClientConfig maps the provider settings onto the billing client.
func (c *Config) AllpayClientConfig() billing.AllpayConfig {
	return billing.AllpayConfig{
		APIURL:   c.Allpay.APIURL,
		Login:    c.Allpay.Login,
		APIKey:   c.Allpay.APIKey,
		Currency: c.Allpay.Currency,
		Lang:     c.Allpay.Lang,
		BaseURL:  c.App.BaseURL,
		Timeout:  c.Allpay.Timeout,
	}
}

// ListenAddr is the host:port fiber listens on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.App.Host, c.App.Port)
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(env.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(env.GetEnv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
