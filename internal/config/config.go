package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Email    EmailConfig
	Confirm  ConfirmConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. Modes: single, sentinel, cluster.
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`
}

// ProviderConfig holds the external OAuth2 provider application settings.
type ProviderConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	ProfileURL   string   `mapstructure:"profile_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// EmailConfig holds outbound email settings.
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// ConfirmConfig holds email-confirmation secret settings.
type ConfirmConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// SessionConfig holds session cookie and lifetime settings.
type SessionConfig struct {
	TTLHours   int    `mapstructure:"ttl_hours"`
	CookieName string `mapstructure:"cookie_name"`
	Secure     bool   `mapstructure:"secure"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// TTL returns the configured session lifetime.
func (s *SessionConfig) TTL() time.Duration {
	hours := s.TTLHours
	if hours <= 0 {
		hours = 24 * 14
	}
	return time.Duration(hours) * time.Hour
}

// Load reads configuration from an optional file plus bound env vars.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("provider.auth_url", "https://www.fitbit.com/oauth2/authorize")
	vip.SetDefault("provider.token_url", "https://api.fitbit.com/oauth2/token")
	vip.SetDefault("provider.profile_url", "https://api.fitbit.com/1/user/-/profile.json")
	vip.SetDefault("provider.scopes", []string{"activity", "profile", "location"})
	vip.SetDefault("confirm.ttl", 24*time.Hour)
	vip.SetDefault("session.ttl_hours", 24*14)
	vip.SetDefault("session.cookie_name", "bdp_session")

	vip.BindEnv("server.port", "SERVER_PORT")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("provider.client_id", "PROVIDER_CLIENT_ID")
	vip.BindEnv("provider.client_secret", "PROVIDER_CLIENT_SECRET")
	vip.BindEnv("provider.auth_url", "PROVIDER_AUTH_URL")
	vip.BindEnv("provider.token_url", "PROVIDER_TOKEN_URL")
	vip.BindEnv("provider.profile_url", "PROVIDER_PROFILE_URL")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "EMAIL_RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("confirm.signing_key", "CONFIRM_SIGNING_KEY")
	vip.BindEnv("confirm.ttl", "CONFIRM_TTL")

	vip.BindEnv("session.ttl_hours", "SESSION_TTL_HOURS")
	vip.BindEnv("session.cookie_name", "SESSION_COOKIE_NAME")
	vip.BindEnv("session.secure", "SESSION_SECURE")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, using env vars and defaults.", configPath)
			} else {
				log.Printf("Warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Provider.ClientID == "" || cfg.Provider.ClientSecret == "" {
		return nil, fmt.Errorf("provider configuration is incomplete (check PROVIDER_CLIENT_ID, PROVIDER_CLIENT_SECRET env vars)")
	}
	if cfg.Confirm.SigningKey == "" {
		return nil, fmt.Errorf("confirmation signing key is required (check CONFIRM_SIGNING_KEY env var)")
	}
	if cfg.Email.Enabled && (cfg.Email.ResendAPIKey == "" || cfg.Email.From == "") {
		return nil, fmt.Errorf("email is enabled but EMAIL_RESEND_API_KEY or EMAIL_FROM is missing")
	}

	return &cfg, nil
}
