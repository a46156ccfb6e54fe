package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Stripe   StripeConfig   `yaml:"stripe"`
	JWT      JWTConfig      `yaml:"jwt"`
	Trial    TrialConfig    `yaml:"trial"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis configuration for the ephemeral session store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds object storage configuration. Endpoint supports
// S3-compatible providers (e.g. Cloudflare R2).
type StorageConfig struct {
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// OpenAIConfig holds vision model configuration
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	ValidationModel string `yaml:"validation_model"`
	AnalysisModel   string `yaml:"analysis_model"`
}

// StripeConfig holds billing webhook configuration
type StripeConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// TrialConfig holds trial window configuration
type TrialConfig struct {
	Days int `yaml:"days"`
}

// SessionConfig holds ephemeral session configuration
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Trial.Days == 0 {
		cfg.Trial.Days = 7
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 60
	}
	if cfg.OpenAI.ValidationModel == "" {
		cfg.OpenAI.ValidationModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.AnalysisModel == "" {
		cfg.OpenAI.AnalysisModel = "gpt-4o"
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the database URL used by golang-migrate
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode)
}

// TTL returns the ephemeral session lifetime
func (c *SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}
