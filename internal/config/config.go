package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"propertyhub/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Search      SearchConfig    `yaml:"search"`
	Storage     StorageConfig   `yaml:"storage"`
	Redis       RedisConfig     `yaml:"redis"`
	Auth        AuthConfig      `yaml:"auth"`
	Mail        MailConfig      `yaml:"mail"`
	WhatsApp    WhatsAppConfig  `yaml:"whatsapp"`
	Social      SocialConfig    `yaml:"social"`
	Booking     BookingConfig   `yaml:"booking"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Cache       CacheConfig     `yaml:"cache"`
	Logging     logging.Config  `yaml:"logging"`
	FrontendURL string          `yaml:"frontend_url"`
	PageSize    int             `yaml:"page_size"`
	Timezone    string          `yaml:"timezone"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	CORSOrigins            []string `yaml:"cors_origins"`
	SecureCookies          bool     `yaml:"secure_cookies"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	MaxUploadMB            int64    `yaml:"max_upload_mb"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// StorageConfig contains GridFS settings
type StorageConfig struct {
	MongoURI      string `yaml:"mongo_uri"`
	Database      string `yaml:"database"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// RedisConfig contains Redis settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig contains session token settings
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// MailConfig contains SMTP settings
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WhatsAppConfig contains chat gateway settings
type WhatsAppConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Sender  string `yaml:"sender"`
}

// SocialConfig contains Facebook page settings
type SocialConfig struct {
	GraphURL           string `yaml:"graph_url"`
	PageID             string `yaml:"page_id"`
	AppID              string `yaml:"app_id"`
	AppSecret          string `yaml:"app_secret"`
	UserToken          string `yaml:"user_token"`
	PageToken          string `yaml:"page_token"`
	PreferStoredPostID bool   `yaml:"prefer_stored_post_id"`
}

// BookingConfig contains side effect and contact settings
type BookingConfig struct {
	SideEffectTimeoutSeconds int    `yaml:"side_effect_timeout_seconds"`
	PhoneRegion              string `yaml:"phone_region"`
	NotifyConcurrency        int    `yaml:"notify_concurrency"`
}

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day"`
}

// SchedulerConfig contains cron job settings
type SchedulerConfig struct {
	TokenRenewalEnabled bool   `yaml:"token_renewal_enabled"`
	TokenRenewalTime    string `yaml:"token_renewal_time"`
	ReindexEnabled      bool   `yaml:"reindex_enabled"`
	ReindexTime         string `yaml:"reindex_time"`
}

// CacheConfig contains the listing cache settings
type CacheConfig struct {
	MaxEntries int64 `yaml:"max_entries"`
	TTLSeconds int   `yaml:"ttl_seconds"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8084",
			CORSOrigins:            []string{"http://localhost:3000"},
			ShutdownTimeoutSeconds: 15,
			MaxUploadMB:            20,
		},
		Database: DatabaseConfig{
			Type: "mysql",
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "propertyhub",
				Database: "propertyhub",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "propertyhub",
				Database: "propertyhub",
				SSLMode:  "disable",
			},
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{Host: "http://localhost:7700"},
		},
		Storage: StorageConfig{
			MongoURI:      "mongodb://localhost:27017",
			Database:      "propertyhub",
			Bucket:        "images",
			PublicBaseURL: "http://localhost:8084",
		},
		Auth: AuthConfig{TokenTTLHours: 24},
		Mail: MailConfig{Port: "587"},
		Social: SocialConfig{
			GraphURL:           "https://graph.facebook.com/v19.0",
			PreferStoredPostID: true,
		},
		Booking: BookingConfig{
			SideEffectTimeoutSeconds: 10,
			PhoneRegion:              "AR",
			NotifyConcurrency:        4,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			RequestsPerHour:   600,
			RequestsPerDay:    5000,
		},
		Scheduler: SchedulerConfig{
			TokenRenewalEnabled: false,
			TokenRenewalTime:    "03:00",
			ReindexEnabled:      true,
			ReindexTime:         "04:00",
		},
		Cache:    CacheConfig{MaxEntries: 1000, TTLSeconds: 300},
		Logging:  logging.Config{Level: "info", Format: "json"},
		PageSize: 10,
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	return nil
}

// SideEffectTimeout returns the bound on each best-effort effect
func (c *BookingConfig) SideEffectTimeout() time.Duration {
	return time.Duration(c.SideEffectTimeoutSeconds) * time.Second
}

// TokenTTL returns the session lifetime
func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// ShutdownTimeout returns how long the server drains on shutdown
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// TTL returns the listing cache entry lifetime
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
