package config

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Calendar Calendar `yaml:"calendar"`
	Sessions Sessions `yaml:"sessions"`
	Database Database `yaml:"database"`
	S3       S3       `yaml:"s3"`
	Log      Log      `yaml:"log"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"45s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// Upstream holds the remote dashboard API configuration
type Upstream struct {
	BaseURL string        `yaml:"base_url" env:"UPSTREAM_BASE_URL" env-default:"http://localhost:8000/api"`
	Timeout time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" env-default:"30s"`
}

// Calendar holds calendar grid configuration
type Calendar struct {
	FirstDayOfWeek string `yaml:"first_day_of_week" env:"CALENDAR_FIRST_DAY_OF_WEEK" env-default:"sunday"`
	TimeZone       string `yaml:"time_zone" env:"CALENDAR_TIME_ZONE" env-default:"UTC"`
	MemoSize       int    `yaml:"memo_size" env:"CALENDAR_MEMO_SIZE" env-default:"256"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday parses FirstDayOfWeek
func (c Calendar) Weekday() (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(c.FirstDayOfWeek))]
	if !ok {
		return time.Sunday, fmt.Errorf("invalid first day of week %q", c.FirstDayOfWeek)
	}
	return d, nil
}

// Location loads TimeZone
func (c Calendar) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Sessions holds analytics page session configuration
type Sessions struct {
	IdleTTL         time.Duration `yaml:"idle_ttl" env:"SESSIONS_IDLE_TTL" env-default:"30m"`
	JanitorEnabled  bool          `yaml:"janitor_enabled" env:"SESSIONS_JANITOR_ENABLED" env-default:"true"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"SESSIONS_JANITOR_INTERVAL" env-default:"1m"`
}

// Database holds database configuration. The state store falls back to memory when the DSN is empty.
type Database struct {
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`

	MaxConns int32 `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MinConns int32 `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"1"`
}

// S3 holds S3/MinIO snapshot archive configuration
type S3 struct {
	Enabled         bool   `yaml:"enabled" env:"S3_ENABLED" env-default:"false"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"analytics-snapshots"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Prefix          string `yaml:"prefix" env:"S3_PREFIX" env-default:"analytics"`
}

// Log holds logging configuration
type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// SlogLevel parses Level, defaulting to info
func (l Log) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks values cleanenv cannot check by itself
func (c Config) Validate() error {
	if _, err := c.Calendar.Weekday(); err != nil {
		return err
	}
	if _, err := c.Calendar.Location(); err != nil {
		return err
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base url is required")
	}
	return nil
}

// MustLoad loads configuration from environment and panics on error
func MustLoad() Config {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
