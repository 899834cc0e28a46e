package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config contains application configuration
type Config struct {
	RunAddress  string `envconfig:"RUN_ADDRESS" default:":8080"`
	DatabaseURI string `envconfig:"DATABASE_URI"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// StoreBackend is derived from DatabaseURI/RedisAddr when empty
	StoreBackend string `envconfig:"STORE_BACKEND"`

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"2h"`
	AdminTokenTTL time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"4h"`

	TxMaxRetries         int `envconfig:"TX_MAX_RETRIES" default:"10"`
	ReferralCodeAttempts int `envconfig:"REFERRAL_CODE_ATTEMPTS" default:"10"`

	// Timezone defines the server's notion of "today"
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	ReportSchedule string `envconfig:"REPORT_SCHEDULE" default:"@hourly"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

// NewConfig creates a new configuration from environment variables or flags
func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load parses flags from args and lets environment variables override them
func Load(args []string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("rewards", flag.ContinueOnError)
	runAddress := fs.String("a", "", "Server run address")
	databaseURI := fs.String("d", "", "Database URI")
	redisAddr := fs.String("r", "", "Redis address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Flags apply only where the environment is silent
	if *runAddress != "" && os.Getenv("RUN_ADDRESS") == "" {
		cfg.RunAddress = *runAddress
	}
	if *databaseURI != "" && os.Getenv("DATABASE_URI") == "" {
		cfg.DatabaseURI = *databaseURI
	}
	if *redisAddr != "" && os.Getenv("REDIS_ADDR") == "" {
		cfg.RedisAddr = *redisAddr
	}

	if cfg.StoreBackend == "" {
		switch {
		case cfg.DatabaseURI != "":
			cfg.StoreBackend = BackendPostgres
		case cfg.RedisAddr != "":
			cfg.StoreBackend = BackendRedis
		default:
			cfg.StoreBackend = BackendMemory
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.TxMaxRetries <= 0 {
		return errors.New("TX_MAX_RETRIES must be > 0")
	}
	if c.ReferralCodeAttempts <= 0 {
		return errors.New("REFERRAL_CODE_ATTEMPTS must be > 0")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}
