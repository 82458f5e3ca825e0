package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Session SessionConfig
	Tokens  TokenConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	TTL                  time.Duration `env:"SESSION_TTL,            default=24h"`
	ResolveTimeout       time.Duration `env:"RESOLVE_TIMEOUT,        default=10s"`
	RequireVerifiedEmail bool          `env:"REQUIRE_VERIFIED_EMAIL, default=false"`
	CacheSize            int           `env:"SESSION_CACHE_SIZE,     default=10000"`
	RefreshWorkers       int           `env:"REFRESH_WORKERS,        default=4"`
}

type TokenConfig struct {
	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_TTL, default=24h"`
	ResetTTL        time.Duration `env:"RESET_TOKEN_TTL,        default=1h"`
	BcryptCost      int           `env:"BCRYPT_COST,            default=12"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// IsDevelopment reports whether the service runs with ENV=development.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.Tokens.BcryptCost < bcrypt.MinCost || c.Tokens.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("RESOLVE_TIMEOUT must be positive"))
	}
	if c.Session.CacheSize <= 0 {
		errs = append(errs, errors.New("SESSION_CACHE_SIZE must be positive"))
	}
	if c.Session.RefreshWorkers <= 0 {
		errs = append(errs, errors.New("REFRESH_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
