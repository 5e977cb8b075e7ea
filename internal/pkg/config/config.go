package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port          string `env:"PORT,            default=8080"`
	Env           string `env:"ENV,             default=development"`
	LogLevel      string `env:"LOG_LEVEL,       default=info"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:8080"`
	StoreDriver   string `env:"STORE_DRIVER,    default=mongo"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET, required"`
	JWTExpiresIn  time.Duration `env:"JWT_EXPIRES_IN,          default=2160h"`
	BcryptCost    int           `env:"BCRYPT_COST,             default=12"`
	HashWorkers   int           `env:"HASH_WORKERS,            default=4"`
	OpTimeout     time.Duration `env:"AUTH_OPERATION_TIMEOUT,  default=5s"`
	ResetTTL      time.Duration `env:"PASSWORD_RESET_TTL,      default=10m"`
	ResetCooldown time.Duration `env:"PASSWORD_RESET_COOLDOWN, default=1m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=natours"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// SMTPConfig leaves Host empty by default, which selects the logging mailer.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,  default=2525"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"EMAIL_FROM, default=Natours <hello@natours.io>"`
}

type RateLimitConfig struct {
	PerHour int `env:"RATE_LIMIT_PER_HOUR, default=100"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver)
	}
	if len(c.Auth.JWTSecret) < 32 && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development")
	}
	if c.Auth.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		return fmt.Errorf("PASSWORD_RESET_TTL must be positive")
	}
	if c.RateLimit.PerHour <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive")
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
