package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"` // full connection string, wins over the discrete fields
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string. When URL carries no
// database path, DBName is used.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		u, err := url.Parse(d.URL)
		if err != nil || strings.Trim(u.Path, "/") != "" || d.DBName == "" {
			return d.URL
		}
		u.Path = "/" + d.DBName
		return u.String()
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LedgerConfig struct {
	Currency            string        `mapstructure:"currency"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	MinimumPayout       int64         `mapstructure:"minimum_payout"`        // minor units
	LowBalanceThreshold int64         `mapstructure:"low_balance_threshold"` // minor units
	ListLimit           int           `mapstructure:"list_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenExpiry  time.Duration `mapstructure:"token_expiry"`
	Issuer       string        `mapstructure:"issuer"`
	RequireActor bool          `mapstructure:"require_actor"`
	DefaultActor string        `mapstructure:"default_actor"`
}

type EncryptionConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded XChaCha20-Poly1305 key
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from .env, the config file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_DATABASE_URL, LEDGER_CORS_ALLOWED_ORIGINS, etc.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.retry_backoff", "50ms")
	v.SetDefault("ledger.minimum_payout", 2500)
	v.SetDefault("ledger.low_balance_threshold", 2000)
	v.SetDefault("ledger.list_limit", 1000)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("idempotency.ttl", "24h")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", "12h")
	v.SetDefault("auth.issuer", "marketplace-ledger")
	v.SetDefault("auth.require_actor", false)
	v.SetDefault("auth.default_actor", "system")

	v.SetDefault("encryption.key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate reports settings the server cannot start without. Load does not
// call it so tooling can read partial configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Encryption.Key == "" {
		errs = append(errs, errors.New("encryption.key is required"))
	}
	if c.Auth.RequireActor && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth.require_actor is set"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 bytes"))
	}
	if c.Ledger.MinimumPayout < 0 || c.Ledger.LowBalanceThreshold < 0 {
		errs = append(errs, errors.New("ledger amounts must not be negative"))
	}
	return errors.Join(errs...)
}

// loadDotEnv exports variables from a dotenv file without overriding the
// real environment. A missing file is not an error.
func loadDotEnv(file string) error {
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", file, err)
	}
	return nil
}
