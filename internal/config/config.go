package config

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/personal-bank/personal_bank/internal/account"
)

const (
	defaultAppName           = "PersonalBank"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultNonceTTL          = 24 * time.Hour
	defaultMinBalance        = 100_000
	defaultWithdrawRateLimit = 5
	idemTTLSecondsKey        = "idempotency_ttl_seconds"
	idemTTLDurKey            = "idempotency_ttl"
	shutdownSecondsKey       = "shutdown_timeout_seconds"
	shutdownDurationKey      = "shutdown_timeout"
	devContractSeed          = "personalbank-dev-contract"
)

// Config captures application runtime configuration loaded from environment variables and flags.
type Config struct {
	AppName            string
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	DatabaseURL        string
	RedisURL           string
	ShutdownPeriod     time.Duration
	IdempotencyTTL     time.Duration
	NonceTTL           time.Duration
	ContractAddress    account.Address
	ContractMinBalance uint64
	AuditTokenHash     string
	WithdrawRateLimit  int
}

// NewViper returns a viper instance reading the environment with the defaults applied.
// Keys are lower snake case; APP_ENV is read as app_env.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	v.SetDefault("contract_min_balance", strconv.FormatUint(defaultMinBalance, 10))
	v.SetDefault("withdraw_rate_limit", defaultWithdrawRateLimit)
	v.SetDefault("nonce_ttl", defaultNonceTTL.String())
	v.AutomaticEnv()
	return v
}

// BindFlags registers command line overrides on fs and binds them into v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("env", defaultAppEnv, "runtime environment (development, staging, production)")
	fs.StringP("port", "p", defaultPort, "HTTP listen port")
	fs.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", defaultLogFormat, "log format (json, text)")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.String("redis-url", "", "Redis connection string")

	bindings := map[string]string{
		"app_env":      "env",
		"port":         "port",
		"log_level":    "log-level",
		"log_format":   "log-format",
		"database_url": "database-url",
		"redis_url":    "redis-url",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	return FromViper(NewViper())
}

// FromViper populates a Config from v and validates it.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppName:           v.GetString("app_name"),
		AppEnv:            strings.ToLower(v.GetString("app_env")),
		Port:              v.GetString("port"),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
		DatabaseURL:       v.GetString("database_url"),
		RedisURL:          v.GetString("redis_url"),
		AuditTokenHash:    v.GetString("audit_token_hash"),
		WithdrawRateLimit: v.GetInt("withdraw_rate_limit"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, shutdownSecondsKey, shutdownDurationKey, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, idemTTLSecondsKey, idemTTLDurKey, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.NonceTTL, err = time.ParseDuration(v.GetString("nonce_ttl")); err != nil {
		return Config{}, fmt.Errorf("invalid NONCE_TTL: %w", err)
	}

	minBalance, err := strconv.ParseUint(v.GetString("contract_min_balance"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid CONTRACT_MIN_BALANCE: %w", err)
	}
	cfg.ContractMinBalance = minBalance

	if raw := v.GetString("contract_address"); raw != "" {
		addr, err := account.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CONTRACT_ADDRESS: %w", err)
		}
		cfg.ContractAddress = addr
	} else if cfg.IsDev() {
		cfg.ContractAddress = DevContractAddress()
	} else {
		return Config{}, fmt.Errorf("CONTRACT_ADDRESS must be set when APP_ENV=%s", cfg.AppEnv)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the in-memory backends and development endpoints are allowed.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// DevContractAddress is the fixed contract account used when none is configured in development.
func DevContractAddress() account.Address {
	seed := sha256.Sum256([]byte(devContractSeed))
	key := ed25519.NewKeyFromSeed(seed[:])
	addr, err := account.FromKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		panic(err)
	}
	return addr
}

// duration reads a TTL given either in whole seconds or as a Go duration string; seconds win.
func duration(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if s := v.GetString(secondsKey); s != "" {
		seconds, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(secondsKey), err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if s := v.GetString(durationKey); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(durationKey), err)
		}
		return d, nil
	}
	return fallback, nil
}
