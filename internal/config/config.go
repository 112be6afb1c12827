package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PORTUNUS"

type Config struct {
	Env         string            `mapstructure:"env"          validate:"oneof=dev prod"`
	LogLevel    string            `mapstructure:"log_level"    validate:"oneof=debug info warn error"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	DB          DBConfig          `mapstructure:"db"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Broker      BrokerConfig      `mapstructure:"broker"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Decision    DecisionConfig    `mapstructure:"decision"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// Per-checkpoint limit on POST /v1/access/decide.  0 disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	RateBurst     int     `mapstructure:"rate_burst"      validate:"gte=0"`
}

type GRPCConfig struct {
	// Empty disables the gRPC listener.
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type AuditConfig struct {
	// Empty keeps the audit trail in memory.
	PostgresURL   string        `mapstructure:"postgres_url"   validate:"omitempty,url"`
	Retention     time.Duration `mapstructure:"retention"      validate:"gt=0"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"      validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
}

type BrokerConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	Backoff     time.Duration `mapstructure:"backoff"      validate:"gte=0"`
	Buffer      int           `mapstructure:"buffer"       validate:"gte=1"`
}

type QueueConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

type DecisionConfig struct {
	// IANA zone name that opening hours are expressed in.
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// Location resolves Decision.Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Decision.Timezone)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("env", "dev")
	vip.SetDefault("log_level", "info")

	vip.SetDefault("http.addr", ":8080")
	vip.SetDefault("http.rate_per_second", 20.0)
	vip.SetDefault("http.rate_burst", 40)

	vip.SetDefault("grpc.addr", ":9090")

	vip.SetDefault("db.path", "./data/portunus-access.db")

	vip.SetDefault("audit.postgres_url", "")
	vip.SetDefault("audit.retention", "8760h")
	vip.SetDefault("audit.purge_interval", "1h")

	vip.SetDefault("idempotency.ttl", "168h")

	vip.SetDefault("cache.default_ttl", "5m")
	vip.SetDefault("cache.cleanup_interval", "1m")

	vip.SetDefault("broker.max_attempts", 5)
	vip.SetDefault("broker.backoff", "500ms")
	vip.SetDefault("broker.buffer", 1024)

	vip.SetDefault("queue.poll_interval", "250ms")

	vip.SetDefault("decision.timezone", "UTC")
}

// Load reads configuration from an optional YAML file and PORTUNUS_*
// environment variables, after loading a .env file from the working
// directory when one exists.  Nested keys map to env names with "_", so
// audit.postgres_url is PORTUNUS_AUDIT_POSTGRES_URL.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("portunus")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("config validation failed: decision.timezone: %w", err)
	}

	return &cfg, nil
}
