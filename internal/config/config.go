package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Gateway drivers.
const (
	GatewayPostgres = "postgres"
	GatewayMemory   = "memory"
)

// Change feed drivers.
const (
	ChangeFeedMemory   = "memory"
	ChangeFeedPostgres = "postgres"
	ChangeFeedRedis    = "redis"
)

// Side-effect modes.
const (
	SideEffectsDirect = "direct"
	SideEffectsOutbox = "outbox"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Gateway     GatewayConfig
	ChangeFeed  ChangeFeedConfig
	SideEffects SideEffectsConfig
	Metrics     MetricsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	ConnectTimeout time.Duration
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// GatewayConfig selects the persistence gateway implementation.
type GatewayConfig struct {
	Driver string
}

// ChangeFeedConfig selects where "table changed" signals come from.
type ChangeFeedConfig struct {
	Driver         string
	Channel        string
	ReconnectDelay time.Duration
}

// SideEffectsConfig controls audit/notification fan-out.
type SideEffectsConfig struct {
	Mode           string
	OutboxSchedule string
	OutboxBatch    int
	MaxAttempts    int
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	defaultDriver := GatewayMemory
	if dsn != "" {
		defaultDriver = GatewayPostgres
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "supportsphere-helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectTimeout: getEnvAsDuration("POSTGRES_CONNECT_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 0),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Gateway: GatewayConfig{
			Driver: getEnv("GATEWAY_DRIVER", defaultDriver),
		},
		ChangeFeed: ChangeFeedConfig{
			Driver:         getEnv("CHANGEFEED_DRIVER", ChangeFeedMemory),
			Channel:        getEnv("CHANGEFEED_CHANNEL", "helpdesk_changes"),
			ReconnectDelay: getEnvAsDuration("CHANGEFEED_RECONNECT_DELAY", 2*time.Second),
		},
		SideEffects: SideEffectsConfig{
			Mode:           getEnv("SIDE_EFFECTS_MODE", SideEffectsOutbox),
			OutboxSchedule: getEnv("OUTBOX_SCHEDULE", "@every 5s"),
			OutboxBatch:    getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			MaxAttempts:    getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and modes.
func (c *Config) Validate() error {
	switch c.Gateway.Driver {
	case GatewayPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("GATEWAY_DRIVER=postgres requires POSTGRES_DSN")
		}
	case GatewayMemory:
	default:
		return fmt.Errorf("unknown GATEWAY_DRIVER %q", c.Gateway.Driver)
	}

	switch c.ChangeFeed.Driver {
	case ChangeFeedMemory, ChangeFeedRedis:
	case ChangeFeedPostgres:
		if c.Gateway.Driver != GatewayPostgres {
			return fmt.Errorf("CHANGEFEED_DRIVER=postgres requires the postgres gateway")
		}
	default:
		return fmt.Errorf("unknown CHANGEFEED_DRIVER %q", c.ChangeFeed.Driver)
	}

	switch c.SideEffects.Mode {
	case SideEffectsDirect, SideEffectsOutbox:
	default:
		return fmt.Errorf("unknown SIDE_EFFECTS_MODE %q", c.SideEffects.Mode)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the JWT lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
