package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Store        StoreConfig
	Dispatch     DispatchConfig
	SLA          SLAConfig
	Notification NotificationConfig
	Cache        CacheConfig
	Dashboard    DashboardConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	RealtimeChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// StoreConfig bounds every store call.
type StoreConfig struct {
	TimeoutSeconds int
	StaffSeedFile  string
}

// DispatchConfig tunes resolver selection.
type DispatchConfig struct {
	AutoAssign     bool
	RequireCheckIn bool
}

// SLAConfig points at the threshold policy and worker cadence.
type SLAConfig struct {
	PolicyFile               string
	ScanIntervalSeconds      int
	AutoCloseGraceHours      int
	AutoCloseIntervalSeconds int
}

// NotificationConfig holds fan-out settings.
type NotificationConfig struct {
	DebounceSeconds int
}

// CacheConfig sizes the read-through cache.
type CacheConfig struct {
	TTLSeconds int
	MaxEntries int
}

// DashboardConfig bounds the initial board load.
type DashboardConfig struct {
	LoadTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "facility-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			RealtimeChannel: getEnv("REDIS_REALTIME_CHANNEL", "facility:realtime"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Store: StoreConfig{
			TimeoutSeconds: getEnvAsInt("STORE_TIMEOUT_SECONDS", 5),
			StaffSeedFile:  os.Getenv("STAFF_SEED_FILE"),
		},
		Dispatch: DispatchConfig{
			AutoAssign:     getEnvAsBool("DISPATCH_AUTO_ASSIGN", true),
			RequireCheckIn: getEnvAsBool("DISPATCH_REQUIRE_CHECK_IN", true),
		},
		SLA: SLAConfig{
			PolicyFile:               os.Getenv("SLA_POLICY_FILE"),
			ScanIntervalSeconds:      getEnvAsInt("SLA_SCAN_INTERVAL_SECONDS", 60),
			AutoCloseGraceHours:      getEnvAsInt("AUTO_CLOSE_GRACE_HOURS", 72),
			AutoCloseIntervalSeconds: getEnvAsInt("AUTO_CLOSE_INTERVAL_SECONDS", 900),
		},
		Notification: NotificationConfig{
			DebounceSeconds: getEnvAsInt("NOTIFY_DEBOUNCE_SECONDS", 60),
		},
		Cache: CacheConfig{
			TTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 120),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 512),
		},
		Dashboard: DashboardConfig{
			LoadTimeoutSeconds: getEnvAsInt("DASHBOARD_LOAD_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// Timeout returns the per-call store deadline.
func (s StoreConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

// ScanInterval returns the breach scan cadence.
func (s SLAConfig) ScanInterval() time.Duration {
	return seconds(s.ScanIntervalSeconds)
}

// AutoCloseGrace returns how long a resolved ticket waits before closing.
func (s SLAConfig) AutoCloseGrace() time.Duration {
	if s.AutoCloseGraceHours <= 0 {
		return 0
	}
	return time.Duration(s.AutoCloseGraceHours) * time.Hour
}

// AutoCloseInterval returns the auto-close sweep cadence.
func (s SLAConfig) AutoCloseInterval() time.Duration {
	return seconds(s.AutoCloseIntervalSeconds)
}

// Debounce returns the duplicate suppression window.
func (n NotificationConfig) Debounce() time.Duration {
	return seconds(n.DebounceSeconds)
}

// TTL returns the cache freshness window.
func (c CacheConfig) TTL() time.Duration {
	return seconds(c.TTLSeconds)
}

// LoadTimeout returns the dashboard initial load bound.
func (d DashboardConfig) LoadTimeout() time.Duration {
	return seconds(d.LoadTimeoutSeconds)
}

func seconds(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
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
