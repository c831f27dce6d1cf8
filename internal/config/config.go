package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Stats    StatsConfig
	Filter   FilterConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
	StreamHeartbeatSec    int
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
	SlowQueryMS    int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	DialTimeoutMS int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
	// Stderr sends entries to stderr, keeping stdout for command output.
	Stderr bool
}

// AuthConfig defines how hosted-auth bearer tokens are verified.
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
	AdminRoles  []string
}

// RealtimeSource selects where change events come from.
type RealtimeSource string

const (
	RealtimeSourcePostgres RealtimeSource = "postgres"
	RealtimeSourceRedis    RealtimeSource = "redis"
	RealtimeSourceLocal    RealtimeSource = "local"
)

// channelPattern accepts unquoted Postgres identifiers, which are also valid Redis channels.
var channelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// RealtimeConfig configures the change notifier.
type RealtimeConfig struct {
	Source        RealtimeSource
	Channel       string
	MinIntervalMS int
}

// StatsConfig configures aggregate windows and the status count cache.
type StatsConfig struct {
	WeeklyWindowDays int
	Months           int
	CacheKey         string
	RecentLimit      int
}

// FilterConfig points at the department keyword rules.
type FilterConfig struct {
	DepartmentRulesFile string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	source := RealtimeSource(strings.ToLower(getEnv("REALTIME_SOURCE", string(RealtimeSourcePostgres))))
	switch source {
	case RealtimeSourcePostgres, RealtimeSourceRedis, RealtimeSourceLocal:
	default:
		return nil, fmt.Errorf("invalid REALTIME_SOURCE: %q", source)
	}

	channel := getEnv("REALTIME_CHANNEL", "report_changes")
	if !channelPattern.MatchString(channel) {
		return nil, fmt.Errorf("invalid REALTIME_CHANNEL: %q", channel)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "civic-triage-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
			StreamHeartbeatSec:    getEnvAsInt("STREAM_HEARTBEAT_SECONDS", 25),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			SlowQueryMS:    getEnvAsInt("POSTGRES_SLOW_QUERY_MS", 500),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			PoolSize:      getEnvAsInt("REDIS_POOL_SIZE", 0),
			DialTimeoutMS: getEnvAsInt("REDIS_DIAL_TIMEOUT_MS", 2000),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTAudience: getEnv("AUTH_JWT_AUDIENCE", "authenticated"),
			AdminRoles:  getEnvAsList("AUTH_ADMIN_ROLES", []string{"admin"}),
		},
		Realtime: RealtimeConfig{
			Source:        source,
			Channel:       channel,
			MinIntervalMS: getEnvAsInt("REALTIME_MIN_INTERVAL_MS", 250),
		},
		Stats: StatsConfig{
			WeeklyWindowDays: getEnvAsInt("STATS_WEEKLY_WINDOW_DAYS", 7),
			Months:           getEnvAsInt("STATS_MONTHS", 6),
			CacheKey:         getEnv("STATS_CACHE_KEY", "triage:status_counts"),
			RecentLimit:      getEnvAsInt("STATS_RECENT_LIMIT", 10),
		},
		Filter: FilterConfig{
			DepartmentRulesFile: os.Getenv("DEPARTMENT_RULES_FILE"),
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
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// StreamHeartbeat returns the keep-alive interval for event streams.
func (a AppConfig) StreamHeartbeat() time.Duration {
	if a.StreamHeartbeatSec <= 0 {
		return 0
	}
	return time.Duration(a.StreamHeartbeatSec) * time.Second
}

// MinInterval returns the minimum spacing between refresh callbacks.
func (r RealtimeConfig) MinInterval() time.Duration {
	if r.MinIntervalMS <= 0 {
		return 0
	}
	return time.Duration(r.MinIntervalMS) * time.Millisecond
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
