package config

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Busy-range sources.
const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Booking      BookingConfig
	Availability AvailabilityConfig
	Scheduling   SchedulingConfig
	Notify       NotifyConfig
	Feeds        FeedsConfig
	Refresh      RefreshConfig
	RateLimit    RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify tokens minted by the booking service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig points at the external event/booking REST API.
type BookingConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AvailabilityConfig selects the busy-range source and cache behaviour.
type AvailabilityConfig struct {
	Source       string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// SchedulingConfig carries the client-facing scheduling policy.
type SchedulingConfig struct {
	MinDuration     time.Duration
	DefaultDuration time.Duration
	NoticeDismiss   time.Duration
}

// NotifyConfig configures the real-time staleness stream.
type NotifyConfig struct {
	Enabled    bool
	StreamURL  string
	MaxRetries int
	RetryBase  time.Duration
}

// FeedsConfig lists external ICS subscriptions keyed by user id.
type FeedsConfig struct {
	Enabled     bool
	Subscribed  map[string][]string
	RefreshCron string
	HorizonDays int
	CacheDir    string
}

// RefreshConfig sizes the invalidation worker pool.
type RefreshConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// RateLimitConfig throttles availability requests per user. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Location resolves the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		BaseURL: strings.TrimRight(v.GetString("BOOKING_API_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("BOOKING_API_TIMEOUT"), 10*time.Second),
	}

	source := strings.ToLower(strings.TrimSpace(v.GetString("BUSY_SOURCE")))
	if source != SourcePostgres {
		source = SourceREST
	}
	cfg.Availability = AvailabilityConfig{
		Source:       source,
		CacheEnabled: v.GetBool("ENABLE_AVAILABILITY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Scheduling = SchedulingConfig{
		MinDuration:     parseDuration(v.GetString("SCHEDULING_MIN_DURATION"), 5*time.Minute),
		DefaultDuration: parseDuration(v.GetString("SCHEDULING_DEFAULT_DURATION"), 30*time.Minute),
		NoticeDismiss:   parseDuration(v.GetString("SCHEDULING_NOTICE_DISMISS"), 2500*time.Millisecond),
	}

	cfg.Notify = NotifyConfig{
		Enabled:    v.GetBool("ENABLE_NOTIFY"),
		StreamURL:  v.GetString("NOTIFY_STREAM_URL"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryBase:  parseDuration(v.GetString("NOTIFY_RETRY_BASE"), time.Second),
	}

	cfg.Feeds = FeedsConfig{
		Enabled:     v.GetBool("ENABLE_CALENDAR_FEEDS"),
		Subscribed:  parseFeeds(v.GetString("CALENDAR_FEEDS")),
		RefreshCron: v.GetString("CALENDAR_REFRESH_CRON"),
		HorizonDays: v.GetInt("CALENDAR_HORIZON_DAYS"),
		CacheDir:    v.GetString("CALENDAR_CACHE_DIR"),
	}

	cfg.Refresh = RefreshConfig{
		Workers:    v.GetInt("REFRESH_WORKERS"),
		BufferSize: v.GetInt("REFRESH_BUFFER_SIZE"),
		MaxRetries: v.GetInt("REFRESH_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("REFRESH_RETRY_DELAY"), time.Second),
	}

	cfg.RateLimit = RateLimitConfig{
		RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		Burst: v.GetInt("RATE_LIMIT_BURST"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8090)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "slotswap")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKING_API_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("BOOKING_API_TIMEOUT", "10s")

	v.SetDefault("BUSY_SOURCE", SourceREST)
	v.SetDefault("ENABLE_AVAILABILITY_CACHE", false)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "2m")

	v.SetDefault("SCHEDULING_MIN_DURATION", "5m")
	v.SetDefault("SCHEDULING_DEFAULT_DURATION", "30m")
	v.SetDefault("SCHEDULING_NOTICE_DISMISS", "2500ms")

	v.SetDefault("ENABLE_NOTIFY", false)
	v.SetDefault("NOTIFY_STREAM_URL", "")
	v.SetDefault("NOTIFY_MAX_RETRIES", 5)
	v.SetDefault("NOTIFY_RETRY_BASE", "1s")

	v.SetDefault("ENABLE_CALENDAR_FEEDS", false)
	v.SetDefault("CALENDAR_FEEDS", "")
	v.SetDefault("CALENDAR_REFRESH_CRON", "*/15 * * * *")
	v.SetDefault("CALENDAR_HORIZON_DAYS", 60)
	v.SetDefault("CALENDAR_CACHE_DIR", "./var/ics-cache")

	v.SetDefault("REFRESH_WORKERS", 2)
	v.SetDefault("REFRESH_BUFFER_SIZE", 64)
	v.SetDefault("REFRESH_MAX_RETRIES", 3)
	v.SetDefault("REFRESH_RETRY_DELAY", "1s")

	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseFeeds reads "user-1=https://a.ics,user-1=https://b.ics,user-2=https://c.ics".
func parseFeeds(raw string) map[string][]string {
	feeds := make(map[string][]string)
	for _, entry := range splitAndTrim(raw) {
		user, url, ok := strings.Cut(entry, "=")
		user = strings.TrimSpace(user)
		url = strings.TrimSpace(url)
		if !ok || user == "" || url == "" {
			continue
		}
		feeds[user] = append(feeds[user], url)
	}
	return feeds
}
