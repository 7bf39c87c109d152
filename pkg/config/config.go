package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Content page modes.
const (
	PageModeEstimate = "estimate"
	PageModeExact    = "exact"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	OpenAI        OpenAIConfig
	Content       ContentConfig
	Booking       BookingConfig
	Notifications NotificationsConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OpenAIConfig configures the completion client used by the content features.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

// ContentConfig locates textbook PDFs and tunes summary generation.
type ContentConfig struct {
	RootDir         string
	PageMode        string
	SummaryCacheTTL time.Duration
	MaxPages        int
}

// BookingConfig holds booking defaults.
type BookingConfig struct {
	DefaultTimezone string
}

// NotificationsConfig tunes the notification delivery queue.
type NotificationsConfig struct {
	Workers       int
	MaxRetries    int
	RetryDelay    time.Duration
	SweepSpec     string
	SweepMinAge   time.Duration
	ChannelPrefix string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.OpenAI = OpenAIConfig{
		APIKey:      v.GetString("OPENAI_API_KEY"),
		BaseURL:     strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		Model:       v.GetString("OPENAI_MODEL"),
		Timeout:     parseDuration(v.GetString("OPENAI_TIMEOUT"), 60*time.Second),
		MaxRetries:  v.GetInt("OPENAI_MAX_RETRIES"),
		Temperature: v.GetFloat64("OPENAI_TEMPERATURE"),
	}

	pageMode := strings.ToLower(strings.TrimSpace(v.GetString("CONTENT_PAGE_MODE")))
	if pageMode != PageModeExact {
		pageMode = PageModeEstimate
	}
	cfg.Content = ContentConfig{
		RootDir:         v.GetString("CONTENT_ROOT"),
		PageMode:        pageMode,
		SummaryCacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 24*time.Hour),
		MaxPages:        v.GetInt("CONTENT_MAX_PAGES"),
	}

	cfg.Booking = BookingConfig{
		DefaultTimezone: v.GetString("BOOKING_DEFAULT_TIMEZONE"),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:       v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries:    v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("NOTIFICATIONS_RETRY_DELAY"), 5*time.Second),
		SweepSpec:     v.GetString("NOTIFICATIONS_SWEEP_SPEC"),
		SweepMinAge:   parseDuration(v.GetString("NOTIFICATIONS_SWEEP_MIN_AGE"), time.Minute),
		ChannelPrefix: v.GetString("NOTIFICATIONS_CHANNEL_PREFIX"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ncert_tutor")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "ncert-tutor-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TIMEOUT", "60s")
	v.SetDefault("OPENAI_MAX_RETRIES", 2)
	v.SetDefault("OPENAI_TEMPERATURE", 0.3)

	v.SetDefault("CONTENT_ROOT", "./public/ncert")
	v.SetDefault("CONTENT_PAGE_MODE", PageModeEstimate)
	v.SetDefault("SUMMARY_CACHE_TTL", "24h")
	v.SetDefault("CONTENT_MAX_PAGES", 20)

	v.SetDefault("BOOKING_DEFAULT_TIMEZONE", "UTC")

	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFICATIONS_SWEEP_SPEC", "@every 5m")
	v.SetDefault("NOTIFICATIONS_SWEEP_MIN_AGE", "1m")
	v.SetDefault("NOTIFICATIONS_CHANNEL_PREFIX", "notifications")
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
