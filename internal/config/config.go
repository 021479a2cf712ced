package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	LLM        LLMConfig        `mapstructure:"llm"`
	ML         MLConfig         `mapstructure:"ml"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Places     PlacesConfig     `mapstructure:"places"`
	Tracking   TrackingConfig   `mapstructure:"tracking"`
	Triage     TriageConfig     `mapstructure:"triage"`
	Assignment AssignmentConfig `mapstructure:"assignment"`
	Review     ReviewConfig     `mapstructure:"review"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

// MigrateURL returns the DSN in the form expected by the pgx/v5 migrate driver
func (c DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(c.DSN(), "postgres")
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// LLMConfig configures the translation and readability model
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"` // gemini, claude, openai
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	EnglishThreshold float64       `mapstructure:"english_threshold"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// MLConfig configures the text classifier service
type MLConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LedgerConfig configures the anchoring service
type LedgerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PlacesConfig configures the nearby-search provider
type PlacesConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TrackingConfig configures tracking ID generation
type TrackingConfig struct {
	Prefix      string `mapstructure:"prefix"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// TriageConfig configures the submission pipeline
type TriageConfig struct {
	DefaultCountry       string `mapstructure:"default_country"`
	MinDescriptionLength int    `mapstructure:"min_description_length"`
}

// AssignmentConfig configures geographic assignment
type AssignmentConfig struct {
	RadiusMeters  int    `mapstructure:"radius_meters"`
	PlaceType     string `mapstructure:"place_type"`
	DistrictsFile string `mapstructure:"districts_file"`
}

// ReviewConfig configures admin and police review updates
type ReviewConfig struct {
	RequireVersion bool `mapstructure:"require_version"`
}

// QueueConfig configures the ledger re-anchor queue
type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
	MaxRetry    int  `mapstructure:"max_retry"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "xpose-triage")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 75*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "xpose")
	v.SetDefault("database.dbname", "xpose")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "xpose:")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "XPOSE_REPORTS")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 30)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("llm.english_threshold", 60.0)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)

	v.SetDefault("ml.url", "http://localhost:8000")
	v.SetDefault("ml.timeout", 15*time.Second)

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.url", "http://localhost:8081")
	v.SetDefault("ledger.timeout", 5*time.Second)

	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.timeout", 10*time.Second)

	v.SetDefault("tracking.prefix", "Xpose")
	v.SetDefault("tracking.max_attempts", 10)

	v.SetDefault("triage.default_country", "India")
	v.SetDefault("triage.min_description_length", 10)

	v.SetDefault("assignment.radius_meters", 20000)
	v.SetDefault("assignment.place_type", "police")

	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.max_retry", 8)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/xpose-triage")
	}

	// Environment variables
	v.SetEnvPrefix("XPOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("redis.host", "XPOSE_REDIS_HOST")
	v.BindEnv("redis.port", "XPOSE_REDIS_PORT")
	v.BindEnv("redis.password", "XPOSE_REDIS_PASSWORD")
	v.BindEnv("database.host", "XPOSE_DATABASE_HOST")
	v.BindEnv("database.port", "XPOSE_DATABASE_PORT")
	v.BindEnv("database.user", "XPOSE_DATABASE_USER")
	v.BindEnv("database.password", "XPOSE_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "XPOSE_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "XPOSE_DATABASE_SSLMODE")
	v.BindEnv("nats.enabled", "XPOSE_NATS_ENABLED")
	v.BindEnv("nats.url", "XPOSE_NATS_URL")
	v.BindEnv("jwt.secret", "XPOSE_JWT_SECRET")
	v.BindEnv("llm.api_key", "XPOSE_LLM_API_KEY")
	v.BindEnv("llm.provider", "XPOSE_LLM_PROVIDER")
	v.BindEnv("ml.url", "XPOSE_ML_URL")
	v.BindEnv("ledger.url", "XPOSE_LEDGER_URL")
	v.BindEnv("places.api_key", "XPOSE_PLACES_API_KEY")
	v.BindEnv("queue.enabled", "XPOSE_QUEUE_ENABLED")
	v.BindEnv("app.environment", "XPOSE_APP_ENVIRONMENT")

	// A missing config file is fine, defaults and env vars still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}
