package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongoDB  = "mongodb"
)

// Attachment drivers
const (
	AttachmentDriverNone       = "none"
	AttachmentDriverFilesystem = "filesystem"
	AttachmentDriverMinio      = "minio"
)

// Config holds all configuration for the service
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	ML          MLConfig          `mapstructure:"ml"`
	History     HistoryConfig     `mapstructure:"history"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Events      EventsConfig      `mapstructure:"events"`
	Retention   RetentionConfig   `mapstructure:"retention"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	MongoDB  MongoConfig    `mapstructure:"mongodb"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MLConfig points at the two externally hosted prediction services.
// An empty URL disables the corresponding proxy.
type MLConfig struct {
	CalibrationURL    string        `mapstructure:"calibration_url"`
	RecommendationURL string        `mapstructure:"recommendation_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type AttachmentsConfig struct {
	Driver           string      `mapstructure:"driver"`
	BasePath         string      `mapstructure:"base_path"`
	MaxFileSize      int64       `mapstructure:"max_file_size"`
	AllowedMimeTypes []string    `mapstructure:"allowed_mime_types"`
	Minio            MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Location  string `mapstructure:"location"`
	Secure    bool   `mapstructure:"secure"`
}

type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// RetentionConfig controls the background sweeper. A zero MaxAge disables it.
type RetentionConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load initializes configuration from .env, environment variables and config file
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SITRAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Store defaults
	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "sitras")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "pupuk_sdlp")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.sqlite.path", "sitras.db")
	v.SetDefault("store.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongodb.database", "pupuk-sdlp")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")

	// ML defaults
	v.SetDefault("ml.calibration_url", "https://sauqing-api-ml-sitras.hf.space/predict")
	v.SetDefault("ml.recommendation_url", "https://sauqing-api-ml-sitras.hf.space/predict_rekomendasi")
	v.SetDefault("ml.timeout", "5s")

	// History defaults
	v.SetDefault("history.default_limit", 50)
	v.SetDefault("history.max_limit", 1000)

	// Attachment defaults
	v.SetDefault("attachments.driver", AttachmentDriverNone)
	v.SetDefault("attachments.base_path", "./data/attachments")
	v.SetDefault("attachments.max_file_size", 10*1024*1024) // 10MB
	v.SetDefault("attachments.allowed_mime_types", []string{
		"application/pdf", "image/jpeg", "image/png", "text/plain", "text/csv",
	})
	v.SetDefault("attachments.minio.endpoint", "localhost:9000")
	v.SetDefault("attachments.minio.access_key", "")
	v.SetDefault("attachments.minio.secret_key", "")
	v.SetDefault("attachments.minio.bucket", "manual-attachments")
	v.SetDefault("attachments.minio.location", "")
	v.SetDefault("attachments.minio.secure", false)

	// Events defaults
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "sitras.events")

	// Retention defaults
	v.SetDefault("retention.max_age", "0s")
	v.SetDefault("retention.interval", "1h")
}

func validateConfig(config *Config) error {
	switch config.Store.Driver {
	case StoreDriverPostgres:
		if config.Store.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
	case StoreDriverSQLite:
		if config.Store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StoreDriverMongoDB:
		if config.Store.MongoDB.URI == "" || config.Store.MongoDB.Database == "" {
			return fmt.Errorf("mongodb uri and database are required")
		}
	default:
		return fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	switch config.Attachments.Driver {
	case AttachmentDriverNone, AttachmentDriverFilesystem:
	case AttachmentDriverMinio:
		if config.Attachments.Minio.Endpoint == "" || config.Attachments.Minio.Bucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unknown attachments driver %q", config.Attachments.Driver)
	}

	if config.ML.Timeout <= 0 {
		return fmt.Errorf("ml timeout must be positive")
	}
	if config.History.DefaultLimit <= 0 || config.History.MaxLimit < config.History.DefaultLimit {
		return fmt.Errorf("history limits are inconsistent")
	}
	if config.Retention.MaxAge > 0 && config.Retention.Interval <= 0 {
		return fmt.Errorf("retention interval must be positive when max_age is set")
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
