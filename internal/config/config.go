package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendSQLite   = "sqlite"

	AssetBackendLocal = "local"
	AssetBackendS3    = "s3"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort     string        `env:"SERVER_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Реляционное хранилище: postgres (sqlx) или sqlite (gorm)
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"proofgallery.db"`

	// Хранилище файлов: local или s3 (MinIO)
	AssetBackend string `env:"ASSET_BACKEND" envDefault:"local"`
	AssetDir     string `env:"ASSET_DIR" envDefault:"uploads"`

	// Настройки для MinIO
	MinioEndpoint        string `env:"MINIO_ENDPOINT"`
	MinioAccessKeyID     string `env:"MINIO_ACCESS_KEY_ID"`
	MinioSecretAccessKey string `env:"MINIO_SECRET_ACCESS_KEY"`
	MinioUseSSL          bool   `env:"MINIO_USE_SSL"`
	MinioBucketName      string `env:"MINIO_BUCKET_NAME"`
	MinioRegion          string `env:"MINIO_REGION" envDefault:"us-east-1"`

	Auth struct {
		JWTSecret          string        `env:"JWT_SECRET,required"`
		TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
		SuperAdminEmail    string        `env:"SUPER_ADMIN_EMAIL"`
		SuperAdminPassword string        `env:"SUPER_ADMIN_PASSWORD"`
	}

	Watermark struct {
		Text         string        `env:"WATERMARK_TEXT" envDefault:"DA'PERFECT STUDIOS"`
		MaxDimension int           `env:"PREVIEW_MAX_DIMENSION" envDefault:"1920"`
		Quality      int           `env:"PREVIEW_QUALITY" envDefault:"80"`
		Timeout      time.Duration `env:"WATERMARK_TIMEOUT" envDefault:"30s"`
		MaxPixels    int           `env:"PREVIEW_MAX_PIXELS" envDefault:"50000000"`
	}

	Upload struct {
		MaxBytes     int64         `env:"UPLOAD_MAX_BYTES" envDefault:"52428800"`
		MaxFiles     int           `env:"UPLOAD_MAX_FILES" envDefault:"50"`
		Concurrency  int           `env:"UPLOAD_CONCURRENCY" envDefault:"5"`
		BatchTimeout time.Duration `env:"UPLOAD_BATCH_TIMEOUT" envDefault:"10m"`
	}

	RabbitMQ struct {
		RabbitMQURL       string `env:"RABBITMQ_URL"`
		RabbitMQQueueName string `env:"RABBITMQ_QUEUE_NAME" envDefault:"notifications"`
	}

	SMTP struct {
		Host     string `env:"SMTP_HOST"`
		Port     int    `env:"SMTP_PORT" envDefault:"587"`
		User     string `env:"SMTP_USER"`
		Password string `env:"SMTP_PASS"`
		From     string `env:"SMTP_FROM" envDefault:"Da'perfect Studios <noreply@daperfect.com>"`
	}
}

// LoadConfig загружает конфигурацию из переменных окружения.
// В режиме разработки пытается загрузить .env файл.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации из окружения: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет зависимости между полями, которые не выражаются тегами
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	switch c.StorageBackend {
	case StorageBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage backend %q", c.StorageBackend)
		}
	case StorageBackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for storage backend %q", c.StorageBackend)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (use %q or %q)", c.StorageBackend, StorageBackendPostgres, StorageBackendSQLite)
	}

	switch c.AssetBackend {
	case AssetBackendLocal:
	case AssetBackendS3:
		if c.MinioEndpoint == "" || c.MinioAccessKeyID == "" || c.MinioSecretAccessKey == "" || c.MinioBucketName == "" {
			return fmt.Errorf("MinIO credentials (MINIO_ENDPOINT, MINIO_ACCESS_KEY_ID, MINIO_SECRET_ACCESS_KEY, MINIO_BUCKET_NAME) must be set for asset backend %q", c.AssetBackend)
		}
	default:
		return fmt.Errorf("unknown ASSET_BACKEND %q (use %q or %q)", c.AssetBackend, AssetBackendLocal, AssetBackendS3)
	}

	if c.Watermark.MaxDimension <= 0 {
		return fmt.Errorf("PREVIEW_MAX_DIMENSION must be positive")
	}
	if c.Watermark.Quality < 1 || c.Watermark.Quality > 100 {
		return fmt.Errorf("PREVIEW_QUALITY must be within 1..100")
	}
	if c.Watermark.MaxPixels <= 0 {
		return fmt.Errorf("PREVIEW_MAX_PIXELS must be positive")
	}
	if c.Upload.Concurrency <= 0 {
		c.Upload.Concurrency = 1
	}
	return nil
}
