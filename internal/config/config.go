package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Media       MediaConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	AccessSecret string
	AccessTTL    time.Duration
	Issuer       string
}

type RedisConfig struct {
	Addr             string // пустой адрес отключает Redis-коллабораторов
	Password         string
	DB               int
	SnapshotTTL      time.Duration
	SnapshotInterval time.Duration
}

type MediaConfig struct {
	UploadDir       string
	ThumbnailDir    string
	TempDir         string
	MaxFileSize     int64
	ThumbnailSize   int
	Workers         int
	UploadTimeout   time.Duration
	UploadRateLimit int // запросов в минуту на клиента, 0 - без лимита

	ImageExtensions []string
	VideoExtensions []string
	AudioExtensions []string
	// AllowedExtensions - явный allow-list; пустой список разрешает все
	AllowedExtensions []string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// Загрузка .env файла (если существует)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "your-access-secret-key-change-in-production"),
			AccessTTL:    getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "pyctalk"),
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getEnvAsInt("REDIS_DB", 0),
			SnapshotTTL:      getEnvAsDuration("REDIS_SNAPSHOT_TTL", 24*time.Hour),
			SnapshotInterval: getEnvAsDuration("REDIS_SNAPSHOT_INTERVAL", 1*time.Minute),
		},
		Media: MediaConfig{
			UploadDir:         getEnv("MEDIA_UPLOAD_DIR", "storage/uploads"),
			ThumbnailDir:      getEnv("MEDIA_THUMBNAIL_DIR", "storage/thumbnails"),
			TempDir:           getEnv("MEDIA_TEMP_DIR", os.TempDir()),
			MaxFileSize:       getEnvAsInt64("MEDIA_MAX_FILE_SIZE", 50*1024*1024),
			ThumbnailSize:     getEnvAsInt("MEDIA_THUMBNAIL_SIZE", 320),
			Workers:           getEnvAsInt("MEDIA_WORKERS", 4),
			UploadTimeout:     getEnvAsDuration("MEDIA_UPLOAD_TIMEOUT", 60*time.Second),
			UploadRateLimit:   getEnvAsInt("MEDIA_UPLOAD_RATE_LIMIT", 30),
			ImageExtensions:   getEnvAsSlice("MEDIA_IMAGE_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}),
			VideoExtensions:   getEnvAsSlice("MEDIA_VIDEO_EXTENSIONS", []string{".mp4", ".avi", ".mkv", ".mov", ".webm"}),
			AudioExtensions:   getEnvAsSlice("MEDIA_AUDIO_EXTENSIONS", []string{".mp3", ".wav", ".ogg", ".flac", ".m4a"}),
			AllowedExtensions: getEnvAsSlice("MEDIA_ALLOWED_EXTENSIONS", nil),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT access secret must be set")
	}
	if c.Media.MaxFileSize <= 0 {
		return fmt.Errorf("media max file size must be positive")
	}
	if c.Media.Workers <= 0 {
		return fmt.Errorf("media workers must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
