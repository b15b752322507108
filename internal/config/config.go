package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr          string
	StoreDriver   string
	DatabaseURL   string
	MigrationsDir string
	CORSOrigin    string
	LogFormat     string
	// Blob backend: "sql" keeps attachments in the database, "minio" in a bucket.
	BlobBackend    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioUseSSL    bool
	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	RedisURL      string
	// Search
	MeiliURL       string
	MeiliMasterKey string
	// Snapshot history, disabled when empty
	SnapshotDir string
	// Limits and housekeeping
	MaxUploadBytes int64
	BlobGCInterval time.Duration
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	NotifyEmail  string
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8787"),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", "sqlite")),
		DatabaseURL:   getenv("DATABASE_URL", "./data/lexshelf.db"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "./db/migrations"),
		CORSOrigin:    getenv("CORS_ORIGIN", "*"),
		LogFormat:     getenv("LOG_FORMAT", "json"),

		BlobBackend:    strings.ToLower(getenv("BLOB_BACKEND", "sql")),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "lexshelf"),
		MinioPrefix:    getenv("MINIO_PREFIX", "blobs/"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		SessionSecret: getenv("SESSION_SECRET", "lexshelf-dev-secret"),
		SessionTTL:    time.Duration(getenvInt("SESSION_TTL_SECONDS", 43200)) * time.Second,
		// Redis - empty keeps sessions in process memory
		RedisURL: getenv("REDIS_URL", ""),

		// Meilisearch - empty uses the in-memory matcher only
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		SnapshotDir: getenv("SNAPSHOT_DIR", "./data/snapshots"),

		MaxUploadBytes: int64(getenvInt("MAX_UPLOAD_BYTES", 50<<20)),
		BlobGCInterval: time.Duration(getenvInt("BLOB_GC_INTERVAL_SECONDS", 0)) * time.Second,

		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Lexshelf"),
		NotifyEmail:  getenv("NOTIFY_EMAIL", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
