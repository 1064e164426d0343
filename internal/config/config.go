package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string
	LogFile   string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	SignedURLExpiry time.Duration // Expiry for signed media URLs - default: 30 minutes

	// Authoring
	UploadMaxSize   int64         // Card editor ceiling for staged files
	PublishMaxSize  int64         // Ceiling re-checked when a staged file is uploaded
	StagingDir      string        // Where pending uploads wait until publish
	DraftSessionTTL time.Duration // Idle authoring sessions are discarded after this

	// Link metadata
	RedisURL             string // Optional: metadata cache
	MetadataCacheTTL     time.Duration
	MetadataTimeout      time.Duration
	AllowedRefererDomain string // Optional: referer allow-list for /api/metadata
	LinkPreviewAPIKey    string // Optional: paid fallback
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Loopfeed"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envRequired("APP_URL"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/loopfeed.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@loopfeed.app"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
		LogFile:   envString("LOG_FILE", ""),

		// Storage
		S3Region:        envRequired("S3_REGION"),
		S3Bucket:        envRequired("S3_BUCKET"),
		S3AccessKey:     envRequired("S3_ACCESS_KEY"),
		S3SecretKey:     envRequired("S3_SECRET_KEY"),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		SignedURLExpiry: envDuration("S3_SIGNED_URL_EXPIRY", 30*time.Minute),

		// Authoring
		UploadMaxSize:   envInt64("UPLOAD_MAX_SIZE", 20<<20),  // 20MB
		PublishMaxSize:  envInt64("PUBLISH_MAX_SIZE", 50<<20), // 50MB
		StagingDir:      envString("STAGING_DIR", "./data/staging"),
		DraftSessionTTL: envDuration("DRAFT_SESSION_TTL", 6*time.Hour),

		// Link metadata
		RedisURL:             envString("REDIS_URL", ""),
		MetadataCacheTTL:     envDuration("METADATA_CACHE_TTL", 24*time.Hour),
		MetadataTimeout:      envDuration("METADATA_TIMEOUT", 10*time.Second),
		AllowedRefererDomain: envString("ALLOWED_REFERER_DOMAIN", ""),
		LinkPreviewAPIKey:    envString("LINKPREVIEW_API_KEY", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to fall back to log mode.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MetadataFallbackEnabled reports whether the paid link preview fallback can be used.
func (c *Config) MetadataFallbackEnabled() bool {
	return c.LinkPreviewAPIKey != "" && envBool("METADATA_FALLBACK", true)
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		AppURL:  c.AppURL,
		Port:    c.Port,

		EmailFrom: c.EmailFrom,

		S3Endpoint:      c.S3Endpoint,
		SignedURLExpiry: c.SignedURLExpiry,
		UploadMaxSize:   c.UploadMaxSize,
	}
}
