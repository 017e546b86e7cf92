// Package config provides configuration for the Flicket binaries
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	Logging    LoggingConfig
	CORS       CORSConfig
	JWT        JWTConfig
	SMTP       SMTPConfig
	Mux        MuxConfig
	S3         S3Config
	Generation GenerationConfig
	Reconcile  ReconcileConfig
	APIKey     string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port pair used by redis and asynq clients
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SMTPConfig holds SMTP server configuration used for worker alerts
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AlertEmail string
}

// Enabled reports whether alert emails can be sent
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.AlertEmail != ""
}

// MuxConfig holds video hosting provider settings
type MuxConfig struct {
	BaseURL       string
	TokenID       string
	TokenSecret   string
	WebhookSecret string
	CORSOrigin    string
}

// S3Config holds object storage settings for thumbnails
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
}

// GenerationConfig holds settings of the OpenAI-compatible generation endpoint
type GenerationConfig struct {
	BaseURL    string
	APIKey     string
	TextModel  string
	ImageModel string
}

// ReconcileConfig holds settings of the stale upload sweep
type ReconcileConfig struct {
	Cron       string
	StaleAfter time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = serverPort

	cfg.Logging.Level = stringEnv("LOG_LEVEL", "info")
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	accessExpiry, err := durationEnv("JWT_ACCESS_TOKEN_EXPIRY", time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWT.AccessTokenExpiry = accessExpiry

	// API Key configuration (optional, protects ops endpoints)
	cfg.APIKey = os.Getenv("API_KEY")

	// Redis configuration, shared by asynq and webhook dedup
	cfg.Redis.Host = stringEnv("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = intEnv("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// Mux configuration
	cfg.Mux.BaseURL = stringEnv("MUX_BASE_URL", "https://api.mux.com")
	cfg.Mux.TokenID = os.Getenv("MUX_TOKEN_ID")
	cfg.Mux.TokenSecret = os.Getenv("MUX_TOKEN_SECRET")
	cfg.Mux.WebhookSecret = os.Getenv("MUX_WEBHOOK_SECRET")
	cfg.Mux.CORSOrigin = stringEnv("MUX_CORS_ORIGIN", "*")

	// S3 configuration
	cfg.S3.Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	cfg.S3.Region = stringEnv("S3_REGION", "us-east-1")
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3.SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	cfg.S3.UsePathStyle = os.Getenv("S3_USE_PATH_STYLE") == "true"
	cfg.S3.PublicBaseURL = strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/")

	// Generation configuration (worker only)
	cfg.Generation.BaseURL = stringEnv("GENERATION_BASE_URL", "https://api.openai.com")
	cfg.Generation.APIKey = os.Getenv("GENERATION_API_KEY")
	cfg.Generation.TextModel = stringEnv("GENERATION_TEXT_MODEL", "gpt-4o-mini")
	cfg.Generation.ImageModel = stringEnv("GENERATION_IMAGE_MODEL", "dall-e-3")

	// Reconciliation sweep (scheduler only)
	cfg.Reconcile.Cron = stringEnv("RECONCILE_CRON", "*/15 * * * *")
	if cfg.Reconcile.StaleAfter, err = durationEnv("RECONCILE_STALE_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}

	// SMTP configuration (optional, worker alerts)
	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.SMTP.Port, err = intEnv("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = stringEnv("SMTP_FROM", "noreply@flicket.dev")
	cfg.SMTP.AlertEmail = os.Getenv("ALERT_EMAIL")

	return cfg, nil
}

// DSN returns the database connection string.
// clientFoundRows makes UPDATE report matched rows, which ownership checks rely on.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&clientFoundRows=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RequireMux fails when Mux credentials are missing
func (c *Config) RequireMux() error {
	if c.Mux.TokenID == "" || c.Mux.TokenSecret == "" {
		return fmt.Errorf("MUX_TOKEN_ID and MUX_TOKEN_SECRET are required")
	}
	return nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseOrigins splits a comma-separated origin list, defaulting to "*"
func parseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
