package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret      string
	JWTTTL         time.Duration
	OperatorSecret string

	// Sensitive-field encryption (32-byte key, hex encoded in the env)
	EncryptionKey []byte

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	RateLimitPerMinute int

	// Payment provider
	Provider ProviderConfig

	// S3 receipt storage
	S3 S3Config
}

// ProviderConfig holds the external payment provider settings
type ProviderConfig struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

// S3Config holds AWS S3 configuration for receipt evidence storage
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	ttlMinutes, err := strconv.Atoi(getEnv("JWT_TTL_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("JWT_TTL_MINUTES must be an integer: %w", err)
	}

	providerTimeout, err := strconv.Atoi(getEnv("PROVIDER_TIMEOUT_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be an integer: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "100"))
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be an integer: %w", err)
	}

	key, err := hex.DecodeString(getEnv("ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             time.Duration(ttlMinutes) * time.Minute,
		OperatorSecret:     getEnv("OPERATOR_SECRET", ""),
		EncryptionKey:      key,
		Port:               getEnv("PORT", "8080"),
		CORSOrigins:        strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:                getEnv("ENV", "development"),
		RateLimitPerMinute: rateLimit,
		Provider: ProviderConfig{
			BaseURL: getEnv("PROVIDER_BASE_URL", ""),
			Secret:  getEnv("PROVIDER_SECRET", ""),
			Timeout: time.Duration(providerTimeout) * time.Second,
		},
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "kredia-receipts"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required")
	}
	if len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must decode to exactly 32 bytes")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
