package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "importer"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	RedisURL    string

	// Event bus
	EventBus     string // "redis" or "amqp"
	AMQPURL      string
	AMQPExchange string

	// Auth
	JWTSecret     string
	EncryptionKey string

	// Remote endpoints
	DAVURL          string
	TwitterAPIURL   string
	TwitterTokenURL string
	GooglePeopleURL string

	// Twitter rate window (requests per window). friends/ids is budgeted separately.
	TwitterRateLimit        int
	TwitterFriendsRateLimit int
	TwitterRateWindowSec    int

	// Import pipeline
	ImportMaxIDs           int
	ImportBatchSize        int
	ImportBatchConcurrency int
	ImportWriteConcurrency int
	ProviderConfigTTL      time.Duration

	// Worker
	WorkerID        string
	WorkerMax       int
	WorkerQueueSize int

	// Consumer (Redis Stream)
	ConsumerBatchSize       int
	ConsumerBlockMS         int
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int

	// API
	APIRateLimit int // requests per minute per user
	AutoMigrate  bool

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Event bus
		EventBus:     strings.ToLower(getEnv("EVENT_BUS", "redis")),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "contacts"),

		// Auth
		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		// Remote endpoints
		DAVURL:          getEnv("DAV_URL", "http://localhost:8001/dav"),
		TwitterAPIURL:   getEnv("TWITTER_API_URL", "https://api.twitter.com"),
		TwitterTokenURL: getEnv("TWITTER_TOKEN_URL", "https://api.twitter.com/oauth2/token"),
		GooglePeopleURL: getEnv("GOOGLE_PEOPLE_URL", ""),

		TwitterRateLimit:        getEnvInt("TWITTER_RATE_LIMIT", 900),
		TwitterFriendsRateLimit: getEnvInt("TWITTER_FRIENDS_RATE_LIMIT", 15),
		TwitterRateWindowSec:    getEnvInt("TWITTER_RATE_WINDOW_SEC", 900),

		// Import pipeline
		ImportMaxIDs:           getEnvInt("IMPORT_MAX_IDS", 18000),
		ImportBatchSize:        getEnvInt("IMPORT_BATCH_SIZE", 100),
		ImportBatchConcurrency: getEnvInt("IMPORT_BATCH_CONCURRENCY", 4),
		ImportWriteConcurrency: getEnvInt("IMPORT_WRITE_CONCURRENCY", 8),
		ProviderConfigTTL:      time.Duration(getEnvInt("PROVIDER_CONFIG_TTL_MIN", 10)) * time.Minute,

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:       getEnvInt("WORKER_MAX", 4),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 100),

		// Consumer
		ConsumerBatchSize:       getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 60),

		// API
		APIRateLimit: getEnvInt("API_RATE_LIMIT", 30),
		AutoMigrate:  getEnv("AUTO_MIGRATE", "false") == "true",

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the import pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ImportBatchSize < 1 || c.ImportBatchSize > 100 {
		errs = append(errs, fmt.Errorf("IMPORT_BATCH_SIZE must be in [1,100], got %d", c.ImportBatchSize))
	}
	if c.ImportMaxIDs < 2 {
		errs = append(errs, fmt.Errorf("IMPORT_MAX_IDS must be at least 2, got %d", c.ImportMaxIDs))
	}
	if c.ImportBatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("IMPORT_BATCH_CONCURRENCY must be positive, got %d", c.ImportBatchConcurrency))
	}
	if c.ImportWriteConcurrency < 1 {
		errs = append(errs, fmt.Errorf("IMPORT_WRITE_CONCURRENCY must be positive, got %d", c.ImportWriteConcurrency))
	}
	switch c.EventBus {
	case "redis":
	case "amqp":
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when EVENT_BUS=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENT_BUS must be redis or amqp, got %q", c.EventBus))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
