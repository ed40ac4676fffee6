package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - listing indexes
	GSI2IndexName string // GSI2 - per-entry alert lookups
	EventBusName  string

	// Queues
	JobQueueURL        string
	DeadLetterQueueURL string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// WebSocket configuration
	WebSocketEndpoint string

	// Fetching
	ScrapingBeeAPIKey string
	FetchRenderJS     bool
	FetchTimeout      time.Duration

	// Worker pipeline
	WorkerCount    int
	WorkerBatch    int
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Detection
	PriceJumpPct float64

	// Delivery
	BroadcastSendTimeout time.Duration
	ConnectionMaxIdle    time.Duration
	ScheduleInterval     time.Duration

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "ap-southeast-1"),
		DynamoDBTable: getEnv("TABLE_NAME", "watchtower"),
		IndexName:     getEnv("INDEX_NAME", "GSI1"),
		GSI2IndexName: getEnv("GSI2_INDEX_NAME", "GSI2"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "watchtower-events"),

		JobQueueURL:        getEnv("JOB_QUEUE_URL", ""),
		DeadLetterQueueURL: getEnv("DEAD_LETTER_QUEUE_URL", ""),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// WebSocket configuration
		WebSocketEndpoint: getEnv("WEBSOCKET_ENDPOINT", ""),

		// Fetching
		ScrapingBeeAPIKey: getEnv("SCRAPINGBEE_API_KEY", ""),
		FetchRenderJS:     getEnvBool("FETCH_RENDER_JS", true),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		// Worker pipeline
		WorkerCount:    getEnvInt("WORKER_COUNT", 4),
		WorkerBatch:    getEnvInt("WORKER_BATCH", 10),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),

		// Detection
		PriceJumpPct: getEnvFloat("PRICE_JUMP_PCT", 15),

		// Delivery
		BroadcastSendTimeout: getEnvDuration("BROADCAST_SEND_TIMEOUT", 2*time.Second),
		ConnectionMaxIdle:    getEnvDuration("CONNECTION_MAX_IDLE", time.Minute),
		ScheduleInterval:     getEnvDuration("SCHEDULE_INTERVAL", 5*time.Minute),

		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "watchtower-backend"),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.PriceJumpPct <= 0 {
		return fmt.Errorf("PRICE_JUMP_PCT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES cannot be negative")
	}

	if c.Environment == "production" {
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.ScrapingBeeAPIKey == "" {
			return fmt.Errorf("SCRAPINGBEE_API_KEY is required in production")
		}
		if c.JobQueueURL == "" {
			return fmt.Errorf("JOB_QUEUE_URL is required in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
