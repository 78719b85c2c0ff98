package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique consumer ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "sync"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// Sync policy
	AutoSyncEnabled        bool
	ImmediateSyncThreshold int
	ImmediateSyncTimeout   time.Duration
	BacklogCacheTTL        time.Duration
	SyncRetryAttempts      int

	// Sweep
	SweepInterval      time.Duration
	SweepBatchSize     int
	SweepMaxIterations int
	SweepBudget        time.Duration
	SweepItemDelay     time.Duration

	// Retry / tombstone schedulers
	RetryCheckInterval     time.Duration
	TombstoneCheckInterval time.Duration

	// Worker pool
	WorkerID      string
	PoolWorkers   int
	PoolBatchSize int
	JobTimeout    time.Duration

	// Consumer (Redis Stream)
	ConsumerGroup        string
	ConsumerBatchSize    int
	ConsumerBlockMS      int
	ConsumerMaxDelivery  int
	ConsumerPendingCheck time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "mirror"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Sync policy
		AutoSyncEnabled:        getEnvBool("AUTO_SYNC_ENABLED", true),
		ImmediateSyncThreshold: getEnvInt("IMMEDIATE_SYNC_THRESHOLD", 5),
		ImmediateSyncTimeout:   time.Duration(getEnvInt("IMMEDIATE_SYNC_TIMEOUT_SEC", 5)) * time.Second,
		BacklogCacheTTL:        time.Duration(getEnvInt("BACKLOG_CACHE_TTL_SEC", 10)) * time.Second,
		SyncRetryAttempts:      getEnvInt("SYNC_RETRY_ATTEMPTS", 3),

		// Sweep
		SweepInterval:      time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 300)) * time.Second,
		SweepBatchSize:     getEnvInt("SYNC_BATCH_SIZE", 10),
		SweepMaxIterations: getEnvInt("SWEEP_MAX_ITERATIONS", 100),
		SweepBudget:        time.Duration(getEnvInt("SWEEP_BUDGET_SEC", 300)) * time.Second,
		SweepItemDelay:     time.Duration(getEnvInt("SWEEP_ITEM_DELAY_MS", 50)) * time.Millisecond,

		// Retry / tombstone schedulers
		RetryCheckInterval:     time.Duration(getEnvInt("RETRY_CHECK_INTERVAL_SEC", 30)) * time.Second,
		TombstoneCheckInterval: time.Duration(getEnvInt("TOMBSTONE_CHECK_INTERVAL_SEC", 60)) * time.Second,

		// Worker pool
		WorkerID:      getEnv("WORKER_ID", generateWorkerID()),
		PoolWorkers:   getEnvInt("POOL_WORKERS", 8),
		PoolBatchSize: getEnvInt("POOL_BATCH_SIZE", 10),
		JobTimeout:    time.Duration(getEnvInt("JOB_TIMEOUT_SEC", 60)) * time.Second,

		// Consumer
		ConsumerGroup:        getEnv("CONSUMER_GROUP", "mirror-sync-workers"),
		ConsumerBatchSize:    getEnvInt("CONSUMER_BATCH_SIZE", 50),
		ConsumerBlockMS:      getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxDelivery:  getEnvInt("CONSUMER_MAX_DELIVERY", 3),
		ConsumerPendingCheck: time.Duration(getEnvInt("CONSUMER_PENDING_CHECK_SEC", 60)) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
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
