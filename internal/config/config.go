package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Upstream Registry Configuration
	UpstreamBaseURL  string
	UpstreamAPIToken string
	UpstreamTimeout  time.Duration

	// Monitoring Cadence Configuration
	PollInterval     time.Duration
	DeepScanInterval time.Duration
	WarmupDelay      time.Duration
	PollSchedule     string
	DeepScanSchedule string

	// Cycle Shaping Configuration
	JobsFetchLimit   int
	QueueProbeLimit  int
	RecentJobsLimit  int
	BasisGatesLimit  int

	// Cache TTL Configuration
	JobsCacheTTL     time.Duration
	BackendsCacheTTL time.Duration
	QueueCacheTTL    time.Duration
	StatsCacheTTL    time.Duration

	// Fallback Configuration
	MockMode             bool
	AuthFailureThreshold int
	RateLimitRetryDelay  time.Duration

	// Fan-out Configuration
	RoomNameMaxLength int

	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Alerting Configuration
	AlertRulesPath      string
	AlertWebhookURL     string
	AlertWebhookTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// Upstream registry
		UpstreamBaseURL:  getEnv("UPSTREAM_BASE_URL", "http://localhost:9100"),
		UpstreamAPIToken: getEnv("UPSTREAM_API_TOKEN", ""),
		UpstreamTimeout:  getDurationEnv("UPSTREAM_TIMEOUT_SEC", 15) * time.Second,

		// Monitoring cadence
		PollInterval:     getDurationEnv("POLL_INTERVAL_SEC", 60) * time.Second,
		DeepScanInterval: getDurationEnv("DEEP_SCAN_INTERVAL_SEC", 600) * time.Second,
		WarmupDelay:      getDurationEnv("WARMUP_DELAY_SEC", 5) * time.Second,
		PollSchedule:     getEnv("POLL_SCHEDULE", ""),
		DeepScanSchedule: getEnv("DEEP_SCAN_SCHEDULE", ""),

		// Cycle shaping
		JobsFetchLimit:  getIntEnv("JOBS_FETCH_LIMIT", 50),
		QueueProbeLimit: getIntEnv("QUEUE_PROBE_LIMIT", 5),
		RecentJobsLimit: getIntEnv("RECENT_JOBS_LIMIT", 10),
		BasisGatesLimit: getIntEnv("BASIS_GATES_DISPLAY", 5),

		// Cache TTLs, per upstream endpoint
		JobsCacheTTL:     getDurationEnv("JOBS_CACHE_TTL_SEC", 10) * time.Second,
		BackendsCacheTTL: getDurationEnv("BACKENDS_CACHE_TTL_SEC", 45) * time.Second,
		QueueCacheTTL:    getDurationEnv("QUEUE_CACHE_TTL_SEC", 5) * time.Second,
		StatsCacheTTL:    getDurationEnv("STATS_CACHE_TTL_SEC", 30) * time.Second,

		// Fallback behavior
		MockMode:             getBoolEnv("MOCK_MODE", false),
		AuthFailureThreshold: getIntEnv("AUTH_FAILURE_THRESHOLD", 3),
		RateLimitRetryDelay:  getDurationEnv("RATE_LIMIT_RETRY_DELAY_MS", 1500) * time.Millisecond,

		// Fan-out
		RoomNameMaxLength: getIntEnv("ROOM_NAME_MAX_LENGTH", 64),

		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 30) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, DELETE, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "*"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		// Alerting
		AlertRulesPath:      getEnv("ALERT_RULES_PATH", ""),
		AlertWebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
		AlertWebhookTimeout: getDurationEnv("ALERT_WEBHOOK_TIMEOUT_SEC", 10) * time.Second,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}
