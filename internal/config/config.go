package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Providers ProvidersConfig
	Fetch     FetchConfig
	Outcome   OutcomeConfig
	Health    HealthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers          []string
	PredictionsTopic string
	EventsTopic      string
	AlertsTopic      string
	ConsumerGroup    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ProvidersConfig holds price-provider credentials and endpoints. A provider
// with an empty API key is treated as not configured.
type ProvidersConfig struct {
	AlphaVantageKey     string
	AlphaVantageBaseURL string
	FinnhubKey          string
	FinnhubBaseURL      string
	RequestTimeout      time.Duration
}

// FetchConfig holds price-fetch retry and backfill settings
type FetchConfig struct {
	MaxRetries       int
	RetryDelay       time.Duration
	RetryBackoff     float64
	LookbackDays     int
	BackfillWindow   int
	AlertDestination string
}

// OutcomeConfig holds outcome-calculation settings
type OutcomeConfig struct {
	CorrectnessThreshold float64
	PositionSize         float64
}

// HealthConfig holds health-monitoring settings
type HealthConfig struct {
	StalenessThresholdHours int
	CanarySymbol            string
	CheckInterval           time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "trader"),
			Password: getEnv("DB_PASSWORD", "trader5"),
			DBName:   getEnv("DB_NAME", "trading_platform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:          parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			PredictionsTopic: getEnv("KAFKA_PREDICTIONS_TOPIC", "predictions.created"),
			EventsTopic:      getEnv("KAFKA_EVENTS_TOPIC", "outcome-tracker.events"),
			AlertsTopic:      getEnv("KAFKA_ALERTS_TOPIC", "outcome-tracker.alerts"),
			ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "outcome-tracker"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Providers: ProvidersConfig{
			AlphaVantageKey:     getEnv("ALPHA_VANTAGE_API_KEY", ""),
			AlphaVantageBaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", ""),
			FinnhubKey:          getEnv("FINNHUB_API_KEY", ""),
			FinnhubBaseURL:      getEnv("FINNHUB_BASE_URL", ""),
			RequestTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		},
		Fetch: FetchConfig{
			MaxRetries:       getEnvInt("FETCH_MAX_RETRIES", 3),
			RetryDelay:       getEnvDuration("FETCH_RETRY_DELAY", 2*time.Second),
			RetryBackoff:     getEnvFloat("FETCH_RETRY_BACKOFF", 2.0),
			LookbackDays:     getEnvInt("FETCH_LOOKBACK_DAYS", 7),
			BackfillWindow:   getEnvInt("BACKFILL_WINDOW_DAYS", 90),
			AlertDestination: getEnv("ALERT_DESTINATION", "ops"),
		},
		Outcome: OutcomeConfig{
			CorrectnessThreshold: getEnvFloat("OUTCOME_THRESHOLD_PCT", 0.5),
			PositionSize:         getEnvFloat("OUTCOME_POSITION_SIZE", 1000),
		},
		Health: HealthConfig{
			StalenessThresholdHours: getEnvInt("STALENESS_THRESHOLD_HOURS", 48),
			CanarySymbol:            getEnv("HEALTH_CANARY_SYMBOL", "SPY"),
			CheckInterval:           getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Minute),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
