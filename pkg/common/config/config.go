package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server (pipeline trigger service)
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Pipeline
	InputRoot     string
	OutputRoot    string
	ReferenceDate time.Time
	FeatureLabels []string
	EventType     string
	LogLevel      string

	// Warehouse (Postgres)
	WarehouseEnabled bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Feature cache (Redis)
	FeatureCacheEnabled bool
	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	FeatureCacheTTL     time.Duration

	// Event bus (Kafka)
	EventBusEnabled bool
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
}

// DefaultFeatureLabels are the observation types pivoted into per-patient
// features when FEATURE_LABELS is not set.
var DefaultFeatureLabels = []string{
	"Body Height",
	"Body Weight",
	"Body Mass Index",
	"Blood Pressure",
	"Heart rate",
	"Glucose",
}

// DefaultReferenceDate anchors age derivation; ages are reproducible across
// runs because this never tracks the wall clock.
var DefaultReferenceDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		InputRoot:     getEnv("INPUT_ROOT", "data/raw"),
		OutputRoot:    getEnv("OUTPUT_ROOT", "data/processed"),
		ReferenceDate: getDate("REFERENCE_DATE", DefaultReferenceDate),
		FeatureLabels: getStringSliceEnv("FEATURE_LABELS", DefaultFeatureLabels),
		EventType:     getEnv("EVENT_TYPE", "Observation"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		WarehouseEnabled: getBoolEnv("WAREHOUSE_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "hospital"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "hospital123"),
		PostgresDB:       getEnv("POSTGRES_DB", "hospital_analytics"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		FeatureCacheEnabled: getBoolEnv("FEATURE_CACHE_ENABLED", false),
		RedisHost:           getEnv("REDIS_HOST", "localhost"),
		RedisPort:           getEnv("REDIS_PORT", "6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getIntEnv("REDIS_DB", 0),
		FeatureCacheTTL:     getDuration("FEATURE_CACHE_TTL", 5*time.Minute),

		EventBusEnabled: getBoolEnv("EVENT_BUS_ENABLED", false),
		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "pipeline-events"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "hospital-data-pipeline"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDate(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.Parse("2006-01-02", value); err == nil {
			return parsed.UTC()
		}
	}
	return defaultValue
}
