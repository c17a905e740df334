package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string

	// SuggestionTTL is the horizon after which a pending suggestion expires.
	SuggestionTTL time.Duration
	// SweepInterval controls how often the expiry sweeper runs.
	SweepInterval time.Duration
	// BatchParallelism bounds concurrent evaluations inside one submit batch.
	BatchParallelism int
}

// RedisConfig holds Redis connection configuration. An empty URL disables
// the tier cache entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TierCacheTTL bounds staleness of cached consent tiers.
	TierCacheTTL time.Duration
}

// KafkaConfig holds audit fan-out configuration. Empty brokers disable the
// Kafka audit publisher.
type KafkaConfig struct {
	Brokers         string
	AuditTopic      string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

const (
	defaultSuggestionTTL    = 24 * time.Hour
	defaultSweepInterval    = time.Minute
	defaultBatchParallelism = 8
	defaultTierCacheTTL     = 30 * time.Second
)

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:             envOr("OTHELLO_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SuggestionTTL:    envDuration("SUGGESTION_TTL", defaultSuggestionTTL),
		SweepInterval:    envDuration("SWEEP_INTERVAL", defaultSweepInterval),
		BatchParallelism: envInt("BATCH_PARALLELISM", defaultBatchParallelism),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TierCacheTTL: envDuration("TIER_CACHE_TTL", defaultTierCacheTTL),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			AuditTopic:      envOr("KAFKA_AUDIT_TOPIC", "othello.audit.v1"),
			Acks:            envOr("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
