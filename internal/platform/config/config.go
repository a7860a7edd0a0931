// Package config builds runtime configuration from the environment so main
// stays lean. A local .env file is honored in development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	strutil "credence/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Addr     string
	LogLevel string

	// DatabaseURL selects the postgres store; empty runs on the memory store.
	DatabaseURL string

	Redis RedisConfig

	// KafkaBrokers enables the Kafka event publisher; empty keeps events
	// in-process only.
	KafkaBrokers []string
	KafkaTopic   string

	// DefinitionsDir points at a YAML bundle directory; empty uses the
	// built-in defaults.
	DefinitionsDir   string
	WatchDefinitions bool

	CaseCacheTTL time.Duration

	SweepSchedule string
	SweepBatch    int
	SweepMinAge   time.Duration
}

// RedisConfig captures cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads configuration from the environment.
func Load() Config {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	return Config{
		Addr:        envString("CREDENCE_ADDR", ":8080"),
		LogLevel:    envString("CREDENCE_LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("CREDENCE_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CREDENCE_REDIS_URL"),
			PoolSize:     envInt("CREDENCE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CREDENCE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CREDENCE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CREDENCE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CREDENCE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers:     envList("CREDENCE_KAFKA_BROKERS"),
		KafkaTopic:       envString("CREDENCE_KAFKA_TOPIC", "credence.case-events"),
		DefinitionsDir:   os.Getenv("CREDENCE_DEFINITIONS_DIR"),
		WatchDefinitions: envBool("CREDENCE_DEFINITIONS_WATCH", true),
		CaseCacheTTL:     envDuration("CREDENCE_CASE_CACHE_TTL", 5*time.Minute),
		SweepSchedule:    envString("CREDENCE_SWEEP_SCHEDULE", "@every 1m"),
		SweepBatch:       envInt("CREDENCE_SWEEP_BATCH", 50),
		SweepMinAge:      envDuration("CREDENCE_SWEEP_MIN_AGE", 30*time.Second),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
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

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	out := strutil.DedupeAndTrim(strings.Split(raw, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
