package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	UncallGrace     time.Duration
	UncallInterval  time.Duration
	UncallBatchSize int

	RateLimitPerMinute      int
	RateLimitBurst          int
	ActorRateLimitPerMinute int
	ActorRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		UncallGrace:     readDurationSeconds("UNCALL_GRACE_SECONDS", 0),
		UncallInterval:  readDurationSeconds("UNCALL_SCAN_INTERVAL_SECONDS", 30),
		UncallBatchSize: readInt("UNCALL_BATCH_SIZE", 100),

		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		ActorRateLimitPerMinute: readInt("ACTOR_RATE_LIMIT_PER_MIN", 600),
		ActorRateLimitBurst:     readInt("ACTOR_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
