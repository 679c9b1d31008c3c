package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string
	PostgresURL   string
	Redis         RedisConfig
	ListCacheTTL  time.Duration
}

// RedisConfig configures the optional Redis-backed list cache.
// An empty URL means Redis is not configured and the in-memory backend is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CLEARCLAIM_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("CLEARCLAIM_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CLEARCLAIM_REDIS_URL"),
			PoolSize:     envInt("CLEARCLAIM_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CLEARCLAIM_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CLEARCLAIM_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CLEARCLAIM_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CLEARCLAIM_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		ListCacheTTL: envDuration("CLEARCLAIM_LIST_CACHE_TTL", 60*time.Second),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
