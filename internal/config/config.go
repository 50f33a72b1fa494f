package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=cylinders port=5432 sslmode=disable"

type Config struct {
	HTTPPort       string
	DatabaseDSN    string
	JWTSecret      string
	CORSOrigins    string
	LedgerCache    string // redis, memory or none
	RedisAddress   string
	RedisPassword  string
	LedgerCacheTTL time.Duration
	LedgerPageSize int
	LogLevel       string
}

func Load() *Config {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logg.WithError(err).Warn(".env could not be read")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:    getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LedgerCache:    getEnv("LEDGER_CACHE", ""),
		RedisAddress:   getEnv("REDIS_ADDRESS", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		LedgerCacheTTL: getDuration("LEDGER_CACHE_TTL", 10*time.Minute),
		LedgerPageSize: getInt("LEDGER_PAGE_SIZE", 25),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	SetLogLevel(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		logg.Fatal("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		logg.Fatal("JWT_SECRET must be at least 32 characters")
	}
	if cfg.DatabaseDSN == defaultDSN {
		logg.Warn("DATABASE_DSN is using the local default")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		logg.Warn("CORS_ALLOWED_ORIGINS is using the local default")
	}
	cfg.LedgerCache = ledgerCacheMode(cfg.LedgerCache, cfg.RedisAddress)
	logg.WithField("mode", cfg.LedgerCache).Info("ledger cache mode")

	return cfg
}

// ledgerCacheMode defaults to redis when an address is set and to none otherwise.
// redis without an address also falls back to none.
func ledgerCacheMode(mode, redisAddress string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "memory":
		return "memory"
	case "none":
		return "none"
	case "redis", "":
		if redisAddress != "" {
			return "redis"
		}
		return "none"
	}
	logg.WithField("mode", mode).Warn("unknown LEDGER_CACHE, using default")
	return ledgerCacheMode("", redisAddress)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
