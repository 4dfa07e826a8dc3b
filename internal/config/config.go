package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAllowedOrigins are the deployed front end and its local dev
// servers.
var DefaultAllowedOrigins = []string{
	"https://hosiery-inventory-management.netlify.app",
	"http://localhost:5500",
	"http://127.0.0.1:5500",
}

type Config struct {
	Port            string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	DatabaseDriver  string
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	DBAutoMigrate   bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int
	LockTTLSeconds  int
	DiscountPolicy  string
	LogLevel        string
	LogFormat       string
	SeedDemoData    bool
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Values already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  getEnvAsSlice("ALLOWED_ORIGINS", slices.Clone(DefaultAllowedOrigins)),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		DatabaseDriver:  strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBAutoMigrate:   getEnvAsBool("DB_AUTO_MIGRATE", true),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvAsInt("CACHE_TTL_SECONDS", 30),
		LockTTLSeconds:  getEnvAsInt("LOCK_TTL_SECONDS", 15),
		DiscountPolicy:  strings.ToLower(getEnv("DISCOUNT_POLICY", "full")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		SeedDemoData:    getEnvAsBool("SEED_DEMO_DATA", false),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvAsInt keeps the raw value on parse errors as -1 so validation can
// reject it instead of silently using the default.
func getEnvAsInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return v
}

func getEnvAsSlice(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
