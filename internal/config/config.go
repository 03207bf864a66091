package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Upstream Amedis backend
	AmedisBaseURL string
	GuestToken    string
	HTTPTimeout   time.Duration

	// Optional local knowledge base for entity resolution
	KBPath    string
	KBEnabled bool

	// Optional HAR capture used to prefill patient identifiers
	HARPath string

	// Session store; in-memory unless RedisAddr is set
	RedisAddr     string
	RedisPassword string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AmedisBaseURL: getEnv("AMEDIS_BASE_URL", "https://online.amedis.by:4422"),
		GuestToken:    getEnv("AMEDIS_GUEST_TOKEN", "Q9j87S4FV12e86475e82V5d44S7c2c2bb_35"),
		HTTPTimeout:   time.Duration(getEnvAsInt("AMEDIS_TIMEOUT_SECONDS", 20)) * time.Second,
		KBPath:        getEnv("KB_PATH", ""),
		KBEnabled:     getEnvAsBool("KB_ENABLED", false),
		HARPath:       getEnv("HAR_PATH", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
