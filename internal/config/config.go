package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	DBDriver      string
	DBDSN         string
	AutoMigrate   bool
	GoogleAPIKey  string
	GeminiModel   string
	CountryPrefix string
	Workers       int
	SendTimeout   time.Duration
	RetryInterval time.Duration
	RetryBatch    int
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		Port:          getenv("PORT", "8000"),
		DBDriver:      getenv("OFFERCAST_DB_DRIVER", "memory"),
		DBDSN:         os.Getenv("OFFERCAST_DB_DSN"),
		AutoMigrate:   getenv("OFFERCAST_AUTO_MIGRATE", "true") == "true",
		GoogleAPIKey:  os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:   os.Getenv("OFFERCAST_GEMINI_MODEL"),
		CountryPrefix: getenv("OFFERCAST_COUNTRY_PREFIX", "966"),
		Workers:       getint("OFFERCAST_WORKERS", 4),
		SendTimeout:   time.Duration(getint("OFFERCAST_SEND_TIMEOUT_SECONDS", 20)) * time.Second,
		RetryInterval: time.Duration(getint("OFFERCAST_RETRY_INTERVAL_SECONDS", 300)) * time.Second,
		RetryBatch:    getint("OFFERCAST_RETRY_BATCH", 50),
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}
