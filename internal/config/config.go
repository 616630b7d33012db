// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DevJWTSecret = "dev-secret"

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	ServiceName string
	LogFormat   string
	LogLevel    string

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins       []string
	AuthRatePerMinute float64
	AuthRateBurst     int

	OTLPEndpoint    string
	SeedSampleBooks bool
}

// LoadEnvFiles loads .env and .env.local when present. Variables already
// set in the environment win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":3000"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ServiceName:  getenv("SERVICE_NAME", "bookshelf"),
		LogFormat:    getenv("LOG_FORMAT", "json"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		JWTSecret:    getenv("JWT_SECRET", DevJWTSecret),
		CORSOrigins:  splitCSV(getenv("CORS_ORIGINS", "*")),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.TokenTTL, err = duration("TOKEN_TTL", 8*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AuthRatePerMinute, err = float("AUTH_RATE_PER_MINUTE", 20); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateBurst, err = integer("AUTH_RATE_BURST", 5); err != nil {
		return Config{}, err
	}
	if cfg.SeedSampleBooks, err = boolean("SEED_SAMPLE_BOOKS", true); err != nil {
		return Config{}, err
	}

	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be positive")
	}
	if cfg.AuthRatePerMinute <= 0 || cfg.AuthRateBurst < 1 {
		return Config{}, fmt.Errorf("AUTH_RATE_PER_MINUTE and AUTH_RATE_BURST must be positive")
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func float(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

func integer(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func boolean(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
