package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every runtime knob, sourced from .env / environment with
// sensible defaults so a bare `go run` works.
type Config struct {
	Port           string
	DBPath         string
	SelfURL        string
	LogLevel       string
	ReconnectDelay time.Duration
	KeepAliveEvery time.Duration
	ChromePath     string
	RenderTimeout  time.Duration
	RenderSettle   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}

	return &Config{
		Port:           getEnv("PORT", "3000"),
		DBPath:         getEnv("DB_PATH", "wa-relay.db"),
		SelfURL:        getEnv("SELF_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ReconnectDelay: getDuration("RECONNECT_DELAY", time.Second),
		KeepAliveEvery: getDuration("KEEPALIVE_INTERVAL", 10*time.Minute),
		ChromePath:     getEnv("CHROME_PATH", ""),
		RenderTimeout:  getDuration("RENDER_TIMEOUT", 30*time.Second),
		RenderSettle:   getDuration("RENDER_SETTLE", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are taken as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	logrus.WithField("key", key).Warn("unparseable duration, using default")
	return fallback
}
