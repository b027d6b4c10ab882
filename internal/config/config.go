// Package config loads runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	Port   string
	DBPath string

	UpstreamBaseURL string
	UpstreamToken   string
	UpstreamTimeout time.Duration

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	JWTSecret       string
	RefreshInterval time.Duration
}

// Load reads configuration from the environment. Missing values fall
// back to local-development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment")
	}

	return &Config{
		Port:            getEnv("PORT", ":8080"),
		DBPath:          getEnv("DB_PATH", "./data/telemetry.db"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:9000"),
		UpstreamToken:   getEnv("UPSTREAM_TOKEN", ""),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopic:       getEnv("MQTT_TOPIC", "fleet/telemetry/+"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "tracking-backend"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		RefreshInterval: getDuration("REFRESH_INTERVAL", 60*time.Second),
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
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.WithField("key", key).Warn("unparseable duration, using default")
	return fallback
}
