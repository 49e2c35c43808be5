package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	LogLevel      string
	MQTTBrokerURL string
	MQTTClientID  string
	MetricsTopic  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Postgres      DBConfig
	SyncSchedule  string
	PurgeSchedule string
	RetentionDays int
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

func Load() *Config {
	cfg := &Config{
		Port:          getEnv("SOLAR_MONITOR_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MQTTBrokerURL: strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:  getEnv("SOLAR_MQTT_CLIENT_ID", "solar-monitor"),
		MetricsTopic:  getEnv("SOLAR_METRICS_TOPIC", "solar/metrics"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		SyncSchedule:  getEnv("SYNC_SCHEDULE", "@every 5m"),
		PurgeSchedule: getEnv("PURGE_SCHEDULE", "@daily"),
		RetentionDays: parseInt(getEnv("RETENTION_DAYS", "30"), 30),
		Postgres: DBConfig{
			User:     strings.TrimSpace(os.Getenv("POSTGRES_USER")),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   strings.TrimSpace(os.Getenv("POSTGRES_DB")),
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     strings.TrimSpace(os.Getenv("POSTGRES_PORT")),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
	}

	slog.Info("solar-monitor config loaded",
		"port", cfg.Port,
		"mqtt", cfg.MQTTBrokerURL,
		"topic", cfg.MetricsTopic,
		"redis", cfg.RedisAddr,
		"sync_schedule", cfg.SyncSchedule,
		"retention_days", cfg.RetentionDays)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseInt(val string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return def
	}
	return n
}
