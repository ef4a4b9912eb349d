package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Scheduling SchedulingConfig
	Events     EventsConfig
	Telemetry  TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type AuthConfig struct {
	JwtSecret string
}

type SchedulingConfig struct {
	Timezone          string
	MissedGraceDays   int
	SweepCronSpec     string
	ReminderLookahead int
	OperationTimeout  time.Duration
	LockTTL           time.Duration
	LockWait          time.Duration
	CacheTTL          time.Duration
}

type EventsConfig struct {
	Topic string
}

type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/scheduling.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Scheduling: SchedulingConfig{
			Timezone:          getEnv("SCHEDULING_TIMEZONE", "UTC"),
			MissedGraceDays:   getEnvAsInt("MISSED_GRACE_DAYS", 0),
			SweepCronSpec:     getEnv("SWEEP_CRON_SPEC", "15 0 * * *"),
			ReminderLookahead: getEnvAsInt("REMINDER_LOOKAHEAD_DAYS", 1),
			OperationTimeout:  getEnvAsMillis("OPERATION_TIMEOUT_MS", 5000),
			LockTTL:           getEnvAsMillis("LOCK_TTL_MS", 10000),
			LockWait:          getEnvAsMillis("LOCK_WAIT_MS", 3000),
			CacheTTL:          getEnvAsMillis("AGREEMENT_CACHE_TTL_MS", 60000),
		},
		Events: EventsConfig{
			Topic: getEnv("EVENTS_TOPIC", "scheduling.events"),
		},
		Telemetry: TelemetryConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

// Location resolves the scheduling timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		log.Printf("Warning: unknown SCHEDULING_TIMEZONE %q, using UTC", c.Scheduling.Timezone)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Millisecond
}
