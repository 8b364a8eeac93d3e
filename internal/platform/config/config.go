package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Execution collaborator.
	ExecutorBaseURL string
	ExecutorTimeout time.Duration

	// Session engine knobs.
	PhaseTickInterval time.Duration // phase re-resolution cadence
	SessionExitGrace  time.Duration // delay between expiry notice and forced exit
	ContestTimezone   string        // IANA name the schedules are declared in
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:       getEnv("API_PORT", "8080"),
		JWTKey:        []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:        time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "codearena_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		ExecutorBaseURL: getEnv("EXECUTOR_BASE_URL", "http://localhost:8090"),
		ExecutorTimeout: time.Duration(getEnvAsInt("EXECUTOR_TIMEOUT_MS", 30000)) * time.Millisecond,

		PhaseTickInterval: time.Duration(getEnvAsInt("PHASE_TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		SessionExitGrace:  time.Duration(getEnvAsInt("SESSION_EXIT_GRACE_MS", 3000)) * time.Millisecond,
		ContestTimezone:   getEnv("CONTEST_TIMEZONE", "Local"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

// Location resolves the configured contest timezone once at startup.
func (c *Config) Location() *time.Location {
	if c.ContestTimezone == "" || c.ContestTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ContestTimezone)
	if err != nil {
		log.Printf("Invalid CONTEST_TIMEZONE %q, falling back to local: %v", c.ContestTimezone, err)
		return time.Local
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
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
