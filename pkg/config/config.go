package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration shared by the dispatch engine and
// the solver service.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string
	SQLitePath  string

	// Redis (travel matrix cache; empty disables caching)
	RedisURL string

	// RabbitMQ (plan events; empty selects the noop publisher)
	RabbitMQURL string

	// Solver service
	SolverListenAddr     string
	SolverURL            string
	SolverTimeLimit      time.Duration
	SolverLogSearch      bool
	SolverRequestTimeout time.Duration
	SolverRetryAttempts  int

	// Planning
	PlanningHorizonDays int
	BasePenalty         int64
	InfeasibleCost      int64
	MinTravelSeconds    int
	CustomerETAWindow   time.Duration
	WorkdayStartHour    int
	WorkdayEndHour      int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		SolverListenAddr:     getEnv("SOLVER_LISTEN_ADDR", ":8090"),
		SolverURL:            getEnv("SOLVER_URL", "http://localhost:8090"),
		SolverTimeLimit:      time.Duration(getIntEnv("SOLVER_TIME_LIMIT_MS", 1000)) * time.Millisecond,
		SolverLogSearch:      getBoolEnv("SOLVER_LOG_SEARCH_ENABLED", getBoolEnv("ORTOOLS_LOG_SEARCH_ENABLED", false)),
		SolverRequestTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		SolverRetryAttempts:  getIntEnv("SOLVER_RETRY_ATTEMPTS", 2),

		PlanningHorizonDays: getIntEnv("PLANNING_HORIZON_DAYS", 14),
		BasePenalty:         getInt64Env("BASE_PENALTY", 100000),
		InfeasibleCost:      getInt64Env("INFEASIBLE_COST", 9999999),
		MinTravelSeconds:    getIntEnv("MIN_TRAVEL_SECONDS", 300),
		CustomerETAWindow:   getDurationEnv("CUSTOMER_ETA_WINDOW", time.Hour),
		WorkdayStartHour:    getIntEnv("WORKDAY_START_HOUR", 8),
		WorkdayEndHour:      getIntEnv("WORKDAY_END_HOUR", 17),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PlanningHorizonDays <= 0 {
		return fmt.Errorf("PLANNING_HORIZON_DAYS must be positive, got %d", c.PlanningHorizonDays)
	}
	if c.SolverTimeLimit <= 0 {
		return fmt.Errorf("SOLVER_TIME_LIMIT_MS must be positive")
	}
	if c.BasePenalty <= 0 {
		return fmt.Errorf("BASE_PENALTY must be positive, got %d", c.BasePenalty)
	}
	if c.WorkdayEndHour <= c.WorkdayStartHour {
		return fmt.Errorf("workday window is empty: start=%d end=%d", c.WorkdayStartHour, c.WorkdayEndHour)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
