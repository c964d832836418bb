package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvVars clears all dispatch-related environment variables.
func clearEnvVars() {
	envVars := []string{
		"APP_ENV", "LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_URL", "SQLITE_PATH",
		"REDIS_URL", "RABBITMQ_URL",
		"SOLVER_LISTEN_ADDR", "SOLVER_URL", "SOLVER_TIME_LIMIT_MS",
		"SOLVER_LOG_SEARCH_ENABLED", "ORTOOLS_LOG_SEARCH_ENABLED",
		"SOLVER_RETRY_ATTEMPTS", "HTTP_TIMEOUT",
		"PLANNING_HORIZON_DAYS", "BASE_PENALTY", "INFEASIBLE_COST",
		"MIN_TRAVEL_SECONDS", "CUSTOMER_ETA_WINDOW",
		"WORKDAY_START_HOUR", "WORKDAY_END_HOUR",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, "", cfg.RabbitMQURL)

	assert.Equal(t, ":8090", cfg.SolverListenAddr)
	assert.Equal(t, "http://localhost:8090", cfg.SolverURL)
	assert.Equal(t, time.Second, cfg.SolverTimeLimit)
	assert.False(t, cfg.SolverLogSearch)
	assert.Equal(t, 30*time.Second, cfg.SolverRequestTimeout)
	assert.Equal(t, 2, cfg.SolverRetryAttempts)

	assert.Equal(t, 14, cfg.PlanningHorizonDays)
	assert.Equal(t, int64(100000), cfg.BasePenalty)
	assert.Equal(t, int64(9999999), cfg.InfeasibleCost)
	assert.Equal(t, 300, cfg.MinTravelSeconds)
	assert.Equal(t, time.Hour, cfg.CustomerETAWindow)
	assert.Equal(t, 8, cfg.WorkdayStartHour)
	assert.Equal(t, 17, cfg.WorkdayEndHour)
}

func TestLoad_WithCustomEnvVars(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("APP_ENV", "production")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("SOLVER_TIME_LIMIT_MS", "2500")
	os.Setenv("PLANNING_HORIZON_DAYS", "7")
	os.Setenv("BASE_PENALTY", "250000")
	os.Setenv("CUSTOMER_ETA_WINDOW", "30m")
	os.Setenv("SOLVER_LOG_SEARCH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500*time.Millisecond, cfg.SolverTimeLimit)
	assert.Equal(t, 7, cfg.PlanningHorizonDays)
	assert.Equal(t, int64(250000), cfg.BasePenalty)
	assert.Equal(t, 30*time.Minute, cfg.CustomerETAWindow)
	assert.True(t, cfg.SolverLogSearch)
}

func TestLoad_LegacySearchLogFlag(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	// The old flag name still enables the search log.
	os.Setenv("ORTOOLS_LOG_SEARCH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.SolverLogSearch)
}

func TestLoad_InvalidHorizon(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("PLANNING_HORIZON_DAYS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLANNING_HORIZON_DAYS")
}

func TestLoad_EmptyWorkday(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("WORKDAY_START_HOUR", "17")
	os.Setenv("WORKDAY_END_HOUR", "8")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workday window")
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		appEnv   string
		expected bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"test", false},
	}

	for _, tt := range tests {
		t.Run(tt.appEnv, func(t *testing.T) {
			cfg := &Config{AppEnv: tt.appEnv}
			assert.Equal(t, tt.expected, cfg.IsDevelopment())
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		appEnv   string
		expected bool
	}{
		{"development", false},
		{"production", true},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.appEnv, func(t *testing.T) {
			cfg := &Config{AppEnv: tt.appEnv}
			assert.Equal(t, tt.expected, cfg.IsProduction())
		})
	}
}

func TestGetEnv(t *testing.T) {
	value := getEnv("NON_EXISTENT_VAR", "default")
	assert.Equal(t, "default", value)

	os.Setenv("TEST_VAR", "custom")
	defer os.Unsetenv("TEST_VAR")
	value = getEnv("TEST_VAR", "default")
	assert.Equal(t, "custom", value)

	os.Setenv("TEST_EMPTY", "")
	defer os.Unsetenv("TEST_EMPTY")
	value = getEnv("TEST_EMPTY", "default")
	assert.Equal(t, "default", value)
}

func TestGetIntEnv(t *testing.T) {
	value := getIntEnv("NON_EXISTENT_INT", 42)
	assert.Equal(t, 42, value)

	os.Setenv("TEST_INT", "100")
	defer os.Unsetenv("TEST_INT")
	value = getIntEnv("TEST_INT", 42)
	assert.Equal(t, 100, value)

	os.Setenv("TEST_INVALID_INT", "not-a-number")
	defer os.Unsetenv("TEST_INVALID_INT")
	value = getIntEnv("TEST_INVALID_INT", 42)
	assert.Equal(t, 42, value)
}

func TestGetInt64Env(t *testing.T) {
	value := getInt64Env("NON_EXISTENT_INT64", 9999999)
	assert.Equal(t, int64(9999999), value)

	os.Setenv("TEST_INT64", "123456789012")
	defer os.Unsetenv("TEST_INT64")
	value = getInt64Env("TEST_INT64", 1)
	assert.Equal(t, int64(123456789012), value)
}

func TestGetDurationEnv(t *testing.T) {
	value := getDurationEnv("NON_EXISTENT_DUR", 5*time.Second)
	assert.Equal(t, 5*time.Second, value)

	os.Setenv("TEST_DUR", "10m")
	defer os.Unsetenv("TEST_DUR")
	value = getDurationEnv("TEST_DUR", 5*time.Second)
	assert.Equal(t, 10*time.Minute, value)

	os.Setenv("TEST_INVALID_DUR", "not-a-duration")
	defer os.Unsetenv("TEST_INVALID_DUR")
	value = getDurationEnv("TEST_INVALID_DUR", 5*time.Second)
	assert.Equal(t, 5*time.Second, value)
}

func TestGetBoolEnv(t *testing.T) {
	value := getBoolEnv("NON_EXISTENT_BOOL", true)
	assert.True(t, value)

	trueValues := []string{"true", "1", "True", "TRUE"}
	for _, tv := range trueValues {
		os.Setenv("TEST_BOOL", tv)
		value = getBoolEnv("TEST_BOOL", false)
		assert.True(t, value, "Expected true for value: %s", tv)
	}

	falseValues := []string{"false", "0", "False", "FALSE"}
	for _, fv := range falseValues {
		os.Setenv("TEST_BOOL", fv)
		value = getBoolEnv("TEST_BOOL", true)
		assert.False(t, value, "Expected false for value: %s", fv)
	}
	os.Unsetenv("TEST_BOOL")
}
