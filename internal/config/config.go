// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Eastmoney endpoints used when no override is configured.
const (
	DefaultStatementsURL = "https://emweb.securities.eastmoney.com/PC_HSF10/NewFinanceAnalysis"
	DefaultDatacenterURL = "https://datacenter.eastmoney.com/securities/api/data/get"
	DefaultStockListURL  = "https://data.eastmoney.com/dataapi/xuangu/list"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for both databases, always absolute
	LogLevel string
	Port     int
	DevMode  bool

	HTTPTimeout        time.Duration
	SmoothingFactor    float64 // alpha for the ses aggregate
	ReportYears        int
	FetchConcurrency   int
	IndicatorSyncPages int
	RefreshSchedule    string // cron spec (with seconds), empty disables

	Eastmoney EastmoneyConfig
}

// EastmoneyConfig holds the remote endpoints.
type EastmoneyConfig struct {
	StatementsURL string
	DatacenterURL string
	StockListURL  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("VALUESCOPE_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".valuescope")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		LogLevel:           getEnv("VALUESCOPE_LOG_LEVEL", "info"),
		Port:               getEnvAsInt("VALUESCOPE_PORT", 8030),
		DevMode:            getEnvAsBool("VALUESCOPE_DEV_MODE", false),
		HTTPTimeout:        getEnvAsDuration("VALUESCOPE_HTTP_TIMEOUT", 30*time.Second),
		SmoothingFactor:    getEnvAsFloat("VALUESCOPE_SES_ALPHA", 0.5),
		ReportYears:        getEnvAsInt("VALUESCOPE_REPORT_YEARS", 6),
		FetchConcurrency:   getEnvAsInt("VALUESCOPE_FETCH_CONCURRENCY", 8),
		IndicatorSyncPages: getEnvAsInt("VALUESCOPE_INDICATOR_SYNC_PAGES", 50),
		RefreshSchedule:    strings.TrimSpace(getEnv("VALUESCOPE_REFRESH_SCHEDULE", "")),
		Eastmoney: EastmoneyConfig{
			StatementsURL: getEnv("VALUESCOPE_EASTMONEY_STATEMENTS_URL", DefaultStatementsURL),
			DatacenterURL: getEnv("VALUESCOPE_EASTMONEY_DATACENTER_URL", DefaultDatacenterURL),
			StockListURL:  getEnv("VALUESCOPE_EASTMONEY_STOCKLIST_URL", DefaultStockListURL),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("ses alpha must be in (0, 1], got %v", c.SmoothingFactor)
	}
	if c.ReportYears < 1 {
		return fmt.Errorf("report years must be positive, got %d", c.ReportYears)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be positive, got %d", c.FetchConcurrency)
	}
	if c.IndicatorSyncPages < 1 {
		return fmt.Errorf("indicator sync pages must be positive, got %d", c.IndicatorSyncPages)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
