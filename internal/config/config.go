package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	App           AppConfig
	Market        MarketConfig
	Collaborators CollaboratorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
}

// MarketConfig holds prediction market rules
type MarketConfig struct {
	ModerationRequired     bool
	ReportThreshold        int
	RequiredCompletedCount int
	MonthlyPollLimit       int
	CooldownHours          int
	SweepInterval          time.Duration
}

// CollaboratorConfig holds settings for the external services the engine
// consults (progress tracker, squad directory)
type CollaboratorConfig struct {
	ProgressTrackerURL string
	SquadDirectoryURL  string
	RequestTimeout     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "squad_predictions"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Market: MarketConfig{
			ModerationRequired:     getEnvBool("POLL_MODERATION_REQUIRED", true),
			ReportThreshold:        getEnvInt("POLL_REPORT_THRESHOLD", 5),
			RequiredCompletedCount: getEnvInt("POLL_REQUIRED_COMPLETED", 3),
			MonthlyPollLimit:       getEnvInt("POLL_MONTHLY_LIMIT", 4),
			CooldownHours:          getEnvInt("POLL_COOLDOWN_HOURS", 24),
			SweepInterval:          getEnvDuration("POLL_SWEEP_INTERVAL", time.Minute),
		},
		Collaborators: CollaboratorConfig{
			ProgressTrackerURL: getEnv("PROGRESS_TRACKER_URL", "http://localhost:8091"),
			SquadDirectoryURL:  getEnv("SQUAD_DIRECTORY_URL", "http://localhost:8092"),
			RequestTimeout:     getEnvDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Market.ReportThreshold <= 0 {
		return nil, fmt.Errorf("POLL_REPORT_THRESHOLD must be positive")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
