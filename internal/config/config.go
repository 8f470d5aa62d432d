package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Rewards  RewardsConfig
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

// RewardsConfig holds the credit amounts paid by the rewards engine. The
// streak curve is data, not logic: it is parsed here and injected into the
// login service.
type RewardsConfig struct {
	ReferralSignupBonus    int64
	ReferralFirstTaskBonus int64
	StreakCurve            []StreakCurvePoint
}

// StreakCurvePoint maps a minimum streak length to a daily bonus amount
type StreakCurvePoint struct {
	MinStreak int
	Credits   int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	curve, err := parseStreakCurve(getEnv("STREAK_REWARD_CURVE", "1:5,2:10,3:15,5:20,7:25"))
	if err != nil {
		return nil, fmt.Errorf("invalid STREAK_REWARD_CURVE: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "blockforge"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Rewards: RewardsConfig{
			ReferralSignupBonus:    getEnvInt64("REFERRAL_SIGNUP_BONUS", 50),
			ReferralFirstTaskBonus: getEnvInt64("REFERRAL_FIRST_TASK_BONUS", 25),
			StreakCurve:            curve,
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
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

// parseStreakCurve parses "minStreak:credits" pairs, e.g. "1:5,2:10,7:25"
func parseStreakCurve(raw string) ([]StreakCurvePoint, error) {
	var curve []StreakCurvePoint
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(pair), ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		minStreak, err := strconv.Atoi(parts[0])
		if err != nil || minStreak < 1 {
			return nil, fmt.Errorf("invalid streak %q", parts[0])
		}
		credits, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || credits < 0 {
			return nil, fmt.Errorf("invalid credits %q", parts[1])
		}
		curve = append(curve, StreakCurvePoint{MinStreak: minStreak, Credits: credits})
	}
	if len(curve) == 0 {
		return nil, fmt.Errorf("curve is empty")
	}
	sort.Slice(curve, func(i, j int) bool { return curve[i].MinStreak < curve[j].MinStreak })
	return curve, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt64 gets an integer environment variable with a fallback default
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
