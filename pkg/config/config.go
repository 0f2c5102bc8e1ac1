package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// FirebaseConfig holds identity-provider configuration. Token lookup is a
// REST call keyed by the project's web API key.
type FirebaseConfig struct {
	APIKey string
}

// OpenAIConfig holds language-model configuration
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// RagieConfig holds retrieval-service configuration
type RagieConfig struct {
	APIKey  string
	BaseURL string
}

// StripeConfig holds payment-processor configuration
type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	PlatformFeePercent int
}

// AppConfig holds settings for browser-facing redirects
type AppConfig struct {
	BaseURL string
}

// Config holds all configuration
type Config struct {
	DB       DBConfig
	Server   ServerConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Firebase FirebaseConfig
	OpenAI   OpenAIConfig
	Ragie    RagieConfig
	Stripe   StripeConfig
	App      AppConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "creatorchat"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Info),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "creatorchat"),
		},
		Firebase: FirebaseConfig{
			APIKey: getEnv("FIREBASE_API_KEY", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Ragie: RagieConfig{
			APIKey:  getEnv("RAGIE_API_KEY", ""),
			BaseURL: getEnv("RAGIE_BASE_URL", "https://api.ragie.ai"),
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PlatformFeePercent: getEnvAsInt("PLATFORM_FEE_PERCENT", 10),
		},
		App: AppConfig{
			BaseURL: getEnv("APP_URL", "http://localhost:3000"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate rejects a configuration that cannot serve chat requests.
// Stripe settings stay optional: without them the paid tier is disabled
// but free orgs keep working.
func (c *Config) validate() error {
	missing := []string{}
	if c.Firebase.APIKey == "" {
		missing = append(missing, "FIREBASE_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Ragie.APIKey == "" {
		missing = append(missing, "RAGIE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		fmt.Printf("Warning: Stripe environment variables not set, paid subscriptions disabled\n")
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("ragie_base_url", c.Ragie.BaseURL),
		zap.String("openai_model", c.OpenAI.Model),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
