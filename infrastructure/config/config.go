package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	domaincfg "socialcore/domain/config"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	TableName        string `yaml:"table_name"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`
	EventBusName     string `yaml:"event_bus_name"`
	StoreBackend     string `yaml:"store_backend"`

	// WebSocket configuration
	WebSocketEndpoint string        `yaml:"websocket_endpoint"`
	ConnectionTTL     time.Duration `yaml:"connection_ttl"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Domain rules
	FlagThresholdRatio    float64 `yaml:"flag_threshold_ratio"`
	AppliedMarkerTTLHours int     `yaml:"applied_marker_ttl_hours"`

	// Observability
	MetricsNamespace string `yaml:"metrics_namespace"`

	// Rate limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
	EnableCORS    bool `yaml:"enable_cors"`
}

// defaults returns the configuration used when neither file nor environment say otherwise.
func defaults() *Config {
	return &Config{
		ServerAddress:         ":8080",
		Environment:           "development",
		AWSRegion:             "us-west-2",
		TableName:             "socialcore",
		StoreBackend:          StoreDynamoDB,
		ConnectionTTL:         2 * time.Hour,
		LogLevel:              "info",
		FlagThresholdRatio:    0.1,
		AppliedMarkerTTLHours: 168,
		MetricsNamespace:      "SocialCore",
		RateLimitPerMinute:    100,
		EnableMetrics:         true,
		EnableCORS:            true,
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing priority. A local .env file is
// read into the environment first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.WebSocketEndpoint = getEnv("WEBSOCKET_ENDPOINT", c.WebSocketEndpoint)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.FlagThresholdRatio = getEnvFloat("FLAG_THRESHOLD_RATIO", c.FlagThresholdRatio)
	c.AppliedMarkerTTLHours = getEnvInt("APPLIED_MARKER_TTL_HOURS", c.AppliedMarkerTTLHours)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("TABLE_NAME is required")
	}
	if c.FlagThresholdRatio <= 0 || c.FlagThresholdRatio > 1 {
		return fmt.Errorf("FLAG_THRESHOLD_RATIO must be in (0, 1], got %v", c.FlagThresholdRatio)
	}
	if c.AppliedMarkerTTLHours <= 0 {
		return fmt.Errorf("APPLIED_MARKER_TTL_HOURS must be positive")
	}
	switch c.StoreBackend {
	case StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// Domain translates the deployment settings into domain rules.
func (c *Config) Domain() *domaincfg.DomainConfig {
	d := domaincfg.DefaultDomainConfig()
	d.FlagThresholdRatio = c.FlagThresholdRatio
	d.AppliedMarkerTTL = time.Duration(c.AppliedMarkerTTLHours) * time.Hour
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
