// Package config loads the service configuration.
//
// Values are layered from lowest to highest priority: built-in defaults, the
// YAML file named by CONFIG_FILE, environment variables. The YAML file is also
// the only source watched for hot reload (see Watcher).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"product-catalog/internal/catalog"
	"product-catalog/internal/resilience"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

var validate = validator.New()

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string      `yaml:"serverAddress" validate:"required"`
	Environment   Environment `yaml:"environment" validate:"oneof=development staging production"`
	LogLevel      string      `yaml:"logLevel" validate:"oneof=debug info warn error"`

	// Store configuration
	Store            string   `yaml:"store" validate:"oneof=dynamodb memory"`
	Region           string   `yaml:"dynamoDbRegion" validate:"required"`
	TableName        string   `yaml:"tableName" validate:"required"`
	DynamoDBEndpoint string   `yaml:"dynamoDbEndpoint"`
	RequiredTables   []string `yaml:"requiredTables"`
	SearchMatchMode  string   `yaml:"searchMatchMode" validate:"omitempty,oneof=insensitive canonical"`

	// Events
	EventBusName string `yaml:"eventBusName"`

	// Authentication
	Auth AuthConfig `yaml:"auth"`

	// Observability
	EnableMetrics bool   `yaml:"enableMetrics"`
	EnableTracing bool   `yaml:"enableTracing"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`

	// Per-operation resilience overrides, keyed by operation name.
	Policies map[string]resilience.PolicyOverride `yaml:"policies"`

	// ConfigFile is the YAML file the configuration was read from, if any.
	ConfigFile string `yaml:"-"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Issuer       string `yaml:"issuer"`
	Secret       string `yaml:"secret"`
	Audience     string `yaml:"audience"`
	AdminGroup   string `yaml:"adminGroup" validate:"required"`
	TrustGateway bool   `yaml:"trustGateway"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		ServerAddress:   ":8080",
		Environment:     Development,
		LogLevel:        "info",
		Store:           StoreDynamoDB,
		Region:          "us-east-1",
		TableName:       "products",
		SearchMatchMode: string(catalog.MatchCaseInsensitive),
		Auth: AuthConfig{
			Issuer:     "product-catalog",
			AdminGroup: "admin",
		},
		EnableMetrics: true,
	}
}

// Load reads the configuration from CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom reads the configuration from path (may be empty) and the environment.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
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
	c.Environment = Environment(getEnv("ENVIRONMENT", string(c.Environment)))
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))

	c.Store = strings.ToLower(getEnv("STORE", c.Store))
	c.Region = getEnv("DYNAMODB_REGION", getEnv("AWS_REGION", c.Region))
	c.TableName = getEnv("TABLE_NAME", c.TableName)
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.RequiredTables = getEnvList("REQUIRED_TABLES", c.RequiredTables)
	c.SearchMatchMode = strings.ToLower(getEnv("SEARCH_MATCH_MODE", c.SearchMatchMode))

	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.Secret = getEnv("JWT_SECRET", c.Auth.Secret)
	c.Auth.Audience = getEnv("JWT_AUDIENCE", c.Auth.Audience)
	c.Auth.AdminGroup = getEnv("ADMIN_GROUP", c.Auth.AdminGroup)
	c.Auth.TrustGateway = getEnvBool("TRUST_API_GATEWAY", c.Auth.TrustGateway)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Environment == Production && c.Auth.Secret == "" && !c.Auth.TrustGateway {
		return fmt.Errorf("JWT_SECRET is required in production unless TRUST_API_GATEWAY is set")
	}
	for name := range c.Policies {
		if _, ok := DefaultPolicies()[name]; !ok {
			return fmt.Errorf("unknown operation %q in policies", name)
		}
		if err := c.Policy(name).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Policy returns the effective resilience policy of an operation: the default
// with any configured override applied.
func (c *Config) Policy(name string) resilience.Policy {
	policy, ok := DefaultPolicies()[name]
	if !ok {
		policy = resilience.NewPolicy(name, DefaultTimeout, DefaultMaxRetries, DefaultBulkhead)
	}
	if override, ok := c.Policies[name]; ok {
		policy = policy.Merge(override)
	}
	return policy
}

// Tables returns the tables the readiness check requires.
func (c *Config) Tables() []string {
	if len(c.RequiredTables) > 0 {
		return c.RequiredTables
	}
	return []string{c.TableName}
}

// MatchMode returns the configured search match mode.
func (c *Config) MatchMode() catalog.MatchMode {
	return catalog.ParseMatchMode(c.SearchMatchMode)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
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
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value == "yes"
}

// getEnvList gets a comma separated environment variable with a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
