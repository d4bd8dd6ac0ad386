// Package config holds the application configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Registry RegistryConfig `yaml:"registry"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// GeminiConfig holds settings for the generative AI service.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model   string        `yaml:"model"   env:"GEMINI_MODEL"   env-default:"gemini-1.5-flash"`
	Timeout time.Duration `yaml:"timeout" env:"GEMINI_TIMEOUT" env-default:"60s"`
}

// RegistryConfig holds settings for the remote prescription registry.
// An empty API key is not an error: requests are sent with an empty bearer
// token and the registry decides.
type RegistryConfig struct {
	BaseURL         string        `yaml:"base_url"         env:"MCP_SERVER_URL" env-default:"http://localhost:3003"`
	APIKey          string        `yaml:"api_key"          env:"MCP_API_KEY"`
	SaveTimeout     time.Duration `yaml:"save_timeout"     env:"MCP_SAVE_TIMEOUT"     env-default:"10s"`
	LearningTimeout time.Duration `yaml:"learning_timeout" env:"MCP_LEARNING_TIMEOUT" env-default:"5s"`
}

// StorageConfig holds local file store settings.
type StorageConfig struct {
	RecordsDir  string `yaml:"records_dir"  env:"RECORDS_DIR"  env-default:"data/prescriptions"`
	LearningDir string `yaml:"learning_dir" env:"LEARNING_DIR" env-default:"data/learning"`
	IndexLimit  int    `yaml:"index_limit"  env:"INDEX_LIMIT"  env-default:"1000"`
}

// KafkaConfig holds event stream settings. Publishing is disabled when no
// brokers are configured.
type KafkaConfig struct {
	Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
}

// BrokerList splits the comma-separated broker string.
func (k KafkaConfig) BrokerList() []string {
	if k.Brokers == "" {
		return nil
	}
	parts := strings.Split(k.Brokers, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Enabled reports whether event publishing is configured.
func (k KafkaConfig) Enabled() bool { return k.Brokers != "" }

// AuthConfig holds API key authentication settings. Keys is a comma-separated
// list of key=client pairs.
type AuthConfig struct {
	Keys string `yaml:"keys" env:"API_KEYS" env-default:"demo-api-key-12345=demo-client"`
}

// KeyMap parses the configured keys into a key -> client id map.
func (a AuthConfig) KeyMap() map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(a.Keys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			v = "client"
		}
		keys[k] = v
	}
	return keys
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"       env:"TRACING_ENABLED"    env-default:"false"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"      env-default:"localhost:4317"`
	SampleRate   float64 `yaml:"sample_rate"   env:"TRACING_SAMPLE_RATE" env-default:"1.0"`
	Environment  string  `yaml:"environment"   env:"ENVIRONMENT"        env-default:"development"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Validate checks settings that would only fail at an inconvenient time later.
func (c *Config) Validate() error {
	if c.Storage.RecordsDir == "" {
		return fmt.Errorf("storage records_dir must not be empty")
	}
	if c.Storage.LearningDir == "" {
		return fmt.Errorf("storage learning_dir must not be empty")
	}
	if c.Storage.IndexLimit <= 0 {
		return fmt.Errorf("storage index_limit must be positive, got %d", c.Storage.IndexLimit)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini model must not be empty")
	}
	return nil
}
