// Package config loads rackcheck settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Provider names accepted for embedding and LLM backends.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderVoyage    = "voyage"
	ProviderBedrock   = "bedrock"
)

// Knowledge index backends.
const (
	BackendMemory    = "memory"
	BackendSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	KnowledgeBackend string `validate:"oneof=memory surrealdb"`
	SeedFile         string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string `validate:"oneof=root database"`

	// Embeddings
	EmbedProvider  string `validate:"oneof=ollama openai voyage"`
	EmbedModel     string `validate:"required"`
	EmbedDimension int    `validate:"gt=0"`

	// Reasoning
	LLMProvider string `validate:"oneof=ollama openai anthropic bedrock"`
	LLMModel    string `validate:"required"`
	LLMRetries  int    `validate:"gte=0,lte=10"`

	// Provider credentials and endpoints
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	VoyageAPIKey    string
	AWSRegion       string

	Retrieval Retrieval

	LaneTimeout        time.Duration `validate:"gt=0"`
	PipelineTimeout    time.Duration `validate:"gt=0"`
	PriorityTimeout    time.Duration `validate:"gt=0"`
	MaxConcurrentLanes int           `validate:"gt=0"`

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Retrieval holds the per-lane similarity thresholds and result limits.
// The defaults were tuned empirically against ada-002 style embeddings.
type Retrieval struct {
	LocationThreshold  float64 `validate:"gte=0"`
	LocationTopK       int     `validate:"gt=0"`
	InventoryThreshold float64 `validate:"gte=0"`
	InventoryTopK      int     `validate:"gt=0"`
	ManualThreshold    float64 `validate:"gte=0"`
	ManualTopK         int     `validate:"gt=0"`
}

// DefaultRetrieval returns the stock thresholds and limits.
func DefaultRetrieval() Retrieval {
	return Retrieval{
		LocationThreshold:  0.7,
		LocationTopK:       3,
		InventoryThreshold: 0.7,
		InventoryTopK:      2,
		ManualThreshold:    0.78,
		ManualTopK:         3,
	}
}

// Load reads configuration from environment variables.
func Load() Config {
	def := DefaultRetrieval()
	return Config{
		KnowledgeBackend: getEnv("RACKCHECK_KNOWLEDGE_BACKEND", BackendMemory),
		SeedFile:         getEnv("RACKCHECK_SEED_FILE", ""),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "rackcheck"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "datacenter"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  getEnv("RACKCHECK_EMBED_PROVIDER", ProviderOllama),
		EmbedModel:     getEnv("RACKCHECK_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("RACKCHECK_EMBED_DIMENSION", 384),

		LLMProvider: getEnv("RACKCHECK_LLM_PROVIDER", ProviderOllama),
		LLMModel:    getEnv("RACKCHECK_LLM_MODEL", "llama3.2"),
		LLMRetries:  getEnvInt("RACKCHECK_LLM_RETRIES", 2),

		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		VoyageAPIKey:    getEnv("VOYAGE_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		Retrieval: Retrieval{
			LocationThreshold:  getEnvFloat("RACKCHECK_LOCATION_THRESHOLD", def.LocationThreshold),
			LocationTopK:       getEnvInt("RACKCHECK_LOCATION_TOPK", def.LocationTopK),
			InventoryThreshold: getEnvFloat("RACKCHECK_INVENTORY_THRESHOLD", def.InventoryThreshold),
			InventoryTopK:      getEnvInt("RACKCHECK_INVENTORY_TOPK", def.InventoryTopK),
			ManualThreshold:    getEnvFloat("RACKCHECK_MANUAL_THRESHOLD", def.ManualThreshold),
			ManualTopK:         getEnvInt("RACKCHECK_MANUAL_TOPK", def.ManualTopK),
		},

		LaneTimeout:        getEnvDuration("RACKCHECK_LANE_TIMEOUT", 30*time.Second),
		PipelineTimeout:    getEnvDuration("RACKCHECK_PIPELINE_TIMEOUT", 90*time.Second),
		PriorityTimeout:    getEnvDuration("RACKCHECK_PRIORITY_TIMEOUT", 30*time.Second),
		MaxConcurrentLanes: getEnvInt("RACKCHECK_MAX_LANES", 8),

		LogFile:  getEnv("RACKCHECK_LOG_FILE", "/tmp/rackcheck.log"),
		LogLevel: ParseLogLevel(getEnv("RACKCHECK_LOG_LEVEL", "INFO")),
	}
}

// Validate checks value ranges and provider names.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring malformed integer setting", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("ignoring malformed float setting", "key", key, "value", val)
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("ignoring malformed duration setting", "key", key, "value", val)
		return defaultVal
	}
	return d
}

// ParseLogLevel maps DEBUG/INFO/WARN/ERROR to slog levels, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
