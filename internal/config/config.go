// Package config loads process configuration from the environment (with
// an optional .env overlay) and an optional YAML file for static defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the batch-cache Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VectorStoreConfig holds the on-disk root for persisted index artifacts
// and ingested document bytes.
type VectorStoreConfig struct {
	Root string `yaml:"root"`
}

// ProviderConfig holds a single LLM/embeddings provider's credentials.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LLMConfig groups the three provider configs plus the embeddings
// endpoint used by DenseEngine.
type LLMConfig struct {
	OpenAI        ProviderConfig `yaml:"openai"`
	Anthropic     ProviderConfig `yaml:"anthropic"`
	Google        ProviderConfig `yaml:"google"`
	EmbeddingsURL string         `yaml:"embeddings_url"`
	EmbeddingModel string        `yaml:"embedding_model"`
}

// JobsConfig controls the bounded worker pool.
type JobsConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// BatchConfig controls the batch orchestrator's cache.
type BatchConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Config is the root configuration object threaded through the app.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Batch       BatchConfig       `yaml:"batch"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads an optional .env file into the process environment
// (overwriting variables already set there), then an optional YAML file,
// then applies environment variable overrides on top of the YAML values.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Overload(".env")

	cfg := &Config{}
	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config yaml %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config yaml %s: %w", yamlPath, err)
		}
	}

	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.LogLevel, "info")
	cfg.Server.Addr = firstNonEmpty(os.Getenv("SERVER_ADDR"), cfg.Server.Addr, ":8080")
	cfg.Database.DSN = firstNonEmpty(os.Getenv("DATABASE_DSN"), cfg.Database.DSN)
	cfg.Redis.Addr = firstNonEmpty(os.Getenv("REDIS_ADDR"), cfg.Redis.Addr, "localhost:6379")
	cfg.Redis.Password = firstNonEmpty(os.Getenv("REDIS_PASSWORD"), cfg.Redis.Password)
	cfg.Redis.DB = parseInt(os.Getenv("REDIS_DB"), cfg.Redis.DB)
	cfg.VectorStore.Root = firstNonEmpty(os.Getenv("VECTOR_STORE_PATH"), cfg.VectorStore.Root, "./data/vectorstore")

	cfg.LLM.OpenAI.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), cfg.LLM.OpenAI.APIKey)
	cfg.LLM.OpenAI.BaseURL = firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), cfg.LLM.OpenAI.BaseURL)
	cfg.LLM.Anthropic.APIKey = firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), cfg.LLM.Anthropic.APIKey)
	cfg.LLM.Anthropic.BaseURL = firstNonEmpty(os.Getenv("ANTHROPIC_BASE_URL"), cfg.LLM.Anthropic.BaseURL)
	cfg.LLM.Google.APIKey = firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), cfg.LLM.Google.APIKey)
	cfg.LLM.Google.BaseURL = firstNonEmpty(os.Getenv("GOOGLE_BASE_URL"), cfg.LLM.Google.BaseURL)
	cfg.LLM.EmbeddingsURL = firstNonEmpty(os.Getenv("EMBEDDINGS_URL"), cfg.LLM.EmbeddingsURL, "https://api.openai.com/v1/embeddings")
	cfg.LLM.EmbeddingModel = firstNonEmpty(os.Getenv("EMBEDDING_MODEL"), cfg.LLM.EmbeddingModel, "text-embedding-3-small")

	cfg.Jobs.Workers = parseInt(os.Getenv("JOB_WORKERS"), firstNonZero(cfg.Jobs.Workers, 4))
	cfg.Jobs.Timeout = parseDuration(os.Getenv("JOB_TIMEOUT"), firstNonZeroDur(cfg.Jobs.Timeout, 10*time.Minute))
	cfg.Batch.CacheTTL = parseDuration(os.Getenv("BATCH_CACHE_TTL"), firstNonZeroDur(cfg.Batch.CacheTTL, 5*time.Minute))

	return cfg, nil
}

func firstNonZero(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func firstNonZeroDur(v, def time.Duration) time.Duration {
	if v != 0 {
		return v
	}
	return def
}
