package configs

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Model     ModelConfig     `yaml:"model"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type StoreConfig struct {
	Backend   string       `yaml:"backend" validate:"oneof=sqlite qdrant"`
	Path      string       `yaml:"path" validate:"required"`
	Dimension int          `yaml:"dimension" validate:"gt=0"`
	Qdrant    QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

type ModelConfig struct {
	BaseURL         string `yaml:"base_url" validate:"required"`
	APIKeyEnv       string `yaml:"api_key_env" validate:"required"`
	GenerationModel string `yaml:"generation_model" validate:"required"`
	EmbeddingsModel string `yaml:"embeddings_model" validate:"required"`
	BatchSize       int    `yaml:"batch_size" validate:"gt=0"`
}

type RetrievalConfig struct {
	TopK         int     `yaml:"top_k" validate:"gt=0"`
	Temperature  float64 `yaml:"temperature" validate:"gte=0,lte=1"`
	ContextChars int     `yaml:"context_chars" validate:"gt=0"`
}

type IngestConfig struct {
	Workers     int `yaml:"workers" validate:"gt=0"`
	MaxAttempts int `yaml:"max_attempts" validate:"gt=0"`
}

// Load reads the YAML config at path, expanding ${ENV} references first. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   "sqlite",
			Path:      "data/books.db",
			Dimension: 768,
			Qdrant:    QdrantConfig{Host: "localhost", Port: 6334, Collection: "passages"},
		},
		Model: ModelConfig{
			BaseURL:         "http://localhost:1234",
			APIKeyEnv:       "LLM_API_KEY",
			GenerationModel: "gemini-2.0-flash",
			EmbeddingsModel: "multilingual-e5-base",
			BatchSize:       32,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			Temperature:  0.7,
			ContextChars: 6000,
		},
		Ingest: IngestConfig{
			Workers:     4,
			MaxAttempts: 3,
		},
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Backend == "qdrant" {
		if c.Store.Qdrant.Host == "" || c.Store.Qdrant.Port == 0 || c.Store.Qdrant.Collection == "" {
			return fmt.Errorf("invalid config: qdrant backend needs host, port and collection")
		}
	}
	return nil
}

// APIKey resolves the remote model credential. A missing key is a startup
// failure, never a per-query one.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.Model.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set; the remote model cannot be reached", c.Model.APIKeyEnv)
	}
	return key, nil
}
