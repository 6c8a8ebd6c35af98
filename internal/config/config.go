// Package config loads service configuration from an optional TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/mike-a-ellis/docqa/internal/chunker"
	"github.com/mike-a-ellis/docqa/internal/embedding"
	"github.com/mike-a-ellis/docqa/internal/retriever"
)

// Index backends.
const (
	BackendFile   = "file"
	BackendQdrant = "qdrant"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Chunking   ChunkingConfig   `toml:"chunking"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Index      IndexConfig      `toml:"index"`
}

type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type ChunkingConfig struct {
	UnitSize int `toml:"unit_size"`
	Overlap  int `toml:"overlap"`
}

type RetrievalConfig struct {
	K        int     `toml:"k"`
	MinScore float64 `toml:"min_score"`
}

type EmbeddingConfig struct {
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
}

type GenerationConfig struct {
	Model string `toml:"model"`
}

type IndexConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	QdrantHost string `toml:"qdrant_host"`
	QdrantPort int    `toml:"qdrant_port"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "release",
		},
		Chunking: ChunkingConfig{
			UnitSize: chunker.DefaultUnitSize,
			Overlap:  chunker.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			K:        retriever.DefaultK,
			MinScore: retriever.DefaultMinScore,
		},
		Embedding: EmbeddingConfig{
			Model:     embedding.DefaultModel,
			Dimension: embedding.DefaultDimension,
			BatchSize: embedding.DefaultBatchSize,
		},
		Index: IndexConfig{
			Backend:    BackendFile,
			Path:       "vector_store",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
	}
}

// Load reads the config file named by CONFIG_FILE (default
// configs/config.toml) when present, then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaultConfig()

	path := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}

	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Index.Backend = getEnv("DOCQA_INDEX_BACKEND", cfg.Index.Backend)
	cfg.Index.Path = getEnv("DOCQA_INDEX_PATH", cfg.Index.Path)
	cfg.Index.QdrantHost = getEnv("QDRANT_HOST", cfg.Index.QdrantHost)
	cfg.Index.QdrantPort = getEnvInt("QDRANT_PORT", cfg.Index.QdrantPort)

	if cfg.Index.Backend != BackendFile && cfg.Index.Backend != BackendQdrant {
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.UnitSize {
		return nil, fmt.Errorf("%w: overlap %d must be less than unit size %d",
			chunker.ErrInvalidConfig, cfg.Chunking.Overlap, cfg.Chunking.UnitSize)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
