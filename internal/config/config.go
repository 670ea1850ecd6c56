// Package config loads and layers codesearch configuration: hardcoded
// defaults, a user config, a project config, then environment
// variables, per SPEC_FULL.md §6.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/codesearch-dev/codesearch/internal/embed"
)

// Config is the complete codesearch configuration.
type Config struct {
	Search   SearchConfig   `yaml:"search"`
	Embed    EmbedConfig    `yaml:"embed"`
	Cache    CacheConfig    `yaml:"cache"`
	Watch    WatchConfig    `yaml:"watch"`
	KV       KVConfig       `yaml:"kv"`
	Server   ServerConfig   `yaml:"server"`
}

// SearchConfig configures hybrid retrieval and fusion, per spec.md §3
// ("Schema metadata... fusion constants (defaults: k=20, rerank-top=50)").
type SearchConfig struct {
	RRFConstant    int `yaml:"rrf_constant"`
	RerankTop      int `yaml:"rerank_top"`
	DefaultLimit   int `yaml:"default_limit"`
}

// EmbedConfig selects and configures the embedder (spec.md §4.F).
type EmbedConfig struct {
	Provider  string `yaml:"provider"` // "ollama" or "static"
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
	BatchSize int    `yaml:"batch_size"` // 0 = auto-select per spec.md §4.F
}

// CacheConfig configures the embedding cache (spec.md §4.E).
type CacheConfig struct {
	MaxMemoryMB int `yaml:"max_memory_mb"`
	QueryCacheN int `yaml:"query_cache_entries"`
}

// WatchConfig configures the watcher suite (spec.md §4.N).
type WatchConfig struct {
	DebounceMS    int `yaml:"debounce_ms"`
	HeadPollMS    int `yaml:"head_poll_ms"`
}

// KVConfig configures the KV environment's growth policy (spec.md §4.J).
type KVConfig struct {
	InitialSizeMB int `yaml:"initial_size_mb"`
	MaxSizeMB     int `yaml:"max_size_mb"`
}

// ServerConfig configures the HTTP surface (spec.md §6).
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the hardcoded baseline configuration.
func Default() Config {
	return Config{
		Search: SearchConfig{
			RRFConstant:  20,
			RerankTop:    50,
			DefaultLimit: 25,
		},
		Embed: EmbedConfig{
			Provider:  "static",
			Model:     "static-256",
			OllamaURL: "http://127.0.0.1:11434",
			BatchSize: 0,
		},
		Cache: CacheConfig{
			MaxMemoryMB: 500,
			QueryCacheN: 128,
		},
		Watch: WatchConfig{
			DebounceMS: 1500,
			HeadPollMS: 100,
		},
		KV: KVConfig{
			InitialSizeMB: 1024,
			MaxSizeMB:     8192,
		},
		Server: ServerConfig{
			Port: 4444,
		},
	}
}

// Load builds the layered configuration: defaults, then
// ~/.config/codesearch/config.yaml, then <repoRoot>/.codesearch.yaml,
// then environment variables.
func Load(repoRoot string) (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		_ = mergeFile(&cfg, filepath.Join(home, ".config", "codesearch", "config.yaml"))
	}
	if err := mergeFile(&cfg, filepath.Join(repoRoot, ".codesearch.yaml")); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv applies the environment variables named in spec.md §6,
// which take precedence over both config files.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODESEARCH_CACHE_MAX_MEMORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.MaxMemoryMB = n
		}
	}
	if v := os.Getenv("CODESEARCH_BATCH_SIZE"); v != "" {
		if v == "auto" {
			cfg.Embed.BatchSize = 0
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embed.BatchSize = n
		}
	}
}

// AutoBatchSize returns the default batch size for a model's
// dimension, per spec.md §4.F ("default 32 for 384-d, 16 for 768-d,
// 8 for 1024-d"), or the configured override when non-zero.
func (c EmbedConfig) AutoBatchSize(dimensions int) int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return embed.AutoBatchSize(dimensions)
}
