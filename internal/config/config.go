// Package config provides configuration loading and structs for psearch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Notes     NotesConfig     `yaml:"notes"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// NotesConfig describes the directory of files to index.
type NotesConfig struct {
	Directory string `yaml:"directory"`
	// Extensions is the list of recognized file extensions. Files with
	// other or no extensions are accepted only if a bounded prefix of
	// their content decodes as text.
	Extensions []string `yaml:"extensions"`
}

// IndexConfig holds index storage and chunking settings.
type IndexConfig struct {
	DatabasePath string `yaml:"database_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	// Workers bounds how many files are chunked and embedded concurrently
	// during a refresh. Chunk order within a file is always preserved.
	Workers int `yaml:"workers"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "ollama" (default) or
	// "mock" (deterministic offline embeddings, mainly for tests).
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds query-time settings.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Notes.Directory = expandPath(cfg.Notes.Directory, configDir)
	cfg.Index.DatabasePath = expandPath(cfg.Index.DatabasePath, configDir)

	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Notes.Directory = expandPath(cfg.Notes.Directory, ".")
	cfg.Index.DatabasePath = expandPath(cfg.Index.DatabasePath, ".")
	return cfg
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
