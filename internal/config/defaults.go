package config

// DefaultExtensions are the recognized text and code file extensions.
// Files with other extensions are still indexed when their content sniffs
// as text.
var DefaultExtensions = []string{
	".txt", ".md", ".rst",
	".py", ".go", ".js", ".ts",
	".json", ".yaml", ".yml", ".toml",
	".sh", ".sql",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Notes.Directory == "" {
		cfg.Notes.Directory = "notes"
	}
	if cfg.Notes.Extensions == nil {
		cfg.Notes.Extensions = DefaultExtensions
	}
	if cfg.Index.DatabasePath == "" {
		cfg.Index.DatabasePath = ".psearch/index.db"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 1000
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 200
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
}
