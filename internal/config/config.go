package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	DBPath      string           `json:"db_path"`
	Migrations  string           `json:"migrations_dir"`
	StagingDir  string           `json:"staging_dir"`
	CORSAllow   []string         `json:"cors_allowlist"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Upload      UploadConfig     `json:"upload"`
	AI          AIConfig         `json:"ai"`
	PreviewTTL  int              `json:"preview_ttl_hours"`
	CleanupSpec string           `json:"cleanup_spec"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Index       IndexConfig      `json:"index"`
}

type UploadConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	MaxChunks      int   `json:"max_chunks"`
	MaxRetries     int   `json:"max_retries"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Timeout    int         `json:"timeout"`
	Data       interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IndexConfig struct {
	DSN            string `json:"dsn"`
	EmbedCacheSize int    `json:"embed_cache_size"`
	EmbedCacheTTL  int    `json:"embed_cache_ttl_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Migrations == "" {
		cfg.Migrations = "migrations"
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = "uploads"
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Upload.MaxUploadBytes == 0 {
		cfg.Upload.MaxUploadBytes = 64 * 1024 * 1024
	}
	if cfg.Upload.MaxChunks == 0 {
		cfg.Upload.MaxChunks = 5
	}
	if cfg.Upload.MaxRetries == 0 {
		cfg.Upload.MaxRetries = 2
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 120
	}
	if cfg.PreviewTTL == 0 {
		cfg.PreviewTTL = 72
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = "0 * * * *"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Index.EmbedCacheSize == 0 {
		cfg.Index.EmbedCacheSize = 4096
	}
	if cfg.Index.EmbedCacheTTL == 0 {
		cfg.Index.EmbedCacheTTL = 24
	}
	return &cfg, nil
}
