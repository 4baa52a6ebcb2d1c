package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the serve command configuration. Flags override file values.
type Config struct {
	Addr string `yaml:"addr"`

	SnapshotPath      string `yaml:"snapshot_path"`
	IndexSnapshotPath string `yaml:"index_snapshot_path"`

	// Index selects the search strategy: "exhaustive" or "flatl2".
	Index string `yaml:"index"`

	// Codec and Compression shape the record snapshot payload.
	Codec       string `yaml:"codec"`
	Compression string `yaml:"compression"`

	DefaultK int `yaml:"default_k"`

	Extractor ExtractorConfig `yaml:"extractor"`
	Directory DirectoryConfig `yaml:"directory"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`

	Server ServerConfig `yaml:"server"`
}

// ExtractorConfig points at the embedding model runtime.
type ExtractorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// DirectoryConfig points at the profile directory. Empty endpoint disables
// enrichment.
type DirectoryConfig struct {
	Endpoint string `yaml:"endpoint"`
	DeviceID string `yaml:"device_id"`
}

// ArchiveConfig selects the off-box archiver. Empty type disables archiving.
type ArchiveConfig struct {
	// Type is "dir" or "minio".
	Type string `yaml:"type"`

	// Dir archiver.
	Dir string `yaml:"dir"`

	// MinIO archiver.
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// LogConfig shapes structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// ServerConfig bounds the HTTP surface.
type ServerConfig struct {
	RateLimit                float64 `yaml:"rate_limit"`
	RateBurst                int     `yaml:"rate_burst"`
	MaxConcurrentExtractions int64   `yaml:"max_concurrent_extractions"`
	MaxUploadBytes           int64   `yaml:"max_upload_bytes"`
	SpoolDir                 string  `yaml:"spool_dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		SnapshotPath:      "./data/records.bin",
		IndexSnapshotPath: "./data/index.bin",
		Index:             "exhaustive",
		Codec:             "json",
		Compression:       "zstd",
		DefaultK:          10,
		Extractor: ExtractorConfig{
			Endpoint: "http://localhost:5000/represent",
			Model:    "Facenet",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
