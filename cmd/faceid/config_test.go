package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "exhaustive", cfg.Index)
		assert.Equal(t, 10, cfg.DefaultK)
		assert.Equal(t, "zstd", cfg.Compression)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
index: flatl2
default_k: 5
extractor:
  endpoint: http://model:5000/represent
  model: Facenet512
directory:
  endpoint: https://directory.example.com/api
  device_id: device-42
archive:
  type: minio
  endpoint: minio:9000
  bucket: faceid
`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, "flatl2", cfg.Index)
		assert.Equal(t, 5, cfg.DefaultK)
		assert.Equal(t, "Facenet512", cfg.Extractor.Model)
		assert.Equal(t, "device-42", cfg.Directory.DeviceID)
		assert.Equal(t, "minio", cfg.Archive.Type)
		// Untouched keys keep defaults.
		assert.Equal(t, "zstd", cfg.Compression)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

func TestNewIndex(t *testing.T) {
	for _, name := range []string{"", "exhaustive", "flatl2"} {
		idx, err := newIndex(name)
		require.NoError(t, err)
		require.NotNil(t, idx)
	}

	_, err := newIndex("hnsw")
	require.Error(t, err)
}
