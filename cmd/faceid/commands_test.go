package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/faceid/store"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.bin")
	s, err := store.Open(func(o *store.Options) {
		o.Path = path
	})
	require.NoError(t, err)

	_, err = s.Upsert("alice", []float32{1, 0, 0}, map[string]string{"name": "Alice Doe"})
	require.NoError(t, err)
	_, err = s.Upsert("bob", []float32{0, 1, 0}, nil)
	require.NoError(t, err)

	return path
}

func TestUsersCmd(t *testing.T) {
	path := writeSnapshot(t)

	t.Run("table", func(t *testing.T) {
		cmd := newUsersCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--snapshot", path})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "alice")
		assert.Contains(t, out.String(), "Alice Doe")
		assert.Contains(t, out.String(), "bob")
		assert.Contains(t, out.String(), "total: 2")
	})

	t.Run("json", func(t *testing.T) {
		cmd := newUsersCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--snapshot", path, "--json"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), `"total": 2`)
		assert.Contains(t, out.String(), `"alice"`)
		// Vectors stay private.
		assert.NotContains(t, out.String(), `"vector"`)
	})
}

func TestSnapshotCmd(t *testing.T) {
	path := writeSnapshot(t)

	t.Run("text", func(t *testing.T) {
		cmd := newSnapshotCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{path})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "codec:          json")
		assert.Contains(t, out.String(), "compression:    zstd")
		assert.Contains(t, out.String(), "records:        2")
		assert.Contains(t, out.String(), "dimension:      3")
	})

	t.Run("missing file", func(t *testing.T) {
		cmd := newSnapshotCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.bin")})

		require.Error(t, cmd.Execute())
	})
}
