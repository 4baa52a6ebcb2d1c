package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveToFile(t *testing.T) {
	t.Run("WriteAndReload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snap.bin")

		err := SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("hello"))
			return err
		})
		require.NoError(t, err)

		var got []byte
		require.NoError(t, LoadFromFile(path, func(r io.Reader) error {
			var err error
			got, err = io.ReadAll(r)
			return err
		}))
		assert.Equal(t, []byte("hello"), got)
	})

	t.Run("FailedWriteLeavesTargetUntouched", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "snap.bin")
		require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

		err := SaveToFile(path, func(w io.Writer) error {
			_, _ = w.Write([]byte("partial"))
			return errors.New("boom")
		})
		require.Error(t, err)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("previous"), got)

		// No temp files left behind.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("CreatesParentDir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "deep", "snap.bin")
		require.NoError(t, SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("x"))
			return err
		}))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestChecksum(t *testing.T) {
	data := []byte("the quick brown fox")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write(data)
	require.NoError(t, err)

	cr := NewChecksumReader(&buf)
	_, err = io.ReadAll(cr)
	require.NoError(t, err)

	assert.Equal(t, cw.Sum(), cr.Sum())
	assert.Equal(t, Checksum(data), cw.Sum())
}
