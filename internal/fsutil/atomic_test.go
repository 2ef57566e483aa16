package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates new file", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "data.json")
		require.NoError(t, WriteFileAtomic(filename, []byte("[]"), 0o644))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(got))
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		filename := filepath.Join(dir, "data.json")
		require.NoError(t, os.WriteFile(filename, []byte("old"), 0o644))
		require.NoError(t, WriteFileAtomic(filename, []byte("new"), 0o600))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), TempFilePrefix), "leftover %s", e.Name())
		}
	})

	t.Run("fails when directory is missing", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "missing", "data.json")
		assert.Error(t, WriteFileAtomic(filename, []byte("x"), 0o644))
	})
}

func TestEnsureParent(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "a", "b", "data.json")
	require.NoError(t, EnsureParent(filename))

	info, err := os.Stat(filepath.Dir(filename))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
