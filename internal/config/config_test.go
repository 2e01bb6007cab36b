package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), *c)
	assert.Equal(t, "dir", c.Storage.Backend)
	assert.Equal(t, "5task_data", c.Storage.Key)
	assert.Equal(t, 4*time.Second, c.UndoWindow)
	assert.Equal(t, "en", c.Locale)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("locale: pt-BR\nundo_window: 10s\nstorage:\n  backend: sqlite\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", c.Locale)
	assert.Equal(t, 10*time.Second, c.UndoWindow)
	assert.Equal(t, "sqlite", c.Storage.Backend)
	assert.Equal(t, "5task_data", c.Storage.Key)
	assert.Equal(t, 2*time.Minute, c.IdleAfter)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("undo_window: [nope"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	c := Default()
	require.NoError(t, c.Set("ascii", "yes"))
	require.NoError(t, c.Set("idle_after", "90s"))
	require.NoError(t, Save(path, c))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, *back)
}

func TestSet(t *testing.T) {
	c := Default()
	require.NoError(t, c.Set("storage.backend", "SQLite"))
	assert.Equal(t, "sqlite", c.Storage.Backend)
	require.NoError(t, c.Set("storage.key", "work_data"))
	assert.Equal(t, "work_data", c.Storage.Key)
	require.NoError(t, c.Set("locale", "pt-BR"))
	require.NoError(t, c.Set("undo_window", "6s"))
	assert.Equal(t, 6*time.Second, c.UndoWindow)

	assert.Error(t, c.Set("storage.backend", "redis"))
	assert.Error(t, c.Set("storage.key", "../x"))
	assert.Error(t, c.Set("locale", "fr"))
	assert.Error(t, c.Set("undo_window", "-1s"))
	assert.Error(t, c.Set("ascii", "maybe"))
	assert.Error(t, c.Set("capacity", "6"))
}

func TestValuesFollowKeys(t *testing.T) {
	vals := Default().Values()
	require.Len(t, vals, len(Keys))
	for i, kv := range vals {
		assert.Equal(t, Keys[i], kv[0])
	}
}
