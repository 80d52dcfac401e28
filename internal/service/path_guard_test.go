package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafeName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"enplerp_2024-03-05T01-02-03-456Z.backup", true},
		{"a.backup", true},
		{"my-db_v1.2.backup", true},
		{"..backup", false},
		{"..evil.backup", false},
		{".backup", false},
		{"../etc/passwd.backup", false},
		{"dir/file.backup", false},
		{`dir\file.backup`, false},
		{"file.backup.gz", false},
		{"file.sql", false},
		{"file name.backup", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafeName(tt.name))
		})
	}
}

func TestPathGuard_Resolve(t *testing.T) {
	dir := t.TempDir()
	guard, err := NewPathGuard(dir)
	require.NoError(t, err)

	path, err := guard.Resolve("db_1.backup")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(guard.Dir(), "db_1.backup"), path)

	_, err = guard.Resolve("../db_1.backup")
	assert.ErrorIs(t, err, ErrInvalidFilename)

	_, err = guard.Resolve("db_1.sql")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestPathGuard_ResolveDoesNotTouchFilesystem(t *testing.T) {
	guard, err := NewPathGuard(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	path, err := guard.Resolve("db_1.backup")
	require.NoError(t, err)
	assert.Equal(t, guard.Dir(), filepath.Dir(path))
}

func TestPathGuard_Confine(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	guard, err := NewPathGuard(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(guard.Dir(), "ok.backup"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.backup"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.backup"), filepath.Join(guard.Dir(), "link.backup")))
	require.NoError(t, os.Mkdir(filepath.Join(guard.Dir(), "sub.backup"), 0o750))

	t.Run("regular file", func(t *testing.T) {
		path, err := guard.Resolve("ok.backup")
		require.NoError(t, err)
		assert.NoError(t, guard.Confine(path))
	})

	t.Run("symlink escaping the directory", func(t *testing.T) {
		path, err := guard.Resolve("link.backup")
		require.NoError(t, err)
		assert.ErrorIs(t, guard.Confine(path), ErrInvalidPath)
	})

	t.Run("missing file", func(t *testing.T) {
		path, err := guard.Resolve("gone.backup")
		require.NoError(t, err)
		assert.ErrorIs(t, guard.Confine(path), ErrNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		path, err := guard.Resolve("sub.backup")
		require.NoError(t, err)
		assert.ErrorIs(t, guard.Confine(path), ErrNotFound)
	})
}

func TestPathGuard_SiblingPrefixIsOutside(t *testing.T) {
	base := t.TempDir()
	guard, err := NewPathGuard(filepath.Join(base, "backups"))
	require.NoError(t, err)

	assert.False(t, guard.contains(filepath.Join(base, "backups2", "x.backup")))
	assert.False(t, guard.contains(filepath.Join(guard.Dir(), "nested", "x.backup")))
	assert.True(t, guard.contains(filepath.Join(guard.Dir(), "x.backup")))
}
