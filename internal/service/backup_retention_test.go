package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchives creates count archives named db_NN.backup, db_00 being the
// oldest, one minute apart
func writeArchives(t *testing.T, dir string, count int) []string {
	t.Helper()
	base := time.Now().Add(-time.Duration(count) * time.Hour)
	names := make([]string, count)
	for i := 0; i < count; i++ {
		names[i] = fmt.Sprintf("db_%02d.backup", i)
		writeArchiveAt(t, dir, names[i], base.Add(time.Duration(i)*time.Minute))
	}
	return names
}

func writeArchiveAt(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func newTestRetention(t *testing.T) (*BackupRetention, string) {
	t.Helper()
	guard, err := NewPathGuard(t.TempDir())
	require.NoError(t, err)
	return NewBackupRetention(guard), guard.Dir()
}

func TestBackupRetention_KeepsNewest(t *testing.T) {
	retention, dir := newTestRetention(t)
	names := writeArchives(t, dir, 5)

	result, err := retention.Enforce(3)
	require.NoError(t, err)
	assert.Equal(t, []string{names[1], names[0]}, result.DeletedNames)
	assert.Equal(t, names[2:], listNames(t, dir))
}

func TestBackupRetention_Idempotent(t *testing.T) {
	retention, dir := newTestRetention(t)
	writeArchives(t, dir, 7)

	_, err := retention.Enforce(4)
	require.NoError(t, err)
	after := listNames(t, dir)

	result, err := retention.Enforce(4)
	require.NoError(t, err)
	assert.Empty(t, result.DeletedNames)
	assert.Equal(t, after, listNames(t, dir))
}

func TestBackupRetention_ClampsKeepCount(t *testing.T) {
	tests := []struct {
		keep      int
		remaining int
	}{
		{keep: 0, remaining: 1},
		{keep: -5, remaining: 1},
		{keep: 10000, remaining: 6},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("keep=%d", tt.keep), func(t *testing.T) {
			retention, dir := newTestRetention(t)
			writeArchives(t, dir, 6)

			_, err := retention.Enforce(tt.keep)
			require.NoError(t, err)
			assert.Len(t, listNames(t, dir), tt.remaining)
		})
	}

	assert.Equal(t, 1, ClampKeepCount(0))
	assert.Equal(t, 500, ClampKeepCount(501))
	assert.Equal(t, 42, ClampKeepCount(42))
}

func TestBackupRetention_IgnoresForeignFiles(t *testing.T) {
	retention, dir := newTestRetention(t)
	writeArchives(t, dir, 3)
	old := time.Now().Add(-48 * time.Hour)
	writeArchiveAt(t, dir, "notes.txt", old)
	writeArchiveAt(t, dir, ".upload-123.tmp", old)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.backup"), 0o750))

	result, err := retention.Enforce(1)
	require.NoError(t, err)
	assert.Len(t, result.DeletedNames, 2)
	assert.Equal(t, []string{".upload-123.tmp", "db_02.backup", "nested.backup", "notes.txt"}, listNames(t, dir))
}

func TestBackupRetention_TiesOrderedByName(t *testing.T) {
	retention, dir := newTestRetention(t)
	same := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeArchiveAt(t, dir, "db_a.backup", same)
	writeArchiveAt(t, dir, "db_b.backup", same)
	writeArchiveAt(t, dir, "db_c.backup", same)

	result, err := retention.Enforce(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"db_a.backup"}, result.DeletedNames)
}

func TestBackupRetention_MissingDirectory(t *testing.T) {
	guard, err := NewPathGuard(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	result, err := NewBackupRetention(guard).Enforce(3)
	require.NoError(t, err)
	assert.Empty(t, result.DeletedNames)
}
