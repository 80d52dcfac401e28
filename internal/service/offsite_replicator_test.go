package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enplerp/backoffice/internal/storage"
	"github.com/enplerp/backoffice/pkg/config"
)

type fakeOffsiteStore struct {
	files     map[string]time.Time
	uploadErr error
	closed    bool
}

func newFakeOffsiteStore() *fakeOffsiteStore {
	return &fakeOffsiteStore{files: make(map[string]time.Time)}
}

func (f *fakeOffsiteStore) Upload(_, remoteName string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.files[remoteName] = time.Now()
	return "/remote/" + remoteName, nil
}

func (f *fakeOffsiteStore) List() ([]storage.RemoteFile, error) {
	var out []storage.RemoteFile
	for name, mod := range f.files {
		out = append(out, storage.RemoteFile{Name: name, ModTime: mod})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

func (f *fakeOffsiteStore) Delete(name string) error {
	delete(f.files, name)
	return nil
}

func (f *fakeOffsiteStore) Close() error {
	f.closed = true
	return nil
}

func TestOffsiteReplicator_UploadsAndPrunes(t *testing.T) {
	store := newFakeOffsiteStore()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		store.files[fmt.Sprintf("db_%02d.backup", i)] = base.Add(time.Duration(i) * time.Minute)
	}
	store.files["README.txt"] = base.Add(-time.Hour)

	replicator := NewOffsiteReplicator(store)
	require.NoError(t, replicator.Replicate("/local/db_new.backup", "db_new.backup", 2))

	assert.Contains(t, store.files, "db_new.backup")
	assert.Contains(t, store.files, "db_03.backup")
	assert.Contains(t, store.files, "README.txt")
	assert.Len(t, store.files, 3)

	require.NoError(t, replicator.Close())
	assert.True(t, store.closed)
}

func TestOffsiteReplicator_UploadFailureSkipsPrune(t *testing.T) {
	store := newFakeOffsiteStore()
	store.files["db_00.backup"] = time.Now().Add(-time.Hour)
	store.files["db_01.backup"] = time.Now()
	store.uploadErr = errors.New("connection reset")

	err := NewOffsiteReplicator(store).Replicate("/local/x.backup", "x.backup", 1)
	require.Error(t, err)
	assert.Len(t, store.files, 2)
}

func TestNewOffsiteReplicatorFromConfig(t *testing.T) {
	replicator, err := NewOffsiteReplicatorFromConfig(&config.Config{OffsiteEnabled: false})
	require.NoError(t, err)
	assert.Nil(t, replicator)

	_, err = NewOffsiteReplicatorFromConfig(&config.Config{OffsiteEnabled: true, OffsiteHost: "u1.example.com"})
	assert.Error(t, err)
}

func TestBackupService_ReplicaFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	guard, err := NewPathGuard(dir)
	require.NoError(t, err)
	store := newFakeOffsiteStore()
	store.uploadErr = errors.New("no route to host")

	svc := NewBackupService(testConfig(dir), guard, &fakeRunner{}, NewBackupRetention(guard), NewOffsiteReplicator(store))
	result, err := svc.CreateAndEnforceRetention(context.Background(), 3)
	require.NoError(t, err)
	assert.FileExists(t, result.Path)
	assert.Empty(t, store.files)
}

func TestBackupService_ReplicatesNewArchive(t *testing.T) {
	dir := t.TempDir()
	guard, err := NewPathGuard(dir)
	require.NoError(t, err)
	store := newFakeOffsiteStore()

	svc := NewBackupService(testConfig(dir), guard, &fakeRunner{}, NewBackupRetention(guard), NewOffsiteReplicator(store))
	result, err := svc.CreateAndEnforceRetention(context.Background(), 3)
	require.NoError(t, err)
	assert.Contains(t, store.files, result.Filename)
}
