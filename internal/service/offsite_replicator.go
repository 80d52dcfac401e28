package service

import (
	"fmt"

	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/internal/monitoring"
	"github.com/enplerp/backoffice/internal/storage"
	"github.com/enplerp/backoffice/pkg/config"
	"github.com/enplerp/backoffice/pkg/logger"
)

// OffsiteStore is the remote side of the replica
type OffsiteStore interface {
	Upload(localPath, remoteName string) (string, error)
	List() ([]storage.RemoteFile, error)
	Delete(name string) error
	Close() error
}

// OffsiteReplicator copies fresh archives to remote storage and applies the
// same retention count there
type OffsiteReplicator struct {
	store OffsiteStore
}

// NewOffsiteReplicator wraps an already configured store
func NewOffsiteReplicator(store OffsiteStore) *OffsiteReplicator {
	return &OffsiteReplicator{store: store}
}

// NewOffsiteReplicatorFromConfig returns nil when the replica is disabled
func NewOffsiteReplicatorFromConfig(cfg *config.Config) (*OffsiteReplicator, error) {
	if !cfg.OffsiteEnabled {
		return nil, nil
	}

	client, err := storage.NewSFTPClient(storage.SFTPConfig{
		Host:     cfg.OffsiteHost,
		Port:     cfg.OffsitePort,
		User:     cfg.OffsiteUser,
		Password: cfg.OffsitePassword,
		BasePath: cfg.OffsitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure offsite replica: %w", err)
	}
	return NewOffsiteReplicator(client), nil
}

// Replicate uploads the archive at localPath and prunes the remote copy
// down to keepCount archives
func (r *OffsiteReplicator) Replicate(localPath, name string, keepCount int) error {
	remotePath, err := r.store.Upload(localPath, name)
	if err != nil {
		monitoring.OffsiteReplicationsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("offsite upload failed: %w", err)
	}
	monitoring.OffsiteReplicationsTotal.WithLabelValues("success").Inc()
	events.PublishBackupReplicated(name, remotePath)

	deleted, err := r.prune(keepCount)
	if len(deleted) > 0 {
		logger.Info("OFFSITE-REPLICATOR: Pruned remote archives", map[string]interface{}{
			"keep":    ClampKeepCount(keepCount),
			"deleted": deleted,
		})
	}
	if err != nil {
		return fmt.Errorf("offsite prune failed: %w", err)
	}
	return nil
}

func (r *OffsiteReplicator) prune(keepCount int) ([]string, error) {
	files, err := r.store.List()
	if err != nil {
		return nil, err
	}

	// List is newest first; foreign files in the directory are left alone
	archives := make([]storage.RemoteFile, 0, len(files))
	for _, f := range files {
		if IsSafeName(f.Name) {
			archives = append(archives, f)
		}
	}

	keep := ClampKeepCount(keepCount)
	if len(archives) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, f := range archives[keep:] {
		if err := r.store.Delete(f.Name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, f.Name)
	}
	return deleted, nil
}

// Close releases the remote connection
func (r *OffsiteReplicator) Close() error {
	return r.store.Close()
}
