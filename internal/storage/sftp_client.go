package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/enplerp/backoffice/pkg/logger"
)

// SFTPConfig describes the offsite archive target (e.g. a Hetzner Storage Box)
type SFTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	BasePath string
}

// RemoteFile is an entry of the offsite directory
type RemoteFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// SFTPClient copies archives to an SFTP server. The connection is opened
// lazily and dropped after idleTimeout without use.
type SFTPClient struct {
	config      SFTPConfig
	sshClient   *ssh.Client
	sftpClient  *sftp.Client
	connected   bool
	lastUsed    time.Time
	idleTimeout time.Duration
	mu          sync.Mutex
}

// NewSFTPClient creates a new SFTP client
func NewSFTPClient(cfg SFTPConfig) (*SFTPClient, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("offsite credentials missing in configuration")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}

	return &SFTPClient{
		config:      cfg,
		idleTimeout: 5 * time.Minute,
	}, nil
}

// BasePath returns the remote directory archives are written to
func (c *SFTPClient) BasePath() string {
	return c.config.BasePath
}

// ensureConnected checks if connection is alive and reconnects if needed.
// Caller holds c.mu.
func (c *SFTPClient) ensureConnected() error {
	if c.connected && time.Since(c.lastUsed) > c.idleTimeout {
		logger.Info("SFTP: Connection idle too long, reconnecting", map[string]interface{}{
			"idle_duration": time.Since(c.lastUsed).Round(time.Second),
		})
		c.closeLocked()
	}

	if !c.connected {
		if err := c.connectLocked(); err != nil {
			return err
		}
	}

	c.lastUsed = time.Now()
	return nil
}

func (c *SFTPClient) connectLocked() error {
	sshConfig := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(c.config.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Storage Box host keys rotate
		Timeout:         30 * time.Second,
	}

	address := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	logger.Info("SFTP: Connecting to offsite storage", map[string]interface{}{
		"host": c.config.Host,
		"port": c.config.Port,
		"user": c.config.User,
	})

	sshClient, err := ssh.Dial("tcp", address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}

	c.sshClient = sshClient
	c.sftpClient = sftpClient
	c.connected = true

	if err := c.sftpClient.MkdirAll(c.config.BasePath); err != nil {
		logger.Warn("SFTP: Failed to create base path (may already exist)", map[string]interface{}{
			"path":  c.config.BasePath,
			"error": err.Error(),
		})
	}

	return nil
}

// Close closes the SFTP and SSH connections
func (c *SFTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *SFTPClient) closeLocked() {
	if !c.connected {
		return
	}
	if c.sftpClient != nil {
		c.sftpClient.Close()
	}
	if c.sshClient != nil {
		c.sshClient.Close()
	}
	c.connected = false
	logger.Info("SFTP: Connection closed", nil)
}

// Upload copies a local file to BasePath/remoteName and returns the remote path
func (c *SFTPClient) Upload(localPath, remoteName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return "", fmt.Errorf("failed to ensure connection: %w", err)
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	remotePath := path.Join(c.config.BasePath, remoteName)
	partialPath := remotePath + ".part"

	remoteFile, err := c.sftpClient.Create(partialPath)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}

	startTime := time.Now()
	written, err := io.Copy(remoteFile, localFile)
	if closeErr := remoteFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = c.sftpClient.Remove(partialPath)
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	if err := c.sftpClient.PosixRename(partialPath, remotePath); err != nil {
		_ = c.sftpClient.Remove(partialPath)
		return "", fmt.Errorf("failed to finalize remote file: %w", err)
	}

	duration := time.Since(startTime)
	logger.Info("SFTP: Upload completed", map[string]interface{}{
		"remote_path": remotePath,
		"size_mb":     written / 1024 / 1024,
		"duration":    duration.Round(time.Second),
	})

	return remotePath, nil
}

// List returns the regular files in BasePath, newest first
func (c *SFTPClient) List() ([]RemoteFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, fmt.Errorf("failed to ensure connection: %w", err)
	}

	infos, err := c.sftpClient.ReadDir(c.config.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote directory: %w", err)
	}

	files := make([]RemoteFile, 0, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, RemoteFile{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// Delete removes BasePath/name. A missing file is not an error.
func (c *SFTPClient) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	remotePath := path.Join(c.config.BasePath, name)
	if err := c.sftpClient.Remove(remotePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}

	logger.Info("SFTP: File deleted", map[string]interface{}{
		"remote_path": remotePath,
	})
	return nil
}
