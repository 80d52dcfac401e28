package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BackupExtension is the suffix of every archive file
const BackupExtension = ".backup"

var safeBackupName = regexp.MustCompile(`^[A-Za-z0-9._-]+\.backup$`)

// PathGuard confines archive names to the backup directory
type PathGuard struct {
	dir string // absolute, cleaned
}

// NewPathGuard canonicalizes dir once. If the directory already exists its
// symlinks are resolved so later containment checks compare real paths.
func NewPathGuard(dir string) (*PathGuard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &PathGuard{dir: filepath.Clean(abs)}, nil
}

// Dir returns the canonical backup directory
func (g *PathGuard) Dir() string {
	return g.dir
}

// IsSafeName reports whether name is a bare archive filename
func IsSafeName(name string) bool {
	return safeBackupName.MatchString(name) && !strings.HasPrefix(name, "..")
}

// Resolve returns the absolute path of name inside the backup directory.
// It does not touch the filesystem.
func (g *PathGuard) Resolve(name string) (string, error) {
	if !IsSafeName(name) {
		return "", ErrInvalidFilename
	}

	resolved := filepath.Clean(filepath.Join(g.dir, name))
	if !g.contains(resolved) {
		return "", ErrInvalidPath
	}
	return resolved, nil
}

// Confine resolves symlinks of an existing archive and verifies the target
// still lives directly inside the backup directory
func (g *PathGuard) Confine(path string) error {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to resolve archive path: %w", err)
	}
	if !g.contains(real) {
		return ErrInvalidPath
	}
	info, err := os.Stat(real)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}
	return nil
}

// contains checks that path's parent is exactly the backup directory. The
// trailing separator keeps /backups2 from matching /backups.
func (g *PathGuard) contains(path string) bool {
	prefix := g.dir + string(filepath.Separator)
	return strings.HasPrefix(path, prefix) && filepath.Dir(path) == g.dir
}
