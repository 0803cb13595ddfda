package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ibeckermayer/xarchive/internal/types"
)

// ArchiveSuffix ends every final archive filename.
const ArchiveSuffix = "_archive.json"

// CheckpointPrefix starts every in-progress checkpoint filename.
const CheckpointPrefix = "autosave_"

// ArchiveName returns the final archive filename for target.
func ArchiveName(target string) string {
	return target + ArchiveSuffix
}

// CheckpointName returns the checkpoint filename for target.
func CheckpointName(target string) string {
	return CheckpointPrefix + target + ".json"
}

// FileStore writes checkpoints and final archives as JSON arrays in one
// directory. Both files are scoped by target, so concurrent runs against the
// same target are not supported.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the archive directory.
func (fs *FileStore) Dir() string { return fs.dir }

// ArchivePath returns where target's final archive lives.
func (fs *FileStore) ArchivePath(target string) string {
	return filepath.Join(fs.dir, ArchiveName(target))
}

// CheckpointPath returns where target's checkpoint lives.
func (fs *FileStore) CheckpointPath(target string) string {
	return filepath.Join(fs.dir, CheckpointName(target))
}

// WriteCheckpoint replaces target's checkpoint with posts.
func (fs *FileStore) WriteCheckpoint(target string, posts []types.Post) error {
	return fs.writePosts(fs.CheckpointPath(target), posts)
}

// WriteFinal writes target's archive and returns its path.
func (fs *FileStore) WriteFinal(target string, posts []types.Post) (string, error) {
	path := fs.ArchivePath(target)
	if err := fs.writePosts(path, posts); err != nil {
		return "", err
	}
	return path, nil
}

// writePosts serializes posts with indentation and swaps the file in with a
// rename, so readers never observe a partially written array.
func (fs *FileStore) writePosts(path string, posts []types.Post) error {
	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	if posts == nil {
		posts = []types.Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}

	tmp, err := os.CreateTemp(fs.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
