package blob

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// base32Enc uses base32 "Extended Hex" alphabet (0-9A-V) which is ASCII-sorted
// and safe for log output.
var base32Enc = base32.HexEncoding.WithPadding(base32.NoPadding)

const tmpDirName = "tmp"

// FileStore stores blobs as regular files under a root directory.
//
// Writes go to a temp file first and are moved into place with a rename, so a
// reader observes either the previous or the new content, never a partial
// write. Tags are content hashes ("sha256:<base32>-<size>"); the precondition
// check and the rename happen under a per-path lock, which makes the
// compare-and-swap atomic within one process. The store assumes it is the
// sole writer of its root directory.
type FileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore initializes a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{root: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Exists implements [Store].
func (fs *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fp, err := fs.filePath(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// ReadAll implements [Store].
func (fs *FileStore) ReadAll(ctx context.Context, path string) ([]byte, Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	fp, err := fs.filePath(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, "", fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, tagOf(data), nil
}

// WriteAll implements [Store].
func (fs *FileStore) WriteAll(ctx context.Context, path string, data []byte, expect Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := fs.filePath(path)
	if err != nil {
		return err
	}

	lock := fs.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	// Re-read the current content to verify the precondition.
	var current Tag
	cur, err := os.ReadFile(fp)
	switch {
	case err == nil:
		current = tagOf(cur)
	case os.IsNotExist(err):
		current = ""
	default:
		return fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	if current != expect {
		return fmt.Errorf("%w: %s", ErrConflict, path)
	}

	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmpDir := filepath.Join(fs.root, tmpDirName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("failed to create tmp directory: %w", err)
	}
	f, err := os.CreateTemp(tmpDir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("failed to write blob %s: %w", path, err), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, fp); err != nil {
		return errors.Join(fmt.Errorf("failed to move blob %s into place: %w", path, err), os.Remove(tmpPath))
	}
	return nil
}

// pathLock returns the lock serializing writes to one path.
func (fs *FileStore) pathLock(path string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	lock, ok := fs.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		fs.locks[path] = lock
	}
	return lock
}

// filePath maps a blob path to a file under the root, rejecting escapes.
func (fs *FileStore) filePath(path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("invalid blob path: %q", path)
	}
	for part := range strings.SplitSeq(path, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid blob path: %q", path)
		}
	}
	if strings.HasPrefix(path, tmpDirName+"/") {
		return "", fmt.Errorf("invalid blob path: %q", path)
	}
	return filepath.Join(fs.root, filepath.FromSlash(path)), nil
}

// tagOf computes the content tag "sha256:<base32>-<size>".
func tagOf(data []byte) Tag {
	sum := sha256.Sum256(data)
	return Tag(fmt.Sprintf("sha256:%s-%d", base32Enc.EncodeToString(sum[:]), len(data)))
}
