package receiptcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const tempPattern = ".receipt-*.tmp"

// LocalStore keeps receipts in a directory shared by every invocation.
// All operations are confined to the directory. Safe for concurrent use across goroutines and
// processes without locking.
type LocalStore struct {
	dir      string
	filePerm os.FileMode
	newName  func() string
}

// LocalOption configures LocalStore.
type LocalOption func(*LocalStore)

// WithFilePerm sets the permission bits of committed entries. Default is 0600.
func WithFilePerm(perm os.FileMode) LocalOption {
	return func(s *LocalStore) {
		if perm != 0 {
			s.filePerm = perm
		}
	}
}

// WithNameGenerator overrides the entry name generator. The generator must return a bare
// "<id>.bin" name; it exists for tests.
func WithNameGenerator(fn func() string) LocalOption {
	return func(s *LocalStore) {
		if fn != nil {
			s.newName = fn
		}
	}
}

// NewLocalStore creates the cache directory if needed.
func NewLocalStore(dir string, opts ...LocalOption) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrInvalidConfig)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateDirFailed, err)
	}

	s := &LocalStore{
		dir:      absDir,
		filePerm: 0o600,
		newName:  newEntryName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute cache directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Write stores data under a fresh name. The data is written to a hidden temporary file in the
// same directory, synced, and renamed into place, so readers never see a partial entry.
func (s *LocalStore) Write(ctx context.Context, data []byte) (CachedFile, error) {
	if err := checkContext(ctx); err != nil {
		return CachedFile{}, err
	}

	name := s.newName()
	if err := validName(name); err != nil {
		return CachedFile{}, err
	}

	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Chmod(s.filePerm); err != nil {
		cleanup()
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	finalPath := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return CachedFile{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	file := CachedFile{
		Name:    name,
		Path:    finalPath,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	// Another invocation may already have consumed the entry; keep the best-known metadata.
	if info, err := os.Stat(finalPath); err == nil {
		file.ModTime = info.ModTime()
	}
	return file, nil
}

// Read returns the entry content, or ErrNotFound if it vanished.
func (s *LocalStore) Read(ctx context.Context, file CachedFile) ([]byte, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	absPath, err := s.resolve(file.Name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file.Name)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return data, nil
}

// List returns committed entries oldest first. Temporary files and foreign files are skipped,
// and entries that vanish while listing are ignored.
func (s *LocalStore) List(ctx context.Context) ([]CachedFile, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}

	files := make([]CachedFile, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || validName(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed by another invocation
		}
		files = append(files, CachedFile{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sortOldestFirst(files)
	return files, nil
}

// Remove deletes the entry. A missing entry is not an error.
func (s *LocalStore) Remove(ctx context.Context, file CachedFile) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	absPath, err := s.resolve(file.Name)
	if err != nil {
		return err
	}

	if err := os.Remove(absPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrRemoveFailed, err)
	}
	return nil
}

// SweepTemp removes temporary files abandoned by writers that were killed mid-write.
// Only files older than olderThan are touched so in-progress writes survive.
func (s *LocalStore) SweepTemp(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, tempPattern))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrListFailed, err)
	}

	removed := 0
	now := time.Now()
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || now.Sub(info.ModTime()) < olderThan {
			continue
		}
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}

// resolve maps an entry name to its absolute path inside the cache directory.
func (s *LocalStore) resolve(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	absPath := filepath.Join(s.dir, name)
	if filepath.Dir(absPath) != s.dir {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return absPath, nil
}

var _ Store = (*LocalStore)(nil)
