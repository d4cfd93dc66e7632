package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"swvcs/internal/vcs"
)

// FileSystemStore is a content-addressed store of whole files in one
// directory, one file per digest:
//
//	<dir>/
//	  <digest><ext>
type FileSystemStore struct {
	dir string
	ext string
}

// NewFileSystemStore creates a store rooted at dir whose files carry ext.
// The directory is created by Init.
func NewFileSystemStore(dir, ext string) *FileSystemStore {
	return &FileSystemStore{dir: dir, ext: ext}
}

// NewBlobStore returns the store for full snapshots under a repository root.
func NewBlobStore(root string) *FileSystemStore {
	return NewFileSystemStore(filepath.Join(root, vcs.BlobsDirName), vcs.BlobExt)
}

// NewPreviewStore returns the store for preview images under a repository root.
func NewPreviewStore(root string) *FileSystemStore {
	return NewFileSystemStore(filepath.Join(root, vcs.PreviewDirName), vcs.PreviewExt)
}

// Dir returns the directory holding the store's files.
func (s *FileSystemStore) Dir() string { return s.dir }

// Init creates the store directory.
func (s *FileSystemStore) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", vcs.ErrIO, s.dir, err)
	}
	return nil
}

// Path returns the location of digest's file.
func (s *FileSystemStore) Path(digest string) string {
	return filepath.Join(s.dir, digest+s.ext)
}

// Exists reports whether digest is stored.
func (s *FileSystemStore) Exists(digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}
	info, err := os.Stat(s.Path(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat blob: %w", vcs.ErrIO, err)
	}
	return info.Mode().IsRegular(), nil
}

// Put copies srcPath into the store. The operation is idempotent: if the
// digest already exists the copy is skipped, since identical digests mean
// identical bytes. The copy is hashed as it is written and only renamed into
// place when it matches digest, so a source saved mid-copy stores nothing.
func (s *FileSystemStore) Put(srcPath string, digest string) (bool, error) {
	if digest == "" {
		return false, fmt.Errorf("%w: empty digest", vcs.ErrValidation)
	}
	exists, err := s.Exists(digest)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %w", vcs.ErrIO, srcPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", vcs.ErrIO, srcPath, err)
	}

	if err := writeFile(s.Path(digest), src, info.Size(), 0644, digest); err != nil {
		return false, fmt.Errorf("copying blob %s: %w", vcs.ShortHash(digest), err)
	}
	return true, nil
}

// Remove deletes digest's file.
func (s *FileSystemStore) Remove(digest string) error {
	if digest == "" {
		return nil
	}
	if err := os.Remove(s.Path(digest)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing blob: %w", vcs.ErrIO, err)
	}
	return nil
}

// Size returns the stored size of digest.
func (s *FileSystemStore) Size(digest string) (int64, error) {
	info, err := os.Stat(s.Path(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: blob %s", vcs.ErrNotFound, vcs.ShortHash(digest))
		}
		return 0, fmt.Errorf("%w: stat blob: %w", vcs.ErrIO, err)
	}
	return info.Size(), nil
}

// Restore overwrites destPath with digest's bytes. The existing file mode is
// kept when destPath already exists. A blob whose bytes no longer hash to
// digest is not restored.
func (s *FileSystemStore) Restore(digest string, destPath string) error {
	src, err := os.Open(s.Path(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: blob %s", vcs.ErrNotFound, vcs.ShortHash(digest))
		}
		return fmt.Errorf("%w: opening blob: %w", vcs.ErrIO, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat blob: %w", vcs.ErrIO, err)
	}

	mode := os.FileMode(0644)
	if existing, err := os.Stat(destPath); err == nil {
		mode = existing.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: creating parent directory: %w", vcs.ErrIO, err)
	}
	if err := writeFile(destPath, src, info.Size(), mode, digest); err != nil {
		return fmt.Errorf("restoring file: %w", err)
	}
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
// When digest is set the data must hash to it or destPath is left untouched.
// Failures wrap vcs.ErrIO, or vcs.ErrContentMismatch when the data does not match.
func writeFile(destPath string, r io.Reader, expectedSize int64, mode os.FileMode, digest string) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", vcs.ErrIO, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, h), r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: failed to write data: %w", vcs.ErrIO, err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: failed to sync temp file: %w", vcs.ErrIO, err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %w", vcs.ErrIO, err)
	}

	// The source changed size while we were copying.
	if written != expectedSize {
		return fmt.Errorf("%w: size mismatch: expected %d bytes, got %d", vcs.ErrContentMismatch, expectedSize, written)
	}
	if digest != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != digest {
			return fmt.Errorf("%w: content hashes to %s, want %s", vcs.ErrContentMismatch, vcs.ShortHash(got), vcs.ShortHash(digest))
		}
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("%w: failed to set permissions: %w", vcs.ErrIO, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("%w: failed to rename temp file: %w", vcs.ErrIO, err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements vcs.BlobStore interface
var _ vcs.BlobStore = (*FileSystemStore)(nil)
