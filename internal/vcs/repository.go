package vcs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fixed on-disk layout. These names are part of the storage contract.
const (
	RootDirName    = ".swvcs"
	BlobsDirName   = "blobs"
	PreviewDirName = "thumbs"
	BlobExt        = ".bin"
	PreviewExt     = ".bmp"
)

// RootFor returns the repository root for a project directory.
func RootFor(projectDir string) string {
	return filepath.Join(projectDir, RootDirName)
}

// Repository is the version-controlled state of one project folder. It owns
// the directory layout and mediates all access to commits and HEAD.
type Repository struct {
	projectDir string
	root       string
	blobs      BlobStore
	previews   BlobStore
	meta       MetadataStore
	logger     Logger

	valid   bool
	initErr error
}

// NewRepository prepares the repository under projectDir/.swvcs: it creates
// the root directory, initializes both blob stores and the metadata store.
// The returned Repository is always non-nil; check IsValid before use.
func NewRepository(projectDir string, meta MetadataStore, blobs, previews BlobStore, logger Logger) *Repository {
	r := &Repository{
		projectDir: projectDir,
		root:       RootFor(projectDir),
		blobs:      blobs,
		previews:   previews,
		meta:       meta,
		logger:     logger,
	}
	r.initErr = r.init()
	r.valid = r.initErr == nil
	if r.valid {
		logger.Debug("repository opened", "root", r.root)
	} else {
		logger.Error("repository initialization failed", "root", r.root, "error", r.initErr)
	}
	return r
}

func (r *Repository) init() error {
	if r.meta == nil || r.blobs == nil || r.previews == nil {
		return fmt.Errorf("%w: repository requires a metadata store and blob stores", ErrStorage)
	}
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("%w: creating repository root: %w", ErrIO, err)
	}
	if err := r.blobs.Init(); err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}
	if err := r.previews.Init(); err != nil {
		return fmt.Errorf("initializing preview store: %w", err)
	}
	if err := r.meta.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing metadata store: %w", ErrStorage, err)
	}
	return nil
}

// IsValid reports whether the root directory and metadata store were prepared.
func (r *Repository) IsValid() bool { return r.valid }

// Err returns the reason the repository is invalid, or nil.
func (r *Repository) Err() error { return r.initErr }

// Root returns the .swvcs directory.
func (r *Repository) Root() string { return r.root }

// ProjectDir returns the folder the repository versions.
func (r *Repository) ProjectDir() string { return r.projectDir }

func (r *Repository) check() error {
	if !r.valid {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRepository, r.root, r.initErr)
	}
	return nil
}

// BlobPath returns where the blob for hash lives.
func (r *Repository) BlobPath(hash string) string {
	return r.blobs.Path(hash)
}

// PreviewPath returns where the preview image for hash lives. The file may
// not exist: previews are always optional.
func (r *Repository) PreviewPath(hash string) string {
	return r.previews.Path(hash)
}

// HasBlob reports whether the blob for hash is present.
func (r *Repository) HasBlob(hash string) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.blobs.Exists(hash)
}

// HasPreview reports whether a preview image was captured for hash.
func (r *Repository) HasPreview(hash string) bool {
	if !r.valid {
		return false
	}
	ok, err := r.previews.Exists(hash)
	return err == nil && ok
}

// StoreBlob copies srcPath into the blob store under hash.
// stored is false when an identical blob was already present.
func (r *Repository) StoreBlob(srcPath, hash string) (stored bool, err error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.blobs.Put(srcPath, hash)
}

// DiscardBlob removes the blob for hash. Only a commit that stored the blob
// itself may discard it.
func (r *Repository) DiscardBlob(hash string) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.blobs.Remove(hash)
}

// CapturePreview runs capture against a temporary path next to the preview
// for hash and moves the result into place only when capture succeeds. A
// failed capture leaves no file behind and keeps any earlier preview.
func (r *Repository) CapturePreview(hash string, capture func(destPath string) error) error {
	if err := r.check(); err != nil {
		return err
	}
	dest := r.previews.Path(hash)
	tmp := filepath.Join(filepath.Dir(dest), ".tmp-"+filepath.Base(dest))
	if err := capture(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("%w: preview was not written: %w", ErrIO, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: moving preview into place: %w", ErrIO, err)
	}
	return nil
}

// BlobSize returns the stored size of the blob for hash.
func (r *Repository) BlobSize(hash string) (int64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.blobs.Size(hash)
}

// RestoreBlob overwrites destPath with the blob for hash.
func (r *Repository) RestoreBlob(hash, destPath string) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.blobs.Restore(hash, destPath)
}

// SaveCommit writes a commit record. The blob must already be stored.
func (r *Repository) SaveCommit(c *Commit) error {
	if err := r.check(); err != nil {
		return err
	}
	if c == nil || c.Hash == "" {
		return fmt.Errorf("%w: commit has no hash", ErrValidation)
	}
	return r.meta.SaveCommit(c)
}

// LoadCommit resolves a full hash or a prefix of at least MinPrefixLength
// hex characters. An ambiguous prefix resolves to the first match.
func (r *Repository) LoadCommit(identifier string) (*Commit, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	id := strings.ToLower(strings.TrimSpace(identifier))
	if len(id) < MinPrefixLength {
		return nil, fmt.Errorf("%w: hash prefix %q is shorter than %d characters", ErrValidation, identifier, MinPrefixLength)
	}
	if !isHex(id) {
		return nil, fmt.Errorf("%w: %q is not a hex hash", ErrValidation, identifier)
	}
	return r.meta.LoadCommit(id)
}

// ListCommits returns all commits, newest first.
func (r *Repository) ListCommits() ([]*Commit, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.meta.ListCommits()
}

// GetHead returns the current HEAD hash, or "" before the first commit.
func (r *Repository) GetHead() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	return r.meta.GetHead()
}

// HeadCommit loads the commit HEAD points to. It returns nil, nil when HEAD
// is unset.
func (r *Repository) HeadCommit() (*Commit, error) {
	head, err := r.GetHead()
	if err != nil {
		return nil, err
	}
	if head == "" {
		return nil, nil
	}
	return r.meta.LoadCommit(head)
}

// SetHead moves HEAD to hash, which must be the full hash of a saved commit.
func (r *Repository) SetHead(hash string) error {
	if err := r.check(); err != nil {
		return err
	}
	if hash == "" {
		return fmt.Errorf("%w: HEAD cannot be set to an empty hash", ErrValidation)
	}
	c, err := r.meta.LoadCommit(hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: HEAD cannot point at %s: no commit record", ErrValidation, ShortHash(hash))
		}
		return fmt.Errorf("checking commit %s: %w", ShortHash(hash), err)
	}
	if c.Hash != hash {
		return fmt.Errorf("%w: HEAD needs a full hash, got %q", ErrValidation, hash)
	}
	return r.meta.SetHead(hash)
}

// Close releases the metadata store.
func (r *Repository) Close() error {
	if r.meta == nil {
		return nil
	}
	return r.meta.Close()
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s += "0"
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
