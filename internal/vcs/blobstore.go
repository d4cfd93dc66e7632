package vcs

// BlobStore keeps full byte-for-byte copies of files keyed by content hash.
// Writers of the same digest write identical bytes, so concurrent puts of one
// digest are harmless duplicates.
type BlobStore interface {
	// Init creates the store directory if it does not exist.
	Init() error

	// Path maps a digest to its blob location. The mapping is deterministic.
	Path(digest string) string

	// Exists reports whether a blob for digest is present.
	Exists(digest string) (bool, error)

	// Put copies srcPath into the store under digest. If the blob already
	// exists the copy is skipped and stored is false. The copied bytes must
	// hash to digest; otherwise nothing is stored and the error wraps
	// ErrContentMismatch.
	Put(srcPath string, digest string) (stored bool, err error)

	// Remove deletes digest's file. A missing file is not an error.
	Remove(digest string) error

	// Size returns the stored blob's size in bytes.
	Size(digest string) (int64, error)

	// Restore overwrites destPath with the blob's bytes.
	Restore(digest string, destPath string) error
}
