package vcs

// MetadataStore persists commit records and the single HEAD value.
// Implementations must serialize writers across processes (database locking
// or atomic file replace) so a SaveCommit/SetHead pair is never interleaved
// byte-for-byte with another process's write.
type MetadataStore interface {
	// Initialize creates the underlying storage if absent. It is safe to call
	// on an already-initialized store and never loses existing commits.
	Initialize() error

	// SaveCommit inserts or replaces the record keyed by c.Hash.
	// Returns an ErrValidation error if the hash is empty.
	SaveCommit(c *Commit) error

	// LoadCommit resolves identifier as an exact hash first, then as a prefix,
	// returning the first match in the store's natural order.
	// Returns an ErrNotFound error if nothing matches.
	LoadCommit(identifier string) (*Commit, error)

	// ListCommits returns all commits, newest timestamp first. Malformed
	// records are skipped.
	ListCommits() ([]*Commit, error)

	// GetHead returns the HEAD hash, or "" if unset.
	GetHead() (string, error)

	// SetHead overwrites HEAD. The store does not check that hash exists.
	SetHead(hash string) error

	// Close releases any handles held by the store.
	Close() error
}
