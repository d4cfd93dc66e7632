package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"swvcs/internal/vcs"
)

const (
	// CommitsDirName holds one JSON record per commit.
	CommitsDirName = "commits"
	// HeadFileName holds the HEAD hash as plain text.
	HeadFileName = "HEAD"

	recordExt        = ".json"
	defaultCacheSize = 512
)

// cachedRecord is a decoded commit together with the file state it was
// decoded from. A record whose file changed since is decoded again.
type cachedRecord struct {
	commit  vcs.Commit
	modTime time.Time
	size    int64
}

// JSONStore implements vcs.MetadataStore as flat files:
//
//	<root>/
//	  commits/<hash>.json
//	  HEAD
//
// Every write is a temp file + rename, so a reader never sees a torn record
// and concurrent writers replace each other whole.
type JSONStore struct {
	root   string
	cache  *lru.Cache[string, cachedRecord]
	logger vcs.Logger
}

// NewJSONStore creates a store rooted at root. Directories are created by
// Initialize.
func NewJSONStore(root string, logger vcs.Logger) (*JSONStore, error) {
	cache, err := lru.New[string, cachedRecord](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating record cache: %w", err)
	}
	return &JSONStore{root: root, cache: cache, logger: logger}, nil
}

func (s *JSONStore) commitsDir() string { return filepath.Join(s.root, CommitsDirName) }
func (s *JSONStore) headPath() string   { return filepath.Join(s.root, HeadFileName) }

func (s *JSONStore) recordPath(hash string) string {
	return filepath.Join(s.commitsDir(), hash+recordExt)
}

// Initialize creates the commits directory. HEAD is created lazily; a
// missing HEAD file means no commits yet.
func (s *JSONStore) Initialize() error {
	if err := os.MkdirAll(s.commitsDir(), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", vcs.ErrStorage, s.commitsDir(), err)
	}
	return nil
}

// SaveCommit writes the commit record, replacing any record with the same hash.
func (s *JSONStore) SaveCommit(c *vcs.Commit) error {
	if c == nil || c.Hash == "" {
		return fmt.Errorf("%w: commit has no hash", vcs.ErrValidation)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding commit: %w", vcs.ErrStorage, err)
	}
	if err := atomicWrite(s.recordPath(c.Hash), data); err != nil {
		return fmt.Errorf("%w: writing commit: %w", vcs.ErrStorage, err)
	}
	s.cache.Remove(c.Hash)
	return nil
}

// LoadCommit tries the exact record file, then the first record in
// directory order whose name starts with identifier.
func (s *JSONStore) LoadCommit(identifier string) (*vcs.Commit, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty commit identifier", vcs.ErrValidation)
	}

	c, err := s.readRecord(identifier)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: reading commit %s: %w", vcs.ErrStorage, identifier, err)
	}

	hashes, err := s.recordHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		if !strings.HasPrefix(h, identifier) {
			continue
		}
		c, err := s.readRecord(h)
		if err != nil {
			s.logger.Warn("skipping unreadable commit record", "hash", h, "error", err)
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: no commit found matching %s", vcs.ErrNotFound, identifier)
}

// ListCommits returns commits newest first. Records that cannot be read or
// decoded are skipped and logged.
func (s *JSONStore) ListCommits() ([]*vcs.Commit, error) {
	hashes, err := s.recordHashes()
	if err != nil {
		return nil, err
	}

	commits := make([]*vcs.Commit, 0, len(hashes))
	for _, h := range hashes {
		c, err := s.readRecord(h)
		if err != nil {
			s.logger.Warn("skipping unreadable commit record", "hash", h, "error", err)
			continue
		}
		commits = append(commits, c)
	}

	// Directory order says nothing about insertion order, so equal
	// timestamps fall back to the hash to keep listings stable.
	sort.SliceStable(commits, func(i, j int) bool {
		if commits[i].Timestamp != commits[j].Timestamp {
			return commits[i].Timestamp > commits[j].Timestamp
		}
		return commits[i].Hash < commits[j].Hash
	})
	return commits, nil
}

// GetHead reads the HEAD file. A missing file means HEAD is unset.
func (s *JSONStore) GetHead() (string, error) {
	data, err := os.ReadFile(s.headPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: reading HEAD: %w", vcs.ErrStorage, err)
	}
	return string(bytes.TrimSpace(data)), nil
}

// SetHead replaces the HEAD file.
func (s *JSONStore) SetHead(hash string) error {
	if err := atomicWrite(s.headPath(), []byte(hash+"\n")); err != nil {
		return fmt.Errorf("%w: writing HEAD: %w", vcs.ErrStorage, err)
	}
	return nil
}

// Close drops cached records. The store holds no open handles.
func (s *JSONStore) Close() error {
	s.cache.Purge()
	return nil
}

// recordHashes lists record file names without extension, in directory order.
func (s *JSONStore) recordHashes() ([]string, error) {
	entries, err := os.ReadDir(s.commitsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing commits: %w", vcs.ErrStorage, err)
	}

	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		hashes = append(hashes, strings.TrimSuffix(name, recordExt))
	}
	return hashes, nil
}

// readRecord decodes one record, serving it from the cache when the file is
// unchanged. Errors wrapping os.ErrNotExist mean the record is absent.
func (s *JSONStore) readRecord(hash string) (*vcs.Commit, error) {
	path := s.recordPath(hash)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	if rec, ok := s.cache.Get(hash); ok && rec.modTime.Equal(info.ModTime()) && rec.size == info.Size() {
		c := rec.commit
		return &c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c vcs.Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if c.Hash == "" {
		return nil, fmt.Errorf("record %s has no hash", filepath.Base(path))
	}

	s.cache.Add(hash, cachedRecord{commit: c, modTime: info.ModTime(), size: info.Size()})
	return &c, nil
}

// atomicWrite replaces path with data via a temp file in the same directory.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Compile-time check that JSONStore implements vcs.MetadataStore interface
var _ vcs.MetadataStore = (*JSONStore)(nil)
