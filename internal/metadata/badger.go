package metadata

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"swvcs/internal/vcs"
)

// BadgerDirName is the badger directory inside the repository root.
const BadgerDirName = "meta.badger"

var (
	commitKeyPrefix = []byte("commit:")
	headKey         = []byte("head")
	seqKey          = []byte("seq")
)

// badgerRecord is the stored value for a commit. Seq records insertion
// order, which badger's sorted keyspace does not keep.
type badgerRecord struct {
	Seq    uint64     `json:"seq"`
	Commit vcs.Commit `json:"commit"`
}

// BadgerStore implements vcs.MetadataStore on an embedded badger database.
// Each commit is one key; SaveCommit and SetHead are separate transactions.
type BadgerStore struct {
	db     *badger.DB
	logger vcs.Logger
}

// NewBadgerStore opens the badger database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string, logger vcs.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger store: %w", vcs.ErrStorage, err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

func commitKey(hash string) []byte {
	return append(append([]byte{}, commitKeyPrefix...), hash...)
}

// Initialize is a no-op: badger creates its files on open.
func (s *BadgerStore) Initialize() error {
	return nil
}

// SaveCommit writes the commit under a fresh sequence number.
func (s *BadgerStore) SaveCommit(c *vcs.Commit) error {
	if c == nil || c.Hash == "" {
		return fmt.Errorf("%w: commit has no hash", vcs.ErrValidation)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		data, err := json.Marshal(badgerRecord{Seq: seq, Commit: *c})
		if err != nil {
			return fmt.Errorf("marshaling commit: %w", err)
		}
		return txn.Set(commitKey(c.Hash), data)
	})
	if err != nil {
		return fmt.Errorf("%w: saving commit: %w", vcs.ErrStorage, err)
	}
	return nil
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get(seqKey)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence value")
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}

	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := txn.Set(seqKey, buf); err != nil {
		return 0, err
	}
	return seq, nil
}

// LoadCommit tries the exact key, then the first key in sorted order that
// starts with identifier.
func (s *BadgerStore) LoadCommit(identifier string) (*vcs.Commit, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty commit identifier", vcs.ErrValidation)
	}

	var found *vcs.Commit
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(commitKey(identifier))
		if err == nil {
			rec, err := decodeRecord(item)
			if err != nil {
				return err
			}
			found = &rec.Commit
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := commitKey(identifier)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rec, err := decodeRecord(it.Item())
			if err != nil {
				s.logger.Warn("skipping unreadable commit record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			found = &rec.Commit
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: loading commit: %w", vcs.ErrStorage, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no commit found matching %s", vcs.ErrNotFound, identifier)
	}
	return found, nil
}

// ListCommits returns commits newest first, newest insertion first among
// equal timestamps. Undecodable values are skipped and logged.
func (s *BadgerStore) ListCommits() ([]*vcs.Commit, error) {
	var records []badgerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(commitKeyPrefix); it.ValidForPrefix(commitKeyPrefix); it.Next() {
			rec, err := decodeRecord(it.Item())
			if err != nil {
				s.logger.Warn("skipping unreadable commit record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing commits: %w", vcs.ErrStorage, err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Commit.Timestamp != records[j].Commit.Timestamp {
			return records[i].Commit.Timestamp > records[j].Commit.Timestamp
		}
		return records[i].Seq > records[j].Seq
	})

	commits := make([]*vcs.Commit, len(records))
	for i := range records {
		commits[i] = &records[i].Commit
	}
	return commits, nil
}

func decodeRecord(item *badger.Item) (badgerRecord, error) {
	var rec badgerRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, err
	}
	if rec.Commit.Hash == "" {
		return rec, fmt.Errorf("record has no hash")
	}
	return rec, nil
}

// GetHead returns the stored HEAD, or "" if never set.
func (s *BadgerStore) GetHead() (string, error) {
	var head string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(headKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			head = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: reading HEAD: %w", vcs.ErrStorage, err)
	}
	return head, nil
}

// SetHead overwrites HEAD.
func (s *BadgerStore) SetHead(hash string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headKey, []byte(hash))
	})
	if err != nil {
		return fmt.Errorf("%w: setting HEAD: %w", vcs.ErrStorage, err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Compile-time check that BadgerStore implements vcs.MetadataStore interface
var _ vcs.MetadataStore = (*BadgerStore)(nil)
