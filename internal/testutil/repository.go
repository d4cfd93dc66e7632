package testutil

import (
	"sync"
	"testing"

	"swvcs/internal/blob"
	"swvcs/internal/metadata"
	"swvcs/internal/vcs"
)

// NewTestRepository creates a repository in a temp project directory backed
// by an in-memory SQLite metadata store. It is closed when the test ends.
func NewTestRepository(t *testing.T) *vcs.Repository {
	t.Helper()
	return NewTestRepositoryWithStore(t, t.TempDir(), NewTestMetadataStore(t))
}

// NewTestRepositoryWithStore creates a repository for projectDir over meta.
func NewTestRepositoryWithStore(t *testing.T, projectDir string, meta vcs.MetadataStore) *vcs.Repository {
	t.Helper()

	root := vcs.RootFor(projectDir)
	repo := vcs.NewRepository(projectDir, meta, blob.NewBlobStore(root), blob.NewPreviewStore(root), vcs.NewNopLogger())
	if !repo.IsValid() {
		t.Fatalf("repository invalid: %v", repo.Err())
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// NewTestMetadataStore creates an in-memory SQLite metadata store. The
// repository initializes it.
func NewTestMetadataStore(t *testing.T) *metadata.SQLiteStore {
	t.Helper()

	store, err := metadata.NewSQLiteStore(":memory:", vcs.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open metadata store: %v", err)
	}
	return store
}

// FlakyMetadataStore wraps a MetadataStore and fails selected calls.
type FlakyMetadataStore struct {
	vcs.MetadataStore

	mu            sync.Mutex
	InitializeErr error
	SaveCommitErr error
	SetHeadErr    error
	GetHeadErr    error
}

func (s *FlakyMetadataStore) Initialize() error {
	s.mu.Lock()
	err := s.InitializeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MetadataStore.Initialize()
}

func (s *FlakyMetadataStore) SaveCommit(c *vcs.Commit) error {
	s.mu.Lock()
	err := s.SaveCommitErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MetadataStore.SaveCommit(c)
}

func (s *FlakyMetadataStore) SetHead(hash string) error {
	s.mu.Lock()
	err := s.SetHeadErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MetadataStore.SetHead(hash)
}

func (s *FlakyMetadataStore) GetHead() (string, error) {
	s.mu.Lock()
	err := s.GetHeadErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.MetadataStore.GetHead()
}
