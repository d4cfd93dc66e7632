package vcs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swvcs/internal/blob"
	"swvcs/internal/testutil"
	"swvcs/internal/vcs"
)

func TestNewRepository_FreshFolder(t *testing.T) {
	projectDir := t.TempDir()
	repo := testutil.NewTestRepositoryWithStore(t, projectDir, testutil.NewTestMetadataStore(t))

	if !repo.IsValid() {
		t.Fatalf("IsValid() = false: %v", repo.Err())
	}
	if repo.Root() != filepath.Join(projectDir, ".swvcs") {
		t.Errorf("Root() = %q", repo.Root())
	}
	for _, sub := range []string{"blobs", "thumbs"} {
		info, err := os.Stat(filepath.Join(repo.Root(), sub))
		if err != nil || !info.IsDir() {
			t.Errorf("%s directory not created: %v", sub, err)
		}
	}

	commits, err := repo.ListCommits()
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("ListCommits() returned %d commits, want 0", len(commits))
	}

	head, err := repo.GetHead()
	if err != nil || head != "" {
		t.Errorf("GetHead() = %q, %v; want empty", head, err)
	}

	c, err := repo.HeadCommit()
	if err != nil || c != nil {
		t.Errorf("HeadCommit() = %v, %v; want nil, nil", c, err)
	}
}

func TestNewRepository_InvalidFailsFast(t *testing.T) {
	projectDir := t.TempDir()
	meta := &testutil.FlakyMetadataStore{
		MetadataStore: testutil.NewTestMetadataStore(t),
		InitializeErr: errors.New("schema is from the future"),
	}
	root := vcs.RootFor(projectDir)
	repo := vcs.NewRepository(projectDir, meta, blob.NewBlobStore(root), blob.NewPreviewStore(root), vcs.NewNopLogger())
	defer repo.Close()

	if repo.IsValid() {
		t.Fatal("IsValid() = true, want false")
	}
	if !strings.Contains(repo.Err().Error(), "schema is from the future") {
		t.Errorf("Err() = %v", repo.Err())
	}

	if _, err := repo.GetHead(); !errors.Is(err, vcs.ErrInvalidRepository) {
		t.Errorf("GetHead() error = %v, want ErrInvalidRepository", err)
	}
	if _, err := repo.ListCommits(); !errors.Is(err, vcs.ErrStorage) {
		t.Errorf("ListCommits() error = %v, want ErrStorage", err)
	}
	if err := repo.SetHead(strings.Repeat("a", 64)); !errors.Is(err, vcs.ErrInvalidRepository) {
		t.Errorf("SetHead() error = %v, want ErrInvalidRepository", err)
	}
	if repo.HasPreview("anything") {
		t.Error("HasPreview() = true on invalid repository")
	}
}

func TestNewRepository_RootIsAFile(t *testing.T) {
	projectDir := t.TempDir()
	testutil.WriteFile(t, projectDir, ".swvcs", []byte("not a directory"))

	root := vcs.RootFor(projectDir)
	repo := vcs.NewRepository(projectDir, testutil.NewTestMetadataStore(t), blob.NewBlobStore(root), blob.NewPreviewStore(root), vcs.NewNopLogger())
	defer repo.Close()

	if repo.IsValid() {
		t.Error("IsValid() = true when the root path is a regular file")
	}
}

func TestRepository_Paths(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	h := testutil.SHA256Hex([]byte("x"))

	if got, want := repo.BlobPath(h), filepath.Join(repo.Root(), "blobs", h+".bin"); got != want {
		t.Errorf("BlobPath() = %q, want %q", got, want)
	}
	if got, want := repo.PreviewPath(h), filepath.Join(repo.Root(), "thumbs", h+".bmp"); got != want {
		t.Errorf("PreviewPath() = %q, want %q", got, want)
	}
	if repo.BlobPath(h) != repo.BlobPath(h) {
		t.Error("BlobPath() is not deterministic")
	}
}

func TestRepository_HeadRoundTrip(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	h := testutil.SHA256Hex([]byte("head"))
	if err := repo.SaveCommit(&vcs.Commit{Hash: h, Message: "m", Timestamp: "2024-01-15T10:30:00Z"}); err != nil {
		t.Fatalf("SaveCommit() error = %v", err)
	}

	if err := repo.SetHead(h); err != nil {
		t.Fatalf("SetHead() error = %v", err)
	}
	got, err := repo.GetHead()
	if err != nil || got != h {
		t.Errorf("GetHead() = %q, %v; want %q", got, err, h)
	}
}

func TestRepository_SetHeadRequiresCommitRecord(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	saved := testutil.SHA256Hex([]byte("saved"))
	if err := repo.SaveCommit(&vcs.Commit{Hash: saved, Message: "m", Timestamp: "2024-01-15T10:30:00Z"}); err != nil {
		t.Fatalf("SaveCommit() error = %v", err)
	}
	if err := repo.SetHead(saved); err != nil {
		t.Fatalf("SetHead() error = %v", err)
	}

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"no record", testutil.SHA256Hex([]byte("never committed"))},
		{"prefix", saved[:12]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.SetHead(tt.hash); !errors.Is(err, vcs.ErrValidation) {
				t.Errorf("SetHead(%q) error = %v, want ErrValidation", tt.hash, err)
			}
			if head, _ := repo.GetHead(); head != saved {
				t.Errorf("HEAD = %q after rejected SetHead, want %q", head, saved)
			}
		})
	}
}

func TestRepository_DiscardBlob(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	path := testutil.WriteFile(t, repo.ProjectDir(), "p.sldprt", []byte("x"))
	h := testutil.SHA256Hex([]byte("x"))

	if _, err := repo.StoreBlob(path, h); err != nil {
		t.Fatalf("StoreBlob() error = %v", err)
	}
	if err := repo.DiscardBlob(h); err != nil {
		t.Fatalf("DiscardBlob() error = %v", err)
	}
	if ok, _ := repo.HasBlob(h); ok {
		t.Error("blob present after DiscardBlob()")
	}
}

func TestRepository_CapturePreview(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	h := testutil.SHA256Hex([]byte("x"))

	err := repo.CapturePreview(h, func(dest string) error {
		return os.WriteFile(dest, []byte("BM-first"), 0644)
	})
	if err != nil {
		t.Fatalf("CapturePreview() error = %v", err)
	}
	if !repo.HasPreview(h) {
		t.Fatal("HasPreview() = false after capture")
	}

	tests := []struct {
		name    string
		capture func(dest string) error
	}{
		{"partial write then error", func(dest string) error {
			os.WriteFile(dest, []byte("BM"), 0644)
			return errors.New("render aborted")
		}},
		{"reports success without writing", func(string) error { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.CapturePreview(h, tt.capture); err == nil {
				t.Fatal("CapturePreview() expected error")
			}
			if got := testutil.ReadFile(t, repo.PreviewPath(h)); string(got) != "BM-first" {
				t.Errorf("preview = %q, want the earlier capture", got)
			}
			entries, _ := os.ReadDir(filepath.Dir(repo.PreviewPath(h)))
			if len(entries) != 1 {
				t.Errorf("preview dir holds %d files, want 1", len(entries))
			}
		})
	}
}

func TestRepository_LoadCommit(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	h := testutil.SHA256Hex([]byte("bracket v1"))
	want := &vcs.Commit{Hash: h, Message: "first", Timestamp: "2024-01-15T10:30:00Z", Author: "a"}
	if err := repo.SaveCommit(want); err != nil {
		t.Fatalf("SaveCommit() error = %v", err)
	}

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"full hash", h, nil},
		{"seven characters", h[:7], nil},
		{"uppercase prefix", strings.ToUpper(h[:10]), nil},
		{"surrounding space", "  " + h[:8] + "\n", nil},
		{"six characters", h[:6], vcs.ErrValidation},
		{"empty", "", vcs.ErrValidation},
		{"not hex", "zzzzzzzz", vcs.ErrValidation},
		{"unknown", strings.Repeat("0", 7), vcs.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.LoadCommit(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LoadCommit(%q) error = %v, want %v", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadCommit(%q) error = %v", tt.id, err)
			}
			if *got != *want {
				t.Errorf("LoadCommit(%q) = %+v, want %+v", tt.id, *got, *want)
			}
		})
	}
}

func TestRepository_SaveCommitRequiresHash(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	if err := repo.SaveCommit(&vcs.Commit{Message: "m"}); !errors.Is(err, vcs.ErrValidation) {
		t.Errorf("SaveCommit() error = %v, want ErrValidation", err)
	}
	if err := repo.SaveCommit(nil); !errors.Is(err, vcs.ErrValidation) {
		t.Errorf("SaveCommit(nil) error = %v, want ErrValidation", err)
	}
}

func TestRepository_ListCommitsNewestFirst(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	clock := testutil.FixedClock()

	var want []string
	for i := 0; i < 4; i++ {
		h := testutil.SHA256Hex([]byte{byte(i)})
		c := &vcs.Commit{Hash: h, Message: "m", Timestamp: vcs.FormatTimestamp(clock.Now())}
		if err := repo.SaveCommit(c); err != nil {
			t.Fatalf("SaveCommit() error = %v", err)
		}
		want = append([]string{h}, want...)
		clock.Advance(90 * time.Second)
	}

	commits, err := repo.ListCommits()
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(commits) != len(want) {
		t.Fatalf("ListCommits() returned %d commits, want %d", len(commits), len(want))
	}
	for i := range want {
		if commits[i].Hash != want[i] {
			t.Errorf("commits[%d] = %s, want %s", i, commits[i].ShortHash(), vcs.ShortHash(want[i]))
		}
	}
}
