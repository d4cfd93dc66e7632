package vcs_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swvcs/internal/testutil"
	"swvcs/internal/vcs"
)

// revertFixture has two commits of one working file: v1 then v2 (HEAD).
type revertFixture struct {
	repo   *vcs.Repository
	host   *testutil.FakeHost
	engine *vcs.RevertEngine
	path   string
	v1, v2 *vcs.Commit
}

func newRevertFixture(t *testing.T) *revertFixture {
	t.Helper()
	cf := newCommitFixture(t, []byte("version one"))

	r1, err := cf.engine.Commit("v1", false)
	if err != nil {
		t.Fatalf("Commit(v1) error = %v", err)
	}
	testutil.WriteFile(t, filepath.Dir(cf.path), filepath.Base(cf.path), []byte("version two, longer"))
	cf.clock.Advance(time.Minute)
	r2, err := cf.engine.Commit("v2", false)
	if err != nil {
		t.Fatalf("Commit(v2) error = %v", err)
	}

	return &revertFixture{
		repo:   cf.repo,
		host:   cf.host,
		engine: vcs.NewRevertEngine(cf.repo, cf.host, vcs.NewNopLogger()),
		path:   cf.path,
		v1:     r1.Commit,
		v2:     r2.Commit,
	}
}

func TestRevertEngine_RestoresOlderCommit(t *testing.T) {
	f := newRevertFixture(t)

	res, err := f.engine.Revert(f.v1.Hash[:7])
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}

	got := testutil.ReadFile(t, f.path)
	want := testutil.ReadFile(t, f.repo.BlobPath(f.v1.Hash))
	if !bytes.Equal(got, want) {
		t.Errorf("working file = %q, want %q", got, want)
	}

	head, err := f.repo.GetHead()
	if err != nil || head != f.v1.Hash {
		t.Errorf("GetHead() = %q, %v; want %q", head, err, f.v1.Hash)
	}

	if res.Commit.Hash != f.v1.Hash || res.RestoredPath != f.path {
		t.Errorf("result = %+v", res)
	}
	if !res.Reopened {
		t.Error("document was open but not reopened")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v", res.Warnings)
	}

	calls := strings.Join(f.host.Calls(), ",")
	if !strings.Contains(calls, "CloseActiveDocument(true)") {
		t.Errorf("host calls = %s, want a discarding close", calls)
	}
	if strings.Index(calls, "CloseActiveDocument") > strings.LastIndex(calls, "OpenDocument") {
		t.Errorf("host calls = %s, want close before reopen", calls)
	}

	commits, _ := f.repo.ListCommits()
	if len(commits) != 2 {
		t.Errorf("revert changed the commit set: %d commits", len(commits))
	}
}

func TestRevertEngine_MissingBlob(t *testing.T) {
	f := newRevertFixture(t)
	before := testutil.ReadFile(t, f.path)

	if err := os.Remove(f.repo.BlobPath(f.v1.Hash)); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.Revert(f.v1.Hash)
	if !errors.Is(err, vcs.ErrNotFound) {
		t.Fatalf("Revert() error = %v, want ErrNotFound", err)
	}

	head, _ := f.repo.GetHead()
	if head != f.v2.Hash {
		t.Errorf("HEAD = %q, want unchanged %q", head, f.v2.Hash)
	}
	if !bytes.Equal(testutil.ReadFile(t, f.path), before) {
		t.Error("working file touched although the blob is missing")
	}
	if f.host.Called("CloseActiveDocument(true)") {
		t.Error("document closed although the blob is missing")
	}
}

func TestRevertEngine_UnknownCommit(t *testing.T) {
	f := newRevertFixture(t)

	unknown := strings.Repeat("0", 7)
	if strings.HasPrefix(f.v1.Hash, unknown) || strings.HasPrefix(f.v2.Hash, unknown) {
		t.Skip("fixture hash starts with the unknown prefix")
	}
	if _, err := f.engine.Revert(unknown); !errors.Is(err, vcs.ErrNotFound) {
		t.Errorf("Revert() error = %v, want ErrNotFound", err)
	}
	if _, err := f.engine.Revert("abc"); !errors.Is(err, vcs.ErrValidation) {
		t.Errorf("Revert(short) error = %v, want ErrValidation", err)
	}
	head, _ := f.repo.GetHead()
	if head != f.v2.Hash {
		t.Errorf("HEAD = %q, want unchanged", head)
	}
}

func TestRevertEngine_CloseFailureStillOverwrites(t *testing.T) {
	f := newRevertFixture(t)
	f.host.CloseErr = errors.New("document busy")

	res, err := f.engine.Revert(f.v1.Hash)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if string(testutil.ReadFile(t, f.path)) != "version one" {
		t.Error("working file was not restored")
	}
	if len(res.Warnings) == 0 || res.Warnings[0].Step != "close" {
		t.Errorf("Warnings = %v, want a close warning", res.Warnings)
	}
}

func TestRevertEngine_ReopenFailureIsNonFatal(t *testing.T) {
	f := newRevertFixture(t)
	f.host.OpenErr = errors.New("license server unreachable")

	res, err := f.engine.Revert(f.v1.Hash)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if res.Reopened {
		t.Error("Reopened = true after failure")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Step != "reopen" {
		t.Errorf("Warnings = %v, want one reopen warning", res.Warnings)
	}
	head, _ := f.repo.GetHead()
	if head != f.v1.Hash {
		t.Errorf("HEAD = %q, want %q", head, f.v1.Hash)
	}
}

func TestRevertEngine_OtherDocumentOpen(t *testing.T) {
	f := newRevertFixture(t)
	f.host.Doc = &vcs.ActiveDocument{Path: filepath.Join(filepath.Dir(f.path), "other.SLDASM"), Kind: vcs.KindAssembly}

	res, err := f.engine.Revert(f.v1.Hash)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if f.host.Called("CloseActiveDocument(true)") || f.host.Called("OpenDocument") {
		t.Errorf("unrelated document was closed or reopened: %v", f.host.Calls())
	}
	if res.Reopened {
		t.Error("Reopened = true for a document that was not open")
	}
}

func TestRevertEngine_PathMatchIgnoresCase(t *testing.T) {
	f := newRevertFixture(t)
	f.host.Doc = &vcs.ActiveDocument{Path: strings.ToUpper(f.path), Kind: vcs.KindPart}

	if _, err := f.engine.Revert(f.v1.Hash); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if !f.host.Called("CloseActiveDocument(true)") {
		t.Error("document reported with different case was not closed")
	}
}

func TestRevertEngine_NoHost(t *testing.T) {
	f := newRevertFixture(t)
	engine := vcs.NewRevertEngine(f.repo, nil, vcs.NewNopLogger())

	res, err := engine.Revert(f.v1.Hash)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if res.Reopened {
		t.Error("Reopened = true without a host")
	}
	if string(testutil.ReadFile(t, f.path)) != "version one" {
		t.Error("working file was not restored")
	}
}

func TestRevertEngine_RecreatesDeletedWorkingFile(t *testing.T) {
	f := newRevertFixture(t)
	f.host.Doc = nil
	if err := os.Remove(f.path); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.Revert(f.v2.Hash); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if string(testutil.ReadFile(t, f.path)) != "version two, longer" {
		t.Error("working file was not recreated")
	}
}

func TestRevertEngine_SetHeadFailure(t *testing.T) {
	projectDir := t.TempDir()
	meta := &testutil.FlakyMetadataStore{MetadataStore: testutil.NewTestMetadataStore(t)}
	repo := testutil.NewTestRepositoryWithStore(t, projectDir, meta)
	path := testutil.WriteFile(t, projectDir, "p.sldprt", []byte("one"))
	host := testutil.NewFakeHost(path)
	clock := testutil.FixedClock()
	commits := vcs.NewCommitEngine(repo, host, vcs.NewNopLogger(), clock, "a")

	r1, err := commits.Commit("one", false)
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, projectDir, "p.sldprt", []byte("two"))
	clock.Advance(time.Minute)
	r2, err := commits.Commit("two", false)
	if err != nil {
		t.Fatal(err)
	}

	meta.SetHeadErr = errors.New("database is locked")
	if _, err := vcs.NewRevertEngine(repo, host, vcs.NewNopLogger()).Revert(r1.Commit.Hash); err == nil {
		t.Fatal("Revert() expected error")
	}
	head, _ := repo.GetHead()
	if head != r2.Commit.Hash {
		t.Errorf("HEAD = %q, want unchanged %q", head, r2.Commit.Hash)
	}
}
