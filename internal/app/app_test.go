package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swvcs/internal/config"
	"swvcs/internal/vcs"
)

// newTestProject initializes a repository whose host is the offline file
// host pointed at part.sldprt, with JSON metadata so state survives reopening.
func newTestProject(t *testing.T) (projectDir, partPath string) {
	t.Helper()
	t.Setenv("SWVCS_CONFIG", "")
	t.Setenv("SWVCS_AUTHOR", "tester")

	projectDir = t.TempDir()
	partPath = filepath.Join(projectDir, "part.sldprt")
	writePart(t, partPath, "version one")

	cfg := config.NewConfig()
	cfg.Metadata.Type = "json"
	cfg.Host = config.HostConfig{Type: "file", WorkingFile: "part.sldprt"}

	existed, err := Init(projectDir, cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if existed {
		t.Fatal("Init() reported an existing config in a fresh directory")
	}
	return projectDir, partPath
}

func writePart(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func openApp(t *testing.T, start, operation string) *SWApp {
	t.Helper()
	a, err := Open(start, operation, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestInit_CreatesLayout(t *testing.T) {
	projectDir, _ := newTestProject(t)
	root := filepath.Join(projectDir, ".swvcs")

	for _, p := range []string{"config.toml", "blobs", "thumbs", "commits", filepath.Join("log", LogFileName)} {
		if _, err := os.Stat(filepath.Join(root, p)); err != nil {
			t.Errorf("%s missing after Init: %v", p, err)
		}
	}

	cfg, err := config.Load(filepath.Join(root, "config.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metadata.Type != "json" || cfg.Host.WorkingFile != "part.sldprt" {
		t.Errorf("written config = %+v", cfg)
	}
}

func TestInit_KeepsExistingConfig(t *testing.T) {
	projectDir, _ := newTestProject(t)

	existed, err := Init(projectDir, config.NewConfig())
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if !existed {
		t.Error("second Init() did not report the existing config")
	}
	cfg, _ := config.Load(ConfigPath(projectDir))
	if cfg.Metadata.Type != "json" {
		t.Errorf("config overwritten: metadata type = %q", cfg.Metadata.Type)
	}
}

func TestInit_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("SWVCS_CONFIG", "")
	cfg := config.NewConfig()
	cfg.Metadata.Type = "postgres"
	if _, err := Init(t.TempDir(), cfg); err == nil {
		t.Error("Init() expected error for unknown metadata type")
	}
}

func TestOpen_NotARepository(t *testing.T) {
	if _, err := Open(t.TempDir(), "Status", nil); err == nil {
		t.Error("Open() expected error outside a repository")
	}
}

func TestSWApp_StatusOnFreshRepository(t *testing.T) {
	projectDir, partPath := newTestProject(t)
	a := openApp(t, projectDir, "Status")

	st, err := a.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Head != nil || st.CommitCount != 0 {
		t.Errorf("Status() = %+v, want no commits", st)
	}
	if st.HostType != "file" || st.HostErr != nil {
		t.Errorf("host = %q, %v", st.HostType, st.HostErr)
	}
	if st.Active == nil || st.Active.Path != partPath || st.Active.Kind != vcs.KindPart {
		t.Errorf("Active = %+v", st.Active)
	}
}

func TestSWApp_CommitLogShow(t *testing.T) {
	projectDir, partPath := newTestProject(t)
	a := openApp(t, projectDir, "Commit")

	res, err := a.Commit("initial bracket", true)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if res.Commit.Author != "tester" {
		t.Errorf("Author = %q, want %q", res.Commit.Author, "tester")
	}
	if res.Commit.Meta.DocPath != partPath {
		t.Errorf("DocPath = %q, want %q", res.Commit.Meta.DocPath, partPath)
	}
	// The file host cannot render previews.
	if res.PreviewSaved || len(res.Warnings) == 0 {
		t.Errorf("PreviewSaved = %v, Warnings = %v", res.PreviewSaved, res.Warnings)
	}

	commits, err := a.Log()
	if err != nil || len(commits) != 1 {
		t.Fatalf("Log() = %d commits, %v", len(commits), err)
	}
	head, err := a.Head()
	if err != nil || head != res.Commit.Hash {
		t.Errorf("Head() = %q, %v", head, err)
	}

	d, err := a.Show(res.Commit.ShortHash())
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if !d.IsHead || !d.BlobPresent || d.PreviewPath != "" {
		t.Errorf("Show() = %+v", d)
	}
	if d.Commit.Message != "initial bracket" {
		t.Errorf("Message = %q", d.Commit.Message)
	}
}

func TestSWApp_StatePersistsAcrossOpen(t *testing.T) {
	projectDir, _ := newTestProject(t)

	first, err := Open(projectDir, "Commit", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := first.Commit("v1", false)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	nested := filepath.Join(projectDir, "drawings")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatal(err)
	}
	second := openApp(t, nested, "Status")
	st, err := second.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.CommitCount != 1 || st.Head == nil || st.Head.Hash != res.Commit.Hash {
		t.Errorf("Status() after reopen = %+v", st)
	}
}

func TestSWApp_Revert(t *testing.T) {
	projectDir, partPath := newTestProject(t)
	a := openApp(t, projectDir, "Revert")

	v1, err := a.Commit("v1", false)
	if err != nil {
		t.Fatal(err)
	}
	writePart(t, partPath, "version two")
	if _, err := a.Commit("v2", false); err != nil {
		t.Fatal(err)
	}

	res, err := a.Revert(v1.Commit.Hash[:7])
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if res.RestoredPath != partPath {
		t.Errorf("RestoredPath = %q", res.RestoredPath)
	}
	data, _ := os.ReadFile(partPath)
	if string(data) != "version one" {
		t.Errorf("working file = %q, want %q", data, "version one")
	}
	head, _ := a.Head()
	if head != v1.Commit.Hash {
		t.Errorf("HEAD = %q, want %q", head, v1.Commit.Hash)
	}
}

func TestSWApp_CommitFile(t *testing.T) {
	projectDir, _ := newTestProject(t)
	a := openApp(t, projectDir, "Commit")

	other := filepath.Join(projectDir, "Housing.SLDASM")
	writePart(t, other, "assembly bytes")

	res, err := a.CommitFile(other, "housing")
	if err != nil {
		t.Fatalf("CommitFile() error = %v", err)
	}
	if res.Commit.Meta.DocType != string(vcs.KindAssembly) {
		t.Errorf("DocType = %q, want Assembly", res.Commit.Meta.DocType)
	}
	if res.Commit.Meta.BlobSizeBytes != int64(len("assembly bytes")) {
		t.Errorf("BlobSizeBytes = %d", res.Commit.Meta.BlobSizeBytes)
	}
}

func TestSWApp_FailedOperationIsLogged(t *testing.T) {
	projectDir, _ := newTestProject(t)
	a, err := Open(projectDir, "Show", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Show("0000000")
	if !errors.Is(err, vcs.ErrNotFound) {
		t.Fatalf("Show() error = %v, want ErrNotFound", err)
	}
	if !a.Operation().Failed() {
		t.Error("operation not marked failed")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(projectDir, ".swvcs", "log", LogFileName))
	log := string(data)
	if !strings.Contains(log, a.Operation().ShortID()) || !strings.Contains(log, "status=error") {
		t.Errorf("log does not record the failed operation:\n%s", log)
	}
}

func TestSWApp_NoHost(t *testing.T) {
	t.Setenv("SWVCS_CONFIG", "")
	projectDir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Metadata.Type = "memory"
	cfg.Host = config.HostConfig{Type: "none"}

	a, err := NewSWApp(cfg, projectDir, "Commit", nil)
	if err != nil {
		t.Fatalf("NewSWApp() error = %v", err)
	}
	defer a.Close()

	if _, err := a.Commit("m", false); !errors.Is(err, vcs.ErrHostUnavailable) {
		t.Errorf("Commit() error = %v, want ErrHostUnavailable", err)
	}
	st, err := a.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Active != nil || st.HostErr != nil {
		t.Errorf("Status() = %+v, want no host information", st)
	}
}
