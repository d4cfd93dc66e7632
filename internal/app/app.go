package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"swvcs/internal/blob"
	"swvcs/internal/config"
	"swvcs/internal/host"
	"swvcs/internal/metadata"
	"swvcs/internal/vcs"
)

// SWApp is the application layer between the CLI and the version store.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings, and manages the store lifecycle on Close.
type SWApp struct {
	cfg        *config.Config
	projectDir string
	repo       *vcs.Repository
	host       vcs.DocumentHost
	commits    *vcs.CommitEngine
	reverts    *vcs.RevertEngine
	logger     vcs.Logger
	clock      vcs.Clock
	author     string
	op         *Operation
	logFile    *os.File
}

// Pinger is implemented by hosts that can probe their connection.
type Pinger interface {
	Ping() error
}

// Status summarizes the repository and the document host.
type Status struct {
	ProjectDir  string
	Root        string
	Head        *vcs.Commit
	CommitCount int
	HostType    string
	// HostErr is set when the host could not be reached or queried.
	HostErr error
	// Active is the document open in the host, nil if none.
	Active *vcs.ActiveDocument
}

// CommitDetail is one commit plus what the repository holds for it.
type CommitDetail struct {
	Commit      *vcs.Commit
	IsHead      bool
	BlobPath    string
	BlobPresent bool
	// PreviewPath is empty when no preview was captured.
	PreviewPath string
}

// NewSWApp creates a fully wired SWApp for the project at projectDir.
// operation identifies the CLI command being run (e.g. "Commit", "Revert").
// echo, when non-nil, receives a copy of every log line.
// The caller must call Close when done.
func NewSWApp(cfg *config.Config, projectDir, operation string, echo io.Writer) (*SWApp, error) {
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}
	root := vcs.RootFor(projectDir)

	// Store files live under the root, which must exist before they open.
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating repository root: %w", err)
	}

	clock := vcs.RealClock{}
	op := NewOperation(operation, clock.Now())
	l, logFile, err := newLogger(LogDir(cfg, projectDir), op.ShortID(), ParseLevel(cfg.Log.Level), echo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	meta, err := metadata.NewMetadataStoreFromConfig(cfg.Metadata, root, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}

	repo := vcs.NewRepository(projectDir, meta, blob.NewBlobStore(root), blob.NewPreviewStore(root), logger)
	if !repo.IsValid() {
		repo.Close()
		logFile.Close()
		return nil, fmt.Errorf("opening repository: %w", repo.Err())
	}

	hostCfg := cfg.Host
	if hostCfg.Type == "file" && hostCfg.WorkingFile != "" && !filepath.IsAbs(hostCfg.WorkingFile) {
		hostCfg.WorkingFile = filepath.Join(projectDir, hostCfg.WorkingFile)
	}
	h, err := host.NewDocumentHostFromConfig(hostCfg)
	if err != nil {
		repo.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating document host: %w", err)
	}

	author := cfg.Author
	if author == "" {
		author = DefaultAuthor()
	}

	logger.Info("operation started", "operation", op.Name, "project", projectDir,
		"metadata", cfg.Metadata.Type, "host", cfg.Host.Type)

	return &SWApp{
		cfg:        cfg,
		projectDir: projectDir,
		repo:       repo,
		host:       h,
		commits:    vcs.NewCommitEngine(repo, h, logger, clock, author),
		reverts:    vcs.NewRevertEngine(repo, h, logger),
		logger:     logger,
		clock:      clock,
		author:     author,
		op:         op,
		logFile:    logFile,
	}, nil
}

// Init prepares a repository in projectDir: it writes cfg as the config file
// unless one exists, then creates the root layout and metadata store.
// It reports whether a config file was already present.
func Init(projectDir string, cfg *config.Config) (existed bool, err error) {
	if err := cfg.Validate(); err != nil {
		return false, fmt.Errorf("invalid config: %w", err)
	}

	path := ConfigPath(projectDir)
	if _, err := os.Stat(path); err == nil {
		existed = true
		if cfg, err = config.Load(path); err != nil {
			return true, err
		}
	} else if err := config.Init(path, cfg); err != nil {
		return false, err
	}

	a, err := NewSWApp(cfg, projectDir, "Init", nil)
	if err != nil {
		return existed, err
	}
	return existed, a.Close()
}

// Open finds the repository containing start and wires an SWApp for it.
func Open(start, operation string, echo io.Writer) (*SWApp, error) {
	projectDir, err := FindProjectDir(start)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(ConfigPath(projectDir))
	if err != nil {
		return nil, err
	}
	return NewSWApp(cfg, projectDir, operation, echo)
}

// Config returns the loaded configuration.
func (a *SWApp) Config() *config.Config { return a.cfg }

// ProjectDir returns the absolute project directory.
func (a *SWApp) ProjectDir() string { return a.projectDir }

// Operation returns the operation this app was opened for.
func (a *SWApp) Operation() *Operation { return a.op }

// Author returns the identity recorded on new commits.
func (a *SWApp) Author() string { return a.author }

// track marks the operation failed when err is non-nil.
func (a *SWApp) track(err error) error {
	if err != nil {
		a.op.Fail()
		a.logger.Error("operation failed", "operation", a.op.Name, "error", err)
	}
	return err
}

// Status reports HEAD, the number of commits and what the host has open.
// Host problems are recorded on the result rather than returned.
func (a *SWApp) Status() (*Status, error) {
	st := &Status{
		ProjectDir: a.projectDir,
		Root:       a.repo.Root(),
		HostType:   a.cfg.Host.Type,
	}

	commits, err := a.repo.ListCommits()
	if err != nil {
		return nil, a.track(err)
	}
	st.CommitCount = len(commits)

	if st.Head, err = a.repo.HeadCommit(); err != nil {
		return nil, a.track(err)
	}

	if a.host == nil {
		return st, nil
	}
	if p, ok := a.host.(Pinger); ok {
		if err := p.Ping(); err != nil {
			st.HostErr = err
			return st, nil
		}
	}
	st.Active, st.HostErr = a.host.ActiveDocument()
	return st, nil
}

// Commit snapshots the host's active document.
func (a *SWApp) Commit(message string, captureThumbnail bool) (*vcs.CommitResult, error) {
	res, err := a.commits.Commit(message, captureThumbnail)
	if err != nil {
		return nil, a.track(err)
	}
	a.logWarnings(res.Warnings)
	return res, nil
}

// CommitFile snapshots the file at rawPath without a CAD session. Previews
// need a renderer, so none is captured.
func (a *SWApp) CommitFile(rawPath, message string) (*vcs.CommitResult, error) {
	path, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, a.track(fmt.Errorf("%w: resolving path: %w", vcs.ErrValidation, err))
	}
	engine := vcs.NewCommitEngine(a.repo, host.NewFileHost(path), a.logger, a.clock, a.author)
	res, err := engine.Commit(message, false)
	if err != nil {
		return nil, a.track(err)
	}
	a.logWarnings(res.Warnings)
	return res, nil
}

// Log returns every commit, newest first.
func (a *SWApp) Log() ([]*vcs.Commit, error) {
	commits, err := a.repo.ListCommits()
	return commits, a.track(err)
}

// Head returns the HEAD hash, empty when there are no commits.
func (a *SWApp) Head() (string, error) {
	head, err := a.repo.GetHead()
	return head, a.track(err)
}

// Resolve loads the commit a full hash or prefix refers to.
func (a *SWApp) Resolve(identifier string) (*vcs.Commit, error) {
	c, err := a.repo.LoadCommit(identifier)
	return c, a.track(err)
}

// Show returns one commit with its storage details.
func (a *SWApp) Show(identifier string) (*CommitDetail, error) {
	c, err := a.repo.LoadCommit(identifier)
	if err != nil {
		return nil, a.track(err)
	}
	head, err := a.repo.GetHead()
	if err != nil {
		return nil, a.track(err)
	}
	present, err := a.repo.HasBlob(c.Hash)
	if err != nil {
		return nil, a.track(err)
	}

	d := &CommitDetail{
		Commit:      c,
		IsHead:      head == c.Hash,
		BlobPath:    a.repo.BlobPath(c.Hash),
		BlobPresent: present,
	}
	if a.repo.HasPreview(c.Hash) {
		d.PreviewPath = a.repo.PreviewPath(c.Hash)
	}
	return d, nil
}

// Revert restores the working file to the commit identifier refers to.
func (a *SWApp) Revert(identifier string) (*vcs.RevertResult, error) {
	res, err := a.reverts.Revert(identifier)
	if err != nil {
		return nil, a.track(err)
	}
	a.logWarnings(res.Warnings)
	return res, nil
}

func (a *SWApp) logWarnings(warnings []vcs.Warning) {
	for _, w := range warnings {
		a.logger.Warn("step skipped", "step", w.Step, "error", w.Err)
	}
}

// Close finalizes the operation and releases the metadata store and log file.
func (a *SWApp) Close() error {
	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"duration", a.clock.Now().Sub(a.op.StartedAt).Round(time.Millisecond))

	var errs []error
	if err := a.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing metadata store: %w", err))
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
