package vcs

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// CommitResult is the outcome of a successful commit.
type CommitResult struct {
	Commit       *Commit
	// BlobReused is true when identical content was already stored.
	BlobReused   bool
	// PreviewSaved is true when a preview image was captured.
	PreviewSaved bool
	// Replaced is true when a commit with the same hash already existed. The
	// record is keyed by content, so it was overwritten with the new message.
	Replaced     bool
	Warnings     []Warning
}

// CommitEngine snapshots the host's active document into the repository.
type CommitEngine struct {
	repo   *Repository
	host   DocumentHost
	logger Logger
	clock  Clock
	author string
}

// NewCommitEngine creates a CommitEngine. author identifies the calling
// environment and is recorded on every commit.
func NewCommitEngine(repo *Repository, host DocumentHost, logger Logger, clock Clock, author string) *CommitEngine {
	return &CommitEngine{
		repo:   repo,
		host:   host,
		logger: logger,
		clock:  clock,
		author: author,
	}
}

// Commit runs the commit sequence. Steps that only enrich the commit (save,
// preview, metadata) are best-effort; everything else aborts before HEAD moves.
func (e *CommitEngine) Commit(message string, captureThumbnail bool) (*CommitResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: commit message is empty", ErrValidation)
	}
	if !e.repo.IsValid() {
		return nil, e.repo.check()
	}
	if e.host == nil {
		return nil, fmt.Errorf("%w: no document host session", ErrHostUnavailable)
	}

	result := &CommitResult{}

	doc, err := e.host.ActiveDocument()
	if err != nil {
		return nil, fmt.Errorf("%w: querying active document: %w", ErrHostUnavailable, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: no active document", ErrHostUnavailable)
	}
	if doc.Path == "" {
		return nil, fmt.Errorf("%w: active document has not been saved yet (no file path)", ErrValidation)
	}

	if err := e.host.SaveActiveDocument(); err != nil {
		e.warn(result, "save", err)
		e.logger.Warn("save failed, continuing with file as-is", "path", doc.Path, "error", err)
	}

	before, err := os.Stat(doc.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file not found on disk: %s", ErrNotFound, doc.Path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, doc.Path, err)
	}

	hash, err := HashFile(doc.Path)
	if err != nil {
		return nil, err
	}

	stored, err := e.repo.StoreBlob(doc.Path, hash)
	if err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	// The blob matches its hash, but a save after the first stat means it
	// may not be the document the host reported.
	if err := e.checkUnchanged(doc.Path, before); err != nil {
		if stored {
			if rmErr := e.repo.DiscardBlob(hash); rmErr != nil {
				e.logger.Warn("could not discard blob", "hash", ShortHash(hash), "error", rmErr)
			}
		}
		return nil, err
	}

	result.BlobReused = !stored
	if stored {
		e.logger.Info("blob stored", "hash", ShortHash(hash))
	} else {
		e.logger.Info("identical snapshot already stored", "hash", ShortHash(hash))
	}

	if captureThumbnail {
		if err := e.repo.CapturePreview(hash, e.host.SaveThumbnail); err != nil {
			e.warn(result, "thumbnail", err)
			e.logger.Warn("thumbnail skipped", "error", err)
		} else {
			result.PreviewSaved = true
		}
	}

	parent, err := e.repo.GetHead()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	if prev, err := e.repo.LoadCommit(hash); err == nil {
		result.Replaced = true
		// Committing unchanged content must not make the commit its own parent.
		if parent == hash {
			parent = prev.ParentHash
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking for existing commit: %w", err)
	}

	c := &Commit{
		Hash:       hash,
		Message:    message,
		Timestamp:  FormatTimestamp(e.clock.Now()),
		ParentHash: parent,
		Author:     e.author,
		Meta:       e.collectMetadata(doc, result),
	}

	if size, err := e.repo.BlobSize(hash); err == nil {
		c.Meta.BlobSizeBytes = size
	} else {
		e.logger.Warn("blob size unavailable", "hash", ShortHash(hash), "error", err)
	}

	if err := e.repo.SaveCommit(c); err != nil {
		return nil, fmt.Errorf("saving commit: %w", err)
	}

	if err := e.repo.SetHead(hash); err != nil {
		return nil, fmt.Errorf("commit %s saved but HEAD not advanced: %w", ShortHash(hash), err)
	}

	e.logger.Info("commit created", "hash", ShortHash(hash), "message", message)
	result.Commit = c
	return result, nil
}

// collectMetadata queries the host for document properties. A failed query
// leaves its field at zero.
func (e *CommitEngine) collectMetadata(doc *ActiveDocument, result *CommitResult) DocMetadata {
	kind := doc.Kind
	if kind == "" {
		kind = KindUnknown
	}
	meta := DocMetadata{
		DocPath: doc.Path,
		DocType: string(kind),
	}

	if props, err := e.host.PhysicalProperties(); err != nil {
		e.logger.Debug("mass properties unavailable", "error", err)
	} else {
		meta.Mass = nonNegative(props.Mass)
		meta.Volume = nonNegative(props.Volume)
		meta.SurfaceArea = nonNegative(props.SurfaceArea)
	}

	if n, err := e.host.FeatureCount(); err != nil {
		e.logger.Debug("feature count unavailable", "error", err)
	} else if n > 0 {
		meta.FeatureCount = n
	}

	if m, err := e.host.Material(); err != nil {
		e.logger.Debug("material unavailable", "error", err)
	} else {
		meta.Material = strings.TrimSpace(m)
	}

	if ext, err := e.host.BoundingBoxExtents(); err != nil {
		e.logger.Debug("bounding box unavailable", "error", err)
	} else {
		meta.BBoxX = nonNegative(ext.X)
		meta.BBoxY = nonNegative(ext.Y)
		meta.BBoxZ = nonNegative(ext.Z)
	}

	if n, err := e.host.ConfigurationCount(); err != nil {
		e.logger.Debug("configuration count unavailable", "error", err)
	} else if n > 0 {
		meta.ConfigCount = n
	}

	return meta
}

// checkUnchanged re-stats path and compares it with the stat taken before
// hashing.
func (e *CommitEngine) checkUnchanged(path string, before os.FileInfo) error {
	after, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: re-stat %s: %w", ErrIO, path, err)
	}
	switch {
	case before.Size() != after.Size():
		err = fmt.Errorf("size changed: %d -> %d", before.Size(), after.Size())
	case before.Mode() != after.Mode():
		err = fmt.Errorf("mode changed: %v -> %v", before.Mode(), after.Mode())
	case !before.ModTime().Equal(after.ModTime()):
		err = fmt.Errorf("mtime changed: %v -> %v", before.ModTime(), after.ModTime())
	default:
		return nil
	}
	return fmt.Errorf("%w: %s changed while it was being committed: %w", ErrContentMismatch, path, err)
}

func (e *CommitEngine) warn(result *CommitResult, step string, err error) {
	result.Warnings = append(result.Warnings, Warning{Step: step, Err: err})
}

// nonNegative clamps nonsense negative measurements to "unavailable".
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
