package vcs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RevertResult is the outcome of a successful revert.
type RevertResult struct {
	Commit *Commit
	// RestoredPath is the working file that was overwritten.
	RestoredPath string
	// Reopened is true when the host reopened the restored document.
	Reopened bool
	Warnings []Warning
}

// RevertEngine restores the working file to a stored snapshot.
type RevertEngine struct {
	repo   *Repository
	host   DocumentHost
	logger Logger
}

// NewRevertEngine creates a RevertEngine. host may be nil, in which case the
// working file is restored without closing or reopening anything.
func NewRevertEngine(repo *Repository, host DocumentHost, logger Logger) *RevertEngine {
	return &RevertEngine{
		repo:   repo,
		host:   host,
		logger: logger,
	}
}

// Revert overwrites the working file with the blob of the commit matching
// identifier and moves HEAD to it. HEAD is untouched on any fatal failure.
func (e *RevertEngine) Revert(identifier string) (*RevertResult, error) {
	target, err := e.repo.LoadCommit(identifier)
	if err != nil {
		return nil, err
	}

	ok, err := e.repo.HasBlob(target.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: checking blob for %s: %w", ErrIO, target.ShortHash(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: blob missing for commit %s (was the repository moved?)", ErrNotFound, target.ShortHash())
	}

	docPath := target.Meta.DocPath
	if docPath == "" {
		return nil, fmt.Errorf("%w: commit %s has no recorded document path", ErrValidation, target.ShortHash())
	}

	result := &RevertResult{Commit: target, RestoredPath: docPath}
	e.logger.Info("reverting", "hash", target.ShortHash(), "message", target.Message)

	wasOpen := e.closeIfOpen(docPath, result)

	if err := e.repo.RestoreBlob(target.Hash, docPath); err != nil {
		return nil, fmt.Errorf("restoring %s: %w", docPath, err)
	}
	e.logger.Info("working file restored", "path", docPath)

	if wasOpen {
		if err := e.host.OpenDocument(docPath); err != nil {
			result.Warnings = append(result.Warnings, Warning{Step: "reopen", Err: err})
			e.logger.Warn("could not reopen document", "path", docPath, "error", err)
		} else {
			result.Reopened = true
		}
	}

	if err := e.repo.SetHead(target.Hash); err != nil {
		return nil, fmt.Errorf("working file restored but HEAD not updated: %w", err)
	}

	e.logger.Info("revert complete", "head", target.ShortHash())
	return result, nil
}

// closeIfOpen asks the host to close docPath if it is the active document.
// A failed close is recorded and the overwrite proceeds anyway.
func (e *RevertEngine) closeIfOpen(docPath string, result *RevertResult) bool {
	if e.host == nil {
		return false
	}
	doc, err := e.host.ActiveDocument()
	if err != nil {
		e.logger.Debug("active document unavailable", "error", err)
		return false
	}
	if doc == nil || !samePath(doc.Path, docPath) {
		return false
	}

	e.logger.Info("closing document in host", "path", docPath)
	if err := e.host.CloseActiveDocument(true); err != nil {
		result.Warnings = append(result.Warnings, Warning{Step: "close", Err: err})
		e.logger.Warn("could not close document, attempting to overwrite anyway", "error", err)
	}
	return true
}

// samePath compares host-reported paths case-insensitively, as CAD hosts
// run on case-insensitive filesystems.
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
