package host

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"swvcs/internal/vcs"
)

// FileHost is an offline DocumentHost: the configured working file stands in
// for the active document. Save, close and open succeed without doing
// anything since there is no session holding the file. Metadata queries and
// thumbnails are unsupported.
type FileHost struct {
	path string
}

// NewFileHost creates a host whose active document is path.
func NewFileHost(path string) *FileHost {
	return &FileHost{path: path}
}

// Path returns the working file.
func (h *FileHost) Path() string { return h.path }

// ActiveDocument returns the working file, or nil when none is configured.
func (h *FileHost) ActiveDocument() (*vcs.ActiveDocument, error) {
	if h.path == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(h.path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", h.path, err)
	}
	return &vcs.ActiveDocument{
		Path:  abs,
		Title: filepath.Base(abs),
		Kind:  KindFromPath(abs),
	}, nil
}

func (h *FileHost) SaveActiveDocument() error {
	return nil
}

func (h *FileHost) CloseActiveDocument(bool) error {
	return nil
}

func (h *FileHost) OpenDocument(string) error {
	return nil
}

func (h *FileHost) FeatureCount() (int, error) {
	return 0, errors.ErrUnsupported
}

func (h *FileHost) Material() (string, error) {
	return "", errors.ErrUnsupported
}

func (h *FileHost) ConfigurationCount() (int, error) {
	return 0, errors.ErrUnsupported
}

func (h *FileHost) SaveThumbnail(string) error {
	return errors.ErrUnsupported
}

func (h *FileHost) PhysicalProperties() (vcs.PhysicalProperties, error) {
	return vcs.PhysicalProperties{}, errors.ErrUnsupported
}

func (h *FileHost) BoundingBoxExtents() (vcs.Extents, error) {
	return vcs.Extents{}, errors.ErrUnsupported
}

// KindFromPath infers the document kind from a CAD file extension.
func KindFromPath(path string) vcs.DocumentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sldprt", ".prt":
		return vcs.KindPart
	case ".sldasm", ".asm":
		return vcs.KindAssembly
	case ".slddrw", ".drw":
		return vcs.KindDrawing
	default:
		return vcs.KindUnknown
	}
}

// Compile-time check that FileHost implements vcs.DocumentHost interface
var _ vcs.DocumentHost = (*FileHost)(nil)
