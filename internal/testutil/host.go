package testutil

import (
	"fmt"
	"os"
	"sync"

	"swvcs/internal/vcs"
)

// FakeHost is an in-memory DocumentHost. Its active document is whatever Doc
// points to; set any *Err field to make that call fail. Calls are recorded
// in order. Safe for concurrent use.
type FakeHost struct {
	mu sync.Mutex

	Doc         *vcs.ActiveDocument
	Props       vcs.PhysicalProperties
	Features    int
	MaterialVal string
	BBox        vcs.Extents
	Configs     int
	// Thumbnail is written by SaveThumbnail. When ThumbnailErr is set, half
	// of it is written before the call fails, like an interrupted render.
	Thumbnail []byte
	// OnSave runs inside SaveActiveDocument, e.g. to change the file on disk.
	OnSave func() error

	ActiveErr    error
	SaveErr      error
	CloseErr     error
	OpenErr      error
	MetadataErr  error
	ThumbnailErr error

	calls []string
}

// NewFakeHost returns a host whose active part is the file at path.
func NewFakeHost(path string) *FakeHost {
	return &FakeHost{
		Doc: &vcs.ActiveDocument{
			Path:  path,
			Title: "test part",
			Kind:  vcs.KindPart,
		},
		Thumbnail: []byte("BM-preview"),
	}
}

func (h *FakeHost) record(call string) {
	h.calls = append(h.calls, call)
}

// Calls returns the recorded call names in order.
func (h *FakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// Called reports whether call was recorded at least once.
func (h *FakeHost) Called(call string) bool {
	for _, c := range h.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

func (h *FakeHost) ActiveDocument() (*vcs.ActiveDocument, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ActiveDocument")
	if h.ActiveErr != nil {
		return nil, h.ActiveErr
	}
	if h.Doc == nil {
		return nil, nil
	}
	doc := *h.Doc
	return &doc, nil
}

func (h *FakeHost) SaveActiveDocument() error {
	h.mu.Lock()
	h.record("SaveActiveDocument")
	err, onSave := h.SaveErr, h.OnSave
	h.mu.Unlock()

	if err != nil {
		return err
	}
	if onSave != nil {
		return onSave()
	}
	return nil
}

func (h *FakeHost) CloseActiveDocument(discardChanges bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(fmt.Sprintf("CloseActiveDocument(%t)", discardChanges))
	if h.CloseErr != nil {
		return h.CloseErr
	}
	h.Doc = nil
	return nil
}

func (h *FakeHost) OpenDocument(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("OpenDocument")
	if h.OpenErr != nil {
		return h.OpenErr
	}
	h.Doc = &vcs.ActiveDocument{Path: path, Title: "reopened", Kind: vcs.KindPart}
	return nil
}

func (h *FakeHost) PhysicalProperties() (vcs.PhysicalProperties, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("PhysicalProperties")
	return h.Props, h.MetadataErr
}

func (h *FakeHost) FeatureCount() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("FeatureCount")
	return h.Features, h.MetadataErr
}

func (h *FakeHost) Material() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Material")
	return h.MaterialVal, h.MetadataErr
}

func (h *FakeHost) BoundingBoxExtents() (vcs.Extents, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("BoundingBoxExtents")
	return h.BBox, h.MetadataErr
}

func (h *FakeHost) ConfigurationCount() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ConfigurationCount")
	return h.Configs, h.MetadataErr
}

func (h *FakeHost) SaveThumbnail(destPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SaveThumbnail")
	if h.ThumbnailErr != nil {
		os.WriteFile(destPath, h.Thumbnail[:len(h.Thumbnail)/2], 0644)
		return h.ThumbnailErr
	}
	return os.WriteFile(destPath, h.Thumbnail, 0644)
}

// Compile-time check that FakeHost implements vcs.DocumentHost interface
var _ vcs.DocumentHost = (*FakeHost)(nil)
