package vcs

// ActiveDocument describes the document currently open in the host.
type ActiveDocument struct {
	Path    string       `json:"path"`
	Title   string       `json:"title"`
	Kind    DocumentKind `json:"kind"`
	IsDirty bool         `json:"dirty"`
}

// PhysicalProperties are the mass properties reported by the host.
type PhysicalProperties struct {
	Mass        float64 `json:"mass"`
	Volume      float64 `json:"volume"`
	SurfaceArea float64 `json:"surface_area"`
}

// Extents are bounding-box dimensions in millimetres.
type Extents struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DocumentHost is the narrow capability interface consumed from the running
// CAD application. Adapters hide whatever dynamic binding the real host needs.
// Every call is synchronous and may block.
type DocumentHost interface {
	// ActiveDocument returns the active document, or nil if none is open.
	ActiveDocument() (*ActiveDocument, error)

	// SaveActiveDocument persists in-progress edits to the document's path.
	SaveActiveDocument() error

	// CloseActiveDocument closes the active document, discarding unsaved
	// changes when discardChanges is true.
	CloseActiveDocument(discardChanges bool) error

	// OpenDocument opens the file at path.
	OpenDocument(path string) error

	// Best-effort metadata queries. Unsupported values come back as zero.
	PhysicalProperties() (PhysicalProperties, error)
	FeatureCount() (int, error)
	Material() (string, error)
	BoundingBoxExtents() (Extents, error)
	ConfigurationCount() (int, error)

	// SaveThumbnail renders a preview image of the active document to destPath.
	SaveThumbnail(destPath string) error
}
