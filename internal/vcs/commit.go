package vcs

import (
	"strings"
	"time"
)

// TimestampFormat is the layout of Commit.Timestamp. It is zero-padded UTC
// so that lexicographic order equals chronological order.
const TimestampFormat = "2006-01-02T15:04:05Z"

// ShortHashLength is the number of hash characters shown in short listings.
const ShortHashLength = 8

// MinPrefixLength is the shortest hash prefix accepted by Repository.LoadCommit.
const MinPrefixLength = 7

// DocumentKind classifies the CAD document a commit was taken from.
type DocumentKind string

const (
	KindPart     DocumentKind = "Part"
	KindAssembly DocumentKind = "Assembly"
	KindDrawing  DocumentKind = "Drawing"
	KindUnknown  DocumentKind = "Unknown"
)

// ParseDocumentKind maps a host-reported type name to a DocumentKind.
func ParseDocumentKind(s string) DocumentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "part":
		return KindPart
	case "assembly":
		return KindAssembly
	case "drawing":
		return KindDrawing
	default:
		return KindUnknown
	}
}

// Commit is an immutable record pairing a content hash with descriptive and
// physical metadata captured at commit time.
type Commit struct {
	Hash       string      `json:"hash" yaml:"hash"`
	Message    string      `json:"message" yaml:"message"`
	Timestamp  string      `json:"timestamp" yaml:"timestamp"`
	ParentHash string      `json:"parent_hash" yaml:"parent_hash"`
	Author     string      `json:"author" yaml:"author"`
	// sw_meta is the key existing commit records were written with.
	Meta       DocMetadata `json:"sw_meta" yaml:"sw_meta"`
}

// DocMetadata holds document-derived fields. A zero value in any field means
// "unavailable", never a measured zero.
type DocMetadata struct {
	DocPath       string  `json:"doc_path" yaml:"doc_path"`
	DocType       string  `json:"doc_type" yaml:"doc_type"`
	Mass          float64 `json:"mass" yaml:"mass"`                 // kg
	Volume        float64 `json:"volume" yaml:"volume"`             // m^3
	SurfaceArea   float64 `json:"surface_area" yaml:"surface_area"` // m^2
	FeatureCount  int     `json:"feature_count" yaml:"feature_count"`
	Material      string  `json:"material" yaml:"material"`
	BBoxX         float64 `json:"bbox_x" yaml:"bbox_x"` // mm
	BBoxY         float64 `json:"bbox_y" yaml:"bbox_y"`
	BBoxZ         float64 `json:"bbox_z" yaml:"bbox_z"`
	ConfigCount   int     `json:"config_count" yaml:"config_count"`
	BlobSizeBytes int64   `json:"blob_size_bytes" yaml:"blob_size_bytes"`
}

// ShortHash returns the first ShortHashLength characters of the hash.
func (c *Commit) ShortHash() string {
	return ShortHash(c.Hash)
}

// Time parses the commit timestamp. It returns the zero time if the stored
// value is malformed.
func (c *Commit) Time() time.Time {
	t, err := time.Parse(TimestampFormat, c.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasPhysicalProperties reports whether any mass property was captured.
func (m *DocMetadata) HasPhysicalProperties() bool {
	return m.Mass > 0 || m.Volume > 0 || m.SurfaceArea > 0
}

// HasBoundingBox reports whether any bounding-box extent was captured.
func (m *DocMetadata) HasBoundingBox() bool {
	return m.BBoxX > 0 || m.BBoxY > 0 || m.BBoxZ > 0
}

// ShortHash truncates a hash for display.
func ShortHash(hash string) string {
	if len(hash) > ShortHashLength {
		return hash[:ShortHashLength]
	}
	return hash
}

// FormatTimestamp renders t in the commit timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
