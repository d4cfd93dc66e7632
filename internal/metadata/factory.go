package metadata

import (
	"fmt"
	"path/filepath"

	"swvcs/internal/config"
	"swvcs/internal/vcs"
)

// NewMetadataStoreFromConfig creates a MetadataStore for the repository root
// based on the metadata config type.
func NewMetadataStoreFromConfig(cfg config.MetadataConfig, root string, logger vcs.Logger) (vcs.MetadataStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(filepath.Join(root, SQLiteFileName), logger)
	case "json":
		return NewJSONStore(root, logger)
	case "badger":
		return NewBadgerStore(filepath.Join(root, BadgerDirName), logger)
	case "memory":
		return NewSQLiteStore(":memory:", logger)
	default:
		return nil, fmt.Errorf("unknown metadata type: %s", cfg.Type)
	}
}
