package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	"swvcs/internal/metadata/migrations"
	"swvcs/internal/vcs"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteFileName is the database file inside the repository root.
const SQLiteFileName = "swvcs.db"

const commitColumns = `hash, message, timestamp, author, parent_hash,
	doc_path, doc_type, mass, volume, surface_area, feature_count,
	material, bbox_x, bbox_y, bbox_z, config_count, blob_size_bytes`

// SQLiteStore implements vcs.MetadataStore on a SQLite database. Commits
// live in the commits table; HEAD is the "HEAD" row of the config table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger vcs.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway store. The schema is applied by Initialize.
func NewSQLiteStore(path string, logger vcs.Logger) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// OpenConnection opens and configures a SQLite connection.
// This is exported for tests that need to prepare a database by hand.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		// Wait for another process's write lock instead of failing.
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// Initialize applies pending migrations and verifies the schema version.
func (s *SQLiteStore) Initialize() error {
	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("%w: %w", vcs.ErrStorage, err)
	}
	if err := migrations.CheckStatus(s.db); err != nil {
		return fmt.Errorf("%w: schema out of date: %w", vcs.ErrStorage, err)
	}
	return nil
}

// SaveCommit inserts or replaces the commit row in a single statement.
func (s *SQLiteStore) SaveCommit(c *vcs.Commit) error {
	if c == nil || c.Hash == "" {
		return fmt.Errorf("%w: commit has no hash", vcs.ErrValidation)
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO commits (`+commitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Hash, c.Message, c.Timestamp, c.Author, c.ParentHash,
		c.Meta.DocPath, c.Meta.DocType, c.Meta.Mass, c.Meta.Volume, c.Meta.SurfaceArea, c.Meta.FeatureCount,
		c.Meta.Material, c.Meta.BBoxX, c.Meta.BBoxY, c.Meta.BBoxZ, c.Meta.ConfigCount, c.Meta.BlobSizeBytes,
	)
	if err != nil {
		return fmt.Errorf("%w: saving commit: %w", vcs.ErrStorage, err)
	}
	return nil
}

// LoadCommit tries an exact match, then the first prefix match by rowid.
func (s *SQLiteStore) LoadCommit(identifier string) (*vcs.Commit, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty commit identifier", vcs.ErrValidation)
	}

	c, err := s.queryOne(`SELECT `+commitColumns+` FROM commits WHERE hash = ? LIMIT 1`, identifier)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	// substr instead of LIKE so '%' and '_' in the identifier are literal.
	c, err = s.queryOne(`SELECT `+commitColumns+` FROM commits
		WHERE substr(hash, 1, ?) = ? ORDER BY rowid LIMIT 1`, len(identifier), identifier)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no commit found matching %s", vcs.ErrNotFound, identifier)
	}
	return c, nil
}

func (s *SQLiteStore) queryOne(query string, args ...any) (*vcs.Commit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading commit: %w", vcs.ErrStorage, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: loading commit: %w", vcs.ErrStorage, err)
		}
		return nil, nil
	}
	c, err := scanCommit(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding commit: %w", vcs.ErrStorage, err)
	}
	return c, nil
}

// ListCommits returns commits newest first. Rows that fail to decode are
// skipped and logged.
func (s *SQLiteStore) ListCommits() ([]*vcs.Commit, error) {
	rows, err := s.db.Query(`SELECT ` + commitColumns + ` FROM commits ORDER BY timestamp DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing commits: %w", vcs.ErrStorage, err)
	}
	defer rows.Close()

	var commits []*vcs.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable commit row", "error", err)
			continue
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing commits: %w", vcs.ErrStorage, err)
	}
	return commits, nil
}

// GetHead returns the HEAD row's value.
func (s *SQLiteStore) GetHead() (string, error) {
	var head sql.NullString
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = 'HEAD'`).Scan(&head)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: reading HEAD: %w", vcs.ErrStorage, err)
	}
	return head.String, nil
}

// SetHead overwrites the HEAD row.
func (s *SQLiteStore) SetHead(hash string) error {
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO config (key, value) VALUES ('HEAD', ?)`, hash); err != nil {
		return fmt.Errorf("%w: setting HEAD: %w", vcs.ErrStorage, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanCommit decodes one row. Nullable wrappers tolerate rows written by
// hand or by older tools that left NULLs behind.
func scanCommit(rows *sql.Rows) (*vcs.Commit, error) {
	var (
		hash, message, timestamp, author, parent sql.NullString
		docPath, docType, material               sql.NullString
		mass, volume, area, bx, by, bz           sql.NullFloat64
		features, configs, blobSize              sql.NullInt64
	)
	err := rows.Scan(&hash, &message, &timestamp, &author, &parent,
		&docPath, &docType, &mass, &volume, &area, &features,
		&material, &bx, &by, &bz, &configs, &blobSize)
	if err != nil {
		return nil, err
	}
	if !hash.Valid || hash.String == "" {
		return nil, fmt.Errorf("row has no hash")
	}

	return &vcs.Commit{
		Hash:       hash.String,
		Message:    message.String,
		Timestamp:  timestamp.String,
		ParentHash: parent.String,
		Author:     author.String,
		Meta: vcs.DocMetadata{
			DocPath:       docPath.String,
			DocType:       docType.String,
			Mass:          mass.Float64,
			Volume:        volume.Float64,
			SurfaceArea:   area.Float64,
			FeatureCount:  int(features.Int64),
			Material:      material.String,
			BBoxX:         bx.Float64,
			BBoxY:         by.Float64,
			BBoxZ:         bz.Float64,
			ConfigCount:   int(configs.Int64),
			BlobSizeBytes: blobSize.Int64,
		},
	}, nil
}

// Compile-time check that SQLiteStore implements vcs.MetadataStore interface
var _ vcs.MetadataStore = (*SQLiteStore)(nil)
