package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store handles persistence of extracted release metadata to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the metadata database at dbPath and ensures the
// schema exists. Schema creation is idempotent.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// DB returns the underlying database handle for advanced queries.
// Use with caution - prefer adding methods to Store instead.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats holds row counts for the two metadata tables.
type Stats struct {
	DistributionCount int
	DependencyCount   int
}

// GetStats returns row counts for the metadata tables.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		table string
		dest  *int
	}{
		{"meta_distribution", &stats.DistributionCount},
		{"meta_dependency", &stats.DependencyCount},
	}

	for _, r := range rows {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + r.table).Scan(r.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.table, err)
		}
	}

	return stats, nil
}

// Releases returns the distinct set of release identifiers currently stored.
func (s *Store) Releases() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT "release" FROM meta_distribution ORDER BY "release"`)
	if err != nil {
		return nil, fmt.Errorf("querying releases: %w", err)
	}
	defer rows.Close()

	var releases []string
	for rows.Next() {
		var release string
		if err := rows.Scan(&release); err != nil {
			return nil, fmt.Errorf("scanning release: %w", err)
		}
		releases = append(releases, release)
	}
	return releases, rows.Err()
}
