package store

import (
	"database/sql"
	"fmt"
)

// DefaultBatchSize is the number of visits between transaction commits.
const DefaultBatchSize = 100

// Writer persists extracted records inside bounded transactions. Each Write
// lands in the currently open transaction; every batchSize visits the
// transaction is committed and a new one opened on the next Write. Flush
// commits whatever remains open at the end of the stream, bounding the work
// lost on a crash to at most one batch.
//
// Writer is not safe for concurrent use; the pipeline is strictly sequential.
type Writer struct {
	db        *sql.DB
	tx        *sql.Tx
	batchSize int
	visits    int
	commits   int
}

// NewWriter creates a Writer committing every batchSize visits.
// A batchSize of zero or less selects DefaultBatchSize.
func NewWriter(db *sql.DB, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{db: db, batchSize: batchSize}
}

// Write inserts one Distribution row and its Dependency rows, committing the
// open transaction when the visit counter crosses the batch boundary.
// Any error is fatal to the run; no partial-row recovery is attempted.
func (w *Writer) Write(dist *Distribution, deps []Dependency) error {
	if w.tx == nil {
		tx, err := w.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		w.tx = tx
	}

	_, err := w.tx.Exec(`
		INSERT INTO meta_distribution ("release", name, version, abstract, generated_by, version_from, license)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dist.Release, dist.Name, dist.Version, dist.Abstract, dist.GeneratedBy, dist.VersionFrom, dist.License)
	if err != nil {
		return fmt.Errorf("inserting distribution %s: %w", dist.Release, err)
	}

	for _, dep := range deps {
		_, err := w.tx.Exec(`
			INSERT INTO meta_dependency ("release", phase, module, version)
			VALUES (?, ?, ?, ?)
		`, dep.Release, dep.Phase, dep.Module, dep.Version)
		if err != nil {
			return fmt.Errorf("inserting dependency %s for %s: %w", dep.Module, dep.Release, err)
		}
	}

	w.visits++
	if w.visits%w.batchSize == 0 {
		if err := w.tx.Commit(); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
		w.tx = nil
		w.commits++
	}
	return nil
}

// Flush commits the transaction left open after the final visit, if any.
func (w *Writer) Flush() error {
	if w.tx == nil {
		return nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("committing final batch: %w", err)
	}
	w.tx = nil
	w.commits++
	return nil
}

// Visits returns the number of releases written so far.
func (w *Writer) Visits() int {
	return w.visits
}

// Commits returns the number of transactions committed so far.
func (w *Writer) Commits() int {
	return w.commits
}
