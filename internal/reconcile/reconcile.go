// Package reconcile prunes stored releases whose backing archive has
// disappeared from the mirror, preparing a delta run.
package reconcile

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Known is the set of releases whose stored rows still match a backing
// archive. The visiting step consults it to skip releases already in the
// database; it is a plain value, never mutated after Run returns.
type Known map[string]struct{}

// Contains reports whether a release is already known-good.
func (k Known) Contains(release string) bool {
	_, ok := k[release]
	return ok
}

// ArchivePath returns the expected archive location for a release identifier
// under a mirror root. The identifier's first one and two characters form the
// two-level directory prefix under authors/id, followed by the identifier's
// own path segments: "ADAMK/Foo-1.00.tar.gz" lives at
// authors/id/A/AD/ADAMK/Foo-1.00.tar.gz.
func ArchivePath(root, release string) string {
	parts := []string{root, "authors", "id"}
	if len(release) >= 2 {
		parts = append(parts, release[:1], release[:2])
	}
	parts = append(parts, strings.Split(release, "/")...)
	return filepath.Join(parts...)
}

// Run reconciles the store against the mirror root inside one transaction:
// distributions whose archive no longer exists are deleted, then dependency
// rows orphaned by the pruning are removed in a single bulk cleanup. The
// surviving releases are returned as the membership set for the visit phase.
// Any store error aborts the run.
func Run(db *sql.DB, mirrorRoot string, log *zap.Logger) (Known, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning reconcile transaction: %w", err)
	}
	defer tx.Rollback()

	releases, err := storedReleases(tx)
	if err != nil {
		return nil, err
	}

	known := make(Known, len(releases))
	pruned := 0
	for _, release := range releases {
		if _, err := os.Stat(ArchivePath(mirrorRoot, release)); err == nil {
			known[release] = struct{}{}
			continue
		}
		if _, err := tx.Exec(`DELETE FROM meta_distribution WHERE "release" = ?`, release); err != nil {
			return nil, fmt.Errorf("pruning distribution %s: %w", release, err)
		}
		log.Debug("pruned stale release", zap.String("release", release))
		pruned++
	}

	// One bulk cleanup restores the dependency-rows-have-a-distribution
	// invariant after the per-release pass.
	if _, err := tx.Exec(`
		DELETE FROM meta_dependency
		WHERE "release" NOT IN (SELECT "release" FROM meta_distribution)
	`); err != nil {
		return nil, fmt.Errorf("pruning orphaned dependencies: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reconcile transaction: %w", err)
	}

	log.Info("reconciled store",
		zap.Int("known", len(known)),
		zap.Int("pruned", pruned))
	return known, nil
}

func storedReleases(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`SELECT DISTINCT "release" FROM meta_distribution`)
	if err != nil {
		return nil, fmt.Errorf("querying stored releases: %w", err)
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
