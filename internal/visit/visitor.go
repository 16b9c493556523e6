// Package visit walks a mirror's authors/id tree, extracting each release's
// manifest into a temporary directory and handing it to a callback.
package visit

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Callback receives one visited release: its identifier, a temp directory
// holding the extracted manifest, and the 1-based visit counter. Returning an
// error aborts the walk.
type Callback func(release, dir string, n int) error

// SkipFunc reports whether a release should be skipped without extraction.
type SkipFunc func(release string) bool

// Walk iterates the release archives under root's authors/id tree in lexical
// order. Each archive's top-level META.yml is extracted into a fresh temp
// directory, removed again after the callback returns. A corrupt or
// manifest-less archive is still visited; its temp directory simply stays
// empty and the release degrades downstream to an identifier-only record.
func Walk(root string, skip SkipFunc, cb Callback) error {
	idRoot := filepath.Join(root, "authors", "id")
	n := 0

	return filepath.WalkDir(idRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isArchive(p) {
			return nil
		}

		release, ok := releaseID(idRoot, p)
		if !ok {
			return nil
		}
		if skip != nil && skip(release) {
			return nil
		}

		dir, err := os.MkdirTemp("", "cpanmetagen-visit-*")
		if err != nil {
			return fmt.Errorf("creating temp directory: %w", err)
		}
		defer os.RemoveAll(dir)

		// Extraction failure is deliberately not propagated.
		_ = extractManifest(p, dir)

		n++
		return cb(release, dir, n)
	})
}

func isArchive(p string) bool {
	return strings.HasSuffix(p, ".tar.gz") || strings.HasSuffix(p, ".tgz")
}

// releaseID strips the two single/double character prefix directories from an
// archive path, yielding the AUTHOR/Name-Version.tar.gz identifier.
func releaseID(idRoot, p string) (string, bool) {
	rel, err := filepath.Rel(idRoot, p)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return "", false
	}
	return strings.Join(parts[2:], "/"), true
}

// extractManifest copies the archive's top-level META.yml (Dist-1.0/META.yml)
// into dir.
func extractManifest(archivePath, dir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		// Only the manifest one directory deep counts.
		parts := strings.Split(path.Clean(header.Name), "/")
		if len(parts) != 2 || parts[1] != "META.yml" {
			continue
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			return fmt.Errorf("reading manifest: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "META.yml"), data, 0644); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
		return nil
	}

	return fmt.Errorf("no META.yml found in %s", archivePath)
}
