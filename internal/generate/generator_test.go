package generate

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitpan/cpanmetagen/internal/config"
	"github.com/gitpan/cpanmetagen/internal/store"
)

func writeArchive(t *testing.T, root, release, manifest string) {
	t.Helper()

	dest := filepath.Join(root, "authors", "id", release[:1], release[:2], filepath.FromSlash(release))
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))

	out, err := os.Create(dest)
	require.NoError(t, err)
	defer out.Close()

	gzWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzWriter)
	if manifest != "" {
		hdr := &tar.Header{
			Name: "Dist-1.00/META.yml",
			Mode: 0644,
			Size: int64(len(manifest)),
		}
		require.NoError(t, tarWriter.WriteHeader(hdr))
		_, err = tarWriter.Write([]byte(manifest))
		require.NoError(t, err)
	}
	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Mirror.Root = filepath.Join(t.TempDir(), "minicpan")
	cfg.Output.Dir = filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Mirror.Root, "authors", "id"), 0755))
	return cfg
}

func distributionNames(t *testing.T, dbPath string) map[string]string {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	rows, err := st.DB().Query(`SELECT "release", COALESCE(name, '') FROM meta_distribution`)
	require.NoError(t, err)
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var release, name string
		require.NoError(t, rows.Scan(&release, &name))
		names[release] = name
	}
	require.NoError(t, rows.Err())
	return names
}

func TestRunFullMode(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", `---
name: Alpha
version: 1.00
requires:
  Carp: 0
`)
	writeArchive(t, cfg.Mirror.Root, "BINGOS/Bravo-2.00.tar.gz", `---
name: Bravo
version: 2.00
`)

	result, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)

	assert.Equal(t, 2, result.Releases)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, 1, result.Commits)

	names := distributionNames(t, result.DBPath)
	assert.Equal(t, map[string]string{
		"ADAMK/Alpha-1.00.tar.gz":  "Alpha",
		"BINGOS/Bravo-2.00.tar.gz": "Bravo",
	}, names)
}

func TestRunFullModeReset(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", "name: Alpha\n")

	// A previous store with a row that must not survive.
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0755))
	st, err := store.Open(cfg.DBPath())
	require.NoError(t, err)
	w := store.NewWriter(st.DB(), 0)
	require.NoError(t, w.Write(&store.Distribution{Release: "GHOST/Stale-0.01.tar.gz"}, nil))
	require.NoError(t, w.Flush())
	require.NoError(t, st.Close())

	result, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)

	names := distributionNames(t, result.DBPath)
	assert.NotContains(t, names, "GHOST/Stale-0.01.tar.gz")
	assert.Contains(t, names, "ADAMK/Alpha-1.00.tar.gz")
}

func TestRunDeltaMode(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", "name: Alpha\n")
	writeArchive(t, cfg.Mirror.Root, "BINGOS/Bravo-2.00.tar.gz", "name: Bravo\n")

	// First run populates the store.
	first, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)
	require.Equal(t, 2, first.Releases)

	// Bravo's archive disappears; Charlie arrives.
	require.NoError(t, os.Remove(filepath.Join(cfg.Mirror.Root, "authors", "id", "B", "BI", "BINGOS", "Bravo-2.00.tar.gz")))
	writeArchive(t, cfg.Mirror.Root, "CHORNY/Charlie-3.00.tar.gz", "name: Charlie\n")

	second, err := New(cfg, true, zap.NewNop()).Run()
	require.NoError(t, err)

	// Alpha is known-good and skipped; only Charlie is processed.
	assert.Equal(t, 1, second.Releases)
	assert.Equal(t, 1, second.Skipped)

	names := distributionNames(t, second.DBPath)
	assert.Equal(t, map[string]string{
		"ADAMK/Alpha-1.00.tar.gz":    "Alpha",
		"CHORNY/Charlie-3.00.tar.gz": "Charlie",
	}, names)
}

func TestRunUnparseableManifestContinues(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Broken-0.01.tar.gz", "{ not : yaml ][")
	writeArchive(t, cfg.Mirror.Root, "BINGOS/Bravo-2.00.tar.gz", "name: Bravo\n")

	result, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Releases)

	st, err := store.Open(result.DBPath)
	require.NoError(t, err)
	defer st.Close()

	var count int
	err = st.DB().QueryRow(
		`SELECT COUNT(*) FROM meta_distribution WHERE "release" = ? AND name IS NULL`,
		"ADAMK/Broken-0.01.tar.gz",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = st.DB().QueryRow(
		`SELECT COUNT(*) FROM meta_dependency WHERE "release" = ?`,
		"ADAMK/Broken-0.01.tar.gz",
	).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", `---
name: Alpha
requires:
  Zeta: 1.0
  Alpha::Util: 0
build_requires:
  Test::More: 0.47
`)
	writeArchive(t, cfg.Mirror.Root, "BINGOS/Bravo-2.00.tar.gz", "name: Bravo\nlicense: perl\n")

	dump := func() []string {
		st, err := store.Open(cfg.DBPath())
		require.NoError(t, err)
		defer st.Close()

		var out []string
		rows, err := st.DB().Query(`
			SELECT "release", COALESCE(name, ''), COALESCE(version, ''), COALESCE(license, '')
			FROM meta_distribution ORDER BY "release"
		`)
		require.NoError(t, err)
		for rows.Next() {
			var release, name, version, license string
			require.NoError(t, rows.Scan(&release, &name, &version, &license))
			out = append(out, fmt.Sprintf("dist|%s|%s|%s|%s", release, name, version, license))
		}
		require.NoError(t, rows.Err())
		rows.Close()

		rows, err = st.DB().Query(`SELECT "release", phase, module, version FROM meta_dependency ORDER BY rowid`)
		require.NoError(t, err)
		for rows.Next() {
			var release, phase, module, version string
			require.NoError(t, rows.Scan(&release, &phase, &module, &version))
			out = append(out, fmt.Sprintf("dep|%s|%s|%s|%s", release, phase, module, version))
		}
		require.NoError(t, rows.Err())
		rows.Close()
		return out
	}

	_, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)
	firstRows := dump()

	_, err = New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)
	secondRows := dump()

	assert.Equal(t, firstRows, secondRows)
}

func TestRunPublishesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.Formats = []string{"gz"}
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", "name: Alpha\n")

	result, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	_, err = os.Stat(result.DBPath + ".gz")
	assert.NoError(t, err)
}

func TestRunOutputDirectoryCreated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Dir = filepath.Join(cfg.Output.Dir, "nested", "deeper")
	writeArchive(t, cfg.Mirror.Root, "ADAMK/Alpha-1.00.tar.gz", "name: Alpha\n")

	result, err := New(cfg, false, zap.NewNop()).Run()
	require.NoError(t, err)

	_, err = os.Stat(result.DBPath)
	assert.NoError(t, err)
}
