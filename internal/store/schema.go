package store

// schema contains the SQL statements to create the CPAN metadata schema.
// "release" is quoted throughout because it is a SQLite keyword.
const schema = `
-- One row per release archive
CREATE TABLE IF NOT EXISTS meta_distribution (
    "release"    TEXT NOT NULL UNIQUE,
    name         TEXT,
    version      TEXT,
    abstract     TEXT,
    generated_by TEXT,
    version_from TEXT,
    license      TEXT
);

CREATE INDEX IF NOT EXISTS idx_distribution_name ON meta_distribution(name);

-- Zero or more rows per release, one per module per phase
CREATE TABLE IF NOT EXISTS meta_dependency (
    "release" TEXT NOT NULL,
    phase     TEXT NOT NULL,
    module    TEXT NOT NULL,
    version   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dependency_release ON meta_dependency("release");
CREATE INDEX IF NOT EXISTS idx_dependency_module ON meta_dependency(module);
`
