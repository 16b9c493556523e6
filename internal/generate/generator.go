// Package generate sequences the metadata ETL pipeline: output preparation,
// full-wipe or reconciliation, mirror refresh, the release visiting loop, and
// publication of the finished database.
package generate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gitpan/cpanmetagen/internal/config"
	"github.com/gitpan/cpanmetagen/internal/meta"
	"github.com/gitpan/cpanmetagen/internal/mirror"
	"github.com/gitpan/cpanmetagen/internal/publish"
	"github.com/gitpan/cpanmetagen/internal/reconcile"
	"github.com/gitpan/cpanmetagen/internal/store"
	"github.com/gitpan/cpanmetagen/internal/visit"
)

// Generator coordinates one generation run.
type Generator struct {
	cfg   *config.Config
	delta bool
	log   *zap.Logger
}

// New creates a generator. In delta mode the existing store is reconciled
// against the mirror and already-known releases are skipped; otherwise the
// store is rebuilt from scratch.
func New(cfg *config.Config, delta bool, log *zap.Logger) *Generator {
	return &Generator{
		cfg:   cfg,
		delta: delta,
		log:   log,
	}
}

// Result holds the results of a generation run.
type Result struct {
	Releases  int
	Skipped   int
	Commits   int
	Duration  time.Duration
	DBPath    string
	Artifacts []string
}

// Run executes the pipeline. Any store or filesystem error is fatal to the
// whole run; only per-release manifest parse failures are tolerated.
func (g *Generator) Run() (*Result, error) {
	start := time.Now()
	dbPath := g.cfg.DBPath()

	if err := os.MkdirAll(g.cfg.Output.Dir, 0755); err != nil {
		return nil, fmt.Errorf("preparing output directory: %w", err)
	}

	var known reconcile.Known
	if g.delta {
		k, err := g.reconcile(dbPath)
		if err != nil {
			return nil, err
		}
		known = k
	} else {
		if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing existing database: %w", err)
		}
	}

	if g.cfg.Mirror.Upstream != "" {
		g.log.Info("refreshing mirror", zap.String("upstream", g.cfg.Mirror.Upstream))
		client := mirror.New(g.cfg.Mirror.Upstream, g.cfg.Mirror.Root, g.log)
		if _, err := client.Refresh(); err != nil {
			return nil, fmt.Errorf("refreshing mirror: %w", err)
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	writer := store.NewWriter(st.DB(), g.cfg.BatchSize)
	skipped := 0

	skip := func(release string) bool {
		if known.Contains(release) {
			skipped++
			return true
		}
		return false
	}
	err = visit.Walk(g.cfg.Mirror.Root, skip, func(release, dir string, n int) error {
		res := meta.Extract(dir, release)
		if !res.Parsed {
			g.log.Warn("manifest not parseable", zap.String("release", release))
		}
		return writer.Write(&res.Distribution, res.Dependencies)
	})
	if err != nil {
		return nil, fmt.Errorf("visiting releases: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return nil, err
	}
	if err := st.Close(); err != nil {
		return nil, fmt.Errorf("closing store: %w", err)
	}

	result := &Result{
		Releases: writer.Visits(),
		Skipped:  skipped,
		Commits:  writer.Commits(),
		Duration: time.Since(start),
		DBPath:   dbPath,
	}

	if len(g.cfg.Publish.Formats) > 0 {
		artifacts, err := publish.Write(dbPath, g.cfg.Publish.Formats, g.log)
		if err != nil {
			return nil, fmt.Errorf("publishing artifacts: %w", err)
		}
		result.Artifacts = artifacts
	}

	return result, nil
}

// reconcile opens the existing store, prunes releases whose archive vanished,
// and returns the membership set of releases still known-good. It runs before
// the mirror refresh so pruning reflects the pre-refresh archive set.
func (g *Generator) reconcile(dbPath string) (reconcile.Known, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store for reconciliation: %w", err)
	}
	defer st.Close()

	known, err := reconcile.Run(st.DB(), g.cfg.Mirror.Root, g.log)
	if err != nil {
		return nil, fmt.Errorf("reconciling store: %w", err)
	}
	return known, nil
}
