package meta

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gitpan/cpanmetagen/internal/store"
)

// ManifestName is the manifest file looked for in an extracted release.
const ManifestName = "META.yml"

// Result is the outcome of extracting one release. The Distribution is
// always populated; Parsed reports whether the manifest decoded, and when it
// is false the Distribution carries only the release identifier and
// Dependencies is empty.
type Result struct {
	Parsed       bool
	Distribution store.Distribution
	Dependencies []store.Dependency
}

// Extract reads the manifest from dir and normalizes it into exactly one
// Distribution record plus its ordered Dependency records. Parse failure is
// not an error: the release degrades to an identifier-only record and the
// run continues. Pure transformation, no side effects beyond the read.
func Extract(dir, release string) *Result {
	unparsed := &Result{Distribution: store.Distribution{Release: release}}

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return unparsed
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return unparsed
	}

	dist := store.Distribution{
		Release:     release,
		Name:        optional(doc.Name),
		Version:     optional(doc.Version),
		Abstract:    optional(doc.Abstract),
		GeneratedBy: optional(doc.GeneratedBy),
		VersionFrom: optional(doc.VersionFrom),
		License:     optional(doc.License),
	}

	// Insertion order is runtime, build, configure; rows within a phase are
	// module-sorted so re-runs derive identical records.
	var deps []store.Dependency
	deps = append(deps, expand(release, store.PhaseRuntime, doc.Requires)...)
	deps = append(deps, expand(release, store.PhaseBuild, doc.BuildRequires)...)
	deps = append(deps, expand(release, store.PhaseConfigure, doc.ConfigureRequires)...)

	return &Result{
		Parsed:       true,
		Distribution: dist,
		Dependencies: deps,
	}
}

func optional(v *FlexString) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func expand(release string, phase store.Phase, req Requirements) []store.Dependency {
	mods := req.Modules()
	if len(mods) == 0 {
		return nil
	}

	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]store.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, store.Dependency{
			Release: release,
			Phase:   phase,
			Module:  name,
			Version: mods[name],
		})
	}
	return deps
}
