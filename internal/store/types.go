package store

// Phase categorizes when a dependency is needed.
type Phase string

const (
	PhaseConfigure Phase = "configure"
	PhaseBuild     Phase = "build"
	PhaseRuntime   Phase = "runtime"
)

// Distribution is one row of meta_distribution: the metadata facts for a
// single release. All fields except Release are nil when the release's
// manifest could not be parsed; the row still exists, identified solely by
// its release path.
type Distribution struct {
	Release     string
	Name        *string
	Version     *string
	Abstract    *string
	GeneratedBy *string
	VersionFrom *string
	License     *string
}

// Dependency is one row of meta_dependency. Version holds the minimum
// required version string, "0" when the requirement is unversioned.
type Dependency struct {
	Release string
	Phase   Phase
	Module  string
	Version string
}
