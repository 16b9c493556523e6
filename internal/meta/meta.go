// Package meta parses META.yml manifests and normalizes them into
// distribution and dependency records.
package meta

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FlexString absorbs scalar values that manifests write as either strings or
// numbers (versions in particular appear both ways in the wild).
type FlexString string

func (v *FlexString) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		*v = FlexString(s)
		return nil
	}
	var f float64
	if err := node.Decode(&f); err == nil {
		*v = FlexString(fmt.Sprintf("%g", f))
		return nil
	}
	// Non-scalar values for a scalar field are treated as absent.
	*v = ""
	return nil
}

// Requirements is one phase's requirement entry. Manifests write it either as
// a bare module name or as a module-to-version mapping; both decode into the
// same module->version form, with "0" standing in for unversioned modules.
type Requirements struct {
	modules map[string]string
}

func (r *Requirements) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return nil
		}
		if name != "" {
			r.modules = map[string]string{name: "0"}
		}
	case yaml.MappingNode:
		var m map[string]FlexString
		if err := node.Decode(&m); err != nil {
			return nil
		}
		r.modules = make(map[string]string, len(m))
		for module, version := range m {
			if version == "" {
				version = "0"
			}
			r.modules[module] = string(version)
		}
	}
	// Anything else normalizes to empty.
	return nil
}

// Modules returns the module->version pairs, nil when the entry was absent.
func (r Requirements) Modules() map[string]string {
	return r.modules
}

// Document is the declarative META.yml manifest bundled with a release.
// Scalar fields are pointers so that absent keys stay distinguishable from
// empty values all the way into the database.
type Document struct {
	Name        *FlexString `yaml:"name"`
	Version     *FlexString `yaml:"version"`
	Abstract    *FlexString `yaml:"abstract"`
	GeneratedBy *FlexString `yaml:"generated_by"`
	VersionFrom *FlexString `yaml:"version_from"`
	License     *FlexString `yaml:"license"`

	Requires          Requirements `yaml:"requires"`
	BuildRequires     Requirements `yaml:"build_requires"`
	ConfigureRequires Requirements `yaml:"configure_requires"`
}
