// Package namespace defines the Namespace descriptor: the institution- or
// collection-scoped record that layers configuration on top of a
// PackageType's own config (see internal/config for the 4-layer resolver
// that reads these maps).
package namespace

import "github.com/hathitrust/feed/internal/registry"

// Registry holds every Namespace descriptor the process knows about,
// populated by each namespace's defining package at init() time (per
// SPEC_FULL.md §4.A — no reflective directory scan).
var Registry = registry.New[*Descriptor]("Namespace")

// Register adds d to Registry under d.Identifier.
func Register(d *Descriptor) { Registry.Register(d.Identifier, d) }

// Descriptor is the immutable Namespace record.
type Descriptor struct {
	Identifier  string
	Description string

	// Config is the namespace's own free key-value overrides, layer 2 in
	// the resolver's priority order.
	Config map[string]any

	// PackageTypeOverrides maps a package-type identifier to a key-value
	// map layered on top of Config for that package type specifically;
	// layer 1, the highest-priority layer.
	PackageTypeOverrides map[string]map[string]any
}

// OverridesFor returns the packagetype_overrides map for pt, or nil if
// none is configured.
func (d *Descriptor) OverridesFor(packageTypeID string) map[string]any {
	if d.PackageTypeOverrides == nil {
		return nil
	}
	return d.PackageTypeOverrides[packageTypeID]
}
