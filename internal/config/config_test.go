package config

import (
	"testing"

	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
)

func TestResolverPriorityOrder(t *testing.T) {
	global := &GlobalConfig{Values: map[string]any{"obj_dir": "/global"}}
	r := NewResolver(global)

	pt := &pkgtype.Descriptor{Identifier: "yale"}
	ns := &namespace.Descriptor{
		Identifier: "foo",
		Config:     map[string]any{"obj_dir": "/ns"},
		PackageTypeOverrides: map[string]map[string]any{
			"yale": {"obj_dir": "/ns-pt"},
		},
	}

	got, ok := r.Get(ns, pt, "obj_dir")
	if !ok || got != "/ns-pt" {
		t.Fatalf("Get with all layers defined = %v,%v, want /ns-pt,true", got, ok)
	}

	ns.PackageTypeOverrides = nil
	got, ok = r.Get(ns, pt, "obj_dir")
	if !ok || got != "/ns" {
		t.Fatalf("Get with packagetype override absent = %v,%v, want /ns,true", got, ok)
	}

	ns.Config = nil
	pt.Config = map[string]any{"obj_dir": "/pt"}
	got, ok = r.Get(ns, pt, "obj_dir")
	if !ok || got != "/pt" {
		t.Fatalf("Get with only packagetype.config and global defined = %v,%v, want /pt,true", got, ok)
	}

	pt.Config = nil
	got, ok = r.Get(ns, pt, "obj_dir")
	if !ok || got != "/global" {
		t.Fatalf("Get falling back to global = %v,%v, want /global,true", got, ok)
	}
}

func TestResolverGetUnknownKey(t *testing.T) {
	r := NewResolver(&GlobalConfig{Values: map[string]any{}})
	_, ok := r.Get(nil, &pkgtype.Descriptor{}, "nonexistent")
	if ok {
		t.Fatalf("Get(nonexistent) = ok, want not found")
	}
}

func TestGetValidationOverridesMergesSiblingKeys(t *testing.T) {
	global := &GlobalConfig{Values: map[string]any{
		"validation": map[string]any{
			"JPEG2000": map[string]any{"decomposition_levels": "v_between(3,32)", "colorspace": "sRGB"},
		},
	}}
	r := NewResolver(global)

	pt := &pkgtype.Descriptor{Identifier: "yale"}
	ns := &namespace.Descriptor{
		Identifier: "foo",
		PackageTypeOverrides: map[string]map[string]any{
			"yale": {
				"validation": map[string]any{
					"JPEG2000": map[string]any{"decomposition_levels": "v_between(3,8)"},
				},
			},
		},
	}

	merged := r.GetValidationOverrides(ns, pt, "JPEG2000")
	if merged["decomposition_levels"] != "v_between(3,8)" {
		t.Fatalf("decomposition_levels = %v, want overridden value", merged["decomposition_levels"])
	}
	if merged["colorspace"] != "sRGB" {
		t.Fatalf("colorspace = %v, want sibling key preserved from global layer", merged["colorspace"])
	}
}

func TestReleaseStatesDefaultsWhenAbsent(t *testing.T) {
	g := &GlobalConfig{}
	got := g.ReleaseStates()
	if len(got) != 2 || got[0] != "collated" || got[1] != "punted" {
		t.Fatalf("ReleaseStates() = %v, want [collated punted]", got)
	}
}

func TestReleaseStatesReadsDaemonConfig(t *testing.T) {
	g := &GlobalConfig{Values: map[string]any{
		"daemon": map[string]any{
			"release_states": []any{"collated", "punted", "deleted"},
		},
	}}
	got := g.ReleaseStates()
	if len(got) != 3 || got[2] != "deleted" {
		t.Fatalf("ReleaseStates() = %v, want 3 entries ending in deleted", got)
	}
}
