// Package config loads the global ingest configuration and implements the
// 4-layer resolver described in the spec: a value for a given
// (namespace, packagetype, key) is taken from the highest-priority layer
// that defines it, and the global file is the bottom layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
)

// Dataset holds the process-wide tunables of the global file's dataset
// section (thread pool size, object-store roots). Threads is read directly
// off this struct; Volume resolves the object-store roots through the
// layered resolver under the keys dataset.obj_dir and dataset.link_dir.
type Dataset struct {
	Threads int    `yaml:"threads"`
	ObjDir  string `yaml:"obj_dir"`
	LinkDir string `yaml:"link_dir"`
}

type Staging struct {
	Download   string `yaml:"download"`
	Preingest  string `yaml:"preingest"`
	Fetch      string `yaml:"fetch"`
}

// GlobalConfig is the root of the YAML file named by HTFEED_CONFIG. Its
// Values map is the fallback (layer 4) for every key the resolver is asked
// to look up.
type GlobalConfig struct {
	Dataset Dataset        `yaml:"dataset"`
	Staging Staging        `yaml:"staging"`
	Xerces  string         `yaml:"xerces"`
	Values  map[string]any `yaml:"values"`
}

func Load(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var gc GlobalConfig
	if err := yaml.Unmarshal(data, &gc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if gc.Values == nil {
		gc.Values = map[string]any{}
	}
	return &gc, nil
}

// ReleaseStates reads daemon.release_states off the global Values map,
// falling back to the spec's documented terminal set {collated, punted}
// when the key is absent.
func (g *GlobalConfig) ReleaseStates() []string {
	if g != nil && g.Values != nil {
		if daemon, ok := g.Values["daemon"].(map[string]any); ok {
			if raw, ok := daemon["release_states"].([]any); ok {
				out := make([]string, 0, len(raw))
				for _, v := range raw {
					if s, ok := v.(string); ok {
						out = append(out, s)
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
	}
	return []string{"collated", "punted"}
}

// Resolver implements the 4-layer get(namespace, packagetype, key) lookup.
type Resolver struct {
	Global *GlobalConfig
}

func NewResolver(global *GlobalConfig) *Resolver {
	return &Resolver{Global: global}
}

// Get returns the value for key in the highest-priority layer that defines
// it, and whether any layer did.
//
// Lookup order (first hit wins):
//  1. namespace.packagetype_overrides[packagetype.identifier][key]
//  2. namespace.config[key]
//  3. packagetype.config[key]
//  4. the global configuration file, Values[key]
func (r *Resolver) Get(ns *namespace.Descriptor, pt *pkgtype.Descriptor, key string) (any, bool) {
	if ns != nil {
		if overrides := ns.OverridesFor(pt.Identifier); overrides != nil {
			if v, ok := overrides[key]; ok {
				return v, true
			}
		}
		if ns.Config != nil {
			if v, ok := ns.Config[key]; ok {
				return v, true
			}
		}
	}
	if pt != nil && pt.Config != nil {
		if v, ok := pt.Config[key]; ok {
			return v, true
		}
	}
	if r.Global != nil && r.Global.Values != nil {
		if v, ok := r.Global.Values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// GetValidationOverrides merges (lowest to highest priority) the
// validation[validator_id] sub-map across the four configuration layers,
// so a higher layer overrides individual parameters without dropping
// sibling keys from a lower layer.
func (r *Resolver) GetValidationOverrides(ns *namespace.Descriptor, pt *pkgtype.Descriptor, validatorID string) map[string]any {
	merged := map[string]any{}

	if r.Global != nil {
		if global, ok := r.Global.Values["validation"].(map[string]any); ok {
			if sub, ok := global[validatorID].(map[string]any); ok {
				mergeInto(merged, sub)
			}
		}
	}
	if pt != nil {
		if sub, ok := pt.Validation[validatorID]; ok {
			mergeInto(merged, sub)
		}
	}
	if ns != nil {
		if nsSub, ok := ns.Config["validation"].(map[string]any); ok {
			if sub, ok := nsSub[validatorID].(map[string]any); ok {
				mergeInto(merged, sub)
			}
		}
		if pt != nil {
			if overrides := ns.OverridesFor(pt.Identifier); overrides != nil {
				if ovSub, ok := overrides["validation"].(map[string]any); ok {
					if sub, ok := ovSub[validatorID].(map[string]any); ok {
						mergeInto(merged, sub)
					}
				}
			}
		}
	}
	return merged
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
