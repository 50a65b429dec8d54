// Package premis holds the global PREMIS event catalog and the
// three-layer event-configuration merge used by the METS assembler
// (global catalog ⊂ packagetype.premis_overrides ⊂ namespace-level
// override, highest priority last — the Open Question resolution recorded
// in DESIGN.md).
package premis

import "github.com/hathitrust/feed/internal/pkgtype"

// CatalogEntry is the baseline definition for one event code, shared by
// every package type unless overridden.
type CatalogEntry struct {
	Type     string
	Detail   string
	Executor string
	Tools    []string
}

// Catalog is the global, read-only event catalog loaded once at startup.
type Catalog struct {
	entries map[string]CatalogEntry
}

func NewCatalog(entries map[string]CatalogEntry) *Catalog {
	return &Catalog{entries: entries}
}

func (c *Catalog) Lookup(code string) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	e, ok := c.entries[code]
	return e, ok
}

// CatalogFromConfig builds a Catalog from the `premis` section of the
// global YAML config (premis.<event_code>.{type,detail,executor,tools}),
// matching spec.md's config-key table. Malformed entries are skipped
// rather than failing startup, since a missing catalog entry surfaces
// later as a caller-visible GetEventConfiguration failure with the
// offending code attached.
func CatalogFromConfig(raw map[string]any) *Catalog {
	entries := make(map[string]CatalogEntry, len(raw))
	for code, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entry := CatalogEntry{
			Type:     stringField(m, "type"),
			Detail:   stringField(m, "detail"),
			Executor: stringField(m, "executor"),
		}
		if tools, ok := m["tools"].([]any); ok {
			for _, t := range tools {
				if s, ok := t.(string); ok {
					entry.Tools = append(entry.Tools, s)
				}
			}
		}
		entries[code] = entry
	}
	return NewCatalog(entries)
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func (c *Catalog) Codes() []string {
	out := make([]string, 0, len(c.entries))
	for code := range c.entries {
		out = append(out, code)
	}
	return out
}

// EventConfig is the fully-resolved configuration for one event code, as
// consumed by the METS assembler's step 8 (emit generated events).
type EventConfig struct {
	Type            string
	Detail          string
	Executor        string
	Tools           []string
	EventIDOverride string
}

// VolumeArtistSentinel is the magic executor value that the METS
// assembler substitutes with volume.Artist() at emission time.
const VolumeArtistSentinel = "VOLUME_ARTIST"

// GetEventConfiguration overlays, in increasing priority, the global
// catalog entry, the package type's premis_overrides for code, and an
// optional namespace-level override, onto a single EventConfig. A missing
// Executor, Detail, or Type after the merge is a caller-visible error: the
// assembler treats that as fatal.
func GetEventConfiguration(catalog *Catalog, pt *pkgtype.Descriptor, nsOverride *pkgtype.PREMISOverride, code string) (EventConfig, bool) {
	var cfg EventConfig
	found := false

	if base, ok := catalog.Lookup(code); ok {
		cfg.Type = base.Type
		cfg.Detail = base.Detail
		cfg.Executor = base.Executor
		cfg.Tools = base.Tools
		found = true
	}

	apply := func(override pkgtype.PREMISOverride) {
		found = true
		if override.Type != "" {
			cfg.Type = override.Type
		}
		if override.Detail != "" {
			cfg.Detail = override.Detail
		}
		if override.Executor != "" {
			cfg.Executor = override.Executor
		}
		if override.Tools != nil {
			cfg.Tools = override.Tools
		}
		if override.EventIDOverride != "" {
			cfg.EventIDOverride = override.EventIDOverride
		}
	}

	if pt != nil {
		if override, ok := pt.PREMISOverrides[code]; ok {
			apply(override)
		}
	}
	if nsOverride != nil {
		apply(*nsOverride)
	}

	return cfg, found && cfg.Executor != "" && cfg.Detail != "" && cfg.Type != ""
}
