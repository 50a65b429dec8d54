package premis

import (
	"testing"

	"github.com/hathitrust/feed/internal/pkgtype"
)

func TestGetEventConfigurationOverlay(t *testing.T) {
	catalog := NewCatalog(map[string]CatalogEntry{
		"ingestion": {Type: "ingestion", Detail: "default detail", Executor: "feed"},
	})
	pt := &pkgtype.Descriptor{
		PREMISOverrides: map[string]pkgtype.PREMISOverride{
			"ingestion": {Detail: "yale-specific detail"},
		},
	}

	cfg, ok := GetEventConfiguration(catalog, pt, nil, "ingestion")
	if !ok {
		t.Fatalf("GetEventConfiguration: expected ok")
	}
	if cfg.Detail != "yale-specific detail" {
		t.Fatalf("Detail = %q, want packagetype override to win", cfg.Detail)
	}
	if cfg.Executor != "feed" {
		t.Fatalf("Executor = %q, want global catalog value preserved", cfg.Executor)
	}

	nsOverride := &pkgtype.PREMISOverride{Executor: "ns-executor"}
	cfg, ok = GetEventConfiguration(catalog, pt, nsOverride, "ingestion")
	if !ok {
		t.Fatalf("GetEventConfiguration with ns override: expected ok")
	}
	if cfg.Executor != "ns-executor" {
		t.Fatalf("Executor = %q, want namespace override to win over all", cfg.Executor)
	}
	if cfg.Detail != "yale-specific detail" {
		t.Fatalf("Detail = %q, want packagetype override preserved when ns override doesn't set it", cfg.Detail)
	}
}

func TestGetEventConfigurationMissingFieldsNotOK(t *testing.T) {
	catalog := NewCatalog(map[string]CatalogEntry{})
	_, ok := GetEventConfiguration(catalog, &pkgtype.Descriptor{}, nil, "unknown_code")
	if ok {
		t.Fatalf("GetEventConfiguration(unknown_code): expected not ok")
	}
}

func TestCatalogFromConfigParsesNestedMap(t *testing.T) {
	raw := map[string]any{
		"ingestion": map[string]any{
			"type":     "ingestion",
			"detail":   "Material received and copied",
			"executor": "feed",
			"tools":    []any{"feed-ingest"},
		},
		"malformed": "not-a-map",
	}
	catalog := CatalogFromConfig(raw)

	entry, ok := catalog.Lookup("ingestion")
	if !ok {
		t.Fatalf("Lookup(ingestion): expected ok")
	}
	if entry.Type != "ingestion" || entry.Executor != "feed" {
		t.Fatalf("entry = %+v, want parsed type/executor", entry)
	}
	if len(entry.Tools) != 1 || entry.Tools[0] != "feed-ingest" {
		t.Fatalf("Tools = %v, want [feed-ingest]", entry.Tools)
	}

	if _, ok := catalog.Lookup("malformed"); ok {
		t.Fatalf("Lookup(malformed): expected entry to be skipped")
	}
}
