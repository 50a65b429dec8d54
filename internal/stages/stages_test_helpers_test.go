package stages

import (
	"testing"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/volume"
)

// newTestVolume builds a Volume rooted at stagingDir with pt, for stage
// tests that only need local staging files (no reingest/obj_dir setup).
func newTestVolume(t *testing.T, stagingDir string, pt *pkgtype.Descriptor) *volume.Volume {
	t.Helper()
	global := &config.GlobalConfig{Values: map[string]any{
		"staging.preingest": stagingDir,
		"staging.download":  stagingDir,
	}}
	resolver := config.NewResolver(global)
	catalog := premis.NewCatalog(map[string]premis.CatalogEntry{
		"ingestion":          {Type: "ingestion"},
		"zip_compression":    {Type: "zip_compression"},
		"zip_md5_create":     {Type: "zip_md5_create"},
		"package_validation": {Type: "package_validation"},
	})
	return volume.New(&namespace.Descriptor{Identifier: "foo"}, pt, resolver, catalog, nopEventStore{}, "foo", "39002X")
}
