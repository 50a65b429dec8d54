package stages

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"testing"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/volume"
)

func validatorPackageType() *pkgtype.Descriptor {
	return &pkgtype.Descriptor{
		Identifier: "yale",
		FileGroups: map[string]pkgtype.FileGroupSpec{
			"image": {FilePattern: regexp.MustCompile(`\.jp2$`), Content: true, JHOVE: true},
		},
		Validation: map[string]map[string]any{
			"JPEG2000": {"decomposition_levels": "v_between(3,32)"},
		},
	}
}

func newValidatorVolume(t *testing.T, stagingDir, toolPath string) *volume.Volume {
	t.Helper()
	global := &config.GlobalConfig{Values: map[string]any{
		"staging.preingest":        stagingDir,
		"validators.JPEG2000.path": toolPath,
	}}
	resolver := config.NewResolver(global)
	catalog := premis.NewCatalog(map[string]premis.CatalogEntry{
		"package_validation": {Type: "package_validation"},
	})
	return volume.New(&namespace.Descriptor{Identifier: "foo"}, validatorPackageType(), resolver, catalog, nopEventStore{}, "foo", "39002X")
}

func TestVolumeValidatorSucceedsWhenToolExitsZero(t *testing.T) {
	dir := t.TempDir()
	v := newValidatorVolume(t, dir, "/usr/bin/true")
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "img")

	s := &VolumeValidator{ExecCommand: func(name string, args ...string) *exec.Cmd {
		return exec.Command("true")
	}}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
}

func TestVolumeValidatorFailsWhenToolExitsNonzero(t *testing.T) {
	dir := t.TempDir()
	v := newValidatorVolume(t, dir, "/usr/bin/false")
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "img")

	s := &VolumeValidator{ExecCommand: func(name string, args ...string) *exec.Cmd {
		return exec.Command("false")
	}}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false when a validator tool exits nonzero")
	}
}

func TestVolumeValidatorNoOpWhenNoJHOVEFiles(t *testing.T) {
	dir := t.TempDir()
	pt := &pkgtype.Descriptor{
		Identifier: "epub",
		Validation: map[string]map[string]any{"EPUB": {}},
	}
	global := &config.GlobalConfig{Values: map[string]any{"staging.preingest": dir}}
	resolver := config.NewResolver(global)
	v := volume.New(&namespace.Descriptor{Identifier: "foo"}, pt, resolver, premis.NewCatalog(nil), nopEventStore{}, "foo", "39002X")
	if err := os.MkdirAll(v.StagingDirectory(), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	s := &VolumeValidator{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true when no JHOVE filegroup files exist", s.Error())
	}
}
