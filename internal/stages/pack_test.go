package stages

import (
	"archive/zip"
	"context"
	"regexp"
	"testing"

	"github.com/hathitrust/feed/internal/pkgtype"
)

func TestPackWritesContentFilesToZip(t *testing.T) {
	dir := t.TempDir()
	pt := &pkgtype.Descriptor{
		Identifier: "yale",
		FileGroups: map[string]pkgtype.FileGroupSpec{
			"image": {FilePattern: regexp.MustCompile(`\.jp2$`), Content: true},
		},
		UncompressedExtensions: map[string]bool{"jp2": true},
	}
	v := newTestVolume(t, dir, pt)
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "imgdata")

	s := &Pack{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}

	r, err := zip.OpenReader(v.ZipPath())
	if err != nil {
		t.Fatalf("open packed zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 {
		t.Fatalf("zip has %d entries, want 1", len(r.File))
	}
	if r.File[0].Name != "39002X_000001.jp2" {
		t.Fatalf("zip entry name = %q, want 39002X_000001.jp2", r.File[0].Name)
	}
	if r.File[0].Method != zip.Store {
		t.Fatalf("zip entry method = %v, want Store for an uncompressed_extensions match", r.File[0].Method)
	}
}

func TestPackDeflatesFilesNotInUncompressedExtensions(t *testing.T) {
	dir := t.TempDir()
	pt := &pkgtype.Descriptor{
		Identifier: "yale",
		FileGroups: map[string]pkgtype.FileGroupSpec{
			"ocr": {FilePattern: regexp.MustCompile(`\.txt$`), Content: true},
		},
	}
	v := newTestVolume(t, dir, pt)
	writeFile(t, v.StagingDirectory()+"/39002X_000001.txt", "page text")

	s := &Pack{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}

	r, err := zip.OpenReader(v.ZipPath())
	if err != nil {
		t.Fatalf("open packed zip: %v", err)
	}
	defer r.Close()
	if r.File[0].Method != zip.Deflate {
		t.Fatalf("zip entry method = %v, want Deflate", r.File[0].Method)
	}
}
