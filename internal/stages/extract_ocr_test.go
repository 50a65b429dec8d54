package stages

import (
	"context"
	"regexp"
	"testing"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/pkgtype"
)

func ocrPackageType() *pkgtype.Descriptor {
	return &pkgtype.Descriptor{
		Identifier: "yale",
		FileGroups: map[string]pkgtype.FileGroupSpec{
			"image": {FilePattern: regexp.MustCompile(`\.jp2$`), Content: true},
			"ocr":   {FilePattern: regexp.MustCompile(`\.txt$`), Content: true, UTF8: true},
		},
	}
}

func TestExtractOCRSucceedsWhenEveryPageHasOCR(t *testing.T) {
	dir := t.TempDir()
	v := newTestVolume(t, dir, ocrPackageType())
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "img")
	writeFile(t, v.StagingDirectory()+"/39002X_000001.txt", "text")

	s := &ExtractOCR{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
}

func TestExtractOCRFailsWhenPageMissingOCR(t *testing.T) {
	dir := t.TempDir()
	v := newTestVolume(t, dir, ocrPackageType())
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "img")

	s := &ExtractOCR{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false when a page has no ocr file")
	}
	if s.Error() == nil || s.Error().Kind != ingesterr.MissingField {
		t.Fatalf("Error() = %v, want MissingField", s.Error())
	}
}

func TestExtractOCRNoOpWhenPackageTypeHasNoOCRGroup(t *testing.T) {
	dir := t.TempDir()
	pt := &pkgtype.Descriptor{
		Identifier: "google",
		FileGroups: map[string]pkgtype.FileGroupSpec{
			"image": {FilePattern: regexp.MustCompile(`\.jp2$`), Content: true},
		},
	}
	v := newTestVolume(t, dir, pt)
	writeFile(t, v.StagingDirectory()+"/39002X_000001.jp2", "img")

	s := &ExtractOCR{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true when pt has no ocr filegroup", s.Error())
	}
}
