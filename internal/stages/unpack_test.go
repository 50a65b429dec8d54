package stages

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/volume"
)

func newTestVolumeWithDownload(t *testing.T, stagingDir, downloadDir string, pt *pkgtype.Descriptor) *volume.Volume {
	t.Helper()
	global := &config.GlobalConfig{Values: map[string]any{
		"staging.preingest": stagingDir,
		"staging.download":  downloadDir,
	}}
	resolver := config.NewResolver(global)
	return volume.New(&namespace.Descriptor{Identifier: "foo"}, pt, resolver, premis.NewCatalog(nil), nopEventStore{}, "foo", "39002X")
}

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, contents := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create entry: %v", err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatalf("zip write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

func TestUnpackExtractsZipIntoStagingDirectory(t *testing.T) {
	stagingDir := t.TempDir()
	downloadDir := t.TempDir()
	pt := &pkgtype.Descriptor{Identifier: "yale", SIPFilenamePattern: "yale.%s.zip"}
	v := newTestVolumeWithDownload(t, stagingDir, downloadDir, pt)

	zipPath := filepath.Join(v.DownloadDirectory(), v.SIPFilename())
	writeTestZip(t, zipPath, map[string]string{"39002X_000001.jp2": "img"})

	s := &Unpack{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
	if _, err := os.Stat(filepath.Join(v.StagingDirectory(), "39002X_000001.jp2")); err != nil {
		t.Fatalf("extracted file not found: %v", err)
	}
}

func TestUnpackFailsWhenSIPMissing(t *testing.T) {
	dir := t.TempDir()
	pt := &pkgtype.Descriptor{Identifier: "yale", SIPFilenamePattern: "yale.%s.zip"}
	v := newTestVolume(t, dir, pt)

	s := &Unpack{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if ok {
		t.Fatalf("Run() = true, want false when the SIP zip does not exist")
	}
}

type fakeUnpackFetcher struct {
	calledURI string
	onFetch   func(uri, destDir string) error
}

func (f *fakeUnpackFetcher) FetchSIP(ctx context.Context, gsURI, destDir string) error {
	f.calledURI = gsURI
	return f.onFetch(gsURI, destDir)
}

func (f *fakeUnpackFetcher) Delete(ctx context.Context, gsURI string) error { return nil }

func TestUnpackFetchesFromGCSWhenDownloadToDiskFalse(t *testing.T) {
	stagingDir := t.TempDir()
	downloadDir := t.TempDir()
	pt := &pkgtype.Descriptor{Identifier: "google", SIPFilenamePattern: "google.%s.zip", DownloadToDisk: false}

	global := &config.GlobalConfig{Values: map[string]any{
		"staging.preingest": stagingDir,
		"staging.download":  downloadDir,
		"staging.fetch":     "gs://google-staging/google/39002X",
	}}
	v := volume.New(&namespace.Descriptor{Identifier: "foo"}, pt, config.NewResolver(global), premis.NewCatalog(nil), nopEventStore{}, "foo", "39002X")

	fetcher := &fakeUnpackFetcher{onFetch: func(uri, destDir string) error {
		return writeTestZipInto(destDir, v.SIPFilename(), map[string]string{"39002X_000001.jp2": "img"})
	}}
	v.Fetcher = fetcher

	s := &Unpack{}
	s.Volume = v
	ok, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned err: %v", err)
	}
	if !ok {
		t.Fatalf("Run() = false (%v), want true", s.Error())
	}
	if fetcher.calledURI != "gs://google-staging/google/39002X" {
		t.Fatalf("calledURI = %q, want the configured staging.fetch value", fetcher.calledURI)
	}
}

func writeTestZipInto(destDir, sipFilename string, files map[string]string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(destDir, sipFilename))
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, contents := range files {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			return err
		}
	}
	return zw.Close()
}
