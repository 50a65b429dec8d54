// Package gcp adapts the teacher's general-purpose bucket client down to
// the three operations the optional GCS-backed staging.fetch path needs:
// pull a SIP down to local disk, list what a prefix holds, and delete a
// SIP once it has been ingested. Grounded on the teacher's
// internal/clients/gcp bucket service (cloud.google.com/go/storage),
// trimmed of the avatar/material bucket-category machinery that has no
// analogue in this domain.
package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/platform/logger"
)

// Fetcher is the boundary Volume's download_directory() uses when a
// package type's staging.fetch names a GCS bucket URI instead of a local
// path. Implemented here against cloud.google.com/go/storage and by a
// hand-written fake in tests.
type Fetcher interface {
	// FetchSIP downloads every object under gsURI's prefix into destDir,
	// preserving the portion of each object's name below the prefix.
	FetchSIP(ctx context.Context, gsURI, destDir string) error
	// ListPrefix lists object names under gsURI's prefix.
	ListPrefix(ctx context.Context, gsURI string) ([]string, error)
	// Delete removes every object under gsURI's prefix, for cleanup once
	// a SIP has collated successfully.
	Delete(ctx context.Context, gsURI string) error
}

type fetcher struct {
	log    *logger.Logger
	client *storage.Client
}

// NewFetcher builds a Fetcher backed by a real GCS client, using
// Application Default Credentials the way the teacher's bucket service
// resolves them.
func NewFetcher(ctx context.Context, log *logger.Logger, opts ...option.ClientOption) (Fetcher, error) {
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcp: create storage client: %w", err)
	}
	return &fetcher{log: log.With("service", "gcp.Fetcher"), client: client}, nil
}

// gsURI splits a "gs://bucket/prefix" staging.fetch value into its bucket
// and prefix parts.
func gsURI(raw string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "gs://")
	if trimmed == raw {
		return "", "", fmt.Errorf("gcp: not a gs:// uri: %q", raw)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if bucket == "" {
		return "", "", fmt.Errorf("gcp: missing bucket in uri: %q", raw)
	}
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}

func (f *fetcher) ListPrefix(ctx context.Context, uri string) ([]string, error) {
	bucket, prefix, err := gsURI(uri)
	if err != nil {
		return nil, ingesterr.New(ingesterr.OperationFailed, err, map[string]any{"uri": uri})
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := f.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, ingesterr.OperationFailedf("gcs_list", uri, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// FetchSIP downloads every object under the prefix into destDir, each
// keyed by the portion of its name below the prefix so the local layout
// mirrors the bucket layout.
func (f *fetcher) FetchSIP(ctx context.Context, uri, destDir string) error {
	bucket, prefix, err := gsURI(uri)
	if err != nil {
		return ingesterr.New(ingesterr.OperationFailed, err, map[string]any{"uri": uri})
	}
	names, err := f.ListPrefix(ctx, uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return ingesterr.OperationFailedf("mkdir", destDir, err)
	}
	for _, name := range names {
		rel := strings.TrimPrefix(name, prefix)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		if err := f.downloadOne(ctx, bucket, name, filepath.Join(destDir, rel)); err != nil {
			return err
		}
	}
	f.log.Info("fetched SIP from GCS", "uri", uri, "dest", destDir, "files", len(names))
	return nil
}

func (f *fetcher) downloadOne(ctx context.Context, bucket, key, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return ingesterr.OperationFailedf("gcs_open_reader", key, err)
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return ingesterr.OperationFailedf("mkdir", filepath.Dir(destPath), err)
	}
	w, err := os.Create(destPath)
	if err != nil {
		return ingesterr.OperationFailedf("create_file", destPath, err)
	}
	defer w.Close()

	if _, err := io.Copy(w, r); err != nil {
		return ingesterr.OperationFailedf("gcs_download", key, err)
	}
	return nil
}

// Delete removes every object under the prefix, used once a SIP has
// collated successfully and its staging copy is no longer needed.
func (f *fetcher) Delete(ctx context.Context, uri string) error {
	bucket, _, err := gsURI(uri)
	if err != nil {
		return ingesterr.New(ingesterr.OperationFailed, err, map[string]any{"uri": uri})
	}
	names, err := f.ListPrefix(ctx, uri)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, name := range names {
		if err := f.client.Bucket(bucket).Object(name).Delete(ctx); err != nil {
			return ingesterr.OperationFailedf("gcs_delete", name, err)
		}
	}
	return nil
}
