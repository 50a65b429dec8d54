// Package stages holds the ten concrete Stage implementations named in
// spec.md §4.F, each registering itself with internal/stage's registry at
// init() time.
package stages

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("unpack", func(v *volume.Volume) stage.Stage {
		return &Unpack{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// Unpack extracts the SIP zip from the download directory into the
// staging/preingest directory so every later stage can work against
// plain files instead of a zip archive.
type Unpack struct {
	stage.BaseStage
}

func (s *Unpack) Info() stage.Info {
	return stage.Info{SuccessState: "unpacked", FailureState: "punted"}
}

func (s *Unpack) Run(ctx context.Context) (bool, error) {
	if err := s.Volume.EnsureSIPDownloaded(ctx); err != nil {
		s.SetError(err.(*ingesterr.Error))
		return false, nil
	}

	sipPath := filepath.Join(s.Volume.DownloadDirectory(), s.Volume.SIPFilename())
	r, err := zip.OpenReader(sipPath)
	if err != nil {
		s.SetError(ingesterr.OperationFailedf("unzip", sipPath, err))
		return false, nil
	}
	defer r.Close()

	dest := s.Volume.StagingDirectory()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		s.SetError(ingesterr.OperationFailedf("mkdir", dest, err))
		return false, nil
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractOne(f, dest); err != nil {
			s.SetError(ingesterr.OperationFailedf("unzip_extract", f.Name, err))
			return false, nil
		}
	}
	return true, nil
}

func extractOne(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(filepath.Join(dest, filepath.Base(f.Name)))
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
