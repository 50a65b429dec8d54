package stages

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("collate", func(v *volume.Volume) stage.Stage {
		return &Collate{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// Collate installs {mets, zip} into the pairtree object store by copying
// each file straight to its final path; the install is not atomic, so an
// interrupted copy leaves a partial file in place. It optionally mirrors a symlink tree when link_dir != obj_dir, and
// detects reingest by the pre-existence of the destination. The
// destination's pairtree parent must already exist; only the final
// pt_objid leaf is created here. On success it clears this Volume's
// PREMIS events (clean_success) after removing the staged mets/zip
// (clean_always).
type Collate struct {
	stage.BaseStage

	// IsRepeat is set by Run so callers/tests can observe the reingest
	// flag without re-deriving it.
	IsRepeat bool
}

func (s *Collate) Info() stage.Info {
	return stage.Info{SuccessState: "collated", FailureState: "punted"}
}

func (s *Collate) Run(ctx context.Context) (bool, error) {
	v := s.Volume

	metsSrc := v.METSPath()
	zipSrc := v.ZipPath()
	destDir := v.RepositoryObjectDir()
	destParent := filepath.Dir(destDir)

	var missing []string
	for _, p := range []string{metsSrc, zipSrc, destParent} {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		s.SetError(ingesterr.New(ingesterr.OperationFailed, nil, map[string]any{
			"operation": "collate",
			"detail":    missing,
		}))
		return false, nil
	}

	if _, err := os.Stat(destDir); err == nil {
		s.IsRepeat = true
	} else if err := os.Mkdir(destDir, 0o755); err != nil && !os.IsExist(err) {
		s.SetError(ingesterr.OperationFailedf("mkdir_object_dir", destDir, err))
		return false, nil
	}

	metsDst := filepath.Join(destDir, v.PtObjID()+".mets.xml")
	zipDst := filepath.Join(destDir, v.PtObjID()+".zip")
	if err := copyFile(metsSrc, metsDst); err != nil {
		s.SetError(ingesterr.OperationFailedf("copy_mets", metsDst, err))
		return false, nil
	}
	if err := copyFile(zipSrc, zipDst); err != nil {
		s.SetError(ingesterr.OperationFailedf("copy_zip", zipDst, err))
		return false, nil
	}

	if linkDir := v.LinkObjectDir(); linkDir != "" {
		if _, err := os.Lstat(linkDir); err != nil {
			if err := os.MkdirAll(filepath.Dir(linkDir), 0o755); err != nil {
				s.SetError(ingesterr.OperationFailedf("mkdir_link_parent", linkDir, err))
				return false, nil
			}
			if err := os.Symlink(destDir, linkDir); err != nil {
				s.SetError(ingesterr.OperationFailedf("symlink", linkDir, err))
				return false, nil
			}
		} else {
			s.IsRepeat = true
		}
	}

	if err := s.cleanAlways(); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	if err := s.cleanSuccess(ctx); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	return true, nil
}

func (s *Collate) cleanAlways() error {
	for _, p := range []string{s.Volume.METSPath(), s.Volume.ZipPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return ingesterr.OperationFailedf("clean_always", p, err)
		}
	}
	return nil
}

func (s *Collate) cleanSuccess(ctx context.Context) error {
	if err := s.Volume.ClearPREMISEvents(ctx); err != nil {
		return ingesterr.OperationFailedf("clean_success_clear_events", s.Volume.Identifier(), err)
	}
	downloadPath := filepath.Join(s.Volume.DownloadDirectory(), s.Volume.SIPFilename())
	if err := os.Remove(downloadPath); err != nil && !os.IsNotExist(err) {
		return ingesterr.OperationFailedf("clean_success", downloadPath, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
