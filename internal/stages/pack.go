package stages

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("pack", func(v *volume.Volume) stage.Stage {
		return &Pack{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// Pack writes the AIP content zip (the content files only; the METS stage
// writes the METS as a separate file, which Collate installs beside the
// zip) to the Volume's staged zip path. Files whose
// extension is in uncompressed_extensions are stored (not deflated). On
// success it records the zip_compression and zip_md5_create PREMIS
// events, the latter carrying the zip's md5 as its outcome.
type Pack struct {
	stage.BaseStage
}

func (s *Pack) Info() stage.Info {
	return stage.Info{SuccessState: "packed", FailureState: "punted"}
}

func (s *Pack) Run(ctx context.Context) (bool, error) {
	v := s.Volume
	files, err := v.AllContentFiles()
	if err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	zipPath := v.ZipPath()
	out, err := os.Create(zipPath)
	if err != nil {
		s.SetError(ingesterr.OperationFailedf("create_zip", zipPath, err))
		return false, nil
	}

	zw := zip.NewWriter(out)
	pt := v.PackageType()
	for _, name := range files {
		method := zip.Deflate
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if pt.UncompressedExtensions[ext] {
			method = zip.Store
		}
		if err := addToZip(zw, filepath.Join(v.StagingDirectory(), name), name, method); err != nil {
			zw.Close()
			out.Close()
			s.SetError(ingesterr.OperationFailedf("zip_add", name, err))
			return false, nil
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		s.SetError(ingesterr.OperationFailedf("close_zip", zipPath, err))
		return false, nil
	}
	if err := out.Close(); err != nil {
		s.SetError(ingesterr.OperationFailedf("close_zip", zipPath, err))
		return false, nil
	}

	if err := v.RecordPREMISEvent(ctx, "zip_compression", time.Time{}, ""); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	sum, err := md5File(zipPath)
	if err != nil {
		s.SetError(ingesterr.OperationFailedf("zip_md5", zipPath, err))
		return false, nil
	}
	outcome := fmt.Sprintf(`<eventOutcomeDetailNote>md5:%s</eventOutcomeDetailNote>`, sum)
	if err := v.RecordPREMISEvent(ctx, "zip_md5_create", time.Time{}, outcome); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	return true, nil
}

func md5File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func addToZip(zw *zip.Writer, srcPath, arcName string, method uint16) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &zip.FileHeader{Name: arcName, Method: method}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
