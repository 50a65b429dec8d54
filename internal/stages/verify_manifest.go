package stages

import (
	"context"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("verify_manifest", func(v *volume.Volume) stage.Stage {
		return &VerifyManifest{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// VerifyManifest checks that every file in the unpacked SIP matches the
// package type's valid_file_pattern, and that exactly one source METS is
// present.
type VerifyManifest struct {
	stage.BaseStage
}

func (s *VerifyManifest) Info() stage.Info {
	return stage.Info{SuccessState: "manifest_verified", FailureState: "punted"}
}

func (s *VerifyManifest) Run(ctx context.Context) (bool, error) {
	files, err := s.Volume.AllDirectoryFiles()
	if err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	pt := s.Volume.PackageType()
	if pt.ValidFilePattern != nil {
		for _, f := range files {
			if !pt.ValidFilePattern.MatchString(f) {
				s.SetError(ingesterr.BadFieldf("valid_file_pattern", f, nil))
				return false, nil
			}
		}
	}

	if _, err := s.Volume.SourceMETSXPC(); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	return true, nil
}

func asIngestErr(err error) *ingesterr.Error {
	if ie, ok := err.(*ingesterr.Error); ok {
		return ie
	}
	return ingesterr.New(ingesterr.OperationFailed, err, nil)
}
