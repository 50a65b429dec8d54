package stages

import (
	"context"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("extract_ocr", func(v *volume.Volume) stage.Stage {
		return &ExtractOCR{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// ExtractOCR verifies that every page with a file in the image filegroup
// also has a file in the ocr filegroup. It succeeds without checking when
// the package type has no ocr filegroup. It does not check hocr files and
// does not check that ocr files decode as UTF-8.
type ExtractOCR struct {
	stage.BaseStage
}

func (s *ExtractOCR) Info() stage.Info {
	return stage.Info{SuccessState: "ocr_extracted", FailureState: "punted"}
}

func (s *ExtractOCR) Run(ctx context.Context) (bool, error) {
	byPage, err := s.Volume.FileGroupsByPage()
	if err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}

	pt := s.Volume.PackageType()
	if _, hasOCR := pt.FileGroups["ocr"]; !hasOCR {
		return true, nil
	}

	for seq, groups := range byPage {
		if len(groups["image"]) > 0 && len(groups["ocr"]) == 0 {
			s.SetError(ingesterr.MissingFieldf("ocr", pageLabel(seq)))
			return false, nil
		}
	}
	return true, nil
}
