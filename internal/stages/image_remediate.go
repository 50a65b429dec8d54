package stages

import (
	"context"

	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("image_remediate", func(v *volume.Volume) stage.Stage {
		return &ImageRemediate{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// ImageRemediate checks that the package type configures an image
// filegroup (Volume.PageCount fails with MissingImageGroup otherwise). It
// does not check individual pages and performs no pixel-level remediation
// (recompression, colorspace correction).
type ImageRemediate struct {
	stage.BaseStage
}

func (s *ImageRemediate) Info() stage.Info {
	return stage.Info{SuccessState: "image_remediated", FailureState: "punted"}
}

func (s *ImageRemediate) Run(ctx context.Context) (bool, error) {
	if _, err := s.Volume.PageCount(); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	return true, nil
}
