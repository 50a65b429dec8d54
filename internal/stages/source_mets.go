package stages

import (
	"context"

	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("source_mets", func(v *volume.Volume) stage.Stage {
		return &SourceMETS{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// SourceMETS confirms the source METS parses and carries a MARC dmdSec,
// so the later METS-assembly stage can assume both are present.
type SourceMETS struct {
	stage.BaseStage
}

func (s *SourceMETS) Info() stage.Info {
	return stage.Info{SuccessState: "source_mets_generated", FailureState: "punted"}
}

func (s *SourceMETS) Run(ctx context.Context) (bool, error) {
	if _, err := s.Volume.MARCXML(); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	if _, err := s.Volume.Checksums(); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	return true, nil
}
