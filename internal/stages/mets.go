package stages

import (
	"context"

	"github.com/hathitrust/feed/internal/mets"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

// MetsCatalog and MetsXercesPath are package-level configuration points
// the binary's wiring sets once at startup, since the stage registry's
// Constructor signature (func(*volume.Volume) Stage) carries no room for
// extra dependencies. This mirrors the teacher's own use of small
// package-level service handles for cross-cutting concerns.
var (
	MetsCatalog    *premis.Catalog
	MetsXercesPath string
)

func init() {
	stage.Register("mets", func(v *volume.Volume) stage.Stage {
		return &METS{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// METS assembles and writes the AIP METS document (internal/mets, the
// hardest component).
type METS struct {
	stage.BaseStage
}

func (s *METS) Info() stage.Info {
	return stage.Info{SuccessState: "mets_generated", FailureState: "punted"}
}

func (s *METS) Run(ctx context.Context) (bool, error) {
	assembler := &mets.Assembler{Catalog: MetsCatalog, XercesPath: MetsXercesPath}
	if _, err := assembler.Assemble(ctx, s.Volume); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	return true, nil
}
