package stages

import (
	"context"
	"os/exec"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

// HandleMinterPath names the external handle-service SQL emitter binary
// (out of core scope per spec.md §1; the core only invokes it and
// interprets its exit status). internal/app does not set it; while it is
// empty the Handle stage succeeds without invoking anything.
var HandleMinterPath string

func init() {
	stage.Register("handle", func(v *volume.Volume) stage.Stage {
		return &Handle{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// Handle mints (or confirms) the persistent handle for this object by
// invoking the external handle-service emitter. Any failure — including
// the minter's own internal errors — surfaces as OperationFailed rather
// than being swallowed, unlike the source's bare eval around this step.
type Handle struct {
	stage.BaseStage

	ExecCommand func(name string, arg ...string) *exec.Cmd
}

func (s *Handle) Info() stage.Info {
	return stage.Info{SuccessState: "handle_assigned", FailureState: "punted"}
}

func (s *Handle) execCommand(name string, args ...string) *exec.Cmd {
	if s.ExecCommand != nil {
		return s.ExecCommand(name, args...)
	}
	return exec.Command(name, args...)
}

func (s *Handle) Run(ctx context.Context) (bool, error) {
	if HandleMinterPath == "" {
		return true, nil
	}
	cmd := s.execCommand(HandleMinterPath, s.Volume.Identifier())
	out, err := cmd.CombinedOutput()
	if err != nil {
		s.SetError(ingesterr.New(ingesterr.OperationFailed, err, map[string]any{
			"operation": "mint_handle",
			"detail":    string(out),
		}))
		return false, nil
	}
	return true, nil
}
