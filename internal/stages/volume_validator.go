package stages

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

func init() {
	stage.Register("volume_validator", func(v *volume.Volume) stage.Stage {
		return &VolumeValidator{BaseStage: stage.BaseStage{Volume: v}}
	})
}

// VolumeValidator shells out to the external format validator named by
// validators.<id>.path for each validator identifier in the package
// type's validation map (e.g. "JPEG2000", "TIFF", "UTF8"), one process
// per validator, passing every file of the JHOVE-flagged filegroups and
// the layered validation-override parameters as arguments. Validators
// with no configured path are skipped, and the stage succeeds at once
// when there are no JHOVE-flagged files. A tool is a subprocess returning
// exit 0 on pass; its stdout/stderr is captured as error detail on
// failure. On success it records the package_validation PREMIS event.
type VolumeValidator struct {
	stage.BaseStage

	// ExecCommand is overridable in tests to avoid spawning real
	// processes.
	ExecCommand func(name string, args ...string) *exec.Cmd
}

func (s *VolumeValidator) Info() stage.Info {
	return stage.Info{SuccessState: "validated", FailureState: "punted"}
}

func (s *VolumeValidator) execCommand(name string, args ...string) *exec.Cmd {
	if s.ExecCommand != nil {
		return s.ExecCommand(name, args...)
	}
	return exec.Command(name, args...)
}

func (s *VolumeValidator) Run(ctx context.Context) (bool, error) {
	v := s.Volume
	pt := v.PackageType()

	files, err := v.JHOVEFiles()
	if err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	if len(files) == 0 {
		return true, nil
	}

	for validatorID := range pt.Validation {
		overrides := v.Resolver.GetValidationOverrides(v.NS, pt, validatorID)
		toolPath, _ := v.Resolver.Get(v.NS, pt, "validators."+validatorID+".path")
		path, _ := toolPath.(string)
		if path == "" {
			continue
		}
		args := append([]string{}, files...)
		for k, val := range overrides {
			args = append(args, fmt.Sprintf("--%s=%v", k, val))
		}
		cmd := s.execCommand(path, args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			s.SetError(ingesterr.New(ingesterr.OperationFailed, err, map[string]any{
				"operation": "validate:" + validatorID,
				"detail":    string(out),
			}))
			return false, nil
		}
	}

	if err := v.RecordPREMISEvent(ctx, "package_validation", time.Time{}, ""); err != nil {
		s.SetError(asIngestErr(err))
		return false, nil
	}
	return true, nil
}
