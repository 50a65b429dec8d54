// Package stage defines the Stage contract and its registry. Concrete
// stages (Unpack, VerifyManifest, ExtractOCR, ImageRemediate, SourceMETS,
// VolumeValidator, Pack, METS, Handle, Collate) live under
// internal/stages and each register a constructor here at init() time.
package stage

import (
	"context"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/registry"
	"github.com/hathitrust/feed/internal/volume"
)

// Info is a stage's statically declared transition: the status a Job
// moves to when the stage succeeds, and the status it moves to when the
// stage fails. Declaring these as data (not computed) is what makes the
// pipeline a declarative state machine.
type Info struct {
	SuccessState string
	FailureState string
}

// Stage is the abstract contract every concrete stage implements. Run
// reports (succeeded, err): err is reserved for genuinely unexpected
// failures (a bug, a context cancellation); ordinary ingest failures are
// reported by returning succeeded=false with the detail already recorded
// on the stage via SetError — the Job/Runner layer reads FailureState in
// that case, not err.
type Stage interface {
	Run(ctx context.Context) (bool, error)
	Info() Info
	Failed() bool
	Error() *ingesterr.Error
}

// BaseStage is embedded by concrete stages to get the clean_* hooks'
// default (no-op) behavior, and SetError/Failed/Error bookkeeping, for
// free; a stage overrides only the hooks it needs.
type BaseStage struct {
	Volume *volume.Volume

	err     *ingesterr.Error
	info    string
}

func (BaseStage) CleanAlways() error  { return nil }
func (BaseStage) CleanSuccess() error { return nil }
func (BaseStage) CleanFailure() error { return nil }

func (b *BaseStage) SetError(err *ingesterr.Error) { b.err = err }
func (b *BaseStage) Failed() bool                  { return b.err != nil }
func (b *BaseStage) Error() *ingesterr.Error        { return b.err }
func (b *BaseStage) SetInfo(msg string)             { b.info = msg }
func (b *BaseStage) Message() string                { return b.info }

// Constructor builds a Stage bound to one Volume.
type Constructor func(v *volume.Volume) Stage

// Registry maps a stage identifier (as named in a PackageType's
// stage_map) to its Constructor.
var Registry = registry.New[Constructor]("Stage")

// Register is a convenience wrapper so stage packages can write
// stage.Register("unpack", NewUnpack) in their init().
func Register(identifier string, ctor Constructor) {
	Registry.Register(identifier, ctor)
}

// New instantiates the stage registered under identifier, bound to v.
func New(identifier string, v *volume.Volume) (Stage, error) {
	ctor, err := Registry.Lookup(identifier)
	if err != nil {
		return nil, err
	}
	return ctor(v), nil
}
