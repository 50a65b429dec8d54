// Package job implements the Job/Runner contract (spec.md §4.G): a
// single-shot description of "this object, at this status" plus the
// logic to run the one stage the current status maps to and compute the
// next status. Modeled closely on the teacher's jobrt.Context (payload
// decoding, Progress/Fail/Succeed side effects) and orchestrator.Engine's
// dispatch loop, collapsed down since our stage map is declarative per
// PackageType rather than a computed DAG: resolve stage class from
// stage_map[status], run once, compute next status from the stage's own
// static transition, invoke the callback. No child-job fan-out is needed
// since a single Volume's stages are strictly serial.
package job

import (
	"context"

	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/stage"
	"github.com/hathitrust/feed/internal/volume"
)

// Callback is invoked after update() with the computed transition. It is
// the only place state escapes the Job.
type Callback func(namespace, objid, newStatus string, release, failed bool)

// Job is single-use: Status never mutates on this struct. Continuation
// after a stage runs is always expressed as a new Job value at the new
// status, handed to the caller via Callback.
type Job struct {
	Namespace    string
	ObjID        string
	PT           *pkgtype.Descriptor
	Status       string
	FailureCount int
	Callback     Callback

	// LastError is populated by Run from the stage's own Error() after it
	// runs, so a caller can persist ingest failure detail (ErrorRepo)
	// without the Job exposing the Stage it constructed internally.
	LastError *ingesterr.Error
}

func New(namespace, objid string, pt *pkgtype.Descriptor, status string, failureCount int, cb Callback) *Job {
	if status == "" {
		status = "ready"
	}
	return &Job{Namespace: namespace, ObjID: objid, PT: pt, Status: status, FailureCount: failureCount, Callback: cb}
}

// Runnable is true iff the current status resolves to a registered stage
// identifier in the package type's stage_map.
func (j *Job) Runnable() bool {
	_, ok := j.PT.StageFor(j.Status)
	return ok
}

// ReleaseStates is the set of terminal statuses (daemon.release_states)
// at which a Job's Volume is cleaned up and no further work is
// dispatched.
type ReleaseStates map[string]bool

func (r ReleaseStates) Contains(status string) bool { return r[status] }

// Run resolves and instantiates the stage for the Job's current status,
// runs it once, computes the next status from the stage's statically
// declared transition, and invokes Callback with the result. It returns
// an error only for genuinely unexpected conditions — an unresolvable
// stage identifier is a startup/config-time mistake, not an ordinary
// ingest failure, so it is surfaced to the caller rather than silently
// advancing the Job.
func (j *Job) Run(ctx context.Context, v *volume.Volume, release ReleaseStates) error {
	stageID, ok := j.PT.StageFor(j.Status)
	if !ok {
		return ingesterr.New(ingesterr.UnknownSubclass, nil, map[string]any{
			"reason": "job not runnable from status " + j.Status,
		})
	}

	s, err := stage.New(stageID, v)
	if err != nil {
		return err
	}

	succeeded, err := s.Run(ctx)
	if err != nil {
		return err
	}

	info := s.Info()
	newStatus := info.SuccessState
	failed := !succeeded
	j.LastError = s.Error()
	if failed {
		newStatus = info.FailureState
		j.FailureCount++
	}

	if j.Callback != nil {
		j.Callback(j.Namespace, j.ObjID, newStatus, release.Contains(newStatus), failed)
	}
	return nil
}
