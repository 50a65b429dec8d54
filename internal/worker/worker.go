// Package worker runs the scheduler loop: poll feed_queue for rows whose
// status is not a release state, dispatch up to dataset.threads Volumes
// concurrently, run each one Job stage transition, and write the result
// back. Grounded on the teacher's jobs/worker.Worker (ClaimNextRunnable
// polling, heartbeat, panic recovery), collapsed to a single bounded
// errgroup fan-out per tick since a Job's unit of work is exactly one
// stage run rather than an open-ended handler.
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hathitrust/feed/internal/config"
	"github.com/hathitrust/feed/internal/data/models"
	"github.com/hathitrust/feed/internal/data/repos"
	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/job"
	"github.com/hathitrust/feed/internal/namespace"
	"github.com/hathitrust/feed/internal/pkgtype"
	"github.com/hathitrust/feed/internal/platform/ctxutil"
	"github.com/hathitrust/feed/internal/platform/dbctx"
	"github.com/hathitrust/feed/internal/platform/logger"
	"github.com/hathitrust/feed/internal/premis"
	"github.com/hathitrust/feed/internal/registry"
	"github.com/hathitrust/feed/internal/volume"
)

// Worker polls feed_queue and drives each claimed row through one Job
// stage transition.
type Worker struct {
	Log      *logger.Logger
	Queue    repos.FeedQueueRepo
	Events   repos.PremisEventRepo
	Errors   repos.ErrorRepo
	Resolver *config.Resolver
	Catalog  *premis.Catalog

	Namespaces   *registry.Registry[*namespace.Descriptor]
	PackageTypes *registry.Registry[*pkgtype.Descriptor]

	// Fetcher is the optional GCS-backed staging.fetch adapter (component
	// L); nil when every registered package type stages locally.
	Fetcher volume.Fetcher

	// Release is the set of statuses at which a Volume's work is
	// considered done; ClaimNextRunnable excludes rows at these statuses.
	Release job.ReleaseStates

	// Threads bounds the number of Volumes processed concurrently,
	// mirroring dataset.threads from the global config.
	Threads int

	// PollInterval is how often an idle worker goroutine retries a claim
	// when the queue was empty. Defaults to 1s, matching the teacher's
	// ticker cadence.
	PollInterval time.Duration

	// WorkerName identifies this process in feed_queue.locked_by.
	WorkerName string
}

func (w *Worker) releaseList() []string {
	out := make([]string, 0, len(w.Release))
	for status := range w.Release {
		out = append(out, status)
	}
	return out
}

// Run blocks, fanning work out across Threads goroutines via errgroup,
// until ctx is cancelled (SIGTERM). Each goroutine loops: claim, run one
// stage, write the result back, repeat; when the queue is empty it waits
// PollInterval before retrying.
func (w *Worker) Run(ctx context.Context) error {
	threads := w.Threads
	if threads < 1 {
		threads = 1
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		workerID := i + 1
		g.Go(func() error {
			return w.runLoop(ctx, workerID, poll)
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int, poll time.Duration) error {
	log := w.Log.With("worker", workerID)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.tick(ctx, log); err != nil {
				log.Warn("tick failed", "error", err)
			}
		}
	}
}

func (w *Worker) tick(ctx context.Context, log *logger.Logger) error {
	dbc := dbctx.Context{Ctx: ctx}
	entry, err := w.Queue.ClaimNextRunnable(dbc, w.releaseList(), w.WorkerName)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{Namespace: entry.Namespace, ObjectID: entry.ObjID})
	log = log.With("namespace", entry.Namespace, "objid", entry.ObjID, "status", entry.Status)

	ns, err := w.Namespaces.Lookup(entry.Namespace)
	if err != nil {
		log.Error("unknown namespace", "error", err)
		return w.recordFailure(ctx, entry, err)
	}
	pt, err := w.PackageTypes.Lookup(entry.PackageType)
	if err != nil {
		log.Error("unknown package type", "error", err)
		return w.recordFailure(ctx, entry, err)
	}

	v := volume.New(ns, pt, w.Resolver, w.Catalog, w.Events, entry.Namespace, entry.ObjID)
	v.Fetcher = w.Fetcher

	var resultStatus string
	var resultFailed bool
	j := job.New(entry.Namespace, entry.ObjID, pt, entry.Status, entry.FailureCount, func(namespace, objid, newStatus string, release, failed bool) {
		resultStatus, resultFailed = newStatus, failed
	})

	if !j.Runnable() {
		log.Warn("claimed row is not runnable from its status")
		return nil
	}

	if runErr := j.Run(ctx, v, w.Release); runErr != nil {
		log.Error("job run error", "error", runErr)
		return w.recordFailure(ctx, entry, runErr)
	}

	if resultFailed && j.LastError != nil {
		if err := w.Errors.Record(dbc, entry.Namespace, entry.ObjID, resultStatus, j.LastError); err != nil {
			log.Warn("failed to persist error record", "error", err)
		}
	}

	if err := w.Queue.UpdateStatus(dbc, entry.ID, resultStatus, resultFailed); err != nil {
		log.Error("failed to write back status", "error", err)
		return err
	}

	log.Info("stage transition complete", "new_status", resultStatus, "failed", resultFailed)
	return nil
}

func (w *Worker) recordFailure(ctx context.Context, entry *models.FeedQueueEntry, cause error) error {
	dbc := dbctx.Context{Ctx: ctx}
	ie, ok := cause.(*ingesterr.Error)
	if !ok {
		ie = ingesterr.New(ingesterr.OperationFailed, cause, nil)
	}
	if err := w.Errors.Record(dbc, entry.Namespace, entry.ObjID, entry.Status, ie); err != nil {
		return err
	}
	return w.Queue.UpdateStatus(dbc, entry.ID, "punted", true)
}
