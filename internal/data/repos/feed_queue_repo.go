package repos

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hathitrust/feed/internal/data/models"
	"github.com/hathitrust/feed/internal/platform/dbctx"
	"github.com/hathitrust/feed/internal/platform/logger"
)

// FeedQueueRepo manages the feed_queue table the worker pool polls.
// ClaimNextRunnable is grounded directly on the teacher's
// JobRunRepo.ClaimNextRunnable SELECT ... FOR UPDATE SKIP LOCKED pattern,
// adapted to this schema's simpler single-status model (no retry-delay
// or stale-running reclaim window — a failed row is immediately runnable
// again at its new status via a fresh Job, per the single-shot Job
// invariant).
type FeedQueueRepo interface {
	Enqueue(dbc dbctx.Context, namespace, objid, packageType, status string) (*models.FeedQueueEntry, error)
	ClaimNextRunnable(dbc dbctx.Context, releaseStates []string, lockedBy string) (*models.FeedQueueEntry, error)
	UpdateStatus(dbc dbctx.Context, id uint, newStatus string, failed bool) error
	Release(dbc dbctx.Context, id uint) error
}

type feedQueueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedQueueRepo(db *gorm.DB, baseLog *logger.Logger) FeedQueueRepo {
	return &feedQueueRepo{db: db, log: baseLog.With("repo", "FeedQueueRepo")}
}

func (r *feedQueueRepo) tx(dbc dbctx.Context) *gorm.DB { return dbc.DB(r.db) }

func (r *feedQueueRepo) Enqueue(dbc dbctx.Context, namespace, objid, packageType, status string) (*models.FeedQueueEntry, error) {
	if status == "" {
		status = "ready"
	}
	row := &models.FeedQueueEntry{
		Namespace:   namespace,
		ObjID:       objid,
		PackageType: packageType,
		Status:      status,
	}
	if err := r.tx(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// ClaimNextRunnable selects the oldest row whose status is not in
// releaseStates, locks it FOR UPDATE SKIP LOCKED so concurrent workers
// never double-claim, and marks it locked by the caller.
func (r *feedQueueRepo) ClaimNextRunnable(dbc dbctx.Context, releaseStates []string, lockedBy string) (*models.FeedQueueEntry, error) {
	tx := r.tx(dbc)
	now := time.Now()

	var claimed *models.FeedQueueEntry
	err := tx.Transaction(func(txx *gorm.DB) error {
		var row models.FeedQueueEntry
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status NOT IN ?", releaseStates).
			Where("locked_at IS NULL").
			Order("created_at ASC")
		qErr := q.First(&row).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&models.FeedQueueEntry{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"locked_at":    now,
				"locked_by":    lockedBy,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *feedQueueRepo) UpdateStatus(dbc dbctx.Context, id uint, newStatus string, failed bool) error {
	updates := map[string]interface{}{
		"status":       newStatus,
		"locked_at":    nil,
		"locked_by":    "",
		"heartbeat_at": nil,
		"updated_at":   time.Now(),
	}
	if failed {
		now := time.Now()
		updates["last_failure_at"] = now
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}
	return r.tx(dbc).Model(&models.FeedQueueEntry{}).Where("id = ?", id).Updates(updates).Error
}

func (r *feedQueueRepo) Release(dbc dbctx.Context, id uint) error {
	return r.tx(dbc).Model(&models.FeedQueueEntry{}).Where("id = ?", id).
		Updates(map[string]interface{}{"locked_at": nil, "locked_by": "", "heartbeat_at": nil}).Error
}
