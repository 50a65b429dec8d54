package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hathitrust/feed/internal/data/models"
	"github.com/hathitrust/feed/internal/platform/dbctx"
	"github.com/hathitrust/feed/internal/platform/logger"
)

// PremisEventRepo implements volume.EventStore over premis_events,
// grounded on the teacher's repo-per-table pattern (JobRunRepo).
type PremisEventRepo interface {
	Record(ctx context.Context, namespace, objid, eventtype string, id uuid.UUID, date time.Time, outcome string) error
	Get(ctx context.Context, namespace, objid, eventtype string) (uuid.UUID, time.Time, string, bool, error)
	Clear(ctx context.Context, namespace, objid string) error
}

type premisEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPremisEventRepo(db *gorm.DB, baseLog *logger.Logger) PremisEventRepo {
	return &premisEventRepo{db: db, log: baseLog.With("repo", "PremisEventRepo")}
}

func (r *premisEventRepo) Record(ctx context.Context, namespace, objid, eventtype string, id uuid.UUID, date time.Time, outcome string) error {
	dbc := dbctx.Context{Ctx: ctx}
	tx := dbc.DB(r.db)

	var existing models.PremisEvent
	err := tx.Where("namespace = ? AND obj_id = ? AND event_type = ?", namespace, objid, eventtype).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.PremisEvent{
			Namespace: namespace,
			ObjID:     objid,
			EventType: eventtype,
			EventID:   id,
			EventDate: date,
			Outcome:   outcome,
		}
		return tx.Create(&row).Error
	case err != nil:
		return err
	default:
		return tx.Model(&existing).Updates(map[string]interface{}{
			"event_id":   id,
			"event_date": date,
			"outcome":    outcome,
		}).Error
	}
}

func (r *premisEventRepo) Get(ctx context.Context, namespace, objid, eventtype string) (uuid.UUID, time.Time, string, bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	tx := dbc.DB(r.db)

	var row models.PremisEvent
	err := tx.Where("namespace = ? AND obj_id = ? AND event_type = ?", namespace, objid, eventtype).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, time.Time{}, "", false, nil
	}
	if err != nil {
		return uuid.Nil, time.Time{}, "", false, err
	}
	return row.EventID, row.EventDate, row.Outcome, true, nil
}

// Clear deletes every premis_events row for (namespace, objid), used once
// a collate has folded the recorded events into the collated METS.
func (r *premisEventRepo) Clear(ctx context.Context, namespace, objid string) error {
	dbc := dbctx.Context{Ctx: ctx}
	tx := dbc.DB(r.db)
	return tx.Where("namespace = ? AND obj_id = ?", namespace, objid).Delete(&models.PremisEvent{}).Error
}
