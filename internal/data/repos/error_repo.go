package repos

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hathitrust/feed/internal/data/models"
	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/platform/dbctx"
	"github.com/hathitrust/feed/internal/platform/logger"
)

// ErrorRepo persists the detail of an ingesterr.Error raised while
// processing a queue entry, so an operator can review failures without
// scraping logs.
type ErrorRepo interface {
	Record(dbc dbctx.Context, namespace, objid, status string, err *ingesterr.Error) error
}

type errorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewErrorRepo(db *gorm.DB, baseLog *logger.Logger) ErrorRepo {
	return &errorRepo{db: db, log: baseLog.With("repo", "ErrorRepo")}
}

func (r *errorRepo) Record(dbc dbctx.Context, namespace, objid, status string, ie *ingesterr.Error) error {
	if ie == nil {
		return nil
	}
	row := &models.ErrorRecord{
		Namespace: namespace,
		ObjID:     objid,
		Status:    status,
		Kind:      string(ie.Kind),
		Message:   ie.Error(),
		Fields:    datatypes.JSONMap(ie.Fields),
	}
	return dbc.DB(r.db).Create(row).Error
}
