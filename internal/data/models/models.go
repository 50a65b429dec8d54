// Package models holds the gorm.io/gorm row types backing the relational
// schema named in spec.md §6: premis_events, feed_queue, errors.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PremisEvent is one provenance event recorded against a (namespace,
// objid) pair. Re-running a stage that already recorded its event for
// this object updates the existing row in place (see
// repos.PremisEventRepo.Record) rather than appending a duplicate.
type PremisEvent struct {
	ID uint `gorm:"primaryKey"`

	Namespace string    `gorm:"size:32;not null;index:idx_premis_event_lookup,priority:1"`
	ObjID     string    `gorm:"size:64;not null;index:idx_premis_event_lookup,priority:2"`
	EventType string    `gorm:"size:64;not null;index:idx_premis_event_lookup,priority:3"`
	EventID   uuid.UUID `gorm:"type:uuid;not null"`
	EventDate time.Time `gorm:"not null"`
	Outcome   string    `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PremisEvent) TableName() string { return "premis_events" }

// FeedQueueEntry is one (namespace, objid) ingest unit and its current
// status. The worker pool claims rows whose status is not a release
// state, runs one stage transition, and writes the new status back.
type FeedQueueEntry struct {
	ID uint `gorm:"primaryKey"`

	Namespace      string `gorm:"size:32;not null;uniqueIndex:idx_feed_queue_identity,priority:1"`
	ObjID          string `gorm:"size:64;not null;uniqueIndex:idx_feed_queue_identity,priority:2"`
	PackageType    string `gorm:"size:64;not null"`
	Status         string `gorm:"size:64;not null;index"`
	FailureCount   int    `gorm:"not null;default:0"`
	LockedAt       *time.Time
	LockedBy       string         `gorm:"size:128"`
	HeartbeatAt    *time.Time
	LastFailureAt  *time.Time
	Metadata       datatypes.JSONMap

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FeedQueueEntry) TableName() string { return "feed_queue" }

// ErrorRecord is the persisted detail of an ingesterr.Error raised while
// processing a FeedQueueEntry: enough to drive an operator-facing error
// report without re-deriving it from logs.
type ErrorRecord struct {
	ID uint `gorm:"primaryKey"`

	Namespace string            `gorm:"size:32;not null;index"`
	ObjID     string            `gorm:"size:64;not null;index"`
	Status    string            `gorm:"size:64;not null"`
	Kind      string            `gorm:"size:64;not null"`
	Message   string            `gorm:"type:text"`
	Fields    datatypes.JSONMap

	CreatedAt time.Time
}

func (ErrorRecord) TableName() string { return "errors" }
