package utterance

import (
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/aria/internal/domains/listener"
	"gorm.io/gorm"
)

// Entity represents the database entity for an utterance record
type Entity struct {
	ID         uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID  uuid.UUID `gorm:"column:session_id;type:char(36);not null;index"`
	Path       string    `gorm:"column:path;type:varchar(512);not null"`
	DurationMs int64     `gorm:"column:duration_ms;not null"`
	RMS        float64   `gorm:"column:rms"`
	Transcript string    `gorm:"column:transcript;type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the table name for GORM
func (Entity) TableName() string {
	return "utterances"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (e *Entity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func NewEntityFromDomain(r *listener.Record) *Entity {
	return &Entity{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Path:       r.Path,
		DurationMs: r.Duration.Milliseconds(),
		RMS:        r.RMS,
		Transcript: r.Transcript,
		CreatedAt:  r.CreatedAt,
	}
}

func (e *Entity) ToDomain() *listener.Record {
	return &listener.Record{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Path:       e.Path,
		Duration:   time.Duration(e.DurationMs) * time.Millisecond,
		RMS:        e.RMS,
		Transcript: e.Transcript,
		CreatedAt:  e.CreatedAt,
	}
}
