package listener

import (
	"time"

	"github.com/google/uuid"
)

// Record is one accepted utterance as remembered by the ledger.
type Record struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  uuid.UUID     `json:"sessionId"`
	Path       string        `json:"path"`
	Duration   time.Duration `json:"duration"`
	RMS        float64       `json:"rms"`
	Transcript string        `json:"transcript"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Ledger stores utterance records
type Ledger interface {
	Create(r *Record) error
	// List returns the newest records first; limit <= 0 returns all.
	List(limit int) ([]Record, error)
	Clear() error
}
