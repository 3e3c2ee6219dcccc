package utterance

import (
	"fmt"

	"github.com/xpanvictor/aria/internal/domains/listener"
	"gorm.io/gorm"
)

type GormUtteranceRepo struct {
	db *gorm.DB
}

func NewGormUtteranceRepo(db *gorm.DB) listener.Ledger {
	return &GormUtteranceRepo{db: db}
}

// Create implements listener.Ledger
func (g *GormUtteranceRepo) Create(r *listener.Record) error {
	entity := NewEntityFromDomain(r)
	if err := g.db.Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create utterance: %w", err)
	}
	*r = *entity.ToDomain()
	return nil
}

// List implements listener.Ledger
func (g *GormUtteranceRepo) List(limit int) ([]listener.Record, error) {
	var entities []Entity
	query := g.db.Model(&Entity{}).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list utterances: %w", err)
	}

	records := make([]listener.Record, 0, len(entities))
	for i := range entities {
		records = append(records, *entities[i].ToDomain())
	}
	return records, nil
}

// Clear implements listener.Ledger
func (g *GormUtteranceRepo) Clear() error {
	if err := g.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Entity{}).Error; err != nil {
		return fmt.Errorf("failed to clear utterances: %w", err)
	}
	return nil
}
