package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchAuditLog records which tier resolved an entity and how confident it
// was, one row per resolution.
type MatchAuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	LineID      uuid.UUID `gorm:"index"`
	BatchID     uuid.UUID `gorm:"index"`
	Entity      string    // vendor | property | gl_account
	Tier        string    // exact | rule | semantic | fuzzy
	Target      string
	MatchedID   string
	MatchedName string
	Score       float64
	CreatedAt   time.Time
}
