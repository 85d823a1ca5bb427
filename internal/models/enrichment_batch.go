package models

import (
	"time"

	"github.com/google/uuid"
)

type EnrichmentBatch struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename       string
	TotalLines     int
	ProcessedCount int
	SkippedCount   int
	Status         string
	StartedAt      time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}
