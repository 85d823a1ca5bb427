package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"utility-bill-enrichment-backend/internal/models"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(batch *models.EnrichmentBatch) error {
	return r.db.Create(batch).Error
}

func (r *BatchRepository) GetByID(id uuid.UUID) (*models.EnrichmentBatch, error) {
	var batch models.EnrichmentBatch
	if err := r.db.First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) SetTotals(id uuid.UUID, total, skipped int) error {
	return r.db.Model(&models.EnrichmentBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_lines":   total,
			"skipped_count": skipped,
		}).Error
}

func (r *BatchRepository) UpdateProgress(id uuid.UUID, count int) error {
	return r.db.Model(&models.EnrichmentBatch{}).
		Where("id = ?", id).
		Update("processed_count", count).
		Error
}

func (r *BatchRepository) MarkCompleted(id uuid.UUID, count int) error {
	return r.db.Model(&models.EnrichmentBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_count": count,
			"status":          "completed",
			"completed_at":    time.Now(),
		}).Error
}
