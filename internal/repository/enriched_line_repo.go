package repository

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"utility-bill-enrichment-backend/internal/models"
)

type EnrichedLineRepository struct {
	db *gorm.DB
}

func NewEnrichedLineRepository(db *gorm.DB) *EnrichedLineRepository {
	return &EnrichedLineRepository{db: db}
}

func (r *EnrichedLineRepository) Create(line *models.EnrichedLine) error {
	return r.db.Create(line).Error
}

func (r *EnrichedLineRepository) CreateAuditLogs(logs []models.MatchAuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Create(&logs).Error
}

// List pages through a batch's lines by id cursor, optionally filtering by a
// vendor/property/description search term.
func (r *EnrichedLineRepository) List(batchID uuid.UUID, cursor string, limit int, search string) ([]models.EnrichedLine, string, bool) {
	var lines []models.EnrichedLine
	query := r.db.
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Limit(limit + 1)

	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(vendor_name) LIKE ? OR LOWER(property_name) LIKE ? OR LOWER(gl_description) LIKE ?",
			like, like, like,
		)
	}

	query.Find(&lines)

	hasMore := false
	var nextCursor string
	if len(lines) > limit {
		hasMore = true
		nextCursor = lines[limit-1].ID.String()
		lines = lines[:limit]
	}
	return lines, nextCursor, hasMore
}

// GLAccountStats groups a batch's lines by resolved GL account number.
type GLAccountStats struct {
	GLAccountNumber string  `json:"gl_account_number"`
	GLAccountName   string  `json:"gl_account_name"`
	Count           int64   `json:"count"`
	ConsumptionSum  float64 `json:"consumption_sum"`
}

func (r *EnrichedLineRepository) StatsByGLAccount(batchID uuid.UUID) ([]GLAccountStats, error) {
	var rows []GLAccountStats
	err := r.db.Model(&models.EnrichedLine{}).
		Where("batch_id = ?", batchID).
		Select("gl_account_number, gl_account_name, COUNT(*) as count, COALESCE(SUM(consumption),0) as consumption_sum").
		Group("gl_account_number, gl_account_name").
		Scan(&rows).Error
	return rows, err
}
