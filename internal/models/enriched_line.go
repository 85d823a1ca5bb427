package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EnrichedLine is one fully enriched bill line as persisted for downstream
// accounting. Payload holds the complete output record including pass-through
// fields.
type EnrichedLine struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID         uuid.UUID `gorm:"index"`
	InvoiceNumber   string    `gorm:"index"`
	VendorID        string
	VendorName      string
	PropertyID      string
	PropertyName    string
	GLAccountID     string
	GLAccountName   string
	GLAccountNumber string `gorm:"index"`
	Occupancy       string
	Consumption     float64
	ConsumptionUnit string
	GLDescription   string
	Payload         datatypes.JSON
	CreatedAt       time.Time
}
