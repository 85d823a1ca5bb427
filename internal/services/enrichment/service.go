package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"utility-bill-enrichment-backend/internal/catalog"
	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/repository"
	"utility-bill-enrichment-backend/internal/services/matching"
)

// Progress mirrors the batch row for cheap polling without a DB round trip.
type Progress struct {
	ProcessedCount int    `json:"processed_count"`
	SkippedCount   int    `json:"skipped_count"`
	Total          int    `json:"total"`
	Status         string `json:"status"`
}

// Service orchestrates batch enrichment: catalogs are loaded once, records
// are enriched independently by a bounded worker pool, and results are
// persisted plus written back out as NDJSON.
type Service struct {
	catalogs     *catalog.Store
	engine       *matching.Engine
	batchRepo    *repository.BatchRepository
	lineRepo     *repository.EnrichedLineRepository
	log          *logrus.Logger
	workers      int
	outputPrefix string

	progressCache sync.Map // batchID -> *Progress
}

func NewService(
	catalogs *catalog.Store,
	engine *matching.Engine,
	batchRepo *repository.BatchRepository,
	lineRepo *repository.EnrichedLineRepository,
	workers int,
	outputPrefix string,
	log *logrus.Logger,
) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		catalogs:     catalogs,
		engine:       engine,
		batchRepo:    batchRepo,
		lineRepo:     lineRepo,
		log:          log,
		workers:      workers,
		outputPrefix: outputPrefix,
	}
}

func (s *Service) CreateBatch(filename string) (*models.EnrichmentBatch, error) {
	batch := &models.EnrichmentBatch{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    "processing",
		StartedAt: time.Now(),
		CreatedAt: time.Now(),
	}
	if err := s.batchRepo.Create(batch); err != nil {
		return nil, err
	}
	s.progressCache.Store(batch.ID, &Progress{Status: "processing"})
	return batch, nil
}

func (s *Service) GetProgress(batchID uuid.UUID) (Progress, bool) {
	if v, ok := s.progressCache.Load(batchID); ok {
		return *v.(*Progress), true
	}
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return Progress{}, false
	}
	return Progress{
		ProcessedCount: batch.ProcessedCount,
		SkippedCount:   batch.SkippedCount,
		Total:          batch.TotalLines,
		Status:         batch.Status,
	}, true
}

// EnrichBatch processes one uploaded NDJSON batch. Malformed lines are
// skipped and counted; every successfully parsed record produces exactly one
// output record regardless of which enrichment stages succeeded.
func (s *Service) EnrichBatch(ctx context.Context, batch *models.EnrichmentBatch, lines []string) {
	s.catalogs.EnsureLoaded(ctx)

	var records []*models.LineItem
	skipped := 0
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		var rec models.LineItem
		if err := json.Unmarshal([]byte(ln), &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, &rec)
	}
	if skipped > 0 {
		s.log.WithFields(logrus.Fields{
			"module":  "enrichment",
			"batchId": batch.ID,
			"skipped": skipped,
		}).Warn("skipped malformed input lines")
	}

	total := len(records)
	s.progressCache.Store(batch.ID, &Progress{Total: total, SkippedCount: skipped, Status: "processing"})
	if err := s.batchRepo.SetTotals(batch.ID, total, skipped); err != nil {
		s.log.WithField("module", "enrichment").Warn("failed to persist batch totals: ", err)
	}

	var processed int64
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.enrichAndPersist(ctx, batch.ID, records[i])
				n := int(atomic.AddInt64(&processed, 1))
				s.progressCache.Store(batch.ID, &Progress{
					ProcessedCount: n, SkippedCount: skipped, Total: total, Status: "processing",
				})
				if n%100 == 0 {
					if err := s.batchRepo.UpdateProgress(batch.ID, n); err != nil {
						s.log.WithField("module", "enrichment").Warn("failed to persist progress: ", err)
					}
				}
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	s.writeOutput(ctx, batch, records)

	s.progressCache.Store(batch.ID, &Progress{
		ProcessedCount: total, SkippedCount: skipped, Total: total, Status: "completed",
	})
	if err := s.batchRepo.MarkCompleted(batch.ID, total); err != nil {
		s.log.WithField("module", "enrichment").Warn("failed to mark batch completed: ", err)
	}
	s.log.WithFields(logrus.Fields{
		"module":  "enrichment",
		"batchId": batch.ID,
		"lines":   total,
	}).Info("batch enrichment completed")
}

// EnrichRecords enriches records in place and returns them, without
// persistence. Backs the synchronous API surface.
func (s *Service) EnrichRecords(ctx context.Context, records []*models.LineItem) []*models.LineItem {
	s.catalogs.EnsureLoaded(ctx)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		s.EnrichRecord(ctx, rec)
	}
	return records
}

func (s *Service) enrichAndPersist(ctx context.Context, batchID uuid.UUID, rec *models.LineItem) {
	lineID := uuid.New()
	audits := s.EnrichRecord(ctx, rec)

	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.WithField("module", "enrichment").Warn("failed to marshal enriched record: ", err)
		payload = []byte("{}")
	}
	line := &models.EnrichedLine{
		ID:              lineID,
		BatchID:         batchID,
		InvoiceNumber:   rec.InvoiceNumber,
		VendorID:        rec.EnrichedVendorID,
		VendorName:      rec.EnrichedVendorName,
		PropertyID:      rec.EnrichedPropertyID,
		PropertyName:    rec.EnrichedPropertyName,
		GLAccountID:     rec.EnrichedGLAccountID,
		GLAccountName:   rec.EnrichedGLAccountName,
		GLAccountNumber: rec.EnrichedGLAccountNumber,
		Occupancy:       rec.HouseOrVacant,
		Consumption:     rec.EnrichedConsumption,
		ConsumptionUnit: rec.EnrichedUOM,
		GLDescription:   rec.GLLineDesc,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}
	if err := s.lineRepo.Create(line); err != nil {
		s.log.WithField("module", "enrichment").Warn("failed to persist enriched line: ", err)
	}
	for i := range audits {
		audits[i].ID = uuid.New()
		audits[i].LineID = lineID
		audits[i].BatchID = batchID
		audits[i].CreatedAt = time.Now()
	}
	if err := s.lineRepo.CreateAuditLogs(audits); err != nil {
		s.log.WithField("module", "enrichment").Warn("failed to persist audit logs: ", err)
	}
}

// EnrichRecord mutates one line item in place through every stage: vendor and
// property resolution, occupancy classification, GL classification with its
// guards, unit conversion, and both description formats. It never fails; a
// stage that cannot resolve simply leaves its fields unset.
func (s *Service) EnrichRecord(ctx context.Context, rec *models.LineItem) []models.MatchAuditLog {
	var audits []models.MatchAuditLog

	if vr := s.resolveVendor(ctx, rec); !vr.Empty() {
		rec.EnrichedVendorID = vr.ID
		rec.EnrichedVendorName = vr.Name
		audits = append(audits, auditEntry("vendor", rec.VendorName, vr))
	}
	if pr := s.resolveProperty(ctx, rec); !pr.Empty() {
		rec.EnrichedPropertyID = pr.ID
		rec.EnrichedPropertyName = pr.Name
		audits = append(audits, auditEntry("property", rec.BillToNameFirstLine, pr))
	}

	classifyOccupancy(rec)

	if gl := s.resolveGLAccount(ctx, rec); !gl.Empty() {
		rec.EnrichedGLAccountID = gl.ID
		rec.EnrichedGLAccountName = gl.Name
		rec.EnrichedGLAccountNumber = gl.Number
		rec.GLLineDesc = buildGLDesc(gl.Number, rec)
		audits = append(audits, auditEntry("gl_account", rec.LineItemDescription, gl))
	}

	// Consumption normalization never drops a reading: when no conversion row
	// matches, the original amount and unit carry through.
	amount, _ := parseAmount(rec.ConsumptionAmount.String())
	if converted, targetUOM, ok := convertUOM(amount, rec.UnitOfMeasure, rec.UtilityType, s.catalogs.UOMMappings()); ok {
		rec.EnrichedConsumption = converted
		rec.EnrichedUOM = targetUOM
	} else {
		rec.EnrichedConsumption = amount
		rec.EnrichedUOM = strings.TrimSpace(rec.UnitOfMeasure)
	}

	rec.GLDescNew = buildPipeDesc(rec)
	return audits
}

func auditEntry(entity, target string, r matching.Result) models.MatchAuditLog {
	return models.MatchAuditLog{
		Entity:      entity,
		Tier:        r.Tier,
		Target:      strings.TrimSpace(target),
		MatchedID:   r.ID,
		MatchedName: r.Name,
		Score:       r.Score,
	}
}

// writeOutput mirrors the enriched batch as NDJSON next to the catalogs so
// the downstream stages can pick it up.
func (s *Service) writeOutput(ctx context.Context, batch *models.EnrichmentBatch, records []*models.LineItem) {
	if s.outputPrefix == "" || len(records) == 0 {
		return
	}
	var buf bytes.Buffer
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	key := s.outputPrefix + batch.ID.String() + ".ndjson"
	if err := s.catalogs.WriteOutput(ctx, key, buf.Bytes()); err != nil {
		s.log.WithFields(logrus.Fields{
			"module": "enrichment",
			"key":    key,
		}).Warn("failed to write enriched output: ", err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"module": "enrichment",
		"key":    key,
		"lines":  len(records),
	}).Info("enriched output written")
}
