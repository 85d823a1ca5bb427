package handler

import (
	"bufio"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/repository"
	service "utility-bill-enrichment-backend/internal/services/enrichment"
)

type EnrichmentHandler struct {
	service  *service.Service
	lineRepo *repository.EnrichedLineRepository
}

func NewEnrichmentHandler(s *service.Service, lineRepo *repository.EnrichedLineRepository) *EnrichmentHandler {
	return &EnrichmentHandler{service: s, lineRepo: lineRepo}
}

// Upload accepts an NDJSON file of parsed bill lines, creates a batch, and
// enriches it in the background.
func (h *EnrichmentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	batch, err := h.service.CreateBatch(header.Filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go h.service.EnrichBatch(context.Background(), batch, lines)

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id": batch.ID.String(),
		"status":   "processing",
	})
}

// EnrichRecords enriches a JSON array of records synchronously and returns
// them without persisting, for callers that drive their own storage.
func (h *EnrichmentHandler) EnrichRecords(c *gin.Context) {
	var records []*models.LineItem
	if err := c.BindJSON(&records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	enriched := h.service.EnrichRecords(c.Request.Context(), records)
	c.JSON(http.StatusOK, gin.H{"records": enriched})
}

func (h *EnrichmentHandler) GetBatchProgress(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	progress, ok := h.service.GetProgress(batchID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *EnrichmentHandler) ListLines(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	cursor := c.Query("cursor")
	search := c.Query("search")
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	lines, nextCursor, hasMore := h.lineRepo.List(batchID, cursor, limit, search)
	stats, _ := h.lineRepo.StatsByGLAccount(batchID)

	c.JSON(http.StatusOK, gin.H{
		"items":       lines,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}
