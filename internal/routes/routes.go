package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"utility-bill-enrichment-backend/internal/catalog"
	"utility-bill-enrichment-backend/internal/config"
	handler "utility-bill-enrichment-backend/internal/handlers"
	"utility-bill-enrichment-backend/internal/repository"
	service "utility-bill-enrichment-backend/internal/services/enrichment"
	"utility-bill-enrichment-backend/internal/services/matching"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, objects catalog.ObjectStore) {
	log := config.GetLogger()

	catalogs := catalog.NewStore(objects, catalog.Prefixes{
		Vendor:   config.VendorPrefix(),
		Property: config.PropertyPrefix(),
		GLAcct:   config.GLAccountPrefix(),
		UOM:      config.UOMPrefix(),
	}, log)

	var semantic matching.SemanticMatcher
	if keys := config.MatcherKeys(); len(keys) > 0 {
		semantic = matching.NewGeminiMatcher(keys, config.EnrichModel(), "")
	} else {
		log.Warn("no matcher keys configured, semantic tier disabled")
	}
	engine := matching.NewEngine(semantic, log)

	batchRepo := repository.NewBatchRepository(db)
	lineRepo := repository.NewEnrichedLineRepository(db)

	enrichService := service.NewService(
		catalogs, engine, batchRepo, lineRepo,
		config.EnrichWorkers(), config.OutputPrefix(), log,
	)
	enrichHandler := handler.NewEnrichmentHandler(enrichService, lineRepo)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	enrich := api.Group("/enrichment")
	enrich.POST("/upload", enrichHandler.Upload)
	enrich.POST("/records", enrichHandler.EnrichRecords)
	enrich.GET("/:batchId", enrichHandler.GetBatchProgress)
	enrich.GET("/:batchId/lines", enrichHandler.ListLines)
}
