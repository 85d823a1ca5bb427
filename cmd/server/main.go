package main

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"utility-bill-enrichment-backend/internal/catalog"
	"utility-bill-enrichment-backend/internal/config"
	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/routes"
)

func main() {
	log := config.GetLogger()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, relying on system env")
	}

	db := config.InitDB()
	db.AutoMigrate(
		&models.EnrichmentBatch{},
		&models.EnrichedLine{},
		&models.MatchAuditLog{},
	)

	var objects catalog.ObjectStore
	if bucket := config.CatalogBucket(); bucket != "" {
		store, err := catalog.NewGCSStore(context.Background(), bucket)
		if err != nil {
			log.Warn("object store unavailable, catalogs will be empty: ", err)
		} else {
			objects = store
		}
	} else {
		log.Warn("GCS_BUCKET not set, catalogs will be empty")
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, objects)

	r.Run(":" + config.Port())
}
