package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

func GetLogger() *logrus.Logger {
	return logg
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// InitDB opens the postgres connection used for batches, enriched lines and
// audit logs.
func InitDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getenv("DB_HOST", "localhost"),
		getenv("DB_PORT", "5432"),
		getenv("DB_USER", "postgres"),
		getenv("DB_PASSWORD", "postgres"),
		getenv("DB_NAME", "bill_enrichment"),
		getenv("DB_SSLMODE", "disable"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logg.Fatal("failed to connect to database: ", err)
	}
	return db
}

func CatalogBucket() string {
	return getenv("GCS_BUCKET", "")
}

// Catalog export prefixes. The defaults follow the billing pipeline's stage
// layout.
func VendorPrefix() string {
	return getenv("DIM_VENDOR_PREFIX", EnrichPrefix()+"dim_vendor/")
}

func PropertyPrefix() string {
	return getenv("DIM_PROPERTY_PREFIX", EnrichPrefix()+"dim_property/")
}

func GLAccountPrefix() string {
	return getenv("DIM_GL_PREFIX", EnrichPrefix()+"dim_gl_account/")
}

func UOMPrefix() string {
	return getenv("DIM_UOM_PREFIX", EnrichPrefix()+"dim_uom_mapping/")
}

func EnrichPrefix() string {
	return getenv("ENRICH_PREFIX", "Bill_Parser_Enrichment/exports/")
}

func OutputPrefix() string {
	return getenv("OUTPUT_PREFIX", "Bill_Parser_4_Enriched_Outputs/")
}

// MatcherKeys returns up to three semantic-matcher API keys, comma or newline
// separated.
func MatcherKeys() []string {
	raw := strings.TrimSpace(os.Getenv("MATCHER_KEYS"))
	if raw == "" {
		return nil
	}
	sep := "\n"
	if strings.Contains(raw, ",") {
		sep = ","
	}
	var keys []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			keys = append(keys, p)
		}
	}
	if len(keys) > 3 {
		keys = keys[:3]
	}
	return keys
}

func EnrichModel() string {
	return getenv("ENRICH_MODEL", "gemini-1.5-flash")
}

func EnrichWorkers() int {
	n, err := strconv.Atoi(getenv("ENRICH_WORKERS", "4"))
	if err != nil || n < 1 {
		return 4
	}
	return n
}

func Port() string {
	return getenv("PORT", "8080")
}
