package enrichment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utility-bill-enrichment-backend/internal/catalog"
	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/services/matching"
)

type memObjects struct {
	data map[string][]byte
}

func (m *memObjects) List(ctx context.Context, prefix string) ([]catalog.ObjectInfo, error) {
	var infos []catalog.ObjectInfo
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, catalog.ObjectInfo{Key: key, Updated: time.Now()})
		}
	}
	return infos, nil
}

func (m *memObjects) Read(ctx context.Context, key string) ([]byte, string, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, "", fmt.Errorf("object %s not found", key)
	}
	return data, "", nil
}

func (m *memObjects) Write(ctx context.Context, key string, data []byte, contentType string) error {
	m.data[key] = data
	return nil
}

// failSemantic fails the test if the semantic tier is ever consulted.
type failSemantic struct{ t *testing.T }

func (f *failSemantic) Match(ctx context.Context, req matching.Request) (*matching.SemanticBest, error) {
	f.t.Errorf("semantic tier consulted for target %q", req.Target)
	return nil, nil
}

func fixtureObjects() *memObjects {
	return &memObjects{data: map[string][]byte{
		"v/export.json": []byte(`[
			{"VENDOR_ID":"v1","VENDOR_NAME":"Georgia Power Company"},
			{"VENDOR_ID":"v2","VENDOR_NAME":"Gas South LLC"},
			{"VENDOR_ID":"v3","VENDOR_NAME":"City of Atlanta Water"}
		]`),
		"p/export.json": []byte(`[
			{"property_id":"p1","property_name":"9436 North Street Apartments","GEO_STATE":"GA"},
			{"property_id":"p2","property_name":"Riverbend Apartments","GEO_STATE":"GA"},
			{"property_id":"p3","property_name":"Lakeside Commons","GEO_STATE":"TN"}
		]`),
		"g/export.json": []byte(`[
			{"GL_ACCOUNT_ID":"g1","NAME":"House Electric","FORMATTED_GL_ACCOUNT_NUMBER":"5706-0000"},
			{"GL_ACCOUNT_ID":"g2","NAME":"Vacant Electric","FORMATTED_GL_ACCOUNT_NUMBER":"5705-0000"},
			{"GL_ACCOUNT_ID":"g3","NAME":"Gas","FORMATTED_GL_ACCOUNT_NUMBER":"5710-0000"},
			{"GL_ACCOUNT_ID":"g4","NAME":"Vacant Gas","FORMATTED_GL_ACCOUNT_NUMBER":"5715-0000"},
			{"GL_ACCOUNT_ID":"g5","NAME":"Water","FORMATTED_GL_ACCOUNT_NUMBER":"5720-0000"},
			{"GL_ACCOUNT_ID":"g6","NAME":"Vacant Water","FORMATTED_GL_ACCOUNT_NUMBER":"5720-1000"},
			{"GL_ACCOUNT_ID":"g7","NAME":"Water Irrigation","FORMATTED_GL_ACCOUNT_NUMBER":"5730-0000"},
			{"GL_ACCOUNT_ID":"g8","NAME":"Sewer","FORMATTED_GL_ACCOUNT_NUMBER":"5721-0000"},
			{"GL_ACCOUNT_ID":"g9","NAME":"Vacant Sewer","FORMATTED_GL_ACCOUNT_NUMBER":"5721-1000"}
		]`),
		"u/export.json": []byte(`[
			{"original_uom":"CCF","utility_type":"Water","conversion_factor":748.052,"target_uom":"Gallons"}
		]`),
	}}
}

func newTestService(t *testing.T, semantic matching.SemanticMatcher) *Service {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	store := catalog.NewStore(fixtureObjects(), catalog.Prefixes{
		Vendor: "v/", Property: "p/", GLAcct: "g/", UOM: "u/",
	}, log)
	store.EnsureLoaded(context.Background())
	return &Service{
		catalogs:     store,
		engine:       matching.NewEngine(semantic, log),
		log:          log,
		workers:      1,
		outputPrefix: "out/",
	}
}

func TestEnrichRecordUnitAddress(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		VendorName:      "Georgia Power Company",
		ServiceAddress:  "9436 North St APT 159",
		UtilityType:     "Electric",
		BillPeriodStart: "04/01/2026",
		BillPeriodEnd:   "04/30/2026",
		InvoiceNumber:   "INV-2001",
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, OccupancyVacant, rec.HouseOrVacant)
	assert.Equal(t, "v1", rec.EnrichedVendorID)
	assert.Equal(t, "Vacant Electric", rec.EnrichedGLAccountName)
	assert.Equal(t, "5705-0000", rec.EnrichedGLAccountNumber)
	assert.Equal(t, "04/01/2026-04/30/2026 VE 9436N@159", rec.GLLineDesc)
}

func TestEnrichRecordStormwater(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		VendorName:      "City of Atlanta Water",
		ServiceAddress:  "9436 North St",
		UtilityType:     "Stormwater",
		HouseOrVacant:   OccupancyHouse,
		BillPeriodStart: "04/01/2026",
		BillPeriodEnd:   "04/30/2026",
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "Sewer", rec.EnrichedGLAccountName)
	assert.Equal(t, "5721-0000", rec.EnrichedGLAccountNumber)
	assert.Equal(t, "04/01/2026-04/30/2026 Stormwater", rec.GLLineDesc)
}

func TestEnrichRecordUOMConversion(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		VendorName:        "City of Atlanta Water",
		ServiceAddress:    "9436 North St",
		UtilityType:       "Water",
		HouseOrVacant:     OccupancyHouse,
		ConsumptionAmount: "10",
		UnitOfMeasure:     "CCF",
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, 7480.52, rec.EnrichedConsumption)
	assert.Equal(t, "Gallons", rec.EnrichedUOM)
}

func TestEnrichRecordUOMPassthrough(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		VendorName:        "Georgia Power Company",
		UtilityType:       "Electric",
		HouseOrVacant:     OccupancyHouse,
		ConsumptionAmount: "1,250",
		UnitOfMeasure:     "kWh",
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, 1250.0, rec.EnrichedConsumption)
	assert.Equal(t, "kWh", rec.EnrichedUOM)
}

func TestEnrichRecordVendorExactNormalized(t *testing.T) {
	// Punctuation and casing differences still count as an exact match, so the
	// semantic tier must not be consulted.
	svc := newTestService(t, &failSemantic{t})
	rec := &models.LineItem{
		VendorName:    "GEORGIA POWER COMPANY.",
		UtilityType:   "Electric",
		HouseOrVacant: OccupancyHouse,
	}

	audits := svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "v1", rec.EnrichedVendorID)
	assert.Equal(t, "Georgia Power Company", rec.EnrichedVendorName)
	require.NotEmpty(t, audits)
	assert.Equal(t, matching.TierExact, audits[0].Tier)
}

func TestEnrichRecordVendorFallsBackToBillFrom(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		BillFrom:      "Gas South LLC",
		UtilityType:   "Gas",
		HouseOrVacant: OccupancyHouse,
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "v2", rec.EnrichedVendorID)
}

func TestEnrichRecordPropertyAddressNarrowing(t *testing.T) {
	// A street number plus street name hit in a candidate property name is
	// resolved deterministically without the semantic tier.
	svc := newTestService(t, &failSemantic{t})
	rec := &models.LineItem{
		VendorName:          "Georgia Power Company",
		BillToNameFirstLine: "North Street Holdings LLC",
		ServiceAddress:      "9436 North St",
		ServiceState:        "GA",
		UtilityType:         "Electric",
		HouseOrVacant:       OccupancyHouse,
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "p1", rec.EnrichedPropertyID)
	assert.Equal(t, "9436 North Street Apartments", rec.EnrichedPropertyName)
}

func TestEnrichRecordPropertyStateFilter(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		BillToNameFirstLine: "Lakeside Commons",
		ServiceState:        "TN",
		UtilityType:         "Water",
		HouseOrVacant:       OccupancyHouse,
	}

	svc.EnrichRecord(context.Background(), rec)

	assert.Equal(t, "p3", rec.EnrichedPropertyID)
}

func TestEnrichRecordOccupancyGLAgreement(t *testing.T) {
	// Whatever the inputs, a non-Vacant line never keeps a vacant-named GL
	// account when a house-side alternative exists.
	svc := newTestService(t, nil)
	utilities := []string{"Electric", "Gas", "Water", "Sewer", "Stormwater"}
	occupancies := []string{OccupancyHouse, OccupancyVacant, ""}

	for _, util := range utilities {
		for _, occ := range occupancies {
			rec := &models.LineItem{
				VendorName:     "Georgia Power Company",
				ServiceAddress: "9436 North St",
				UtilityType:    util,
				HouseOrVacant:  occ,
			}
			svc.EnrichRecord(context.Background(), rec)

			isVacantLine := rec.HouseOrVacant == OccupancyVacant
			isVacantGL := strings.Contains(strings.ToLower(rec.EnrichedGLAccountName), "vacant")
			assert.Equal(t, isVacantLine, isVacantGL, "util=%q occ=%q gl=%q", util, occ, rec.EnrichedGLAccountName)
		}
	}
}

func TestEnrichRecordAuditTrail(t *testing.T) {
	svc := newTestService(t, nil)
	rec := &models.LineItem{
		VendorName:          "Georgia Power Company",
		BillToNameFirstLine: "Riverbend Apartments",
		ServiceAddress:      "9436 North St",
		ServiceState:        "GA",
		UtilityType:         "Electric",
		HouseOrVacant:       OccupancyHouse,
	}

	audits := svc.EnrichRecord(context.Background(), rec)

	entities := map[string]bool{}
	for _, a := range audits {
		entities[a.Entity] = true
		assert.NotEmpty(t, a.Tier)
		assert.NotEmpty(t, a.MatchedName)
	}
	assert.True(t, entities["vendor"])
	assert.True(t, entities["property"])
	assert.True(t, entities["gl_account"])
}

func TestEnrichRecordsInPlace(t *testing.T) {
	svc := newTestService(t, nil)
	records := []*models.LineItem{
		{VendorName: "Georgia Power Company", UtilityType: "Electric", HouseOrVacant: OccupancyHouse},
		nil,
		{VendorName: "Gas South LLC", UtilityType: "Gas", HouseOrVacant: OccupancyVacant},
	}

	got := svc.EnrichRecords(context.Background(), records)

	require.Len(t, got, 3)
	assert.Equal(t, "v1", got[0].EnrichedVendorID)
	assert.Equal(t, "Vacant Gas", got[2].EnrichedGLAccountName)
}

func TestEnrichRecordEmptyCatalogs(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	store := catalog.NewStore(&memObjects{data: map[string][]byte{}}, catalog.Prefixes{
		Vendor: "v/", Property: "p/", GLAcct: "g/", UOM: "u/",
	}, log)
	store.EnsureLoaded(context.Background())
	svc := &Service{
		catalogs: store,
		engine:   matching.NewEngine(nil, log),
		log:      log,
		workers:  1,
	}

	rec := &models.LineItem{
		VendorName:        "Georgia Power Company",
		UtilityType:       "Electric",
		ConsumptionAmount: "100",
		UnitOfMeasure:     "kWh",
	}
	svc.EnrichRecord(context.Background(), rec)

	assert.Empty(t, rec.EnrichedVendorID)
	assert.Empty(t, rec.EnrichedGLAccountNumber)
	assert.Equal(t, 100.0, rec.EnrichedConsumption)
	assert.Equal(t, "kWh", rec.EnrichedUOM)
	assert.NotEmpty(t, rec.GLDescNew)
}
