package enrichment

import (
	"regexp"
	"strings"

	"utility-bill-enrichment-backend/internal/models"
)

const (
	OccupancyHouse  = "House"
	OccupancyVacant = "Vacant"
)

// unitIndicatorRe flags addresses that point at an individual unit. Known to
// be imprecise for some building-number formats; kept as-is on purpose.
var unitIndicatorRe = regexp.MustCompile(`(?i)\b(?:APT|UNIT|#|STE|SUITE|APARTMENT|BLDG)\s*\w+`)

// vacantGLNames are the canonical vacant account names in the GL catalog.
var vacantGLNames = map[string]struct{}{
	"VACANT ELECTRIC":   {},
	"VACANT GAS":        {},
	"VACANT WATER":      {},
	"VACANT SEWER":      {},
	"VACANT ACTIVATION": {},
}

// houseBackfill maps a vacant GL name to its house-side equivalent.
var houseBackfill = map[string]string{
	"VACANT ELECTRIC":   "HOUSE ELECTRIC",
	"VACANT GAS":        "GAS",
	"VACANT WATER":      "WATER",
	"VACANT SEWER":      "SEWER",
	"VACANT ACTIVATION": "",
}

// classifyOccupancy decides House vs Vacant when the upstream parser left the
// flag blank, then reconciles the GL account name with the decision so the
// two never disagree going into GL number resolution. A pre-set flag is
// trusted as-is.
func classifyOccupancy(rec *models.LineItem) {
	occ := strings.TrimSpace(rec.HouseOrVacant)
	if occ != OccupancyHouse && occ != OccupancyVacant {
		occ = OccupancyHouse
		if unitIndicatorRe.MatchString(rec.ServiceAddress) {
			occ = OccupancyVacant
		}
		rec.HouseOrVacant = occ
	}
	reconcileGLName(rec, occ)
}

func reconcileGLName(rec *models.LineItem, occ string) {
	gln := strings.TrimSpace(rec.EnrichedGLAccountName)
	glnUpper := strings.ToUpper(gln)
	isVacantGL := strings.Contains(glnUpper, "VACANT")

	if occ == OccupancyVacant {
		if isVacantGL {
			return
		}
		vacTry := strings.TrimSpace("Vacant " + strings.TrimSpace(rec.UtilityType))
		if _, ok := vacantGLNames[strings.ToUpper(vacTry)]; ok {
			rec.EnrichedGLAccountName = vacTry
		} else if gln != "" && !strings.HasPrefix(glnUpper, "VACANT ") {
			rec.EnrichedGLAccountName = "Vacant " + gln
		}
		return
	}

	if isVacantGL {
		if mapped, ok := houseBackfill[glnUpper]; ok {
			rec.EnrichedGLAccountName = mapped
			return
		}
		stripped := strings.ReplaceAll(gln, "Vacant ", "")
		stripped = strings.ReplaceAll(stripped, "VACANT ", "")
		rec.EnrichedGLAccountName = strings.TrimSpace(stripped)
	}
}
