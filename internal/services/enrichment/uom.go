package enrichment

import (
	"math"
	"strconv"
	"strings"

	"utility-bill-enrichment-backend/internal/catalog"
)

// parseAmount reads a consumption value the way the upstream parser emits it:
// optional thousands separators, surrounding whitespace.
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// convertUOM normalizes a consumption reading using the mapping table. A row
// scoped to the line's utility type wins over a universal row. Returns
// ok=false when no row matches or the table is empty, in which case callers
// keep the original amount and unit.
func convertUOM(amount float64, originalUOM, utilityType string, mappings []catalog.UOMMapping) (float64, string, bool) {
	if amount == 0 || len(mappings) == 0 {
		return 0, "", false
	}
	uom := strings.ToLower(strings.TrimSpace(originalUOM))
	util := strings.ToLower(strings.TrimSpace(utilityType))

	apply := func(m catalog.UOMMapping) (float64, string, bool) {
		target := m.TargetUOM
		if target == "" {
			target = originalUOM
		}
		return math.Round(amount*m.Factor*100) / 100, target, true
	}

	for _, m := range mappings {
		if strings.ToLower(strings.TrimSpace(m.OriginalUOM)) == uom &&
			strings.ToLower(strings.TrimSpace(m.UtilityType)) == util && util != "" {
			return apply(m)
		}
	}
	for _, m := range mappings {
		if strings.ToLower(strings.TrimSpace(m.OriginalUOM)) == uom &&
			strings.TrimSpace(m.UtilityType) == "" {
			return apply(m)
		}
	}
	return 0, "", false
}
