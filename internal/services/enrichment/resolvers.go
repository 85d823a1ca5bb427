package enrichment

import (
	"context"
	"strings"

	"utility-bill-enrichment-backend/internal/catalog"
	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/services/matching"
)

// resolveVendor matches the bill's vendor against the vendor catalog. Exact
// normalized-index hits and case-insensitive exact matches short-circuit the
// semantic tier entirely.
func (s *Service) resolveVendor(ctx context.Context, rec *models.LineItem) matching.Result {
	vendor := strings.TrimSpace(rec.VendorName)
	if vendor == "" {
		vendor = strings.TrimSpace(rec.BillFrom)
	}
	vendors := s.catalogs.Vendors()
	if vendor == "" || len(vendors) == 0 {
		return matching.Result{}
	}

	if cand, ok := s.catalogs.VendorByNormalizedName(vendor); ok {
		return matching.Result{ID: cand.ID, Name: cand.Name, Score: 1.0, Tier: matching.TierExact}
	}
	for _, c := range vendors {
		if strings.EqualFold(strings.TrimSpace(c.Name), vendor) {
			return matching.Result{ID: c.ID, Name: c.Name, Score: 1.0, Tier: matching.TierExact}
		}
	}

	return s.engine.Resolve(ctx, matching.Request{
		Target:      vendor,
		Candidates:  vendors,
		Context:     map[string]string{"utility_type": strings.TrimSpace(rec.UtilityType)},
		RotationKey: rec.InvoiceNumber,
	})
}

func propertyCandidates(props []catalog.PropertyCandidate) []matching.Candidate {
	out := make([]matching.Candidate, 0, len(props))
	for _, p := range props {
		out = append(out, matching.Candidate{ID: p.ID, Name: p.Name})
	}
	return out
}

// resolveProperty matches the billing name against the property catalog.
// Candidates are narrowed by service state when that narrows to a non-empty
// set, and a number+street hit in a candidate name is treated as a stronger
// signal than fuzzy matching: the narrowed set is resolved deterministically
// and the semantic tier is skipped.
func (s *Service) resolveProperty(ctx context.Context, rec *models.LineItem) matching.Result {
	prop := strings.TrimSpace(rec.BillToNameFirstLine)
	props := s.catalogs.Properties()
	if prop == "" || len(props) == 0 {
		return matching.Result{}
	}

	candList := props
	if st := strings.ToUpper(strings.TrimSpace(rec.ServiceState)); st != "" {
		var subset []catalog.PropertyCandidate
		for _, p := range candList {
			if strings.ToUpper(strings.TrimSpace(p.State)) == st {
				subset = append(subset, p)
			}
		}
		if len(subset) > 0 {
			candList = subset
		}
	}
	cands := propertyCandidates(candList)

	hints := map[string]string{
		"city":         strings.TrimSpace(rec.ServiceCity),
		"state":        strings.TrimSpace(rec.ServiceState),
		"zip":          strings.TrimSpace(rec.ServiceZipcode),
		"utility_type": strings.TrimSpace(rec.UtilityType),
	}

	if num, street := addrNumAndStreet(rec.ServiceAddress); num != "" && street != "" {
		var narrowed []matching.Candidate
		for _, c := range cands {
			nm := matching.Normalize(c.Name)
			if strings.Contains(nm, num) && strings.Contains(nm, street) {
				narrowed = append(narrowed, c)
			}
		}
		if len(narrowed) > 0 {
			return matching.DeterministicBest(num+" "+street, narrowed)
		}
		hints["addr_hint"] = num + " " + street
	}

	return s.engine.Resolve(ctx, matching.Request{
		Target:      prop,
		Candidates:  cands,
		Context:     hints,
		RotationKey: rec.InvoiceNumber,
	})
}
