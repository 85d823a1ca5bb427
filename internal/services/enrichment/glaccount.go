package enrichment

import (
	"context"
	"strings"

	"utility-bill-enrichment-backend/internal/models"
	"utility-bill-enrichment-backend/internal/services/matching"
)

var (
	lateFeeKeywords    = []string{"late fee", "late charge", "late payment", "penalty", "penalties"}
	irrigationKeywords = []string{"irrig", "sprinkler", "landscap", "lawn"}
	fireKeywords       = []string{"fire", "standpipe"}
	telecomNameTokens  = []string{"telephone", "phone", "telecom", "internet"}
)

// aliasUtility applies the GL-only utility aliasing: stormwater bills post to
// the sewer accounts.
func aliasUtility(util string) string {
	if util == "stormwater" {
		return "sewer"
	}
	return util
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// findGLByNameContains returns the first GL candidate whose normalized name
// contains every word.
func findGLByNameContains(gls []matching.Candidate, words ...string) *matching.Candidate {
	for i := range gls {
		n := matching.Normalize(gls[i].Name)
		all := true
		for _, w := range words {
			if !strings.Contains(n, w) {
				all = false
				break
			}
		}
		if all {
			return &gls[i]
		}
	}
	return nil
}

func glNameFiltered(gls []matching.Candidate, keep func(normName string) bool) []matching.Candidate {
	var out []matching.Candidate
	for _, c := range gls {
		if keep(matching.Normalize(c.Name)) {
			out = append(out, c)
		}
	}
	return out
}

// pickByOccupancy prefers the vacant-named candidate for vacant lines and the
// non-vacant one otherwise, falling through rather than failing when the
// preferred flavor does not exist.
func pickByOccupancy(cands []matching.Candidate, occupancy string) *matching.Candidate {
	if len(cands) == 0 {
		return nil
	}
	if occupancy == "vacant" {
		if vacant := glNameFiltered(cands, func(n string) bool { return strings.Contains(n, "vacant") }); len(vacant) > 0 {
			return &vacant[0]
		}
	}
	if nonVacant := glNameFiltered(cands, func(n string) bool { return !strings.Contains(n, "vacant") }); len(nonVacant) > 0 {
		return &nonVacant[0]
	}
	return &cands[0]
}

// chooseGLDeterministic applies the ordered business rules: late-fee keyword
// override, then per-utility selection (irrigation and fire keywords first for
// water, then the occupancy-filtered default account). Returns nil when no
// rule fires, which sends the line to the generic matcher.
func chooseGLDeterministic(gls []matching.Candidate, utility, occupancy, description string) *matching.Candidate {
	util := aliasUtility(strings.ToLower(strings.TrimSpace(utility)))
	occ := strings.ToLower(strings.TrimSpace(occupancy))
	desc := matching.Normalize(description)

	if containsAny(desc, lateFeeKeywords) {
		if cand := findGLByNameContains(gls, "penalties"); cand != nil {
			return cand
		}
		if cand := findGLByNameContains(gls, "penalty"); cand != nil {
			return cand
		}
	}

	switch util {
	case "water":
		if containsAny(desc, irrigationKeywords) {
			if cand := findGLByNameContains(gls, "water", "irrigation"); cand != nil {
				return cand
			}
			if cand := findGLByNameContains(gls, "irrigation"); cand != nil {
				return cand
			}
		}
		if containsAny(desc, fireKeywords) {
			if cand := findGLByNameContains(gls, "water", "fire"); cand != nil {
				return cand
			}
			if cand := findGLByNameContains(gls, "fire"); cand != nil {
				return cand
			}
		}
		water := glNameFiltered(gls, func(n string) bool {
			return strings.Contains(n, "water") && !strings.Contains(n, "irrigation") && !strings.Contains(n, "fire")
		})
		if cand := pickByOccupancy(water, occ); cand != nil {
			return cand
		}
		return findGLByNameContains(gls, "water")
	case "sewer":
		sewer := glNameFiltered(gls, func(n string) bool { return strings.Contains(n, "sewer") })
		return pickByOccupancy(sewer, occ)
	case "gas":
		gas := glNameFiltered(gls, func(n string) bool { return strings.Contains(n, "gas") })
		return pickByOccupancy(gas, occ)
	case "internet", "phone":
		if cand := findGLByNameContains(gls, "telephone"); cand != nil {
			return cand
		}
		telecom := glNameFiltered(gls, func(n string) bool { return containsAny(n, telecomNameTokens) })
		if len(telecom) > 0 {
			return &telecom[0]
		}
	case "electric", "electricity":
		electric := glNameFiltered(gls, func(n string) bool { return strings.Contains(n, "electric") })
		return pickByOccupancy(electric, occ)
	}
	return nil
}

// narrowGLCandidates bounds the fallback matcher's candidate set by utility
// affinity and the vacant/non-vacant split, never narrowing to empty.
func narrowGLCandidates(gls []matching.Candidate, utility, occupancy string) []matching.Candidate {
	base := gls
	switch utility {
	case "water":
		if subset := glNameFiltered(base, func(n string) bool { return strings.Contains(n, "water") }); len(subset) > 0 {
			base = subset
		}
	case "sewer", "stormwater":
		if subset := glNameFiltered(base, func(n string) bool {
			return strings.Contains(n, "sewer") || strings.Contains(n, "storm")
		}); len(subset) > 0 {
			base = subset
		}
	case "gas":
		if subset := glNameFiltered(base, func(n string) bool { return strings.Contains(n, "gas") }); len(subset) > 0 {
			base = subset
		}
	case "internet", "phone":
		if subset := glNameFiltered(base, func(n string) bool { return containsAny(n, telecomNameTokens) }); len(subset) > 0 {
			base = subset
		}
	}
	wantVacant := occupancy == "vacant"
	split := glNameFiltered(base, func(n string) bool { return strings.Contains(n, "vacant") == wantVacant })
	if len(split) > 0 {
		return split
	}
	return base
}

func ruleResult(c *matching.Candidate) matching.Result {
	return matching.Result{ID: c.ID, Name: c.Name, Number: c.Number, Score: 1.0, Tier: matching.TierRule}
}

// resolveGLAccount runs the deterministic rule table, falls back to the
// generic matcher over a narrowed candidate set, and finishes with the guard
// pass that corrects impossible Vacant/House and gas/electric pairings.
func (s *Service) resolveGLAccount(ctx context.Context, rec *models.LineItem) matching.Result {
	gls := s.catalogs.GLAccounts()
	if len(gls) == 0 {
		return matching.Result{}
	}

	var best matching.Result
	if cand := chooseGLDeterministic(gls, rec.UtilityType, rec.HouseOrVacant, rec.LineItemDescription); cand != nil {
		best = ruleResult(cand)
	} else {
		util := strings.ToLower(strings.TrimSpace(rec.UtilityType))
		occ := strings.ToLower(strings.TrimSpace(rec.HouseOrVacant))
		target := strings.TrimSpace(strings.Join([]string{
			strings.TrimSpace(rec.HouseOrVacant),
			strings.TrimSpace(rec.UtilityType),
			strings.TrimSpace(rec.LineItemDescription),
		}, " | "))
		best = s.engine.Resolve(ctx, matching.Request{
			Target:     target,
			Candidates: narrowGLCandidates(gls, util, occ),
			Context: map[string]string{
				"house_or_vacant": rec.HouseOrVacant,
				"utility_type":    rec.UtilityType,
				"line_desc":       rec.LineItemDescription,
			},
			RotationKey: rec.InvoiceNumber,
		})
	}

	// Guard: never keep a vacant GL unless the line is actually Vacant.
	if !strings.EqualFold(strings.TrimSpace(rec.HouseOrVacant), OccupancyVacant) &&
		strings.Contains(matching.Normalize(best.Name), "vacant") {
		util := aliasUtility(strings.ToLower(strings.TrimSpace(rec.UtilityType)))
		if repl := chooseGLDeterministic(gls, util, strings.ToLower(OccupancyHouse), rec.LineItemDescription); repl != nil {
			best = ruleResult(repl)
		}
	}

	// Guard: a gas line matched to an electric-sounding account re-resolves
	// against the gas rules.
	utilNow := strings.ToLower(strings.TrimSpace(rec.UtilityType))
	nm := matching.Normalize(best.Name)
	if utilNow == "gas" && !strings.Contains(nm, "gas") &&
		(strings.Contains(nm, "electric") || strings.Contains(nm, "elec")) {
		occ := rec.HouseOrVacant
		if strings.TrimSpace(occ) == "" {
			occ = OccupancyHouse
		}
		if repl := chooseGLDeterministic(gls, "gas", strings.ToLower(occ), rec.LineItemDescription); repl != nil {
			best = ruleResult(repl)
		}
	}
	return best
}
