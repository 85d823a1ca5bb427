package enrichment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"utility-bill-enrichment-backend/internal/models"
)

var (
	streetRe   = regexp.MustCompile(`(\d+)\s+([A-Za-z]+)`)
	unitHashRe = regexp.MustCompile(`(?i)#\s*([A-Za-z0-9-]+)`)
	unitWordRe = regexp.MustCompile(`(?i)\b(APT|APARTMENT|UNIT|STE|SUITE)\s*([A-Za-z0-9-]+)`)
	buildingRe = regexp.MustCompile(`(?i)\bBLD?G?\s*([A-Za-z0-9-]+)|\bBL\s*([A-Za-z0-9-]+)`)
	digitsRe   = regexp.MustCompile(`\D`)
)

// Non-padded numeric layouts accept both "4/1/2026" and "04/01/2026"; the
// zero-padded forms would reject single-digit months and days.
var periodLayouts = []string{
	"1/2/2006", "1/2/06", "2006-1-2", "1-2-2006", "2006/1/2",
	"Jan 2, 2006", "January 2, 2006",
}

// normalizeDate coerces the period dates the parser emits in assorted formats
// into MM/DD/YYYY, falling back to the raw value when nothing parses.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("01/02/2006")
		}
	}
	if ds := digitsRe.ReplaceAllString(s, ""); len(ds) == 8 {
		if t, err := time.Parse("20060102", ds); err == nil {
			return t.Format("01/02/2006")
		}
		if t, err := time.Parse("01022006", ds); err == nil {
			return t.Format("01/02/2006")
		}
	}
	return s
}

func formatPeriod(start, end string) string {
	s := normalizeDate(start)
	e := normalizeDate(end)
	if s == "" && e == "" {
		return ""
	}
	return strings.Trim(s+"-"+e, "-")
}

// streetNumAndLetter pulls the street number and first street-name letter,
// e.g. "9436 North St" -> ("9436", "N").
func streetNumAndLetter(serviceAddr string) (string, string) {
	m := streetRe.FindStringSubmatch(serviceAddr)
	if m == nil {
		return "", ""
	}
	return m[1], strings.ToUpper(m[2][:1])
}

// addrNumAndStreet pulls the street number and the primary street-name token,
// e.g. "333 FREMONT ST" -> ("333", "fremont").
func addrNumAndStreet(serviceAddr string) (string, string) {
	m := streetRe.FindStringSubmatch(serviceAddr)
	if m == nil {
		return "", ""
	}
	return m[1], strings.ToLower(m[2])
}

func findUnit(serviceAddr string) string {
	if m := unitHashRe.FindStringSubmatch(serviceAddr); m != nil {
		return m[1]
	}
	if m := unitWordRe.FindStringSubmatch(serviceAddr); m != nil {
		return m[2]
	}
	return ""
}

func findBuilding(serviceAddr string) string {
	m := buildingRe.FindStringSubmatch(serviceAddr)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(m[2])
}

// buildGLDesc renders the ledger description for the resolved GL account
// number. The template set is closed: one case per canonical account.
func buildGLDesc(glNumber string, rec *models.LineItem) string {
	period := formatPeriod(rec.BillPeriodStart, rec.BillPeriodEnd)
	svc := strings.TrimSpace(rec.ServiceAddress)
	usage := strings.TrimSpace(rec.ConsumptionAmount.String())
	num, letter := streetNumAndLetter(svc)
	unit := findUnit(svc)
	bldg := findBuilding(svc)

	tail := num + letter
	at := ""
	if unit != "" {
		at = "@" + unit
	}
	blExtra := ""
	if bldg != "" {
		blExtra = " BL " + bldg
	}
	withUsage := strings.TrimSpace(period + " " + usage)

	switch strings.TrimSpace(glNumber) {
	case "5706-0000": // house electric
		return strings.TrimSpace(period + " Hse Elec " + tail + blExtra)
	case "5710-0000": // house gas
		return strings.TrimSpace(period + " Hse Gas " + tail + blExtra)
	case "5705-0000": // vacant electric
		return strings.TrimSpace(period + " VE " + tail + at)
	case "5715-0000": // vacant gas
		return strings.TrimSpace(period + " VG " + tail + at)
	case "5708-1000": // bundled resident electric, same shape as vacant electric
		return strings.TrimSpace(period + " VE " + tail + at)
	case "5720-0000": // house water
		if usage != "" {
			return withUsage
		}
		return period
	case "5730-0000": // irrigation
		if usage != "" {
			return withUsage
		}
		return period
	case "5727-0000": // fireline
		return period
	case "5721-0000": // house sewer, stormwater posts here too
		if strings.EqualFold(strings.TrimSpace(rec.UtilityType), "stormwater") {
			return period + " Stormwater"
		}
		return period
	case "5720-1000": // vacant water
		return strings.TrimSpace(period + " VW " + tail + at)
	case "5721-1000": // vacant sewer
		return strings.TrimSpace(period + " VS " + tail + at)
	case "5731-0000": // city fee
		return period
	case "5550-0000": // trash removal
		return strings.TrimSpace(period + " Trash Service")
	case "5555-2000": // bulk trash pickup
		return strings.TrimSpace(period + " Bulk Trash Service")
	}
	return period
}

// toGallons converts a reading to gallons with the fixed factors used by the
// pipe-delimited description. Unknown units return ok=false.
func toGallons(amountRaw, uomRaw string) (float64, bool) {
	amt, ok := parseAmount(amountRaw)
	if !ok {
		return 0, false
	}
	u := strings.ToLower(strings.TrimSpace(uomRaw))
	switch {
	case u == "":
		return amt, true // assume already gallons
	case strings.Contains(u, "ccf"):
		return amt * 748.0, true
	case u == "cf" || u == "ft3" || strings.Contains(u, "cubic foot") || strings.Contains(u, "cubic feet"):
		return amt * 7.48052, true
	case u == "kgal" || u == "kgals" || strings.Contains(u, "thousand") || strings.Contains(u, "1,000"):
		return amt * 1000.0, true
	case u == "mgal" || u == "mgals" || strings.Contains(u, "million"):
		return amt * 1000000.0, true
	case u == "gallon" || u == "gallons" || u == "gal":
		return amt, true
	}
	return 0, false
}

// groupThousands renders 1234567 as "1,234,567".
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// buildPipeDesc renders the secondary pipe-delimited description:
// invoice | service address | account | line account | meter | description |
// meter size | <gallons> Gallons | period.
func buildPipeDesc(rec *models.LineItem) string {
	gallonsPart := "Gallons"
	if g, ok := toGallons(rec.ConsumptionAmount.String(), rec.UnitOfMeasure); ok {
		gallonsPart = fmt.Sprintf("%s Gallons", groupThousands(g))
	}
	return strings.Join([]string{
		strings.TrimSpace(rec.InvoiceNumber),
		strings.TrimSpace(rec.ServiceAddress),
		strings.TrimSpace(rec.AccountNumber),
		strings.TrimSpace(rec.LineItemAccountNo),
		strings.TrimSpace(rec.MeterNumber),
		strings.TrimSpace(rec.LineItemDescription),
		strings.TrimSpace(rec.MeterSize),
		gallonsPart,
		formatPeriod(rec.BillPeriodStart, rec.BillPeriodEnd),
	}, " | ")
}
