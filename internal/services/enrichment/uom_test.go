package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"utility-bill-enrichment-backend/internal/catalog"
)

func uomFixture() []catalog.UOMMapping {
	return []catalog.UOMMapping{
		{OriginalUOM: "CCF", UtilityType: "Water", Factor: 748.052, TargetUOM: "Gallons"},
		{OriginalUOM: "CCF", UtilityType: "", Factor: 748.0, TargetUOM: "Gallons"},
		{OriginalUOM: "Therms", UtilityType: "Gas", Factor: 1.0, TargetUOM: "Therms"},
	}
}

func TestParseAmount(t *testing.T) {
	v, ok := parseAmount("1,234.5")
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	_, ok = parseAmount("")
	assert.False(t, ok)
	_, ok = parseAmount("n/a")
	assert.False(t, ok)
}

func TestConvertUOMUtilitySpecificWins(t *testing.T) {
	got, target, ok := convertUOM(10, "CCF", "Water", uomFixture())
	assert.True(t, ok)
	assert.Equal(t, 7480.52, got)
	assert.Equal(t, "Gallons", target)
}

func TestConvertUOMUniversalFallback(t *testing.T) {
	// Sewer has no CCF row of its own, so the universal row applies.
	got, target, ok := convertUOM(10, "CCF", "Sewer", uomFixture())
	assert.True(t, ok)
	assert.Equal(t, 7480.0, got)
	assert.Equal(t, "Gallons", target)
}

func TestConvertUOMIdentityFactor(t *testing.T) {
	got, target, ok := convertUOM(42.5, "Therms", "Gas", uomFixture())
	assert.True(t, ok)
	assert.Equal(t, 42.5, got)
	assert.Equal(t, "Therms", target)
}

func TestConvertUOMNoMatch(t *testing.T) {
	_, _, ok := convertUOM(100, "kWh", "Electric", uomFixture())
	assert.False(t, ok)

	_, _, ok = convertUOM(100, "CCF", "Water", nil)
	assert.False(t, ok)

	_, _, ok = convertUOM(0, "CCF", "Water", uomFixture())
	assert.False(t, ok)
}

func TestConvertUOMCaseInsensitive(t *testing.T) {
	got, _, ok := convertUOM(2, "ccf", "water", uomFixture())
	assert.True(t, ok)
	assert.Equal(t, 1496.1, got)
}

func TestConvertUOMRoundsToCents(t *testing.T) {
	got, _, ok := convertUOM(1.2345, "CCF", "Water", uomFixture())
	assert.True(t, ok)
	assert.Equal(t, 923.47, got)
}
