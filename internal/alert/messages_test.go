package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutions(t *testing.T) {
	msg := Render("warning_ph", LangFR, map[string]string{
		"value":     "6.1",
		"unit":      "pH",
		"pond_name": "Bassin Nord",
	})
	assert.Equal(t, "Alerte pH: 6.1pH dans Bassin Nord", msg)

	msg = Render("critical_oxygen_low", LangAR, map[string]string{
		"value":     "1.8",
		"unit":      "mg/L",
		"pond_name": "حوض 3",
	})
	assert.Contains(t, msg, "1.8mg/L")
	assert.Contains(t, msg, "حوض 3")
}

func TestRenderUnknownLanguageFallsBack(t *testing.T) {
	msg := Render("warning_temperature", "de", map[string]string{
		"value":     "31",
		"unit":      "°C",
		"pond_name": "North Pond",
	})
	assert.Equal(t, "Temperature warning: 31°C in North Pond", msg)
}

func TestRenderUnknownKeyReturnsKey(t *testing.T) {
	assert.Equal(t, "no_such_key", Render("no_such_key", LangFR, nil))
}

func TestRenderLeavesUnusedPlaceholders(t *testing.T) {
	msg := Render("anomaly_detected", LangEN, map[string]string{
		"parameters": "temperature, ph",
	})
	assert.Contains(t, msg, "temperature, ph")
	assert.Contains(t, msg, "{score}")
}

func TestMessageKeySelection(t *testing.T) {
	assert.Equal(t, "critical_temp_high", messageKey("temperature", "critical", "above_max"))
	assert.Equal(t, "critical_temp_low", messageKey("temperature", "critical", "below_min"))
	assert.Equal(t, "critical_oxygen_low", messageKey("dissolved_oxygen", "critical", "below_min"))
	assert.Equal(t, "critical_ph_high", messageKey("ph", "critical", "above_max"))
	assert.Equal(t, "warning_ammonia", messageKey("ammonia", "warning", "above_max"))
	// Critical severity on a parameter without a critical template uses
	// the warning family.
	assert.Equal(t, "warning_turbidity", messageKey("turbidity", "critical", "above_max"))
}
