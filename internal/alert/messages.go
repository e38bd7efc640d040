package alert

import "strings"

// Language codes supported by the message catalog.
const (
	LangFR = "fr"
	LangAR = "ar"
	LangEN = "en"
)

// FallbackLanguage is used when a template is missing for the requested
// language.
const FallbackLanguage = LangEN

// templates maps language -> message key -> template. Placeholders use
// {name} form: {value}, {unit}, {pond_name}, {threshold}, {parameters},
// {score}, {error_message}.
var templates = map[string]map[string]string{
	LangFR: {
		"critical_temp_high":       "Température critique élevée: {value}{unit} dans {pond_name}",
		"critical_temp_low":        "Température critique basse: {value}{unit} dans {pond_name}",
		"critical_oxygen_low":      "Oxygène dissous critique: {value}{unit} dans {pond_name}",
		"critical_ph_high":         "pH critique élevé: {value}{unit} dans {pond_name}",
		"critical_ph_low":          "pH critique bas: {value}{unit} dans {pond_name}",
		"warning_temperature":      "Alerte température: {value}{unit} dans {pond_name}",
		"warning_ph":               "Alerte pH: {value}{unit} dans {pond_name}",
		"warning_dissolved_oxygen": "Alerte oxygène: {value}{unit} dans {pond_name}",
		"warning_turbidity":        "Alerte turbidité: {value}{unit} dans {pond_name}",
		"warning_ammonia":          "Alerte ammoniac: {value}{unit} dans {pond_name}",
		"warning_nitrate":          "Alerte nitrate: {value}{unit} dans {pond_name}",
		"anomaly_detected":         "Anomalie détectée - Paramètres: {parameters}. Score: {score}",
		"sensor_offline":           "Aucune donnée reçue de {pond_name} depuis plus d'1 heure",
		"system_error":             "Erreur système dans {pond_name}: {error_message}",
	},
	LangAR: {
		"critical_temp_high":       "درجة حرارة حرجة عالية: {value}{unit} في {pond_name}",
		"critical_temp_low":        "درجة حرارة حرجة منخفضة: {value}{unit} في {pond_name}",
		"critical_oxygen_low":      "أكسجين منحل حرج: {value}{unit} في {pond_name}",
		"critical_ph_high":         "رقم هيدروجيني حرج عالي: {value}{unit} في {pond_name}",
		"critical_ph_low":          "رقم هيدروجيني حرج منخفض: {value}{unit} في {pond_name}",
		"warning_temperature":      "تحذير درجة الحرارة: {value}{unit} في {pond_name}",
		"warning_ph":               "تحذير الرقم الهيدروجيني: {value}{unit} في {pond_name}",
		"warning_dissolved_oxygen": "تحذير الأكسجين: {value}{unit} في {pond_name}",
		"warning_turbidity":        "تحذير العكارة: {value}{unit} في {pond_name}",
		"warning_ammonia":          "تحذير الأمونيا: {value}{unit} في {pond_name}",
		"warning_nitrate":          "تحذير النترات: {value}{unit} في {pond_name}",
		"anomaly_detected":         "تم اكتشاف شذوذ - المعايير: {parameters}. النتيجة: {score}",
		"sensor_offline":           "لم يتم استلام بيانات من {pond_name} لأكثر من ساعة",
		"system_error":             "خطأ في النظام في {pond_name}: {error_message}",
	},
	LangEN: {
		"critical_temp_high":       "Critical high temperature: {value}{unit} in {pond_name}",
		"critical_temp_low":        "Critical low temperature: {value}{unit} in {pond_name}",
		"critical_oxygen_low":      "Critical low dissolved oxygen: {value}{unit} in {pond_name}",
		"critical_ph_high":         "Critical high pH: {value}{unit} in {pond_name}",
		"critical_ph_low":          "Critical low pH: {value}{unit} in {pond_name}",
		"warning_temperature":      "Temperature warning: {value}{unit} in {pond_name}",
		"warning_ph":               "pH warning: {value}{unit} in {pond_name}",
		"warning_dissolved_oxygen": "Oxygen warning: {value}{unit} in {pond_name}",
		"warning_turbidity":        "Turbidity warning: {value}{unit} in {pond_name}",
		"warning_ammonia":          "Ammonia warning: {value}{unit} in {pond_name}",
		"warning_nitrate":          "Nitrate warning: {value}{unit} in {pond_name}",
		"anomaly_detected":         "Anomaly detected - Parameters: {parameters}. Score: {score}",
		"sensor_offline":           "No sensor data received from {pond_name} for over 1 hour",
		"system_error":             "System error in {pond_name}: {error_message}",
	},
}

// Render fills the template for (key, lang) with the given substitutions.
// Missing language or key falls back to English; a key unknown in every
// language renders the substitutions' bare fallback, never panics.
func Render(key, lang string, subs map[string]string) string {
	tbl, ok := templates[lang]
	if !ok {
		tbl = templates[FallbackLanguage]
	}
	tmpl, ok := tbl[key]
	if !ok {
		tmpl, ok = templates[FallbackLanguage][key]
		if !ok {
			return key
		}
	}

	out := tmpl
	for name, val := range subs {
		out = strings.ReplaceAll(out, "{"+name+"}", val)
	}
	return out
}

// messageKey selects the catalog key for a threshold alert.
func messageKey(parameter string, severity string, direction string) string {
	side := "high"
	if direction == "below_min" {
		side = "low"
	}

	if severity == "critical" {
		switch parameter {
		case "temperature":
			return "critical_temp_" + side
		case "dissolved_oxygen":
			return "critical_oxygen_low"
		case "ph":
			return "critical_ph_" + side
		}
	}
	return "warning_" + parameter
}
