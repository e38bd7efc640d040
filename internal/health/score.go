package health

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"aquawatch/internal/config"
	"aquawatch/internal/models"
)

// ErrInsufficientData marks an assessment window with too few readings.
// Callers treat it as a defined empty result, not a failure.
var ErrInsufficientData = errors.New("insufficient data for health assessment")

// Kind selects the scoring shape for a parameter.
type Kind int

const (
	// OptimalRange scores against a target band with penalties on both sides.
	OptimalRange Kind = iota
	// LowerIsBetter scores toxicity-style parameters with upper bounds only.
	LowerIsBetter
)

// Criteria are the resolved scoring bands for one parameter.
type Criteria struct {
	Kind         Kind
	Unit         string
	OptimalMin   float64
	OptimalMax   float64
	WarningLow   float64
	WarningHigh  float64
	CriticalLow  float64
	CriticalHigh float64
}

// criteriaFromBand resolves a configured band into scoring criteria. A band
// without optimal_min is lower-is-better.
func criteriaFromBand(band config.ThresholdBand) Criteria {
	c := Criteria{
		Unit:         band.Unit,
		OptimalMax:   band.OptimalMax,
		WarningHigh:  band.WarningHigh,
		CriticalHigh: band.CriticalHigh,
	}
	if band.OptimalMin == nil {
		c.Kind = LowerIsBetter
		return c
	}
	c.Kind = OptimalRange
	c.OptimalMin = *band.OptimalMin
	if band.WarningLow != nil {
		c.WarningLow = *band.WarningLow
	}
	if band.CriticalLow != nil {
		c.CriticalLow = *band.CriticalLow
	}
	return c
}

// scoreValue maps one observation to [0,100].
func (c Criteria) scoreValue(v float64) float64 {
	var score float64
	switch c.Kind {
	case LowerIsBetter:
		switch {
		case v <= c.OptimalMax:
			score = 100
		case v <= c.WarningHigh:
			score = 60 + 40*(c.WarningHigh-v)/(c.WarningHigh-c.OptimalMax)
		case v <= c.CriticalHigh:
			score = 60 * (c.CriticalHigh - v) / (c.CriticalHigh - c.WarningHigh)
		default:
			score = 0
		}
	case OptimalRange:
		switch {
		case v >= c.OptimalMin && v <= c.OptimalMax:
			score = 100
		case v >= c.WarningLow && v <= c.WarningHigh:
			if v < c.OptimalMin {
				score = 60 + 40*(v-c.WarningLow)/(c.OptimalMin-c.WarningLow)
			} else {
				score = 60 + 40*(c.WarningHigh-v)/(c.WarningHigh-c.OptimalMax)
			}
		case v >= c.CriticalLow && v <= c.CriticalHigh:
			if v < c.WarningLow {
				score = 60 * (v - c.CriticalLow) / (c.WarningLow - c.CriticalLow)
			} else {
				score = 60 * (c.CriticalHigh - v) / (c.CriticalHigh - c.WarningHigh)
			}
		default:
			score = 0
		}
	}
	return math.Max(0, math.Min(100, score))
}

// Assessment is the derived health report for a pond over a window. It is
// regenerated fresh per request and never mutated.
type Assessment struct {
	PondID uint32 `json:"pond_id"`

	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`
	Status       string  `json:"status"`
	RiskLevel    string  `json:"risk_level"`

	ParameterScores map[string]float64 `json:"parameter_scores"`
	Warnings        []string           `json:"warnings"`
	CriticalIssues  []string           `json:"critical_issues"`
	Recommendations []string           `json:"recommendations"`
	ActionPriority  string             `json:"action_priority"`

	ParametersAssessed int     `json:"parameters_assessed"`
	DataCompleteness   float64 `json:"data_completeness"`
	Confidence         float64 `json:"assessment_confidence"`

	PeriodStart  time.Time `json:"assessment_period_start"`
	PeriodEnd    time.Time `json:"assessment_period_end"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// ReadingSource fetches the historical readings for a pond.
type ReadingSource interface {
	ReadingsSince(ctx context.Context, pondID uint32, since time.Time) ([]models.SensorReading, error)
}

// Engine computes health assessments from stored history. It is read-only
// and safe to run concurrently with ingestion; results reflect history as
// of call time.
type Engine struct {
	cfg    config.HealthConfig
	source ReadingSource
	now    func() time.Time
}

func NewEngine(cfg config.HealthConfig, source ReadingSource) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		now:    time.Now,
	}
}

// Score produces an assessment for the pond over the lookback window.
// lookbackDays <= 0 uses the configured default.
func (e *Engine) Score(ctx context.Context, pondID uint32, lookbackDays int) (*Assessment, error) {
	if lookbackDays <= 0 {
		lookbackDays = e.cfg.LookbackDays
	}
	now := e.now()
	start := now.AddDate(0, 0, -lookbackDays)

	readings, err := e.source.ReadingsSince(ctx, pondID, start)
	if err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}
	if len(readings) < e.cfg.MinReadings {
		return nil, ErrInsufficientData
	}

	a := &Assessment{
		PondID:          pondID,
		ParameterScores: make(map[string]float64),
		PeriodStart:     start,
		PeriodEnd:       now,
		CalculatedAt:    now,
	}

	var weightedSum, totalWeight float64

	for _, param := range models.HealthParameters {
		values := collect(readings, param)
		if len(values) < e.cfg.MinValuesPerParam {
			continue
		}
		band, ok := e.cfg.Thresholds[param.String()]
		if !ok {
			// No scoring bands configured; skip rather than fail.
			continue
		}
		a.ParametersAssessed++

		criteria := criteriaFromBand(band)
		score := scoreParameter(values, criteria)
		a.ParameterScores[param.String()+"_score"] = score

		weight, ok := e.cfg.Weights[param.String()]
		if !ok {
			weight = 1.0
		}
		weightedSum += score * weight
		totalWeight += weight

		analyze(param.String(), mean(values), criteria, a)
	}

	if totalWeight == 0 {
		return nil, ErrInsufficientData
	}

	a.OverallScore = round1(weightedSum / totalWeight)
	a.Grade, a.Status = gradeFor(a.OverallScore)
	a.RiskLevel = riskFor(a.OverallScore, len(a.Warnings), len(a.CriticalIssues))
	a.ActionPriority = priorityFor(a.OverallScore, len(a.CriticalIssues))
	a.DataCompleteness = round1(float64(a.ParametersAssessed) / float64(len(models.HealthParameters)) * 100)
	a.Confidence = confidence(len(readings), a.DataCompleteness)

	return a, nil
}

func collect(readings []models.SensorReading, param models.Parameter) []float64 {
	var values []float64
	for i := range readings {
		if v := readings[i].Value(param); v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			values = append(values, *v)
		}
	}
	return values
}

// scoreParameter averages per-value scores and applies the stability
// penalty: volatile parameters score lower even when their mean is fine.
func scoreParameter(values []float64, criteria Criteria) float64 {
	var sum float64
	for _, v := range values {
		sum += criteria.scoreValue(v)
	}
	base := sum / float64(len(values))

	m := mean(values)
	if m > 0 {
		penalty := math.Min(10, stddev(values, m)/m*10)
		base -= penalty
	}
	return round1(math.Max(0, base))
}

// analyze classifies the window mean against the bands and appends
// warnings, critical issues and recommendations.
func analyze(param string, meanVal float64, c Criteria, a *Assessment) {
	hasLow := c.Kind == OptimalRange

	switch {
	case hasLow && meanVal < c.CriticalLow:
		a.CriticalIssues = append(a.CriticalIssues, fmt.Sprintf("Critical %s: %.2f %s (< %g)", param, meanVal, c.Unit, c.CriticalLow))
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("URGENT: Immediately address low %s", param))
	case meanVal > c.CriticalHigh:
		a.CriticalIssues = append(a.CriticalIssues, fmt.Sprintf("Critical %s: %.2f %s (> %g)", param, meanVal, c.Unit, c.CriticalHigh))
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("URGENT: Immediately address high %s", param))
	case hasLow && meanVal < c.WarningLow:
		a.Warnings = append(a.Warnings, fmt.Sprintf("Low %s: %.2f %s", param, meanVal, c.Unit))
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("Monitor and consider increasing %s", param))
	case meanVal > c.WarningHigh:
		a.Warnings = append(a.Warnings, fmt.Sprintf("High %s: %.2f %s", param, meanVal, c.Unit))
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("Monitor and consider reducing %s", param))
	}

	recommend(param, meanVal, a)
}

// recommend adds husbandry advice specific to the parameter.
func recommend(param string, value float64, a *Assessment) {
	switch param {
	case "temperature":
		if value < 20 {
			a.Recommendations = append(a.Recommendations, "Consider adding heating system or insulation")
		} else if value > 28 {
			a.Recommendations = append(a.Recommendations, "Improve aeration and consider cooling methods")
		}
	case "ph":
		if value < 6.5 {
			a.Recommendations = append(a.Recommendations, "Add lime or baking soda to increase pH")
		} else if value > 8.5 {
			a.Recommendations = append(a.Recommendations, "Add organic matter or use pH reducing agents")
		}
	case "dissolved_oxygen":
		if value < 5 {
			a.Recommendations = append(a.Recommendations,
				"Increase aeration immediately",
				"Check for overstocking or overfeeding")
		}
	case "ammonia":
		if value > 0.5 {
			a.Recommendations = append(a.Recommendations,
				"Reduce feeding and increase water changes",
				"Check biofilter efficiency")
		}
	case "turbidity":
		if value > 50 {
			a.Recommendations = append(a.Recommendations,
				"Improve filtration system",
				"Reduce organic load in pond")
		}
	}
}

func gradeFor(score float64) (grade, status string) {
	switch {
	case score >= 90:
		return "A+", "Excellent"
	case score >= 85:
		return "A", "Very Good"
	case score >= 80:
		return "B+", "Good"
	case score >= 75:
		return "B", "Satisfactory"
	case score >= 70:
		return "C+", "Fair"
	case score >= 60:
		return "C", "Poor"
	case score >= 50:
		return "D", "Very Poor"
	default:
		return "F", "Critical"
	}
}

func riskFor(score float64, warnings, critical int) string {
	switch {
	case critical > 0 || score < 50:
		return "High"
	case warnings > 2 || score < 70:
		return "Medium"
	default:
		return "Low"
	}
}

func priorityFor(score float64, critical int) string {
	switch {
	case critical > 0 || score < 50:
		return "Urgent"
	case score < 70:
		return "Improve"
	case score < 85:
		return "Monitor"
	default:
		return "Maintain"
	}
}

// confidence blends data volume, parameter completeness and time coverage.
func confidence(samples int, completeness float64) float64 {
	volume := math.Min(float64(samples)/100, 1.0)
	timeCov := math.Min(float64(samples)/50, 1.0)
	c := volume*0.4 + completeness/100*0.4 + timeCov*0.2
	return math.Round(c*100) / 100
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
