package health

import (
	"context"
	"testing"
	"time"

	"aquawatch/internal/config"
	"aquawatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadings struct {
	readings []models.SensorReading
}

func (f *fakeReadings) ReadingsSince(_ context.Context, _ uint32, _ time.Time) ([]models.SensorReading, error) {
	return f.readings, nil
}

func f64(v float64) *float64 { return &v }

func healthConfig() config.HealthConfig {
	return config.Load().Health
}

// optimalReading has every scored parameter inside its optimal band.
func optimalReading() models.SensorReading {
	return models.SensorReading{
		Temperature:     f64(24.0),
		PH:              f64(7.5),
		DissolvedOxygen: f64(8.0),
		Turbidity:       f64(5.0),
		Ammonia:         f64(0.1),
		Nitrate:         f64(10.0),
	}
}

func TestScoreInsufficientData(t *testing.T) {
	source := &fakeReadings{}
	for i := 0; i < 5; i++ {
		source.readings = append(source.readings, optimalReading())
	}
	engine := NewEngine(healthConfig(), source)

	_, err := engine.Score(context.Background(), 1, 7)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestScoreAllOptimal(t *testing.T) {
	source := &fakeReadings{}
	for i := 0; i < 12; i++ {
		source.readings = append(source.readings, optimalReading())
	}
	engine := NewEngine(healthConfig(), source)

	a, err := engine.Score(context.Background(), 1, 7)
	require.NoError(t, err)

	assert.Equal(t, 100.0, a.OverallScore)
	assert.Equal(t, "A+", a.Grade)
	assert.Equal(t, "Excellent", a.Status)
	assert.Equal(t, "Low", a.RiskLevel)
	assert.Equal(t, "Maintain", a.ActionPriority)
	assert.Equal(t, 6, a.ParametersAssessed)
	assert.Equal(t, 100.0, a.DataCompleteness)
	assert.Empty(t, a.Warnings)
	assert.Empty(t, a.CriticalIssues)
}

func TestScoreBoundaryValuesAreOptimal(t *testing.T) {
	cfg := healthConfig()
	temp := criteriaFromBand(cfg.Thresholds["temperature"])

	// Exactly at the optimal band edges.
	assert.Equal(t, 100.0, temp.scoreValue(20.0))
	assert.Equal(t, 100.0, temp.scoreValue(28.0))

	turb := criteriaFromBand(cfg.Thresholds["turbidity"])
	assert.Equal(t, LowerIsBetter, turb.Kind)
	assert.Equal(t, 100.0, turb.scoreValue(10.0))
}

func TestScoreValueBands(t *testing.T) {
	cfg := healthConfig()
	temp := criteriaFromBand(cfg.Thresholds["temperature"])

	// Warning band interpolates in [60,100].
	warn := temp.scoreValue(29.0)
	assert.Greater(t, warn, 60.0)
	assert.Less(t, warn, 100.0)

	// Critical band interpolates in [0,60].
	crit := temp.scoreValue(33.0)
	assert.Greater(t, crit, 0.0)
	assert.Less(t, crit, 60.0)

	// Beyond critical scores zero.
	assert.Equal(t, 0.0, temp.scoreValue(40.0))
	assert.Equal(t, 0.0, temp.scoreValue(10.0))

	amm := criteriaFromBand(cfg.Thresholds["ammonia"])
	assert.Equal(t, 0.0, amm.scoreValue(2.0))
	mid := amm.scoreValue(0.4)
	assert.Greater(t, mid, 60.0)
	assert.Less(t, mid, 100.0)
}

func TestScoreStabilityPenalty(t *testing.T) {
	cfg := healthConfig()
	temp := criteriaFromBand(cfg.Thresholds["temperature"])

	steady := scoreParameter([]float64{24, 24, 24, 24}, temp)
	volatile := scoreParameter([]float64{21, 27, 21, 27}, temp)

	assert.Equal(t, 100.0, steady)
	assert.Less(t, volatile, steady)
	assert.GreaterOrEqual(t, volatile, 90.0) // penalty is capped at 10
}

func TestScoreOmitsParametersWithoutData(t *testing.T) {
	// Only temperature and pH report; the weighted average must cover
	// just those two, not treat absent parameters as zero.
	source := &fakeReadings{}
	for i := 0; i < 12; i++ {
		source.readings = append(source.readings, models.SensorReading{
			Temperature: f64(24.0),
			PH:          f64(7.5),
		})
	}
	engine := NewEngine(healthConfig(), source)

	a, err := engine.Score(context.Background(), 1, 7)
	require.NoError(t, err)

	assert.Equal(t, 100.0, a.OverallScore)
	assert.Equal(t, 2, a.ParametersAssessed)
	assert.InDelta(t, 33.3, a.DataCompleteness, 0.1)
}

func TestGradeCutoffs(t *testing.T) {
	grade, status := gradeFor(82)
	assert.Equal(t, "B+", grade)
	assert.Equal(t, "Good", status)

	grade, status = gradeFor(90)
	assert.Equal(t, "A+", grade)
	assert.Equal(t, "Excellent", status)

	grade, status = gradeFor(49.9)
	assert.Equal(t, "F", grade)
	assert.Equal(t, "Critical", status)
}

func TestRiskAndPriority(t *testing.T) {
	assert.Equal(t, "High", riskFor(80, 0, 1))
	assert.Equal(t, "High", riskFor(40, 0, 0))
	assert.Equal(t, "Medium", riskFor(70, 3, 0))
	assert.Equal(t, "Medium", riskFor(65, 0, 0))
	assert.Equal(t, "Low", riskFor(85, 1, 0))

	assert.Equal(t, "Urgent", priorityFor(45, 0))
	assert.Equal(t, "Urgent", priorityFor(80, 2))
	assert.Equal(t, "Improve", priorityFor(65, 0))
	assert.Equal(t, "Monitor", priorityFor(80, 0))
	assert.Equal(t, "Maintain", priorityFor(90, 0))
}

func TestScoreCriticalMeanRaisesIssue(t *testing.T) {
	source := &fakeReadings{}
	for i := 0; i < 12; i++ {
		r := optimalReading()
		r.Ammonia = f64(1.5) // beyond critical_high 1.0
		source.readings = append(source.readings, r)
	}
	engine := NewEngine(healthConfig(), source)

	a, err := engine.Score(context.Background(), 1, 7)
	require.NoError(t, err)

	assert.NotEmpty(t, a.CriticalIssues)
	assert.Equal(t, "High", a.RiskLevel)
	assert.Equal(t, "Urgent", a.ActionPriority)
	assert.Equal(t, 0.0, a.ParameterScores["ammonia_score"])
}

func TestConfidenceBlend(t *testing.T) {
	// 100+ samples with full completeness maxes out confidence.
	assert.Equal(t, 1.0, confidence(120, 100))
	assert.Less(t, confidence(12, 100), 1.0)
	assert.Greater(t, confidence(12, 100), 0.0)
}
