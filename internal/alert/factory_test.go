package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"aquawatch/internal/config"
	"aquawatch/internal/detect"
	"aquawatch/internal/models"
	"aquawatch/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	alerts  []*models.Alert
	failure error
}

func (f *fakeStore) CreateAlert(_ context.Context, alert *models.Alert) error {
	if f.failure != nil {
		return f.failure
	}
	alert.ID = uint32(len(f.alerts) + 1)
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeStore) PondName(_ context.Context, pondID uint32) (string, error) {
	if pondID == 1 {
		return "North Pond", nil
	}
	return "", errors.New("not found")
}

type fakeDispatcher struct {
	notified []uint32
}

func (f *fakeDispatcher) Notify(_ context.Context, alertID uint32) {
	f.notified = append(f.notified, alertID)
}

func f64(v float64) *float64 { return &v }

func newTestFactory(st *fakeStore, d Dispatcher) *Factory {
	cfg := config.Load()
	return NewFactory(cfg.Alert, cfg.Health, st, d)
}

func TestAnomalySeverityDerivation(t *testing.T) {
	cases := []struct {
		changePoints int
		score        float64
		want         models.AlertSeverity
	}{
		{3, 0.5, models.SeverityCritical},
		{1, 0.85, models.SeverityCritical},
		{2, 0.5, models.SeverityWarning},
		{1, 0.65, models.SeverityWarning},
		{1, 0.3, models.SeverityInfo},
	}

	for _, tc := range cases {
		result := &detect.Result{AnomalyScore: tc.score}
		for i := 0; i < tc.changePoints; i++ {
			result.ChangePoints = append(result.ChangePoints, models.ParamTemperature)
		}
		assert.Equal(t, tc.want, anomalySeverity(result),
			"change_points=%d score=%v", tc.changePoints, tc.score)
	}
}

func TestCreateAnomalyAlert(t *testing.T) {
	st := &fakeStore{}
	d := &fakeDispatcher{}
	f := newTestFactory(st, d)

	reading := &models.SensorReading{
		ID:          42,
		PondID:      1,
		Timestamp:   time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Temperature: f64(32),
	}
	result := &detect.Result{
		IsAnomaly:    true,
		AnomalyScore: 1.0,
		ChangePoints: []models.Parameter{models.ParamTemperature},
	}

	a, err := f.CreateAnomalyAlert(context.Background(), 1, reading, result)
	require.NoError(t, err)

	assert.Equal(t, models.AlertTypeAnomalyDetected, a.Type)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, models.StatusActive, a.Status)
	assert.Equal(t, "temperature", a.Parameter)
	assert.Equal(t, 32.0, a.CurrentValue)
	require.NotNil(t, a.ReadingID)
	assert.Equal(t, uint32(42), *a.ReadingID)
	assert.Contains(t, a.Message, "temperature")
	assert.Contains(t, a.MessageFR, "Anomalie")
	assert.NotEmpty(t, a.MessageAR)
	assert.Equal(t, []uint32{1}, d.notified)

	// Context payload is valid JSON with an ISO-8601 timestamp.
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(a.Context), &payload))
	sensorData, ok := payload["sensor_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-08-25T10:00:00Z", sensorData["timestamp"])
}

func TestCreateRuleAlertKeepsRuleSeverity(t *testing.T) {
	st := &fakeStore{}
	f := newTestFactory(st, nil)

	rule := &models.AlertRule{
		ID:           7,
		PondID:       1,
		Parameter:    "ph",
		RuleName:     "ph floor",
		MinThreshold: f64(6.5),
		Severity:     models.SeverityCritical,
	}
	reading := &models.SensorReading{ID: 9, PondID: 1, Timestamp: time.Now(), PH: f64(6.0)}
	violation := &rules.Violation{
		Parameter: "ph",
		Value:     6.0,
		Threshold: f64(6.5),
		Direction: "below_min",
	}

	a, err := f.CreateRuleAlert(context.Background(), rule, reading, violation)
	require.NoError(t, err)

	assert.Equal(t, models.AlertTypeThreshold, a.Type)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	require.NotNil(t, a.RuleID)
	assert.Equal(t, uint(7), *a.RuleID)
	assert.Equal(t, 6.0, a.CurrentValue)
	assert.Equal(t, 6.5, *a.ThresholdValue)
	assert.Equal(t, "Critical low pH: 6pH in North Pond", a.Message)
	assert.Contains(t, a.MessageFR, "pH critique bas")
}

func TestCreateAlertPersistenceFailureSurfaces(t *testing.T) {
	st := &fakeStore{failure: errors.New("disk full")}
	d := &fakeDispatcher{}
	f := newTestFactory(st, d)

	reading := &models.SensorReading{ID: 1, PondID: 1, Timestamp: time.Now(), Temperature: f64(32)}
	result := &detect.Result{IsAnomaly: true, ChangePoints: []models.Parameter{models.ParamTemperature}}

	_, err := f.CreateAnomalyAlert(context.Background(), 1, reading, result)
	assert.Error(t, err)
	assert.Empty(t, d.notified, "no notification for an unpersisted alert")
}

func TestCreateStaleAlert(t *testing.T) {
	st := &fakeStore{}
	f := newTestFactory(st, nil)

	lastSeen := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	a, err := f.CreateStaleAlert(context.Background(), 1, "North Pond", &lastSeen)
	require.NoError(t, err)

	assert.Equal(t, models.AlertTypeSensorOffline, a.Type)
	assert.Equal(t, models.SeverityWarning, a.Severity)
	assert.Equal(t, "data_connectivity", a.Parameter)
	assert.Contains(t, a.Message, "North Pond")
	assert.Contains(t, a.MessageFR, "North Pond")
	assert.Contains(t, a.Context, "2026-08-25T08:00:00Z")
}

func TestUnknownPondFallsBackToNumericName(t *testing.T) {
	st := &fakeStore{}
	f := newTestFactory(st, nil)

	reading := &models.SensorReading{ID: 2, PondID: 99, Timestamp: time.Now(), Temperature: f64(32)}
	result := &detect.Result{IsAnomaly: true, ChangePoints: []models.Parameter{models.ParamTemperature}}

	a, err := f.CreateAnomalyAlert(context.Background(), 99, reading, result)
	require.NoError(t, err)
	assert.Contains(t, a.Title, "Pond 99")
}
