package store

import (
	"context"
	"testing"
	"time"

	"aquawatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Pond{},
		&models.SensorReading{},
		&models.AlertRule{},
		&models.Alert{},
		&models.PondHealthRecord{},
	))

	return New(db)
}

func f64(v float64) *float64 { return &v }

func seedPond(t *testing.T, s *Store, name string) *models.Pond {
	t.Helper()
	pond := &models.Pond{Name: name, Active: true}
	require.NoError(t, s.CreatePond(context.Background(), pond))
	return pond
}

func TestRecentValuesOrderAndExclusion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	for i, v := range []float64{21, 22, 23, 24, 25} {
		reading := &models.SensorReading{
			PondID:      pond.ID,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Temperature: f64(v),
		}
		require.NoError(t, s.CreateReading(ctx, reading))
	}

	newest := &models.SensorReading{
		PondID:      pond.ID,
		Timestamp:   base.Add(10 * time.Minute),
		Temperature: f64(30),
	}
	require.NoError(t, s.CreateReading(ctx, newest))

	// Oldest-first window of 3, excluding the newest reading itself.
	values, err := s.RecentValues(ctx, pond.ID, models.ParamTemperature, newest.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{23, 24, 25}, values)

	// Without a bound the newest value is included.
	values, err = s.RecentValues(ctx, pond.ID, models.ParamTemperature, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{24, 25, 30}, values)
}

func TestRecentValuesSkipsNulls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	base := time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: base, Temperature: f64(21),
	}))
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: base.Add(time.Minute), PH: f64(7.0),
	}))
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: base.Add(2 * time.Minute), Temperature: f64(22),
	}))

	values, err := s.RecentValues(ctx, pond.ID, models.ParamTemperature, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{21, 22}, values)
}

func TestRecentValuesRejectsUnknownParameter(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecentValues(context.Background(), 1, models.Parameter("evil; DROP TABLE"), 0, 10)
	assert.Error(t, err)
}

func TestRuleRateLimitQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	rule := &models.AlertRule{
		PondID: pond.ID, Parameter: "ph", RuleName: "ph floor",
		MinThreshold: f64(6.5), Severity: models.SeverityWarning, Active: true,
	}
	require.NoError(t, s.CreateRule(ctx, rule))

	last, err := s.LastTriggered(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, last)

	now := time.Now()
	for i := 0; i < 3; i++ {
		alert := &models.Alert{
			PondID: pond.ID, RuleID: &rule.ID, Parameter: "ph",
			Type: models.AlertTypeThreshold, Severity: models.SeverityWarning,
			Status: models.StatusActive, Title: "t", Message: "m",
			TriggeredAt: now.Add(time.Duration(-i) * 10 * time.Minute),
		}
		require.NoError(t, s.CreateAlert(ctx, alert))
	}

	last, err = s.LastTriggered(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, now, *last, time.Second)

	count, err := s.CountSince(ctx, rule.ID, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSetAlertStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	alert := &models.Alert{
		PondID: pond.ID, Parameter: "ph",
		Type: models.AlertTypeThreshold, Severity: models.SeverityWarning,
		Status: models.StatusActive, Title: "t", Message: "m",
		TriggeredAt: time.Now(),
	}
	require.NoError(t, s.CreateAlert(ctx, alert))

	require.NoError(t, s.SetAlertStatus(ctx, alert.ID, models.StatusAcknowledged))

	got, err := s.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, got.Status)
	assert.NotNil(t, got.AcknowledgedAt)
	assert.Nil(t, got.ResolvedAt)

	assert.ErrorIs(t, s.SetAlertStatus(ctx, 9999, models.StatusResolved), ErrNotFound)
}

func TestStalePonds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fresh := seedPond(t, s, "Fresh")
	stale := seedPond(t, s, "Stale")
	silent := seedPond(t, s, "Silent")
	inactive := &models.Pond{Name: "Retired", Active: false}
	require.NoError(t, s.CreatePond(ctx, inactive))

	now := time.Now()
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: fresh.ID, Timestamp: now.Add(-10 * time.Minute), Temperature: f64(24),
	}))
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: stale.ID, Timestamp: now.Add(-3 * time.Hour), Temperature: f64(24),
	}))

	ponds, err := s.StalePonds(ctx, now.Add(-time.Hour))
	require.NoError(t, err)

	names := make([]string, 0, len(ponds))
	for _, p := range ponds {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Stale", "Silent"}, names)
	_ = silent
}

func TestHasRecentOfflineAlert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	ok, err := s.HasRecentOfflineAlert(ctx, pond.ID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreateAlert(ctx, &models.Alert{
		PondID: pond.ID, Parameter: "data_connectivity",
		Type: models.AlertTypeSensorOffline, Severity: models.SeverityWarning,
		Status: models.StatusActive, Title: "t", Message: "m",
		TriggeredAt: time.Now().Add(-30 * time.Minute),
	}))

	ok, err = s.HasRecentOfflineAlert(ctx, pond.ID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReadingsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pond := seedPond(t, s, "North Pond")

	now := time.Now()
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: now.Add(-10 * 24 * time.Hour), Temperature: f64(20),
	}))
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: now.Add(-2 * 24 * time.Hour), Temperature: f64(22),
	}))
	require.NoError(t, s.CreateReading(ctx, &models.SensorReading{
		PondID: pond.ID, Timestamp: now.Add(-time.Hour), Temperature: f64(24),
	}))

	readings, err := s.ReadingsSince(ctx, pond.ID, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.True(t, readings[0].Timestamp.Before(readings[1].Timestamp))
}
