package detect

import (
	"context"
	"errors"
	"testing"

	"aquawatch/internal/config"
	"aquawatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	values map[models.Parameter][]float64
	errs   map[models.Parameter]error
}

func (f *fakeHistory) RecentValues(_ context.Context, _ uint32, param models.Parameter, _ uint32, _ int) ([]float64, error) {
	if err := f.errs[param]; err != nil {
		return nil, err
	}
	return f.values[param], nil
}

type fakeSink struct {
	calls   int
	lastRes *Result
	err     error
}

func (f *fakeSink) CreateAnomalyAlert(_ context.Context, _ uint32, _ *models.SensorReading, result *Result) (*models.Alert, error) {
	f.calls++
	f.lastRes = result
	return &models.Alert{}, f.err
}

func testDetectionConfig() config.DetectionConfig {
	return config.DetectionConfig{
		WindowSize: 10,
		Parameters: map[string]config.DetectorParams{
			"temperature": {Threshold: 3.0, Alpha: 0.1, MinSamples: 3},
		},
		Default: config.DetectorParams{Threshold: 2.5, Alpha: 0.1, MinSamples: 3},
	}
}

func f64(v float64) *float64 { return &v }

func TestEvaluateFlagsTemperatureShift(t *testing.T) {
	history := &fakeHistory{values: map[models.Parameter][]float64{
		models.ParamTemperature: {24, 24, 24, 24, 24, 24, 24, 24},
	}}
	sink := &fakeSink{}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1, Temperature: f64(32)}
	result, err := svc.Evaluate(context.Background(), reading)
	require.NoError(t, err)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, []models.Parameter{models.ParamTemperature}, result.ChangePoints)
	assert.Equal(t, 1.0, result.AnomalyScore)
	assert.Equal(t, 1, sink.calls)
}

func TestEvaluateSkipsShortHistory(t *testing.T) {
	history := &fakeHistory{values: map[models.Parameter][]float64{
		models.ParamTemperature: {24},
	}}
	sink := &fakeSink{}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1, Temperature: f64(99)}
	result, err := svc.Evaluate(context.Background(), reading)
	require.NoError(t, err)

	assert.False(t, result.IsAnomaly)
	assert.Empty(t, result.Parameters)
	assert.Zero(t, sink.calls)
}

func TestEvaluateSkipsAbsentParameters(t *testing.T) {
	history := &fakeHistory{values: map[models.Parameter][]float64{}}
	sink := &fakeSink{}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1}
	result, err := svc.Evaluate(context.Background(), reading)
	require.NoError(t, err)

	assert.False(t, result.IsAnomaly)
	assert.Empty(t, result.Parameters)
	assert.Zero(t, sink.calls)
}

func TestEvaluateHistoryErrorSkipsOnlyThatParameter(t *testing.T) {
	history := &fakeHistory{
		values: map[models.Parameter][]float64{
			models.ParamTemperature: {24, 24, 24, 24, 24, 24, 24, 24},
		},
		errs: map[models.Parameter]error{
			models.ParamPH: errors.New("connection reset"),
		},
	}
	sink := &fakeSink{}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1, Temperature: f64(32), PH: f64(7.0)}
	result, err := svc.Evaluate(context.Background(), reading)
	require.NoError(t, err)

	assert.True(t, result.IsAnomaly)
	assert.Contains(t, result.Parameters, models.ParamTemperature)
	assert.NotContains(t, result.Parameters, models.ParamPH)
}

func TestEvaluateStableSignalNoAlert(t *testing.T) {
	history := &fakeHistory{values: map[models.Parameter][]float64{
		models.ParamTemperature: {24, 24.1, 23.9, 24, 24.05, 24},
	}}
	sink := &fakeSink{}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1, Temperature: f64(24.0)}
	result, err := svc.Evaluate(context.Background(), reading)
	require.NoError(t, err)

	assert.False(t, result.IsAnomaly)
	assert.Contains(t, result.Parameters, models.ParamTemperature)
	assert.Zero(t, sink.calls)
}

func TestEvaluateSurfacesSinkFailure(t *testing.T) {
	history := &fakeHistory{values: map[models.Parameter][]float64{
		models.ParamTemperature: {24, 24, 24, 24, 24, 24, 24, 24},
	}}
	sink := &fakeSink{err: errors.New("insert failed")}
	svc := NewService(testDetectionConfig(), history, sink)

	reading := &models.SensorReading{PondID: 1, Temperature: f64(32)}
	result, err := svc.Evaluate(context.Background(), reading)

	assert.Error(t, err)
	assert.True(t, result.IsAnomaly)
}
