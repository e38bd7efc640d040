package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorStableSignalNeverFlags(t *testing.T) {
	det := NewDetector(Config{Threshold: 2.0, Alpha: 0.1, MinSamples: 3})

	for i := 0; i < 200; i++ {
		isChange, score := det.Update(7.2)
		assert.False(t, isChange, "identical values must never flag, iteration %d", i)
		assert.Equal(t, 0.0, score)
	}
}

func TestDetectorFlagsStepChange(t *testing.T) {
	det := NewDetector(Config{Threshold: 3.0, Alpha: 0.1, MinSamples: 3})

	for i := 0; i < 5; i++ {
		isChange, _ := det.Update(10.0)
		require.False(t, isChange)
	}

	isChange, score := det.Update(20.0)
	assert.True(t, isChange)
	assert.Equal(t, 1.0, score)
}

func TestDetectorTemperatureStepScenario(t *testing.T) {
	det := NewDetector(Config{Threshold: 3.0, Alpha: 0.1, MinSamples: 3})

	values := []float64{24, 24, 24, 24, 24, 24, 24, 24, 32}
	var isChange bool
	for _, v := range values {
		isChange, _ = det.Update(v)
	}

	assert.True(t, isChange, "last value must complete a change point")
}

func TestDetectorRespectsMinSamples(t *testing.T) {
	det := NewDetector(Config{Threshold: 0.5, Alpha: 0.5, MinSamples: 5})

	// Strong shifts before warm-up completes must stay quiet.
	for i, v := range []float64{1, 50, 1, 50} {
		isChange, _ := det.Update(v)
		assert.False(t, isChange, "sample %d is inside warm-up", i+1)
	}
}

func TestDetectorScoreBounds(t *testing.T) {
	det := NewDetector(Config{Threshold: 2.0, Alpha: 0.2, MinSamples: 3})

	values := []float64{5, 5.3, 4.8, 12, -3, 0, 100, 99.5, -50, 5}
	for _, v := range values {
		_, score := det.Update(v)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestDetectorScoreDenominatorFloor(t *testing.T) {
	// Sub-1.0 thresholds normalize against 1.0, not the threshold.
	det := NewDetector(Config{Threshold: 0.2, Alpha: 0.5, MinSamples: 1})

	det.Update(10.0)
	_, score := det.Update(10.6)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.0)
}

func TestDetectorResetsAfterDetection(t *testing.T) {
	det := NewDetector(Config{Threshold: 3.0, Alpha: 0.1, MinSamples: 3})

	for i := 0; i < 8; i++ {
		det.Update(24.0)
	}
	isChange, _ := det.Update(32.0)
	require.True(t, isChange)

	snap := det.Snapshot()
	assert.Equal(t, 0.0, snap.CumSum)
	assert.Equal(t, 0.0, snap.MinCumSum)
	assert.Equal(t, 0.0, snap.MaxCumSum)
	assert.Equal(t, 9, snap.SampleCount)
}

func TestDetectorSeedsMeanWithFirstValue(t *testing.T) {
	det := NewDetector(Config{Threshold: 3.0, Alpha: 0.1, MinSamples: 3})

	det.Update(24.0)
	snap := det.Snapshot()
	assert.Equal(t, 24.0, snap.MeanEstimate)
	assert.Equal(t, 0.0, snap.CumSum)
}
