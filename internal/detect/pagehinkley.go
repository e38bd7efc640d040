package detect

// Config tunes a Page-Hinkley detector. Threshold controls sensitivity
// (higher = fewer detections), Alpha controls how fast the running mean
// tracks the signal, MinSamples suppresses detections during warm-up.
type Config struct {
	Threshold  float64
	Alpha      float64
	MinSamples int
}

// Detector is a Page-Hinkley change-point detector over a univariate
// stream. It flags both upward and downward shifts relative to an
// exponentially weighted running mean.
//
// Not safe for concurrent use; callers serialize per stream.
type Detector struct {
	cfg Config

	mean   float64
	cumSum float64
	minSum float64
	maxSum float64
	count  int
}

// Snapshot captures detector state for diagnostics.
type Snapshot struct {
	MeanEstimate float64 `json:"mean_estimate"`
	CumSum       float64 `json:"cumulative_sum"`
	MinCumSum    float64 `json:"min_cumulative_sum"`
	MaxCumSum    float64 `json:"max_cumulative_sum"`
	SampleCount  int     `json:"sample_count"`
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Update feeds one value into the detector. It returns whether the value
// completes a change point, plus an anomaly score in [0,1].
func (d *Detector) Update(value float64) (bool, float64) {
	d.count++

	if d.count == 1 {
		// Seed the mean so the first value produces zero deviation.
		d.mean = value
	} else {
		d.mean = (1-d.cfg.Alpha)*d.mean + d.cfg.Alpha*value
	}

	deviation := value - d.mean
	d.cumSum += deviation

	if d.cumSum < d.minSum {
		d.minSum = d.cumSum
	}
	if d.cumSum > d.maxSum {
		d.maxSum = d.cumSum
	}

	phUp := d.cumSum - d.minSum
	phDown := d.maxSum - d.cumSum

	score := d.score(phUp, phDown)

	if d.count < d.cfg.MinSamples {
		return false, score
	}

	if phUp > d.cfg.Threshold || phDown > d.cfg.Threshold {
		// Restart accumulation around the current mean so consecutive
		// readings after a confirmed shift are not all flagged.
		d.cumSum = 0
		d.minSum = 0
		d.maxSum = 0
		return true, score
	}

	return false, score
}

func (d *Detector) score(phUp, phDown float64) float64 {
	stat := phUp
	if phDown > stat {
		stat = phDown
	}
	denom := d.cfg.Threshold
	if denom < 1.0 {
		denom = 1.0
	}
	s := stat / denom
	if s > 1.0 {
		s = 1.0
	}
	return s
}

// Snapshot returns the current internal state.
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		MeanEstimate: d.mean,
		CumSum:       d.cumSum,
		MinCumSum:    d.minSum,
		MaxCumSum:    d.maxSum,
		SampleCount:  d.count,
	}
}
