package detect

import (
	"context"
	"math"

	"aquawatch/internal/config"
	"aquawatch/internal/logger"
	"aquawatch/internal/models"

	"go.uber.org/zap"
)

// History supplies recent per-parameter values for a pond, oldest first.
// beforeID bounds the window to rows persisted strictly before that
// reading; zero means no bound.
type History interface {
	RecentValues(ctx context.Context, pondID uint32, param models.Parameter, beforeID uint32, limit int) ([]float64, error)
}

// AlertSink receives anomaly verdicts that need an alert.
type AlertSink interface {
	CreateAnomalyAlert(ctx context.Context, pondID uint32, reading *models.SensorReading, result *Result) (*models.Alert, error)
}

// ParamResult is the per-parameter outcome of one evaluation.
type ParamResult struct {
	Value         float64  `json:"value"`
	IsChangePoint bool     `json:"is_change_point"`
	Score         float64  `json:"score"`
	Detector      Snapshot `json:"detector"`
	WindowSize    int      `json:"window_size"`
}

// Result aggregates detection across all parameters of one reading.
type Result struct {
	IsAnomaly    bool                             `json:"is_anomaly"`
	AnomalyScore float64                          `json:"anomaly_score"`
	Parameters   map[models.Parameter]ParamResult `json:"parameters"`
	ChangePoints []models.Parameter               `json:"change_points"`
}

// Service runs change-point detection across the monitored parameters of
// each incoming reading. Detection is stateless between calls: for every
// parameter the recent window is fetched and replayed through a fresh
// detector, so restarts and out-of-order processing cannot corrupt state.
type Service struct {
	cfg     config.DetectionConfig
	history History
	sink    AlertSink
}

func NewService(cfg config.DetectionConfig, history History, sink AlertSink) *Service {
	return &Service{
		cfg:     cfg,
		history: history,
		sink:    sink,
	}
}

func (s *Service) paramConfig(param models.Parameter) Config {
	if p, ok := s.cfg.Parameters[param.String()]; ok {
		return Config{Threshold: p.Threshold, Alpha: p.Alpha, MinSamples: p.MinSamples}
	}
	d := s.cfg.Default
	return Config{Threshold: d.Threshold, Alpha: d.Alpha, MinSamples: d.MinSamples}
}

// Evaluate runs detection for one reading and returns the aggregate
// verdict. A change point on any parameter marks the reading anomalous;
// the reading's own alert is raised through the sink before returning.
func (s *Service) Evaluate(ctx context.Context, reading *models.SensorReading) (*Result, error) {
	result := &Result{
		Parameters: make(map[models.Parameter]ParamResult),
	}

	for _, param := range models.DetectorParameters {
		value := reading.Value(param)
		if value == nil {
			continue
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			logger.Warn("skipping non-finite sensor value",
				zap.Uint32("pond_id", reading.PondID),
				zap.String("parameter", param.String()))
			continue
		}

		history, err := s.history.RecentValues(ctx, reading.PondID, param, reading.ID, s.cfg.WindowSize)
		if err != nil {
			// One parameter's history failing must not block the rest.
			logger.Error("failed to fetch parameter history",
				zap.Uint32("pond_id", reading.PondID),
				zap.String("parameter", param.String()),
				zap.Error(err))
			continue
		}
		if len(history) < 2 {
			// Too little context to judge a shift.
			continue
		}

		pr := s.replay(param, history, *value)
		result.Parameters[param] = pr

		if pr.IsChangePoint {
			result.ChangePoints = append(result.ChangePoints, param)
		}
		if pr.Score > result.AnomalyScore {
			result.AnomalyScore = pr.Score
		}
	}

	result.IsAnomaly = len(result.ChangePoints) > 0

	if result.IsAnomaly && s.sink != nil {
		if _, err := s.sink.CreateAnomalyAlert(ctx, reading.PondID, reading, result); err != nil {
			logger.Error("failed to create anomaly alert",
				zap.Uint32("pond_id", reading.PondID),
				zap.Error(err))
			return result, err
		}
	}

	return result, nil
}

// replay feeds the historical window plus the new value through a fresh
// detector and keeps only the verdict on the final value.
func (s *Service) replay(param models.Parameter, history []float64, value float64) ParamResult {
	det := NewDetector(s.paramConfig(param))

	for _, v := range history {
		det.Update(v)
	}
	isChange, score := det.Update(value)

	return ParamResult{
		Value:         value,
		IsChangePoint: isChange,
		Score:         score,
		Detector:      det.Snapshot(),
		WindowSize:    len(history),
	}
}
