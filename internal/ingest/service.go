// Package ingest accepts sensor readings, persists them, and drives the
// per-reading evaluation pipeline (change-point detection and threshold
// rules) on background workers.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aquawatch/internal/alert"
	"aquawatch/internal/config"
	"aquawatch/internal/detect"
	"aquawatch/internal/elasticsearch"
	"aquawatch/internal/logger"
	"aquawatch/internal/models"
	"aquawatch/internal/rules"

	"go.uber.org/zap"
)

// Storage is the slice of the store the ingest pipeline needs.
type Storage interface {
	CreateReading(ctx context.Context, reading *models.SensorReading) error
	ActiveRules(ctx context.Context, pondID uint32) ([]models.AlertRule, error)
	MarkAnomaly(ctx context.Context, readingID uint32) error
	PondName(ctx context.Context, pondID uint32) (string, error)
	StalePonds(ctx context.Context, cutoff time.Time) ([]models.Pond, error)
	HasRecentOfflineAlert(ctx context.Context, pondID uint32, since time.Time) (bool, error)
	LastReadingAt(ctx context.Context, pondID uint32) (*time.Time, error)
}

// Service owns one evaluation lane per pond. A lane is a buffered channel
// drained by a single goroutine, so readings for the same pond are always
// evaluated in arrival order while different ponds proceed concurrently.
type Service struct {
	cfg      config.IngestConfig
	alertCfg config.AlertConfig

	storage   Storage
	detector  *detect.Service
	evaluator *rules.Evaluator
	factory   *alert.Factory
	esClient  *elasticsearch.Client
	logDir    string

	mu    sync.Mutex
	lanes map[uint32]chan *models.SensorReading

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(
	cfg config.IngestConfig,
	alertCfg config.AlertConfig,
	storage Storage,
	detector *detect.Service,
	evaluator *rules.Evaluator,
	factory *alert.Factory,
	esClient *elasticsearch.Client,
	logDir string,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:       cfg,
		alertCfg:  alertCfg,
		storage:   storage,
		detector:  detector,
		evaluator: evaluator,
		factory:   factory,
		esClient:  esClient,
		logDir:    logDir,
		lanes:     make(map[uint32]chan *models.SensorReading),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit persists the reading and queues it for evaluation. The caller
// returns as soon as the reading is stored; detection and rule checks run
// on the pond's lane worker. Alert creation for a reading therefore always
// happens after that reading's own persistence.
func (s *Service) Submit(ctx context.Context, reading *models.SensorReading) error {
	if err := s.storage.CreateReading(ctx, reading); err != nil {
		return fmt.Errorf("persist reading: %w", err)
	}

	lane := s.lane(reading.PondID)
	select {
	case lane <- reading:
	default:
		// A full lane means this pond's worker is far behind. Dropping
		// the evaluation keeps ingestion responsive; the reading itself
		// is already stored.
		logger.Warn("evaluation lane full, skipping evaluation",
			zap.Uint32("pond_id", reading.PondID),
			zap.Uint32("reading_id", reading.ID))
	}
	return nil
}

func (s *Service) lane(pondID uint32) chan *models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lane, ok := s.lanes[pondID]; ok {
		return lane
	}

	lane := make(chan *models.SensorReading, s.cfg.LaneBuffer)
	s.lanes[pondID] = lane

	s.wg.Add(1)
	go s.runLane(pondID, lane)

	return lane
}

func (s *Service) runLane(pondID uint32, lane chan *models.SensorReading) {
	defer s.wg.Done()

	logger.Debug("evaluation lane started", zap.Uint32("pond_id", pondID))

	for {
		select {
		case <-s.ctx.Done():
			return
		case reading := <-lane:
			s.evaluate(reading)
		}
	}
}

// evaluate runs both evaluation paths for one reading. Each path failing
// is logged and does not affect the other.
func (s *Service) evaluate(reading *models.SensorReading) {
	timeout := time.Duration(s.cfg.EvalTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	started := time.Now()

	result, err := s.detector.Evaluate(ctx, reading)
	if err != nil {
		logger.Error("anomaly evaluation failed",
			zap.Uint32("pond_id", reading.PondID),
			zap.Uint32("reading_id", reading.ID),
			zap.Error(err))
	}
	if result != nil && result.IsAnomaly {
		if err := s.storage.MarkAnomaly(ctx, reading.ID); err != nil {
			logger.Error("failed to flag anomalous reading",
				zap.Uint32("reading_id", reading.ID),
				zap.Error(err))
		}
	}

	var raised []*models.Alert
	if s.alertCfg.Enabled {
		activeRules, err := s.storage.ActiveRules(ctx, reading.PondID)
		if err != nil {
			logger.Error("failed to load alert rules",
				zap.Uint32("pond_id", reading.PondID),
				zap.Error(err))
		} else if len(activeRules) > 0 {
			raised, err = s.evaluator.Evaluate(ctx, reading, activeRules)
			if err != nil {
				logger.Error("rule evaluation failed",
					zap.Uint32("pond_id", reading.PondID),
					zap.Error(err))
			}
		}
	}

	s.audit(ctx, reading, result, len(raised), time.Since(started))
}

// audit records the evaluation outcome to Elasticsearch and the JSONL
// evaluation log. Both writes are best-effort.
func (s *Service) audit(ctx context.Context, reading *models.SensorReading, result *detect.Result, ruleAlerts int, elapsed time.Duration) {
	pondName, err := s.storage.PondName(ctx, reading.PondID)
	if err != nil {
		pondName = fmt.Sprintf("Pond %d", reading.PondID)
	}

	var isAnomaly bool
	var score float64
	var changePoints []string
	if result != nil {
		isAnomaly = result.IsAnomaly
		score = result.AnomalyScore
		for _, p := range result.ChangePoints {
			changePoints = append(changePoints, p.String())
		}
	}

	if s.esClient != nil {
		entry := &elasticsearch.EvaluationEntry{
			PondID:       reading.PondID,
			PondName:     pondName,
			ReadingID:    reading.ID,
			IsAnomaly:    isAnomaly,
			AnomalyScore: score,
			ChangePoints: changePoints,
			RuleAlerts:   ruleAlerts,
			DurationMS:   elapsed.Milliseconds(),
		}
		if err := s.esClient.IndexEvaluation(entry); err != nil {
			logger.Warn("failed to index evaluation", zap.Error(err))
		}
	}

	if s.logDir != "" {
		entry := &logger.EvalLogEntry{
			PondID:       reading.PondID,
			PondName:     pondName,
			ReadingID:    reading.ID,
			IsAnomaly:    isAnomaly,
			AnomalyScore: score,
			ChangePoints: changePoints,
			RuleAlerts:   ruleAlerts,
			DurationMS:   elapsed.Milliseconds(),
		}
		if err := logger.WriteEvalLog(s.logDir, entry); err != nil {
			logger.Warn("failed to write evaluation log", zap.Error(err))
		}
	}
}

// StartStaleSweep periodically raises sensor_offline alerts for active
// ponds that stopped reporting.
func (s *Service) StartStaleSweep() {
	interval := time.Duration(s.alertCfg.StaleSweepMinutes) * time.Minute

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweepStale()
			}
		}
	}()
}

func (s *Service) sweepStale() {
	timeout := time.Duration(s.cfg.EvalTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	cutoff := time.Now().Add(-time.Duration(s.alertCfg.StaleAfterMinutes) * time.Minute)
	ponds, err := s.storage.StalePonds(ctx, cutoff)
	if err != nil {
		logger.Error("stale pond sweep failed", zap.Error(err))
		return
	}

	resuppress := time.Now().Add(-time.Duration(s.alertCfg.StaleResuppressMinutes) * time.Minute)

	for i := range ponds {
		pond := &ponds[i]

		recent, err := s.storage.HasRecentOfflineAlert(ctx, pond.ID, resuppress)
		if err != nil {
			logger.Error("offline alert lookup failed",
				zap.Uint32("pond_id", pond.ID),
				zap.Error(err))
			continue
		}
		if recent {
			continue
		}

		lastSeen, err := s.storage.LastReadingAt(ctx, pond.ID)
		if err != nil {
			logger.Error("last reading lookup failed",
				zap.Uint32("pond_id", pond.ID),
				zap.Error(err))
			continue
		}

		if _, err := s.factory.CreateStaleAlert(ctx, pond.ID, pond.Name, lastSeen); err != nil {
			logger.Error("failed to create offline alert",
				zap.Uint32("pond_id", pond.ID),
				zap.Error(err))
			continue
		}
		logger.Info("sensor offline alert raised",
			zap.Uint32("pond_id", pond.ID),
			zap.String("pond_name", pond.Name))
	}
}

// Stop shuts down lane workers and the sweep loop.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Info("ingest service stopped")
}
