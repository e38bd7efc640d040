// Package store implements the persistence interfaces consumed by the
// detection, rule, health and alert services on top of GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aquawatch/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- readings ---

func (s *Store) CreateReading(ctx context.Context, reading *models.SensorReading) error {
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(reading).Error
}

// RecentValues returns up to limit most recent non-null values for the
// parameter, oldest first. Rows at or after beforeID are excluded so a
// freshly persisted reading never appears in its own history window.
func (s *Store) RecentValues(ctx context.Context, pondID uint32, param models.Parameter, beforeID uint32, limit int) ([]float64, error) {
	column, ok := param.Column()
	if !ok {
		return nil, fmt.Errorf("unknown parameter: %s", param)
	}

	q := s.db.WithContext(ctx).
		Model(&models.SensorReading{}).
		Where("pond_id = ?", pondID).
		Where(column + " IS NOT NULL")
	if beforeID != 0 {
		q = q.Where("id < ?", beforeID)
	}

	var values []float64
	err := q.Order("timestamp DESC, id DESC").
		Limit(limit).
		Pluck(column, &values).Error
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; callers expect oldest-first.
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values, nil
}

func (s *Store) ReadingsSince(ctx context.Context, pondID uint32, since time.Time) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	err := s.db.WithContext(ctx).
		Where("pond_id = ? AND timestamp >= ?", pondID, since).
		Order("timestamp ASC").
		Find(&readings).Error
	return readings, err
}

func (s *Store) ListReadings(ctx context.Context, pondID uint32, limit, offset int) ([]models.SensorReading, error) {
	var readings []models.SensorReading
	err := s.db.WithContext(ctx).
		Where("pond_id = ?", pondID).
		Order("timestamp DESC").
		Limit(limit).Offset(offset).
		Find(&readings).Error
	return readings, err
}

// MarkAnomaly flags a stored reading after detection confirms a change
// point.
func (s *Store) MarkAnomaly(ctx context.Context, readingID uint32) error {
	return s.db.WithContext(ctx).
		Model(&models.SensorReading{}).
		Where("id = ?", readingID).
		Update("is_anomaly", true).Error
}

// LastReadingAt returns the timestamp of the pond's newest reading, or
// nil when the pond has none.
func (s *Store) LastReadingAt(ctx context.Context, pondID uint32) (*time.Time, error) {
	var reading models.SensorReading
	err := s.db.WithContext(ctx).
		Where("pond_id = ?", pondID).
		Order("timestamp DESC").
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := reading.Timestamp
	return &t, nil
}

// --- ponds ---

func (s *Store) CreatePond(ctx context.Context, pond *models.Pond) error {
	return s.db.WithContext(ctx).Create(pond).Error
}

func (s *Store) GetPond(ctx context.Context, id uint32) (*models.Pond, error) {
	var pond models.Pond
	err := s.db.WithContext(ctx).First(&pond, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pond, nil
}

func (s *Store) ListPonds(ctx context.Context) ([]models.Pond, error) {
	var ponds []models.Pond
	err := s.db.WithContext(ctx).Order("id ASC").Find(&ponds).Error
	return ponds, err
}

func (s *Store) UpdatePond(ctx context.Context, pond *models.Pond) error {
	return s.db.WithContext(ctx).Save(pond).Error
}

func (s *Store) PondName(ctx context.Context, pondID uint32) (string, error) {
	pond, err := s.GetPond(ctx, pondID)
	if err != nil {
		return "", err
	}
	return pond.Name, nil
}

// StalePonds lists active ponds whose newest reading is older than the
// cutoff, including ponds that never reported at all.
func (s *Store) StalePonds(ctx context.Context, cutoff time.Time) ([]models.Pond, error) {
	var ponds []models.Pond
	sub := s.db.Model(&models.SensorReading{}).
		Select("DISTINCT pond_id").
		Where("timestamp >= ?", cutoff)
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("id NOT IN (?)", sub).
		Find(&ponds).Error
	return ponds, err
}

// --- alert rules ---

func (s *Store) ActiveRules(ctx context.Context, pondID uint32) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Where("pond_id = ? AND active = ?", pondID, true).
		Find(&rules).Error
	return rules, err
}

func (s *Store) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *Store) GetRule(ctx context.Context, id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := s.db.WithContext(ctx).First(&rule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) ListRules(ctx context.Context, pondID uint32) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Where("pond_id = ?", pondID).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

func (s *Store) UpdateRule(ctx context.Context, rule *models.AlertRule) error {
	return s.db.WithContext(ctx).Save(rule).Error
}

func (s *Store) DeleteRule(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.AlertRule{}, id).Error
}

// --- alerts ---

func (s *Store) CreateAlert(ctx context.Context, alert *models.Alert) error {
	return s.db.WithContext(ctx).Create(alert).Error
}

func (s *Store) GetAlert(ctx context.Context, id uint32) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts filters by pond and optionally by status.
func (s *Store) ListAlerts(ctx context.Context, pondID uint32, status models.AlertStatus, limit, offset int) ([]models.Alert, error) {
	q := s.db.WithContext(ctx).Where("pond_id = ?", pondID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var alerts []models.Alert
	err := q.Order("triggered_at DESC").
		Limit(limit).Offset(offset).
		Find(&alerts).Error
	return alerts, err
}

// SetAlertStatus transitions an alert and stamps the matching timestamp.
func (s *Store) SetAlertStatus(ctx context.Context, id uint32, status models.AlertStatus) error {
	updates := map[string]any{"status": status}
	now := time.Now()
	switch status {
	case models.StatusAcknowledged:
		updates["acknowledged_at"] = now
	case models.StatusResolved:
		updates["resolved_at"] = now
	}
	res := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LastTriggered returns when the rule last produced an alert, or nil.
func (s *Store) LastTriggered(ctx context.Context, ruleID uint) (*time.Time, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("triggered_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := alert.TriggeredAt
	return &t, nil
}

func (s *Store) CountSince(ctx context.Context, ruleID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("rule_id = ? AND triggered_at >= ?", ruleID, since).
		Count(&count).Error
	return count, err
}

// HasRecentOfflineAlert reports whether the pond already carries an
// active sensor_offline alert newer than the cutoff.
func (s *Store) HasRecentOfflineAlert(ctx context.Context, pondID uint32, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("pond_id = ? AND type = ? AND status = ? AND triggered_at >= ?",
			pondID, models.AlertTypeSensorOffline, models.StatusActive, since).
		Count(&count).Error
	return count > 0, err
}

// --- health snapshots ---

func (s *Store) SaveHealthRecord(ctx context.Context, record *models.PondHealthRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *Store) ListHealthRecords(ctx context.Context, pondID uint32, limit int) ([]models.PondHealthRecord, error) {
	var records []models.PondHealthRecord
	err := s.db.WithContext(ctx).
		Where("pond_id = ?", pondID).
		Order("calculated_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
