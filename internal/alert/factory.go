package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aquawatch/internal/config"
	"aquawatch/internal/detect"
	"aquawatch/internal/logger"
	"aquawatch/internal/models"
	"aquawatch/internal/rules"

	"go.uber.org/zap"
)

// Store persists alerts and resolves pond display names.
type Store interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	PondName(ctx context.Context, pondID uint32) (string, error)
}

// Dispatcher hands a persisted alert off for notification delivery.
// Delivery itself (email, SMS, push) happens outside this service.
type Dispatcher interface {
	Notify(ctx context.Context, alertID uint32)
}

// Factory builds and persists alerts for the anomaly and rule paths.
// It implements detect.AlertSink and rules.AlertSink.
type Factory struct {
	cfg        config.AlertConfig
	units      map[string]string
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
}

func NewFactory(cfg config.AlertConfig, health config.HealthConfig, store Store, dispatcher Dispatcher) *Factory {
	units := make(map[string]string, len(health.Thresholds))
	for name, band := range health.Thresholds {
		units[name] = band.Unit
	}
	return &Factory{
		cfg:        cfg,
		units:      units,
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (f *Factory) pondName(ctx context.Context, pondID uint32) string {
	name, err := f.store.PondName(ctx, pondID)
	if err != nil || name == "" {
		return fmt.Sprintf("Pond %d", pondID)
	}
	return name
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// anomalySeverity derives severity from how widespread and how strong the
// shift is. More affected parameters or a higher score means worse.
func anomalySeverity(result *detect.Result) models.AlertSeverity {
	switch {
	case len(result.ChangePoints) >= 3 || result.AnomalyScore >= 0.8:
		return models.SeverityCritical
	case len(result.ChangePoints) >= 2 || result.AnomalyScore >= 0.6:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

// CreateAnomalyAlert persists an alert for a change-point verdict.
func (f *Factory) CreateAnomalyAlert(ctx context.Context, pondID uint32, reading *models.SensorReading, result *detect.Result) (*models.Alert, error) {
	pondName := f.pondName(ctx, pondID)

	params := make([]string, 0, len(result.ChangePoints))
	for _, p := range result.ChangePoints {
		params = append(params, p.String())
	}
	subs := map[string]string{
		"pond_name":  pondName,
		"parameters": strings.Join(params, ", "),
		"score":      fmt.Sprintf("%.2f", result.AnomalyScore),
	}

	parameter := "multiple"
	var currentValue float64
	if len(result.ChangePoints) == 1 {
		p := result.ChangePoints[0]
		parameter = p.String()
		if v := reading.Value(p); v != nil {
			currentValue = *v
		}
	}

	contextJSON, err := anomalyContext(reading, result)
	if err != nil {
		logger.Warn("failed to serialize anomaly context", zap.Error(err))
	}

	a := &models.Alert{
		PondID:       pondID,
		Parameter:    parameter,
		CurrentValue: currentValue,
		Type:         models.AlertTypeAnomalyDetected,
		Severity:     anomalySeverity(result),
		Status:       models.StatusActive,
		Title:        fmt.Sprintf("Anomaly detected in %s", pondName),
		Message:      Render("anomaly_detected", f.cfg.DefaultLanguage, subs),
		MessageFR:    Render("anomaly_detected", LangFR, subs),
		MessageAR:    Render("anomaly_detected", LangAR, subs),
		TriggeredAt:  f.now(),
		ReadingID:    readingID(reading),
		Context:      contextJSON,
	}

	if err := f.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("persist anomaly alert: %w", err)
	}

	f.notify(ctx, a)
	return a, nil
}

// CreateRuleAlert persists an alert for a confirmed threshold violation,
// keeping the rule's configured severity.
func (f *Factory) CreateRuleAlert(ctx context.Context, rule *models.AlertRule, reading *models.SensorReading, violation *rules.Violation) (*models.Alert, error) {
	pondName := f.pondName(ctx, rule.PondID)
	unit := f.units[violation.Parameter]

	subs := map[string]string{
		"value":     formatValue(violation.Value),
		"unit":      unit,
		"pond_name": pondName,
		"threshold": "N/A",
	}
	if violation.Threshold != nil {
		subs["threshold"] = formatValue(*violation.Threshold)
	}

	key := messageKey(violation.Parameter, string(rule.Severity), violation.Direction)

	side := "high"
	if violation.Direction == "below_min" {
		side = "low"
	}

	contextJSON, err := ruleContext(rule, reading, violation)
	if err != nil {
		logger.Warn("failed to serialize rule context", zap.Error(err))
	}

	a := &models.Alert{
		PondID:         rule.PondID,
		RuleID:         &rule.ID,
		Parameter:      violation.Parameter,
		CurrentValue:   violation.Value,
		ThresholdValue: violation.Threshold,
		Type:           models.AlertTypeThreshold,
		Severity:       rule.Severity,
		Status:         models.StatusActive,
		Title:          fmt.Sprintf("%s alert: %s %s in %s", capitalize(string(rule.Severity)), violation.Parameter, side, pondName),
		Message:        Render(key, f.cfg.DefaultLanguage, subs),
		MessageFR:      Render(key, LangFR, subs),
		MessageAR:      Render(key, LangAR, subs),
		TriggeredAt:    f.now(),
		ReadingID:      readingID(reading),
		Context:        contextJSON,
	}

	if err := f.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("persist rule alert: %w", err)
	}

	f.notify(ctx, a)
	return a, nil
}

// CreateStaleAlert raises a sensor_offline warning for a silent pond.
func (f *Factory) CreateStaleAlert(ctx context.Context, pondID uint32, pondName string, lastSeen *time.Time) (*models.Alert, error) {
	subs := map[string]string{"pond_name": pondName}

	ctxPayload := map[string]any{"alert_type": "stale_data"}
	if lastSeen != nil {
		ctxPayload["last_reading_at"] = lastSeen.UTC().Format(time.RFC3339)
	}
	contextJSON, _ := json.Marshal(ctxPayload)

	a := &models.Alert{
		PondID:      pondID,
		Parameter:   "data_connectivity",
		Type:        models.AlertTypeSensorOffline,
		Severity:    models.SeverityWarning,
		Status:      models.StatusActive,
		Title:       fmt.Sprintf("No data received from %s", pondName),
		Message:     Render("sensor_offline", f.cfg.DefaultLanguage, subs),
		MessageFR:   Render("sensor_offline", LangFR, subs),
		MessageAR:   Render("sensor_offline", LangAR, subs),
		TriggeredAt: f.now(),
		Context:     string(contextJSON),
	}

	if err := f.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("persist stale alert: %w", err)
	}

	f.notify(ctx, a)
	return a, nil
}

func (f *Factory) notify(ctx context.Context, a *models.Alert) {
	if f.dispatcher == nil {
		return
	}
	f.dispatcher.Notify(ctx, a.ID)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func readingID(reading *models.SensorReading) *uint32 {
	if reading == nil || reading.ID == 0 {
		return nil
	}
	id := reading.ID
	return &id
}

// readingSnapshot is the JSON-safe view of a reading embedded in alert
// context. Timestamps serialize to ISO-8601.
func readingSnapshot(reading *models.SensorReading) map[string]any {
	if reading == nil {
		return nil
	}
	snap := map[string]any{
		"pond_id":   reading.PondID,
		"timestamp": reading.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, p := range models.DetectorParameters {
		if v := reading.Value(p); v != nil {
			snap[p.String()] = *v
		}
	}
	return snap
}

func anomalyContext(reading *models.SensorReading, result *detect.Result) (string, error) {
	payload := map[string]any{
		"detection":   result,
		"sensor_data": readingSnapshot(reading),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ruleContext(rule *models.AlertRule, reading *models.SensorReading, violation *rules.Violation) (string, error) {
	payload := map[string]any{
		"rule_name":        rule.RuleName,
		"rule_description": rule.Description,
		"violation":        violation,
		"sensor_data":      readingSnapshot(reading),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
