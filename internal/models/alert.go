package models

import "time"

// AlertSeverity levels
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus lifecycle states. Transitions out of "active" are driven by
// operator actions, not by the evaluation core.
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusSuppressed   AlertStatus = "suppressed"
)

// AlertType categories
type AlertType string

const (
	AlertTypeThreshold       AlertType = "threshold_violation"
	AlertTypeAnomalyDetected AlertType = "anomaly_detected"
	AlertTypeSensorOffline   AlertType = "sensor_offline"
)

// AlertRule defines a static threshold condition that triggers alerts for a
// pond. Created by operators, consumed read-only by the rule evaluator.
type AlertRule struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	PondID uint32 `gorm:"not null;index" json:"pond_id"`

	Parameter   string `gorm:"size:50;not null;index" json:"parameter"` // temperature, ph, etc.
	RuleName    string `gorm:"size:100;not null" json:"rule_name"`
	Description string `gorm:"type:text" json:"description"`

	MinThreshold *float64 `json:"min_threshold,omitempty"` // violated when value < min (strict)
	MaxThreshold *float64 `json:"max_threshold,omitempty"` // violated when value > max (strict)

	Severity AlertSeverity `gorm:"size:20;not null;default:warning" json:"severity"`
	Active   bool          `gorm:"default:true;index" json:"active"`

	// Conditions holds optional compound sub-conditions as JSON, e.g.
	// {"multiple_parameters":{"ph":{"min":6.5},"temperature":{"max":30}}}
	Conditions string `gorm:"type:text" json:"conditions,omitempty"`

	// Notification channel flags
	SendEmail bool `gorm:"default:true" json:"send_email"`
	SendSMS   bool `gorm:"default:false" json:"send_sms"`
	SendPush  bool `gorm:"default:true" json:"send_push"`

	// Rate limiting
	CooldownMinutes  int `gorm:"default:30" json:"cooldown_minutes"`
	MaxAlertsPerHour int `gorm:"default:4" json:"max_alerts_per_hour"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

// Alert is a triggered alert record, produced either by the threshold rule
// evaluator (RuleID set) or by the anomaly orchestrator (RuleID nil).
type Alert struct {
	ID     uint32  `gorm:"primaryKey" json:"id"`
	PondID uint32  `gorm:"not null;index" json:"pond_id"`
	RuleID *uint   `gorm:"index" json:"rule_id,omitempty"`

	Parameter      string   `gorm:"size:50;not null;index" json:"parameter"` // or "multiple"
	CurrentValue   float64  `json:"current_value"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`

	Type     AlertType     `gorm:"size:50;not null;default:threshold_violation;index" json:"type"`
	Severity AlertSeverity `gorm:"size:20;not null;index" json:"severity"`
	Status   AlertStatus   `gorm:"size:20;not null;default:active;index" json:"status"`

	Title     string `gorm:"size:200;not null" json:"title"`
	Message   string `gorm:"type:text;not null" json:"message"`
	MessageFR string `gorm:"column:message_fr;type:text" json:"message_fr,omitempty"`
	MessageAR string `gorm:"column:message_ar;type:text" json:"message_ar,omitempty"`

	TriggeredAt    time.Time  `gorm:"not null;index" json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	ReadingID *uint32 `json:"reading_id,omitempty"`

	// Context holds diagnostic payload as JSON (detector traces, sensor
	// snapshot); all timestamps inside are ISO-8601 strings.
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// PondHealthRecord is an optional persisted snapshot of a health assessment.
type PondHealthRecord struct {
	ID     uint32 `gorm:"primaryKey" json:"id"`
	PondID uint32 `gorm:"not null;index" json:"pond_id"`

	OverallScore float64 `gorm:"not null" json:"overall_score"` // 0-100, weighted
	Grade        string  `gorm:"size:5;not null" json:"grade"`  // A+ .. F
	Status       string  `gorm:"size:20;not null" json:"status"`
	RiskLevel    string  `gorm:"size:10;not null" json:"risk_level"` // Low, Medium, High

	ParameterScores string `gorm:"type:text" json:"parameter_scores,omitempty"` // JSON map
	WarningCount    int    `gorm:"default:0" json:"warning_count"`
	CriticalIssues  string `gorm:"type:text" json:"critical_issues,omitempty"`  // JSON array
	Recommendations string `gorm:"type:text" json:"recommendations,omitempty"`  // JSON array
	ActionPriority  string `gorm:"size:20" json:"action_priority"`              // Maintain, Monitor, Improve, Urgent

	ParametersAssessed int     `gorm:"default:0" json:"parameters_assessed"`
	DataCompleteness   float64 `json:"data_completeness"`     // percent
	Confidence         float64 `json:"assessment_confidence"` // 0-1

	PeriodStart  time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd    time.Time `gorm:"not null" json:"period_end"`
	CalculatedAt time.Time `gorm:"index" json:"calculated_at"`
}

func (PondHealthRecord) TableName() string {
	return "pond_health"
}
