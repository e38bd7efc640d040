package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aquawatch/internal/elasticsearch"
	"aquawatch/internal/health"
	"aquawatch/internal/logger"
	"aquawatch/internal/models"
	"aquawatch/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pond management

type PondRequest struct {
	Name        string  `json:"name" binding:"required"`
	Location    string  `json:"location"`
	AreaM2      float64 `json:"area_m2"`
	DepthM      float64 `json:"depth_m"`
	FishSpecies string  `json:"fish_species"`
	Active      *bool   `json:"active"`
}

func (s *Server) addPond(c *gin.Context) {
	var req PondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pond := &models.Pond{
		Name:        req.Name,
		Location:    req.Location,
		AreaM2:      req.AreaM2,
		DepthM:      req.DepthM,
		FishSpecies: req.FishSpecies,
		Active:      true,
	}
	if req.Active != nil {
		pond.Active = *req.Active
	}

	if err := s.store.CreatePond(c.Request.Context(), pond); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pond"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": pond.ID, "message": "Pond created successfully"})
}

func (s *Server) listPonds(c *gin.Context) {
	ponds, err := s.store.ListPonds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list ponds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ponds": ponds})
}

func (s *Server) getPond(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pond, err := s.store.GetPond(c.Request.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pond not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get pond"})
		return
	}
	c.JSON(http.StatusOK, pond)
}

func (s *Server) updatePond(c *gin.Context) {
	var req struct {
		IDRequest
		PondRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pond, err := s.store.GetPond(c.Request.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pond not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get pond"})
		return
	}

	pond.Name = req.Name
	pond.Location = req.Location
	pond.AreaM2 = req.AreaM2
	pond.DepthM = req.DepthM
	pond.FishSpecies = req.FishSpecies
	if req.Active != nil {
		pond.Active = *req.Active
	}

	if err := s.store.UpdatePond(c.Request.Context(), pond); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update pond"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pond updated successfully"})
}

// Sensor readings

type AddReadingRequest struct {
	PondID    uint32 `json:"pond_id" binding:"required"`
	Timestamp *int64 `json:"timestamp"` // Unix timestamp; defaults to now

	Temperature     *float64 `json:"temperature"`
	PH              *float64 `json:"ph"`
	DissolvedOxygen *float64 `json:"dissolved_oxygen"`
	Turbidity       *float64 `json:"turbidity"`
	Ammonia         *float64 `json:"ammonia"`
	Nitrate         *float64 `json:"nitrate"`
	Nitrite         *float64 `json:"nitrite"`
	Salinity        *float64 `json:"salinity"`
	WaterLevel      *float64 `json:"water_level"`
	FlowRate        *float64 `json:"flow_rate"`

	FishCount  *int     `json:"fish_count"`
	FishLength *float64 `json:"fish_length"`
	FishWeight *float64 `json:"fish_weight"`

	DataSource string `json:"data_source"`
}

func (s *Server) addReading(c *gin.Context) {
	var req AddReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.store.GetPond(c.Request.Context(), req.PondID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pond not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify pond"})
		return
	}

	reading := &models.SensorReading{
		PondID:          req.PondID,
		Temperature:     req.Temperature,
		PH:              req.PH,
		DissolvedOxygen: req.DissolvedOxygen,
		Turbidity:       req.Turbidity,
		Ammonia:         req.Ammonia,
		Nitrate:         req.Nitrate,
		Nitrite:         req.Nitrite,
		Salinity:        req.Salinity,
		WaterLevel:      req.WaterLevel,
		FlowRate:        req.FlowRate,
		FishCount:       req.FishCount,
		FishLength:      req.FishLength,
		FishWeight:      req.FishWeight,
		DataSource:      req.DataSource,
	}
	if req.Timestamp != nil {
		reading.Timestamp = time.Unix(*req.Timestamp, 0)
	} else {
		reading.Timestamp = time.Now()
	}
	if reading.DataSource == "" {
		reading.DataSource = "sensor"
	}

	if err := s.ingest.Submit(c.Request.Context(), reading); err != nil {
		logger.Error("reading submission failed",
			zap.Uint32("pond_id", req.PondID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store reading"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": reading.ID, "message": "Reading accepted"})
}

type ListReadingsRequest struct {
	PondID uint32 `json:"pond_id" binding:"required"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (s *Server) listReadings(c *gin.Context) {
	var req ListReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}

	readings, err := s.store.ListReadings(c.Request.Context(), req.PondID, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list readings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

// Alerts

type ListAlertsRequest struct {
	PondID uint32 `json:"pond_id" binding:"required"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (s *Server) listAlerts(c *gin.Context) {
	var req ListAlertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}

	alerts, err := s.store.ListAlerts(c.Request.Context(), req.PondID, models.AlertStatus(req.Status), req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) getAlert(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := s.store.GetAlert(c.Request.Context(), req.ID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	s.transitionAlert(c, models.StatusAcknowledged, "Alert acknowledged")
}

func (s *Server) resolveAlert(c *gin.Context) {
	s.transitionAlert(c, models.StatusResolved, "Alert resolved")
}

func (s *Server) transitionAlert(c *gin.Context, status models.AlertStatus, message string) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.store.SetAlertStatus(c.Request.Context(), req.ID, status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Alert rules

type AlertRuleRequest struct {
	PondID      uint32 `json:"pond_id" binding:"required"`
	Parameter   string `json:"parameter" binding:"required"`
	RuleName    string `json:"rule_name" binding:"required"`
	Description string `json:"description"`

	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`

	Severity string `json:"severity" binding:"omitempty,oneof=info warning critical"`
	Active   *bool  `json:"active"`

	Conditions string `json:"conditions"`

	SendEmail *bool `json:"send_email"`
	SendSMS   *bool `json:"send_sms"`
	SendPush  *bool `json:"send_push"`

	CooldownMinutes  int `json:"cooldown_minutes"`
	MaxAlertsPerHour int `json:"max_alerts_per_hour"`
}

func (s *Server) ruleFromRequest(req *AlertRuleRequest, rule *models.AlertRule) {
	rule.PondID = req.PondID
	rule.Parameter = req.Parameter
	rule.RuleName = req.RuleName
	rule.Description = req.Description
	rule.MinThreshold = req.MinThreshold
	rule.MaxThreshold = req.MaxThreshold

	rule.Severity = models.SeverityWarning
	if req.Severity != "" {
		rule.Severity = models.AlertSeverity(req.Severity)
	}

	rule.Active = true
	if req.Active != nil {
		rule.Active = *req.Active
	}

	rule.Conditions = req.Conditions

	rule.SendEmail = true
	if req.SendEmail != nil {
		rule.SendEmail = *req.SendEmail
	}
	if req.SendSMS != nil {
		rule.SendSMS = *req.SendSMS
	}
	rule.SendPush = true
	if req.SendPush != nil {
		rule.SendPush = *req.SendPush
	}

	rule.CooldownMinutes = req.CooldownMinutes
	if rule.CooldownMinutes <= 0 {
		rule.CooldownMinutes = s.config.Alert.DefaultCooldownMinutes
	}
	rule.MaxAlertsPerHour = req.MaxAlertsPerHour
	if rule.MaxAlertsPerHour <= 0 {
		rule.MaxAlertsPerHour = s.config.Alert.DefaultMaxAlertsPerHour
	}
}

func (s *Server) addAlertRule(c *gin.Context) {
	var req AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinThreshold == nil && req.MaxThreshold == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one of min_threshold or max_threshold is required"})
		return
	}

	var rule models.AlertRule
	s.ruleFromRequest(&req, &rule)

	if err := s.store.CreateRule(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert rule"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": rule.ID, "message": "Alert rule created successfully"})
}

func (s *Server) listAlertRules(c *gin.Context) {
	var req PondIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules, err := s.store.ListRules(c.Request.Context(), req.PondID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alert rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) getAlertRule(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := s.store.GetRule(c.Request.Context(), uint(req.ID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert rule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) updateAlertRule(c *gin.Context) {
	var req struct {
		IDRequest
		AlertRuleRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := s.store.GetRule(c.Request.Context(), uint(req.ID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert rule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert rule"})
		return
	}

	s.ruleFromRequest(&req.AlertRuleRequest, rule)

	if err := s.store.UpdateRule(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert rule updated successfully"})
}

func (s *Server) removeAlertRule(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.DeleteRule(c.Request.Context(), uint(req.ID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert rule deleted successfully"})
}

// Pond health

type PondHealthRequest struct {
	PondID       uint32 `json:"pond_id" binding:"required"`
	LookbackDays int    `json:"lookback_days"`
	Persist      bool   `json:"persist"`
}

func (s *Server) getPondHealth(c *gin.Context) {
	var req PondHealthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessment, err := s.healthEngine.Score(c.Request.Context(), req.PondID, req.LookbackDays)
	if errors.Is(err, health.ErrInsufficientData) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Assessment unavailable - insufficient data"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assess pond health"})
		return
	}

	if req.Persist {
		record := healthRecordFromAssessment(assessment)
		if err := s.store.SaveHealthRecord(c.Request.Context(), record); err != nil {
			logger.Warn("failed to persist health snapshot",
				zap.Uint32("pond_id", req.PondID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, assessment)
}

func healthRecordFromAssessment(a *health.Assessment) *models.PondHealthRecord {
	scores, _ := json.Marshal(a.ParameterScores)
	critical, _ := json.Marshal(a.CriticalIssues)
	recs, _ := json.Marshal(a.Recommendations)

	return &models.PondHealthRecord{
		PondID:             a.PondID,
		OverallScore:       a.OverallScore,
		Grade:              a.Grade,
		Status:             a.Status,
		RiskLevel:          a.RiskLevel,
		ParameterScores:    string(scores),
		WarningCount:       len(a.Warnings),
		CriticalIssues:     string(critical),
		Recommendations:    string(recs),
		ActionPriority:     a.ActionPriority,
		ParametersAssessed: a.ParametersAssessed,
		DataCompleteness:   a.DataCompleteness,
		Confidence:         a.Confidence,
		PeriodStart:        a.PeriodStart,
		PeriodEnd:          a.PeriodEnd,
		CalculatedAt:       a.CalculatedAt,
	}
}

type PondHealthHistoryRequest struct {
	PondID uint32 `json:"pond_id" binding:"required"`
	Limit  int    `json:"limit"`
}

func (s *Server) listPondHealth(c *gin.Context) {
	var req PondHealthHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	records, err := s.store.ListHealthRecords(c.Request.Context(), req.PondID, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list health records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Evaluation logs

type LogSearchRequest struct {
	PondID    *uint32 `json:"pond_id,omitempty"`
	Anomalies bool    `json:"anomalies,omitempty"`
	StartTime *int64  `json:"start_time,omitempty"` // Unix timestamp
	EndTime   *int64  `json:"end_time,omitempty"`   // Unix timestamp
	Size      int     `json:"size,omitempty"`
	From      int     `json:"from,omitempty"`
	QueryText string  `json:"query_text,omitempty"`
}

func (s *Server) searchLogs(c *gin.Context) {
	var req LogSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prefer Elasticsearch; fall back to the JSONL evaluation log.
	if s.es != nil {
		query := &elasticsearch.SearchQuery{
			PondID:    req.PondID,
			Anomalies: req.Anomalies,
			Size:      req.Size,
			From:      req.From,
			QueryText: req.QueryText,
		}
		if req.StartTime != nil {
			t := time.Unix(*req.StartTime, 0)
			query.StartTime = &t
		}
		if req.EndTime != nil {
			t := time.Unix(*req.EndTime, 0)
			query.EndTime = &t
		}

		result, err := s.es.SearchEvaluations(query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"total": result.Total,
			"hits":  result.Hits,
		})
		return
	}

	fileReq := &logger.EvalLogQuery{
		PondID:    req.PondID,
		Anomalies: req.Anomalies,
		Limit:     req.Size,
		Offset:    req.From,
	}
	if req.StartTime != nil {
		t := time.Unix(*req.StartTime, 0)
		fileReq.StartTime = &t
	}
	if req.EndTime != nil {
		t := time.Unix(*req.EndTime, 0)
		fileReq.EndTime = &t
	}
	if fileReq.Limit <= 0 {
		fileReq.Limit = 100
	}

	result, err := logger.QueryEvalLogs(s.logDir, fileReq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": result.Total,
		"hits":  result.Logs,
	})
}
