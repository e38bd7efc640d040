package rules

import (
	"context"
	"encoding/json"
	"time"

	"aquawatch/internal/logger"
	"aquawatch/internal/models"

	"go.uber.org/zap"
)

// AlertLog answers rate-limiting queries against previously raised alerts.
type AlertLog interface {
	// LastTriggered returns when the rule last produced an alert, or nil.
	LastTriggered(ctx context.Context, ruleID uint) (*time.Time, error)
	// CountSince counts alerts raised by the rule at or after the cutoff.
	CountSince(ctx context.Context, ruleID uint, since time.Time) (int64, error)
}

// AlertSink receives confirmed threshold violations.
type AlertSink interface {
	CreateRuleAlert(ctx context.Context, rule *models.AlertRule, reading *models.SensorReading, violation *Violation) (*models.Alert, error)
}

// Bound is one side-constrained sub-condition inside a compound rule.
type Bound struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// conditions is the parsed form of AlertRule.Conditions.
type conditions struct {
	MultipleParameters map[string]Bound `json:"multiple_parameters,omitempty"`
}

// Violation describes why a rule fired.
type Violation struct {
	Parameter string   `json:"parameter"`
	Value     float64  `json:"value"`
	Threshold *float64 `json:"threshold,omitempty"`
	Direction string   `json:"direction"` // "below_min" or "above_max"
	Compound  bool     `json:"compound"`
}

// Evaluator checks readings against operator-defined threshold rules.
// Violations are strict: a value exactly equal to a bound does not fire.
type Evaluator struct {
	log  AlertLog
	sink AlertSink
	now  func() time.Time
}

func NewEvaluator(log AlertLog, sink AlertSink) *Evaluator {
	return &Evaluator{
		log:  log,
		sink: sink,
		now:  time.Now,
	}
}

// Evaluate runs every active rule against the reading, returning the
// alerts that were actually raised after rate limiting.
func (e *Evaluator) Evaluate(ctx context.Context, reading *models.SensorReading, rules []models.AlertRule) ([]*models.Alert, error) {
	var raised []*models.Alert

	for i := range rules {
		rule := &rules[i]
		if !rule.Active {
			continue
		}

		violation := e.check(rule, reading)
		if violation == nil {
			continue
		}

		allowed, err := e.allow(ctx, rule)
		if err != nil {
			logger.Error("rate limit lookup failed",
				zap.Uint("rule_id", rule.ID),
				zap.Error(err))
			continue
		}
		if !allowed {
			logger.Debug("rule suppressed by rate limit",
				zap.Uint("rule_id", rule.ID),
				zap.String("rule_name", rule.RuleName))
			continue
		}

		alert, err := e.sink.CreateRuleAlert(ctx, rule, reading, violation)
		if err != nil {
			logger.Error("failed to create rule alert",
				zap.Uint("rule_id", rule.ID),
				zap.Error(err))
			continue
		}
		raised = append(raised, alert)
	}

	return raised, nil
}

// check returns a violation description, or nil when the rule passes.
func (e *Evaluator) check(rule *models.AlertRule, reading *models.SensorReading) *Violation {
	value := reading.Value(models.Parameter(rule.Parameter))
	if value == nil {
		return nil
	}

	var v *Violation
	if rule.MinThreshold != nil && *value < *rule.MinThreshold {
		v = &Violation{
			Parameter: rule.Parameter,
			Value:     *value,
			Threshold: rule.MinThreshold,
			Direction: "below_min",
		}
	} else if rule.MaxThreshold != nil && *value > *rule.MaxThreshold {
		v = &Violation{
			Parameter: rule.Parameter,
			Value:     *value,
			Threshold: rule.MaxThreshold,
			Direction: "above_max",
		}
	}
	if v == nil {
		return nil
	}

	if rule.Conditions != "" {
		ok, compound := e.checkConditions(rule, reading)
		if !ok {
			return nil
		}
		v.Compound = compound
	}

	return v
}

// checkConditions evaluates compound sub-conditions. All sub-conditions
// must hold; a sub-condition on a parameter the reading lacks fails the
// whole rule. Malformed JSON disables the rule for this reading.
func (e *Evaluator) checkConditions(rule *models.AlertRule, reading *models.SensorReading) (ok bool, compound bool) {
	var cond conditions
	if err := json.Unmarshal([]byte(rule.Conditions), &cond); err != nil {
		logger.Warn("malformed rule conditions",
			zap.Uint("rule_id", rule.ID),
			zap.Error(err))
		return false, false
	}
	if len(cond.MultipleParameters) == 0 {
		return true, false
	}

	for name, bound := range cond.MultipleParameters {
		value := reading.Value(models.Parameter(name))
		if value == nil {
			return false, true
		}
		if bound.Min != nil && *value < *bound.Min {
			return false, true
		}
		if bound.Max != nil && *value > *bound.Max {
			return false, true
		}
	}
	return true, true
}

// allow applies the rule's cooldown and hourly cap.
func (e *Evaluator) allow(ctx context.Context, rule *models.AlertRule) (bool, error) {
	now := e.now()

	if rule.CooldownMinutes > 0 {
		last, err := e.log.LastTriggered(ctx, rule.ID)
		if err != nil {
			return false, err
		}
		if last != nil && now.Sub(*last) < time.Duration(rule.CooldownMinutes)*time.Minute {
			return false, nil
		}
	}

	if rule.MaxAlertsPerHour > 0 {
		count, err := e.log.CountSince(ctx, rule.ID, now.Add(-time.Hour))
		if err != nil {
			return false, err
		}
		if count >= int64(rule.MaxAlertsPerHour) {
			return false, nil
		}
	}

	return true, nil
}
