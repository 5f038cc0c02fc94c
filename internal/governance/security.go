package governance

import (
	"context"
	"strconv"
	"strings"

	"dao-governance-go/internal/models"

	"go.uber.org/zap"
)

// FraudGate screens an action before anything about it is persisted.
type FraudGate interface {
	Evaluate(ctx context.Context, userID string, action models.FraudActionType, payload models.FraudPayload) models.FraudAssessment
}

// AuditTrail is a fire-and-forget append sink. Implementations swallow
// and log their own failures; Append never reports one.
type AuditTrail interface {
	Append(ctx context.Context, entry models.AuditEntry)
}

// AlertSink delivers fraud and operational alerts. Fire-and-forget.
type AlertSink interface {
	Raise(ctx context.Context, category, severity string, details map[string]string)
}

// LoginRecorder persists login locations for the gate's VPN signal.
type LoginRecorder interface {
	RecordLoginEvent(ctx context.Context, memberId, location, userAgent string) error
}

// SecurityContext bundles the security collaborators every use case
// needs. It is constructed once at wiring time and passed explicitly,
// never held as package state.
type SecurityContext struct {
	Gate   FraudGate
	Audit  AuditTrail
	Alerts AlertSink
	Logins LoginRecorder // optional
}

// Screen runs the fraud gate for an action and resolves the decision:
// BLOCK returns a SecurityBlockedError before the caller writes anything,
// FLAG lets the action proceed but raises an alert, ALLOW is silent.
// Every BLOCK evaluation raises its own alert, so repeating a blocked
// action raises repeated alerts.
func (s *SecurityContext) Screen(ctx context.Context, userID string, action models.FraudActionType, payload models.FraudPayload) (models.FraudAssessment, error) {
	s.recordLogin(ctx, userID)
	assessment := s.Gate.Evaluate(ctx, userID, action, payload)

	switch assessment.Decision {
	case models.DecisionBlock:
		s.raiseFraudAlert(ctx, assessment, "critical")
		return assessment, &SecurityBlockedError{Assessment: assessment}
	case models.DecisionFlag:
		s.raiseFraudAlert(ctx, assessment, strings.ToLower(string(assessment.RiskLevel)))
	}

	return assessment, nil
}

// recordLogin stores the request's location ahead of evaluation, so the
// location that triggered this screening counts toward the signal.
func (s *SecurityContext) recordLogin(ctx context.Context, userID string) {
	if s.Logins == nil {
		return
	}
	meta := models.GetRequestMeta(ctx)
	if meta == nil || meta.Location == "" {
		return
	}
	if err := s.Logins.RecordLoginEvent(ctx, userID, meta.Location, meta.UserAgent); err != nil {
		zap.L().Warn("Failed to record login event",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *SecurityContext) raiseFraudAlert(ctx context.Context, assessment models.FraudAssessment, severity string) {
	names := make([]string, len(assessment.Indicators))
	for i, ind := range assessment.Indicators {
		names[i] = string(ind)
	}
	s.Alerts.Raise(ctx, "fraud", severity, map[string]string{
		"user_id":    assessment.UserId,
		"action":     string(assessment.ActionType),
		"risk_score": strconv.Itoa(assessment.RiskScore),
		"risk_level": string(assessment.RiskLevel),
		"decision":   string(assessment.Decision),
		"indicators": strings.Join(names, ","),
	})
}
