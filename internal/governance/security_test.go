package governance

import (
	"context"
	"errors"
	"testing"

	"dao-governance-go/internal/models"
)

type fixedGate struct {
	decision models.FraudDecision
	level    models.RiskLevel
}

func (g fixedGate) Evaluate(_ context.Context, userID string, action models.FraudActionType, _ models.FraudPayload) models.FraudAssessment {
	return models.FraudAssessment{
		UserId:     userID,
		ActionType: action,
		RiskLevel:  g.level,
		Decision:   g.decision,
	}
}

type sinkRecorder struct {
	entries []models.AuditEntry
	alerts  []map[string]string
	logins  []string
}

func (r *sinkRecorder) Append(_ context.Context, entry models.AuditEntry) {
	r.entries = append(r.entries, entry)
}

func (r *sinkRecorder) Raise(_ context.Context, category, severity string, details map[string]string) {
	copied := map[string]string{"category": category, "severity": severity}
	for k, v := range details {
		copied[k] = v
	}
	r.alerts = append(r.alerts, copied)
}

func (r *sinkRecorder) RecordLoginEvent(_ context.Context, memberId, location, _ string) error {
	r.logins = append(r.logins, memberId+"@"+location)
	return nil
}

func newSecurityContext(decision models.FraudDecision, level models.RiskLevel) (*SecurityContext, *sinkRecorder) {
	recorder := &sinkRecorder{}
	return &SecurityContext{
		Gate:   fixedGate{decision: decision, level: level},
		Audit:  recorder,
		Alerts: recorder,
		Logins: recorder,
	}, recorder
}

func TestScreen_Allow(t *testing.T) {
	sc, recorder := newSecurityContext(models.DecisionAllow, models.RiskLow)

	_, err := sc.Screen(context.Background(), "alice", models.ActionCastVote, models.FraudPayload{})
	if err != nil {
		t.Fatalf("ALLOW must pass, got %v", err)
	}
	if len(recorder.alerts) != 0 {
		t.Errorf("ALLOW must not alert, got %d alerts", len(recorder.alerts))
	}
}

func TestScreen_FlagAlertsButProceeds(t *testing.T) {
	sc, recorder := newSecurityContext(models.DecisionFlag, models.RiskMedium)

	_, err := sc.Screen(context.Background(), "alice", models.ActionSubmitClaim, models.FraudPayload{})
	if err != nil {
		t.Fatalf("FLAG must not fail the action, got %v", err)
	}
	if len(recorder.alerts) != 1 {
		t.Fatalf("Expected one alert, got %d", len(recorder.alerts))
	}
	if recorder.alerts[0]["severity"] != "medium" {
		t.Errorf("Expected severity medium, got %s", recorder.alerts[0]["severity"])
	}
}

func TestScreen_Block(t *testing.T) {
	sc, recorder := newSecurityContext(models.DecisionBlock, models.RiskCritical)

	_, err := sc.Screen(context.Background(), "alice", models.ActionSubmitClaim, models.FraudPayload{})
	if !errors.Is(err, ErrSecurityBlocked) {
		t.Fatalf("Expected ErrSecurityBlocked, got %v", err)
	}

	var blocked *SecurityBlockedError
	if !errors.As(err, &blocked) {
		t.Fatal("Expected a SecurityBlockedError carrying the assessment")
	}
	if blocked.Assessment.UserId != "alice" {
		t.Errorf("Expected assessment for alice, got %s", blocked.Assessment.UserId)
	}
	if len(recorder.alerts) != 1 || recorder.alerts[0]["severity"] != "critical" {
		t.Errorf("Expected one critical alert, got %+v", recorder.alerts)
	}
}

func TestScreen_RecordsLoginFromRequestMeta(t *testing.T) {
	sc, recorder := newSecurityContext(models.DecisionAllow, models.RiskLow)

	ctx := models.WithRequestMeta(context.Background(), &models.RequestMeta{Location: "NL", UserAgent: "cli"})
	if _, err := sc.Screen(ctx, "alice", models.ActionCastVote, models.FraudPayload{}); err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if len(recorder.logins) != 1 || recorder.logins[0] != "alice@NL" {
		t.Errorf("Expected one login event for alice@NL, got %v", recorder.logins)
	}

	// Without metadata nothing is recorded.
	if _, err := sc.Screen(context.Background(), "alice", models.ActionCastVote, models.FraudPayload{}); err != nil {
		t.Fatalf("Screen failed: %v", err)
	}
	if len(recorder.logins) != 1 {
		t.Errorf("Expected no additional login events, got %v", recorder.logins)
	}
}
