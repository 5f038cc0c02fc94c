package models

import "github.com/shopspring/decimal"

// FraudIndicator names one rule that contributed to a risk score.
type FraudIndicator string

const (
	IndicatorRapidClaims      FraudIndicator = "RAPID_CLAIMS"
	IndicatorSuspiciousAmount FraudIndicator = "SUSPICIOUS_AMOUNT"
	IndicatorRoundNumber      FraudIndicator = "ROUND_NUMBER"
	IndicatorSuspiciousVoting FraudIndicator = "SUSPICIOUS_VOTING"
	IndicatorBotLikeBehavior  FraudIndicator = "BOT_LIKE_BEHAVIOR"
	IndicatorVPNUsage         FraudIndicator = "VPN_USAGE"
)

// FraudActionType identifies the action being screened.
type FraudActionType string

const (
	ActionSubmitClaim    FraudActionType = "SUBMIT_CLAIM"
	ActionCastVote       FraudActionType = "CAST_VOTE"
	ActionCreateProposal FraudActionType = "CREATE_PROPOSAL"
)

// RiskLevel bands the 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// FraudDecision is what the gate tells the caller to do.
type FraudDecision string

const (
	DecisionAllow FraudDecision = "ALLOW"
	DecisionFlag  FraudDecision = "FLAG"
	DecisionBlock FraudDecision = "BLOCK"
)

// FraudPayload is the action-specific input to a gate evaluation.
// Amount is set for claim submissions and zero otherwise.
type FraudPayload struct {
	Amount decimal.Decimal
}

// FraudAssessment is the transient result of one gate evaluation.
// It is never persisted as a domain entity; BLOCK results must stop
// the action before any write happens.
type FraudAssessment struct {
	UserId         string
	ActionType     FraudActionType
	RiskScore      int
	RiskLevel      RiskLevel
	Indicators     []FraudIndicator
	Decision       FraudDecision
	RequiresReview bool
}

// HasIndicator reports whether the assessment includes the indicator.
func (a FraudAssessment) HasIndicator(ind FraudIndicator) bool {
	for _, i := range a.Indicators {
		if i == ind {
			return true
		}
	}
	return false
}
