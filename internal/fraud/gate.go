/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package fraud

import (
	"context"
	"math"
	"time"

	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Gate must satisfy governance.FraudGate.
var _ governance.FraudGate = (*Gate)(nil)

// ActivityStore is the slice of storage the gate reads its signals from.
type ActivityStore interface {
	CountClaimsSince(ctx context.Context, ownerId string, since time.Time) (int, error)
	AverageClaimAmountSince(ctx context.Context, ownerId string, since time.Time) (decimal.Decimal, error)
	CountVotesSince(ctx context.Context, voterId string, since time.Time) (int, error)
	RecentVoteTimes(ctx context.Context, voterId string, limit int) ([]time.Time, error)
	RecentClaimSubmissionTimes(ctx context.Context, ownerId string, limit int) ([]time.Time, error)
	CountDistinctLoginLocations(ctx context.Context, memberId string, since time.Time) (int, error)
}

// Gate scores an action against the fraud rules before it is allowed to
// touch storage. Scoring is additive and capped at 100. A rule whose
// signal cannot be read is skipped, not failed: the gate degrades open
// and logs, it never turns an infrastructure error into a block.
type Gate struct {
	activity ActivityStore
	limiter  RateLimiter
	rules    Rules
	now      func() time.Time
}

func NewGate(activity ActivityStore, limiter RateLimiter, rules Rules) *Gate {
	return &Gate{activity: activity, limiter: limiter, rules: rules, now: time.Now}
}

// WithClock returns a copy using the given clock.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	return &Gate{activity: g.activity, limiter: g.limiter, rules: g.rules, now: now}
}

// Evaluate screens one action. It is pure with respect to the domain:
// it reads activity signals, never writes.
func (g *Gate) Evaluate(ctx context.Context, userId string, action models.FraudActionType, payload models.FraudPayload) models.FraudAssessment {
	score := 0
	var indicators []models.FraudIndicator

	add := func(points int, ind models.FraudIndicator) {
		score += points
		for _, existing := range indicators {
			if existing == ind {
				return
			}
		}
		indicators = append(indicators, ind)
	}

	switch action {
	case models.ActionSubmitClaim:
		g.checkRapidClaims(ctx, userId, add)
		g.checkSuspiciousAmount(ctx, userId, payload.Amount, add)
		g.checkRoundNumber(payload.Amount, add)
		g.checkSubmissionRhythm(ctx, userId, add)
	case models.ActionCastVote:
		g.checkSuspiciousVoting(ctx, userId, add)
		g.checkBotPatterns(ctx, userId, add)
	}

	g.checkBurst(ctx, userId, action, add)
	g.checkVPNUsage(ctx, userId, add)

	if score > 100 {
		score = 100
	}

	level := g.bandFor(score)
	assessment := models.FraudAssessment{
		UserId:         userId,
		ActionType:     action,
		RiskScore:      score,
		RiskLevel:      level,
		Indicators:     indicators,
		Decision:       decisionFor(level),
		RequiresReview: level == models.RiskMedium || level == models.RiskHigh,
	}

	if assessment.Decision != models.DecisionAllow {
		zap.L().Warn("Fraud gate raised risk",
			zap.String("user_id", userId),
			zap.String("action", string(action)),
			zap.Int("risk_score", score),
			zap.String("decision", string(assessment.Decision)))
	}
	return assessment
}

func (g *Gate) checkRapidClaims(ctx context.Context, userId string, add func(int, models.FraudIndicator)) {
	now := g.now()

	daily, err := g.activity.CountClaimsSince(ctx, userId, now.Add(-24*time.Hour))
	if err != nil {
		g.skip("rapid claims (daily)", userId, err)
		return
	}
	weekly, err := g.activity.CountClaimsSince(ctx, userId, now.Add(-7*24*time.Hour))
	if err != nil {
		g.skip("rapid claims (weekly)", userId, err)
		return
	}

	if daily > g.rules.RapidClaims.MaxPerDay || weekly > g.rules.RapidClaims.MaxPerWeek {
		add(g.rules.RapidClaims.Points, models.IndicatorRapidClaims)
	}
}

func (g *Gate) checkSuspiciousAmount(ctx context.Context, userId string, amount decimal.Decimal, add func(int, models.FraudIndicator)) {
	if !amount.GreaterThan(decimal.NewFromInt(g.rules.SuspiciousAmount.MinimumAmount)) {
		return
	}

	avg, err := g.activity.AverageClaimAmountSince(ctx, userId, g.now().Add(-30*24*time.Hour))
	if err != nil {
		g.skip("suspicious amount", userId, err)
		return
	}
	if avg.IsZero() {
		// No claim history to compare against.
		return
	}

	threshold := avg.Mul(decimal.NewFromFloat(g.rules.SuspiciousAmount.AverageMultiplier))
	if amount.GreaterThan(threshold) {
		add(g.rules.SuspiciousAmount.Points, models.IndicatorSuspiciousAmount)
	}
}

func (g *Gate) checkRoundNumber(amount decimal.Decimal, add func(int, models.FraudIndicator)) {
	if amount.LessThan(decimal.NewFromInt(g.rules.RoundNumber.MinimumAmount)) {
		return
	}
	if amount.Mod(decimal.NewFromInt(g.rules.RoundNumber.Multiple)).IsZero() {
		add(g.rules.RoundNumber.Points, models.IndicatorRoundNumber)
	}
}

func (g *Gate) checkSuspiciousVoting(ctx context.Context, userId string, add func(int, models.FraudIndicator)) {
	weekly, err := g.activity.CountVotesSince(ctx, userId, g.now().Add(-7*24*time.Hour))
	if err != nil {
		g.skip("suspicious voting", userId, err)
		return
	}
	if weekly > g.rules.SuspiciousVoting.MaxVotesPerWeek {
		add(g.rules.SuspiciousVoting.Points, models.IndicatorSuspiciousVoting)
	}
}

// checkBotPatterns flags machine-like voting rhythm: a sustained
// inter-vote gap under the threshold, or votes landing in the same
// narrow time-of-day band every time.
func (g *Gate) checkBotPatterns(ctx context.Context, userId string, add func(int, models.FraudIndicator)) {
	limit := g.rules.BotInterval.MinSamples
	if g.rules.BotSchedule.MinSamples > limit {
		limit = g.rules.BotSchedule.MinSamples
	}

	times, err := g.activity.RecentVoteTimes(ctx, userId, limit)
	if err != nil {
		g.skip("bot patterns", userId, err)
		return
	}

	if len(times) >= g.rules.BotInterval.MinSamples {
		if avg := averageGapSeconds(times); avg < g.rules.BotInterval.MaxAverageSeconds {
			add(g.rules.BotInterval.Points, models.IndicatorBotLikeBehavior)
		}
	}
	if len(times) >= g.rules.BotSchedule.MinSamples {
		if hourStdDev(times) <= g.rules.BotSchedule.MaxHourStdDev {
			add(g.rules.BotSchedule.Points, models.IndicatorBotLikeBehavior)
		}
	}
}

// checkSubmissionRhythm applies the gap and time-of-day checks to claim
// submissions, same rules as the vote rhythm.
func (g *Gate) checkSubmissionRhythm(ctx context.Context, userId string, add func(int, models.FraudIndicator)) {
	limit := g.rules.BotInterval.MinSamples
	if g.rules.BotSchedule.MinSamples > limit {
		limit = g.rules.BotSchedule.MinSamples
	}

	times, err := g.activity.RecentClaimSubmissionTimes(ctx, userId, limit)
	if err != nil {
		g.skip("submission rhythm", userId, err)
		return
	}
	if len(times) >= g.rules.BotInterval.MinSamples {
		if avg := averageGapSeconds(times); avg < g.rules.BotInterval.MaxAverageSeconds {
			add(g.rules.BotInterval.Points, models.IndicatorBotLikeBehavior)
		}
	}
	if len(times) >= g.rules.BotSchedule.MinSamples {
		if hourStdDev(times) <= g.rules.BotSchedule.MaxHourStdDev {
			add(g.rules.BotSchedule.Points, models.IndicatorBotLikeBehavior)
		}
	}
}

func (g *Gate) checkBurst(ctx context.Context, userId string, action models.FraudActionType, add func(int, models.FraudIndicator)) {
	if g.limiter == nil {
		return
	}
	allowed, err := g.limiter.Allow(ctx, userId, action)
	if err != nil {
		g.skip("burst limiter", userId, err)
		return
	}
	if !allowed {
		add(g.rules.BotBurst.Points, models.IndicatorBotLikeBehavior)
	}
}

func (g *Gate) checkVPNUsage(ctx context.Context, userId string, add func(int, models.FraudIndicator)) {
	locations, err := g.activity.CountDistinctLoginLocations(ctx, userId, g.now().Add(-g.rules.VPNUsage.Window))
	if err != nil {
		g.skip("vpn usage", userId, err)
		return
	}
	if locations > g.rules.VPNUsage.MaxLocations {
		add(g.rules.VPNUsage.Points, models.IndicatorVPNUsage)
	}
}

func (g *Gate) skip(rule, userId string, err error) {
	zap.L().Warn("Fraud rule skipped",
		zap.String("rule", rule),
		zap.String("user_id", userId),
		zap.Error(err))
}

func (g *Gate) bandFor(score int) models.RiskLevel {
	switch {
	case score >= g.rules.Bands.Critical:
		return models.RiskCritical
	case score >= g.rules.Bands.High:
		return models.RiskHigh
	case score >= g.rules.Bands.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func decisionFor(level models.RiskLevel) models.FraudDecision {
	switch level {
	case models.RiskCritical:
		return models.DecisionBlock
	case models.RiskHigh, models.RiskMedium:
		return models.DecisionFlag
	default:
		return models.DecisionAllow
	}
}

// averageGapSeconds computes the mean gap between consecutive timestamps.
// Input order does not matter beyond adjacency; the store returns them
// newest first.
func averageGapSeconds(times []time.Time) float64 {
	if len(times) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(times); i++ {
		gap := times[i-1].Sub(times[i]).Seconds()
		if gap < 0 {
			gap = -gap
		}
		total += gap
	}
	return total / float64(len(times)-1)
}

// hourStdDev is the standard deviation of the hour-of-day across the
// timestamps. Humans drift; a near-zero spread means a scheduler.
func hourStdDev(times []time.Time) float64 {
	if len(times) == 0 {
		return 0
	}
	var sum float64
	for _, ts := range times {
		sum += float64(ts.UTC().Hour())
	}
	mean := sum / float64(len(times))

	var variance float64
	for _, ts := range times {
		d := float64(ts.UTC().Hour()) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(times)))
}
