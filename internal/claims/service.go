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

// Package claims implements the mutual-aid claim lifecycle: draft,
// submission through the fraud gate, validator review, community voting,
// and exactly-once finalization with a treasury payout.
package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dao-governance-go/internal/database"
	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// approvalQuorumPct of the active membership must vote before a claim
// can finalize, rounded up.
const approvalQuorumPct = 60

// ReviewDecision is the validator's routing choice for a claim.
type ReviewDecision string

const (
	ReviewOpenVoting ReviewDecision = "OPEN_VOTING"
	ReviewApprove    ReviewDecision = "APPROVE"
	ReviewReject     ReviewDecision = "REJECT"
)

// Store is the slice of storage the claim service needs.
type Store interface {
	CreateClaim(ctx context.Context, params database.CreateClaimParams) (*models.Claim, error)
	GetClaimById(ctx context.Context, claimId string) (*models.Claim, error)
	TransitionClaim(ctx context.Context, claimId string, from, to models.ClaimStatus) error
	RouteClaimToReview(ctx context.Context, claimId string) error
	OpenClaimVoting(ctx context.Context, claimId string, openedAt time.Time) error
	ReviewClaim(ctx context.Context, claimId string, outcome models.ClaimStatus, approvedAmount *decimal.Decimal, closedAt time.Time) error
	FinalizeClaim(ctx context.Context, claimId string, outcome models.ClaimStatus, approvedAmount *decimal.Decimal, closedAt time.Time) (bool, error)
	EscalateClaim(ctx context.Context, claimId string) (bool, error)
	InsertClaimVote(ctx context.Context, claimId, voterId string, choice models.ClaimVoteChoice, justification string) (*models.ClaimVote, error)
	CountClaimVotes(ctx context.Context, claimId string) (database.ClaimVoteTally, error)
	CountActiveMembers(ctx context.Context) (int, error)
	GetMemberById(ctx context.Context, memberId string) (*models.Member, error)
	IncrementSuccessfulClaimCount(ctx context.Context, memberId string) error
}

// Service orchestrates the claim lifecycle.
type Service struct {
	store    Store
	ledger   store.TreasuryLedger
	security *governance.SecurityContext
	now      func() time.Time
}

func NewService(claimStore Store, ledger store.TreasuryLedger, security *governance.SecurityContext) *Service {
	return &Service{store: claimStore, ledger: ledger, security: security, now: time.Now}
}

// WithClock returns a copy using the given clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{store: s.store, ledger: s.ledger, security: s.security, now: now}
}

// Create opens a DRAFT claim for the actor. Drafts are private working
// state; the fraud gate runs at submission, not here.
func (s *Service) Create(ctx context.Context, actor models.Actor, amount decimal.Decimal, description string) (*models.Claim, error) {
	if actor.MembershipStatus != models.MembershipActive {
		return nil, governance.Forbiddenf("only active members may create claims")
	}
	if !amount.IsPositive() {
		return nil, governance.Validationf("claim amount must be positive, got %s", amount.String())
	}
	if description == "" {
		return nil, governance.Validationf("claim description is required")
	}

	return s.store.CreateClaim(ctx, database.CreateClaimParams{
		OwnerId:         actor.UserID,
		RequestedAmount: amount,
		Description:     description,
		Status:          models.ClaimDraft,
	})
}

// Submit moves the actor's DRAFT claim to SUBMITTED. The fraud gate
// screens the submission before the status changes; a BLOCK decision
// leaves the claim untouched in DRAFT. A high-risk but unblocked
// submission lands in UNDER_REVIEW instead of the normal queue.
func (s *Service) Submit(ctx context.Context, actor models.Actor, claimId string) (*models.Claim, error) {
	claim, err := s.getClaim(ctx, claimId)
	if err != nil {
		return nil, err
	}
	if claim.OwnerId != actor.UserID {
		return nil, governance.Forbiddenf("only the claim owner may submit it")
	}
	if claim.Status != models.ClaimDraft {
		return nil, governance.Conflictf("claim %s is %s, only DRAFT claims can be submitted", claimId, claim.Status)
	}

	assessment, err := s.security.Screen(ctx, actor.UserID, models.ActionSubmitClaim,
		models.FraudPayload{Amount: claim.RequestedAmount})
	if err != nil {
		return nil, err
	}

	if err := s.store.TransitionClaim(ctx, claimId, models.ClaimDraft, models.ClaimSubmitted); err != nil {
		return nil, s.mapTransitionErr(err, claimId)
	}
	if assessment.RequiresReview {
		if err := s.store.RouteClaimToReview(ctx, claimId); err != nil {
			return nil, s.mapTransitionErr(err, claimId)
		}
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "SUBMIT_CLAIM",
		EntityType: "claim",
		EntityId:   claimId,
		Detail:     fmt.Sprintf("requested %s, risk score %d", claim.RequestedAmount.String(), assessment.RiskScore),
	})
	return s.getClaim(ctx, claimId)
}

// Review routes a submitted claim: open community voting, or decide it
// directly. Direct approval requires an amount.
func (s *Service) Review(ctx context.Context, actor models.Actor, claimId string, decision ReviewDecision, approvedAmount *decimal.Decimal) (*models.Claim, error) {
	if !actor.Role.CanReview() {
		return nil, governance.Forbiddenf("role %s may not review claims", actor.Role)
	}

	claim, err := s.getClaim(ctx, claimId)
	if err != nil {
		return nil, err
	}
	if claim.OwnerId == actor.UserID {
		return nil, governance.Forbiddenf("reviewers may not review their own claims")
	}

	switch decision {
	case ReviewOpenVoting:
		err = s.store.OpenClaimVoting(ctx, claimId, s.now().UTC())
	case ReviewApprove:
		if approvedAmount == nil || !approvedAmount.IsPositive() {
			return nil, governance.Validationf("direct approval requires a positive amount")
		}
		err = s.store.ReviewClaim(ctx, claimId, models.ClaimApproved, approvedAmount, s.now().UTC())
	case ReviewReject:
		err = s.store.ReviewClaim(ctx, claimId, models.ClaimRejected, nil, s.now().UTC())
	default:
		return nil, governance.Validationf("unknown review decision %q", decision)
	}
	if err != nil {
		return nil, s.mapTransitionErr(err, claimId)
	}

	if decision == ReviewApprove {
		s.settleApproved(ctx, claimId, claim.OwnerId, *approvedAmount)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "REVIEW_CLAIM",
		EntityType: "claim",
		EntityId:   claimId,
		Detail:     string(decision),
	})
	return s.getClaim(ctx, claimId)
}

// CastVote records a community vote on a claim in COMMUNITY_VOTING.
// The fraud gate screens the vote before anything is written. The claim
// owner may not vote on their own claim. After a successful vote the
// service attempts finalization; a finalization failure is logged, the
// vote itself stands.
func (s *Service) CastVote(ctx context.Context, actor models.Actor, claimId string, choice models.ClaimVoteChoice, justification string) (*models.ClaimVote, error) {
	if actor.MembershipStatus != models.MembershipActive {
		return nil, governance.Forbiddenf("only active members may vote")
	}
	if !validClaimChoice(choice) {
		return nil, governance.Validationf("unknown vote choice %q", choice)
	}

	claim, err := s.getClaim(ctx, claimId)
	if err != nil {
		return nil, err
	}
	if claim.OwnerId == actor.UserID {
		return nil, governance.Forbiddenf("members may not vote on their own claims")
	}
	if claim.Status != models.ClaimCommunityVoting {
		return nil, governance.Conflictf("claim %s is not open for voting", claimId)
	}

	if _, err := s.security.Screen(ctx, actor.UserID, models.ActionCastVote, models.FraudPayload{}); err != nil {
		return nil, err
	}

	vote, err := s.store.InsertClaimVote(ctx, claimId, actor.UserID, choice, justification)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateVote) {
			return nil, governance.Conflictf("member %s already voted on claim %s", actor.UserID, claimId)
		}
		if errors.Is(err, store.ErrStateConflict) {
			return nil, governance.Conflictf("claim %s is not open for voting", claimId)
		}
		return nil, fmt.Errorf("unable to record vote: %w", err)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "CAST_CLAIM_VOTE",
		EntityType: "claim",
		EntityId:   claimId,
		Detail:     string(choice),
	})

	if _, err := s.TryFinalize(ctx, claimId); err != nil {
		zap.L().Error("Claim finalization attempt failed after vote",
			zap.String("claim_id", claimId),
			zap.Error(err))
	}
	return vote, nil
}

// TryFinalize closes a claim once enough of the active membership has
// voted: the threshold is 60% of the current active member count,
// rounded up. More approvals than rejections approves for the full
// requested amount; a tie rejects. The conditional UPDATE on the
// COMMUNITY_VOTING status guarantees exactly one caller wins the
// transition, so payout recording and the approval counter run once
// even when two voters finalize concurrently.
func (s *Service) TryFinalize(ctx context.Context, claimId string) (bool, error) {
	claim, err := s.getClaim(ctx, claimId)
	if err != nil {
		return false, err
	}
	if claim.Status != models.ClaimCommunityVoting {
		return false, nil
	}

	activeCount, err := s.store.CountActiveMembers(ctx)
	if err != nil {
		return false, fmt.Errorf("unable to count active members: %w", err)
	}
	threshold := approvalThreshold(activeCount)

	tally, err := s.store.CountClaimVotes(ctx, claimId)
	if err != nil {
		return false, fmt.Errorf("unable to tally votes: %w", err)
	}
	if tally.Total() < threshold {
		return false, nil
	}

	outcome := models.ClaimRejected
	var approvedAmount *decimal.Decimal
	if tally.Approve > tally.Reject {
		outcome = models.ClaimApproved
		approvedAmount = &claim.RequestedAmount
	}

	won, err := s.store.FinalizeClaim(ctx, claimId, outcome, approvedAmount, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("unable to finalize claim: %w", err)
	}
	if !won {
		// Another caller finalized first.
		return false, nil
	}

	zap.L().Info("Claim finalized",
		zap.String("claim_id", claimId),
		zap.String("outcome", string(outcome)),
		zap.Int("approve", tally.Approve),
		zap.Int("reject", tally.Reject),
		zap.Int("abstain", tally.Abstain),
		zap.Int("threshold", threshold))

	if outcome == models.ClaimApproved {
		s.settleApproved(ctx, claimId, claim.OwnerId, claim.RequestedAmount)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    "system",
		Action:     "FINALIZE_CLAIM",
		EntityType: "claim",
		EntityId:   claimId,
		Detail: fmt.Sprintf("%s with %d approve / %d reject / %d abstain, threshold %d",
			outcome, tally.Approve, tally.Reject, tally.Abstain, threshold),
	})
	return true, nil
}

// Escalate flags a claim for fraud review. Allowed from any pre-terminal
// state.
func (s *Service) Escalate(ctx context.Context, actor models.Actor, claimId string) error {
	if !actor.Role.CanEscalate() {
		return governance.Forbiddenf("role %s may not escalate claims", actor.Role)
	}
	if _, err := s.getClaim(ctx, claimId); err != nil {
		return err
	}

	flagged, err := s.store.EscalateClaim(ctx, claimId)
	if err != nil {
		return fmt.Errorf("unable to escalate claim: %w", err)
	}
	if !flagged {
		return governance.Conflictf("claim %s is already settled", claimId)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "ESCALATE_CLAIM",
		EntityType: "claim",
		EntityId:   claimId,
	})
	s.security.Alerts.Raise(ctx, "fraud", "high", map[string]string{
		"claim_id":     claimId,
		"escalated_by": actor.UserID,
	})
	return nil
}

// Get returns a claim by id.
func (s *Service) Get(ctx context.Context, claimId string) (*models.Claim, error) {
	return s.getClaim(ctx, claimId)
}

// settleApproved records the treasury payout and bumps the owner's
// participation counter. Both are best-effort: the approval already
// happened and is never unwound; a failed payout record is retried by
// the sweeper, which re-derives it from approved claims without payouts.
func (s *Service) settleApproved(ctx context.Context, claimId, ownerId string, amount decimal.Decimal) {
	payoutId, err := s.ledger.RecordPayout(ctx, store.RecordPayoutParams{
		SourceType: "claim",
		SourceId:   claimId,
		MemberId:   ownerId,
		Amount:     amount,
	})
	if err != nil {
		zap.L().Error("Failed to record payout for approved claim",
			zap.String("claim_id", claimId),
			zap.String("owner_id", ownerId),
			zap.String("amount", amount.String()),
			zap.Error(err))
	} else {
		zap.L().Info("Payout recorded",
			zap.String("claim_id", claimId),
			zap.String("payout_id", payoutId),
			zap.String("amount", amount.String()))
	}

	if err := s.store.IncrementSuccessfulClaimCount(ctx, ownerId); err != nil {
		zap.L().Error("Failed to increment successful claim count",
			zap.String("member_id", ownerId),
			zap.Error(err))
	}
}

func (s *Service) getClaim(ctx context.Context, claimId string) (*models.Claim, error) {
	claim, err := s.store.GetClaimById(ctx, claimId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("claim %s does not exist", claimId)
		}
		return nil, fmt.Errorf("unable to load claim: %w", err)
	}
	return claim, nil
}

func (s *Service) mapTransitionErr(err error, claimId string) error {
	if errors.Is(err, store.ErrStateConflict) {
		return governance.Conflictf("claim %s changed state concurrently", claimId)
	}
	return fmt.Errorf("unable to transition claim: %w", err)
}

// approvalThreshold is ceil(activeMembers * 60%).
func approvalThreshold(activeMembers int) int {
	return (activeMembers*approvalQuorumPct + 99) / 100
}

func validClaimChoice(choice models.ClaimVoteChoice) bool {
	switch choice {
	case models.ClaimVoteApprove, models.ClaimVoteReject, models.ClaimVoteAbstain:
		return true
	}
	return false
}
