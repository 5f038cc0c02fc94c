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

// Package proposals implements token-weighted governance proposals:
// creation gated by minimum voting power, power-weighted voting inside a
// time window, and quorum-then-threshold finalization.
package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dao-governance-go/internal/database"
	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"
	"dao-governance-go/internal/voting"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minProposalPower is the voting power required to create a proposal.
var minProposalPower = decimal.NewFromInt(10000)

// Store is the slice of storage the proposal service needs.
type Store interface {
	CreateProposal(ctx context.Context, params database.CreateProposalParams) (*models.Proposal, error)
	GetProposalById(ctx context.Context, proposalId string) (*models.Proposal, error)
	InsertProposalVote(ctx context.Context, params database.InsertProposalVoteParams) (*models.ProposalVote, error)
	ActivateProposal(ctx context.Context, proposalId string) (bool, error)
	FinalizeProposal(ctx context.Context, proposalId string, outcome models.ProposalStatus, executable bool) (bool, error)
	ExecuteProposal(ctx context.Context, proposalId, executorId string, executedAt time.Time) error
	CancelProposal(ctx context.Context, proposalId string) error
}

// ExecutionHandler applies the effect of one passed proposal category.
// Handlers must be idempotent per proposal: the EXECUTED transition has
// already been won when a handler runs, but a crash between transition
// and effect means operators may re-drive the handler by hand.
type ExecutionHandler func(ctx context.Context, proposal *models.Proposal) error

// CreateParams are the caller-supplied fields of a new proposal.
type CreateParams struct {
	Category           models.ProposalCategory
	Title              string
	Description        string
	StartTime          time.Time
	EndTime            time.Time
	QuorumRequiredPct  int
	VotingThresholdPct int
}

// Service orchestrates the proposal lifecycle.
type Service struct {
	store    Store
	calc     *voting.Calculator
	security *governance.SecurityContext
	handlers map[models.ProposalCategory]ExecutionHandler
	now      func() time.Time
}

func NewService(proposalStore Store, calc *voting.Calculator, security *governance.SecurityContext) *Service {
	return &Service{
		store:    proposalStore,
		calc:     calc,
		security: security,
		handlers: make(map[models.ProposalCategory]ExecutionHandler),
		now:      time.Now,
	}
}

// WithClock returns a copy using the given clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	return &Service{
		store:    s.store,
		calc:     s.calc.WithClock(now),
		security: s.security,
		handlers: s.handlers,
		now:      now,
	}
}

// RegisterHandler installs the execution handler for a category.
func (s *Service) RegisterHandler(category models.ProposalCategory, handler ExecutionHandler) {
	s.handlers[category] = handler
}

// Create opens a new proposal. The fraud gate screens the creation, and
// the proposer needs the minimum voting power. A start time already in
// the past activates the proposal immediately.
func (s *Service) Create(ctx context.Context, actor models.Actor, params CreateParams) (*models.Proposal, error) {
	if actor.MembershipStatus != models.MembershipActive {
		return nil, governance.Forbiddenf("only active members may create proposals")
	}
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}

	if _, err := s.security.Screen(ctx, actor.UserID, models.ActionCreateProposal, models.FraudPayload{}); err != nil {
		return nil, err
	}

	power, err := s.calc.ComputePower(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("member %s does not exist", actor.UserID)
		}
		return nil, fmt.Errorf("unable to compute proposer power: %w", err)
	}
	if !power.Eligible {
		return nil, governance.Forbiddenf("member %s is not eligible to vote", actor.UserID)
	}
	if power.TotalPower.LessThan(minProposalPower) {
		return nil, governance.Forbiddenf("creating a proposal requires %s voting power, member has %s",
			minProposalPower.String(), power.TotalPower.String())
	}

	status := models.ProposalDraft
	if !params.StartTime.After(s.now()) {
		status = models.ProposalActive
	}

	proposal, err := s.store.CreateProposal(ctx, database.CreateProposalParams{
		ProposerId:         actor.UserID,
		Category:           params.Category,
		Title:              params.Title,
		Description:        params.Description,
		Status:             status,
		StartTime:          params.StartTime,
		EndTime:            params.EndTime,
		QuorumRequiredPct:  params.QuorumRequiredPct,
		VotingThresholdPct: params.VotingThresholdPct,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create proposal: %w", err)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "CREATE_PROPOSAL",
		EntityType: "proposal",
		EntityId:   proposal.Id,
		Detail:     fmt.Sprintf("%s proposal %q, status %s", proposal.Category, proposal.Title, proposal.Status),
	})
	return proposal, nil
}

// CastVote records a power-weighted vote. The voter's power is computed
// and frozen at cast time; later power changes do not move the counters.
func (s *Service) CastVote(ctx context.Context, actor models.Actor, proposalId string, choice models.ProposalVoteChoice, reason string) (*models.ProposalVote, error) {
	if actor.MembershipStatus != models.MembershipActive {
		return nil, governance.Forbiddenf("only active members may vote")
	}
	if !validProposalChoice(choice) {
		return nil, governance.Validationf("unknown vote choice %q", choice)
	}

	proposal, err := s.getProposal(ctx, proposalId)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalActive {
		return nil, governance.Conflictf("proposal %s is not open for voting", proposalId)
	}
	now := s.now()
	if now.Before(proposal.StartTime) || !now.Before(proposal.EndTime) {
		return nil, governance.Conflictf("proposal %s is outside its voting window", proposalId)
	}

	if _, err := s.security.Screen(ctx, actor.UserID, models.ActionCastVote, models.FraudPayload{}); err != nil {
		return nil, err
	}

	power, err := s.calc.ComputePower(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("member %s does not exist", actor.UserID)
		}
		return nil, fmt.Errorf("unable to compute voter power: %w", err)
	}
	if !power.Eligible {
		return nil, governance.Forbiddenf("member %s is not eligible to vote", actor.UserID)
	}

	vote, err := s.store.InsertProposalVote(ctx, database.InsertProposalVoteParams{
		ProposalId: proposalId,
		VoterId:    actor.UserID,
		Choice:     choice,
		Power:      power.TotalPower,
		Reason:     reason,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateVote) {
			return nil, governance.Conflictf("member %s already voted on proposal %s", actor.UserID, proposalId)
		}
		if errors.Is(err, store.ErrStateConflict) {
			return nil, governance.Conflictf("proposal %s is not open for voting", proposalId)
		}
		if errors.Is(err, store.ErrConcurrentModification) {
			return nil, governance.Conflictf("proposal %s counters changed concurrently, retry the vote", proposalId)
		}
		return nil, fmt.Errorf("unable to record vote: %w", err)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "CAST_PROPOSAL_VOTE",
		EntityType: "proposal",
		EntityId:   proposalId,
		Detail:     fmt.Sprintf("%s with power %s", choice, power.TotalPower.String()),
	})
	return vote, nil
}

// TryFinalize settles an ACTIVE proposal whose voting window has closed.
// Quorum is checked first against the live network power: participation
// below floor(networkPower * quorumPct / 100) defeats the proposal no
// matter how lopsided the votes were. Past quorum, the proposal passes
// when for-votes reach floor((for + against) * thresholdPct / 100);
// abstentions count toward quorum but not the threshold. A proposal
// with zero participation finalizes EXPIRED rather than DEFEATED, so
// the two outcomes stay distinguishable in the record. The conditional
// UPDATE out of ACTIVE makes the transition exactly-once between the
// request path and the sweeper.
func (s *Service) TryFinalize(ctx context.Context, proposalId string) (bool, error) {
	proposal, err := s.getProposal(ctx, proposalId)
	if err != nil {
		return false, err
	}
	if proposal.Status != models.ProposalActive {
		return false, nil
	}
	if s.now().Before(proposal.EndTime) {
		return false, nil
	}

	outcome := models.ProposalDefeated
	executable := false
	if proposal.TotalVotes.IsZero() {
		outcome = models.ProposalExpired
	} else {
		quorum, err := s.quorumMet(ctx, proposal)
		if err != nil {
			// Without a denominator the quorum is undecidable; leave the
			// proposal ACTIVE for the next sweep instead of guessing.
			return false, err
		}
		if quorum && thresholdMet(proposal) {
			outcome = models.ProposalPassed
			executable = proposal.Category != models.CategoryGeneral
		}
	}

	won, err := s.store.FinalizeProposal(ctx, proposalId, outcome, executable)
	if err != nil {
		return false, fmt.Errorf("unable to finalize proposal: %w", err)
	}
	if !won {
		return false, nil
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    "system",
		Action:     "FINALIZE_PROPOSAL",
		EntityType: "proposal",
		EntityId:   proposalId,
		Detail: fmt.Sprintf("%s with %s for / %s against / %s abstain",
			outcome, proposal.ForVotes.String(), proposal.AgainstVotes.String(), proposal.AbstainVotes.String()),
	})
	return true, nil
}

// Execute applies a PASSED, executable proposal. Admin only. The
// EXECUTED transition is won before the category handler runs.
func (s *Service) Execute(ctx context.Context, actor models.Actor, proposalId string) error {
	if !actor.Role.CanExecute() {
		return governance.Forbiddenf("role %s may not execute proposals", actor.Role)
	}

	proposal, err := s.getProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if proposal.Status != models.ProposalPassed {
		return governance.Conflictf("proposal %s is %s, only PASSED proposals execute", proposalId, proposal.Status)
	}
	if !proposal.Executable {
		return governance.Conflictf("proposal %s is not executable", proposalId)
	}

	if err := s.store.ExecuteProposal(ctx, proposalId, actor.UserID, s.now().UTC()); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return governance.Conflictf("proposal %s was executed concurrently", proposalId)
		}
		return fmt.Errorf("unable to execute proposal: %w", err)
	}

	if handler, ok := s.handlers[proposal.Category]; ok {
		if err := handler(ctx, proposal); err != nil {
			zap.L().Error("Proposal execution handler failed",
				zap.String("proposal_id", proposalId),
				zap.String("category", string(proposal.Category)),
				zap.Error(err))
			s.security.Alerts.Raise(ctx, "governance", "high", map[string]string{
				"proposal_id": proposalId,
				"category":    string(proposal.Category),
				"error":       err.Error(),
			})
		}
	} else {
		zap.L().Info("Proposal executed without a category handler",
			zap.String("proposal_id", proposalId),
			zap.String("category", string(proposal.Category)))
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "EXECUTE_PROPOSAL",
		EntityType: "proposal",
		EntityId:   proposalId,
		Detail:     string(proposal.Category),
	})
	return nil
}

// Cancel withdraws a DRAFT or ACTIVE proposal. Proposer or admin only.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, proposalId string) error {
	proposal, err := s.getProposal(ctx, proposalId)
	if err != nil {
		return err
	}
	if proposal.ProposerId != actor.UserID && actor.Role != models.RoleAdmin {
		return governance.Forbiddenf("only the proposer or an admin may cancel a proposal")
	}

	if err := s.store.CancelProposal(ctx, proposalId); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return governance.Conflictf("proposal %s can no longer be cancelled", proposalId)
		}
		return fmt.Errorf("unable to cancel proposal: %w", err)
	}

	s.security.Audit.Append(ctx, models.AuditEntry{
		ActorId:    actor.UserID,
		Action:     "CANCEL_PROPOSAL",
		EntityType: "proposal",
		EntityId:   proposalId,
	})
	return nil
}

// Activate flips a due DRAFT proposal to ACTIVE. The sweeper drives it.
func (s *Service) Activate(ctx context.Context, proposalId string) (bool, error) {
	return s.store.ActivateProposal(ctx, proposalId)
}

// Get returns a proposal by id.
func (s *Service) Get(ctx context.Context, proposalId string) (*models.Proposal, error) {
	return s.getProposal(ctx, proposalId)
}

func (s *Service) quorumMet(ctx context.Context, proposal *models.Proposal) (bool, error) {
	networkPower, err := s.calc.TotalNetworkPower(ctx)
	if err != nil {
		zap.L().Error("Unable to compute network power for quorum check",
			zap.String("proposal_id", proposal.Id),
			zap.Error(err))
		return false, fmt.Errorf("unable to compute network power: %w", err)
	}

	required := networkPower.Mul(decimal.NewFromInt(int64(proposal.QuorumRequiredPct))).
		Div(decimal.NewFromInt(100)).Floor()
	return proposal.TotalVotes.GreaterThanOrEqual(required), nil
}

// thresholdMet checks for-votes against the decisive (non-abstain) pool.
func thresholdMet(proposal *models.Proposal) bool {
	base := proposal.ForVotes.Add(proposal.AgainstVotes)
	if base.IsZero() {
		return false
	}
	needed := base.Mul(decimal.NewFromInt(int64(proposal.VotingThresholdPct))).
		Div(decimal.NewFromInt(100)).Floor()
	return proposal.ForVotes.GreaterThanOrEqual(needed)
}

func (s *Service) getProposal(ctx context.Context, proposalId string) (*models.Proposal, error) {
	proposal, err := s.store.GetProposalById(ctx, proposalId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("proposal %s does not exist", proposalId)
		}
		return nil, fmt.Errorf("unable to load proposal: %w", err)
	}
	return proposal, nil
}

func validateCreateParams(params CreateParams) error {
	if params.Title == "" {
		return governance.Validationf("proposal title is required")
	}
	if !validCategory(params.Category) {
		return governance.Validationf("unknown proposal category %q", params.Category)
	}
	if !params.EndTime.After(params.StartTime) {
		return governance.Validationf("voting end time must be after start time")
	}
	if params.QuorumRequiredPct < 1 || params.QuorumRequiredPct > 100 {
		return governance.Validationf("quorum percentage must be between 1 and 100, got %d", params.QuorumRequiredPct)
	}
	if params.VotingThresholdPct < 1 || params.VotingThresholdPct > 100 {
		return governance.Validationf("voting threshold percentage must be between 1 and 100, got %d", params.VotingThresholdPct)
	}
	return nil
}

func validCategory(category models.ProposalCategory) bool {
	switch category {
	case models.CategoryTreasury, models.CategoryParameter, models.CategoryMembership,
		models.CategoryTechnical, models.CategoryGeneral:
		return true
	}
	return false
}

func validProposalChoice(choice models.ProposalVoteChoice) bool {
	switch choice {
	case models.ProposalVoteFor, models.ProposalVoteAgainst, models.ProposalVoteAbstain:
		return true
	}
	return false
}
