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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateClaimParams contains the parameters for creating a claim.
type CreateClaimParams struct {
	OwnerId         string
	RequestedAmount decimal.Decimal
	Description     string
	Status          models.ClaimStatus
	RequiresReview  bool
}

// ClaimVoteTally is the per-choice vote count for one claim.
type ClaimVoteTally struct {
	Approve int
	Reject  int
	Abstain int
}

// Total is the number of votes cast, abstentions included.
func (t ClaimVoteTally) Total() int { return t.Approve + t.Reject + t.Abstain }

func scanClaim(row rowScanner) (*models.Claim, error) {
	var claim models.Claim
	var requestedStr string
	var approvedStr sql.NullString
	var votingOpenedAt, votingClosedAt sql.NullTime
	err := row.Scan(&claim.Id, &claim.OwnerId, &claim.Status, &requestedStr, &approvedStr,
		&claim.Description, &claim.RequiresReview, &votingOpenedAt, &votingClosedAt,
		&claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		return nil, err
	}

	claim.RequestedAmount, err = decimal.NewFromString(requestedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse requested amount '%s': %w", requestedStr, err)
	}
	if approvedStr.Valid {
		approved, err := decimal.NewFromString(approvedStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse approved amount '%s': %w", approvedStr.String, err)
		}
		claim.ApprovedAmount = &approved
	}
	if votingOpenedAt.Valid {
		claim.VotingOpenedAt = &votingOpenedAt.Time
	}
	if votingClosedAt.Valid {
		claim.VotingClosedAt = &votingClosedAt.Time
	}
	return &claim, nil
}

func (s *Service) CreateClaim(ctx context.Context, params CreateClaimParams) (*models.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx, queryInsertClaim,
		uuid.New().String(), params.OwnerId, params.Status,
		params.RequestedAmount.String(), params.Description, params.RequiresReview))
	if err != nil {
		return nil, fmt.Errorf("unable to insert claim: %w", err)
	}

	zap.L().Info("Claim created",
		zap.String("claim_id", claim.Id),
		zap.String("owner_id", claim.OwnerId),
		zap.String("requested_amount", claim.RequestedAmount.String()),
		zap.Bool("requires_review", claim.RequiresReview))
	return claim, nil
}

func (s *Service) GetClaimById(ctx context.Context, claimId string) (*models.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx, queryGetClaimById, claimId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("claim %s: %w", claimId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query claim by ID: %w", err)
	}
	return claim, nil
}

// TransitionClaim moves a claim from one exact status to another.
// Returns store.ErrStateConflict when the claim is not in `from`.
func (s *Service) TransitionClaim(ctx context.Context, claimId string, from, to models.ClaimStatus) error {
	result, err := s.db.ExecContext(ctx, queryTransitionClaim, to, claimId, from)
	if err != nil {
		return fmt.Errorf("unable to transition claim: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s is not %s: %w", claimId, from, store.ErrStateConflict)
	}

	zap.L().Info("Claim transitioned",
		zap.String("claim_id", claimId),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// RouteClaimToReview moves a SUBMITTED claim to UNDER_REVIEW and marks
// it as requiring review in the same statement.
func (s *Service) RouteClaimToReview(ctx context.Context, claimId string) error {
	result, err := s.db.ExecContext(ctx, queryRouteClaimToReview, claimId)
	if err != nil {
		return fmt.Errorf("unable to route claim to review: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s is not SUBMITTED: %w", claimId, store.ErrStateConflict)
	}

	zap.L().Info("Claim routed to review",
		zap.String("claim_id", claimId))
	return nil
}

// OpenClaimVoting moves a reviewed claim into COMMUNITY_VOTING.
func (s *Service) OpenClaimVoting(ctx context.Context, claimId string, openedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, queryOpenClaimVoting, openedAt.UTC(), claimId)
	if err != nil {
		return fmt.Errorf("unable to open claim voting: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s is not reviewable: %w", claimId, store.ErrStateConflict)
	}
	return nil
}

// ReviewClaim resolves a claim directly from review, bypassing the
// community vote. approvedAmount must be set when outcome is APPROVED.
func (s *Service) ReviewClaim(ctx context.Context, claimId string, outcome models.ClaimStatus, approvedAmount *decimal.Decimal, closedAt time.Time) error {
	var approvedStr interface{}
	if approvedAmount != nil {
		approvedStr = approvedAmount.String()
	}

	result, err := s.db.ExecContext(ctx, queryReviewClaim, outcome, approvedStr, closedAt.UTC(), claimId)
	if err != nil {
		return fmt.Errorf("unable to review claim: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s is not reviewable: %w", claimId, store.ErrStateConflict)
	}
	return nil
}

// FinalizeClaim is the exactly-once transition out of COMMUNITY_VOTING.
// Under concurrent finalization attempts precisely one caller gets
// won=true; everyone else observes the already-changed state and no-ops.
func (s *Service) FinalizeClaim(ctx context.Context, claimId string, outcome models.ClaimStatus, approvedAmount *decimal.Decimal, closedAt time.Time) (bool, error) {
	var approvedStr interface{}
	if approvedAmount != nil {
		approvedStr = approvedAmount.String()
	}

	result, err := s.db.ExecContext(ctx, queryFinalizeClaim, outcome, approvedStr, closedAt.UTC(), claimId)
	if err != nil {
		return false, fmt.Errorf("unable to finalize claim: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	zap.L().Info("Claim finalized",
		zap.String("claim_id", claimId),
		zap.String("outcome", string(outcome)))
	return true, nil
}

// EscalateClaim moves any pre-terminal claim to FLAGGED.
func (s *Service) EscalateClaim(ctx context.Context, claimId string) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryEscalateClaim, claimId)
	if err != nil {
		return false, fmt.Errorf("unable to escalate claim: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkClaimPaid moves an APPROVED claim to PAID after disbursement.
func (s *Service) MarkClaimPaid(ctx context.Context, claimId string) error {
	result, err := s.db.ExecContext(ctx, queryMarkClaimPaid, claimId)
	if err != nil {
		return fmt.Errorf("unable to mark claim paid: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim %s is not APPROVED: %w", claimId, store.ErrStateConflict)
	}
	return nil
}

// InsertClaimVote attempts the optimistic vote insert. A unique-index
// violation maps to store.ErrDuplicateVote; a claim no longer in
// COMMUNITY_VOTING maps to store.ErrStateConflict. No retries.
func (s *Service) InsertClaimVote(ctx context.Context, claimId, voterId string, choice models.ClaimVoteChoice, justification string) (*models.ClaimVote, error) {
	voteId := uuid.New().String()
	result, err := s.db.ExecContext(ctx, queryInsertClaimVote,
		voteId, claimId, voterId, choice, justification, claimId)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("voter %s on claim %s: %w", voterId, claimId, store.ErrDuplicateVote)
		}
		return nil, fmt.Errorf("unable to insert claim vote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("claim %s is not accepting votes: %w", claimId, store.ErrStateConflict)
	}

	zap.L().Info("Claim vote recorded",
		zap.String("claim_id", claimId),
		zap.String("voter_id", voterId),
		zap.String("choice", string(choice)))
	return &models.ClaimVote{
		Id:            voteId,
		ClaimId:       claimId,
		VoterId:       voterId,
		Choice:        choice,
		Justification: justification,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ListClaimsInVoting returns claims currently open for community voting.
func (s *Service) ListClaimsInVoting(ctx context.Context) ([]models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, queryListClaimsInVoting)
	if err != nil {
		return nil, fmt.Errorf("unable to query claims in voting: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var claims []models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan claim row: %w", err)
		}
		claims = append(claims, *claim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim rows: %w", err)
	}
	return claims, nil
}

// CountClaimVotes tallies the votes cast so far for a claim.
func (s *Service) CountClaimVotes(ctx context.Context, claimId string) (ClaimVoteTally, error) {
	var tally ClaimVoteTally

	rows, err := s.db.QueryContext(ctx, queryCountClaimVotes, claimId)
	if err != nil {
		return tally, fmt.Errorf("unable to count claim votes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var choice models.ClaimVoteChoice
		var count int
		if err := rows.Scan(&choice, &count); err != nil {
			return tally, fmt.Errorf("unable to scan vote tally row: %w", err)
		}
		switch choice {
		case models.ClaimVoteApprove:
			tally.Approve = count
		case models.ClaimVoteReject:
			tally.Reject = count
		case models.ClaimVoteAbstain:
			tally.Abstain = count
		}
	}

	if err := rows.Err(); err != nil {
		return tally, fmt.Errorf("error iterating vote tally rows: %w", err)
	}
	return tally, nil
}
