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

// CreateProposalParams contains the parameters for creating a proposal.
type CreateProposalParams struct {
	ProposerId         string
	Category           models.ProposalCategory
	Title              string
	Description        string
	Status             models.ProposalStatus
	StartTime          time.Time
	EndTime            time.Time
	QuorumRequiredPct  int
	VotingThresholdPct int
	RequiresReview     bool
}

// InsertProposalVoteParams contains the parameters for recording one
// weighted vote.
type InsertProposalVoteParams struct {
	ProposalId string
	VoterId    string
	Choice     models.ProposalVoteChoice
	Power      decimal.Decimal
	Reason     string
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var p models.Proposal
	var forStr, againstStr, abstainStr, totalStr string
	var executorId sql.NullString
	var executedAt sql.NullTime
	err := row.Scan(&p.Id, &p.ProposerId, &p.Category, &p.Title, &p.Description, &p.Status,
		&p.StartTime, &p.EndTime, &p.QuorumRequiredPct, &p.VotingThresholdPct,
		&forStr, &againstStr, &abstainStr, &totalStr, &p.Executable,
		&executorId, &executedAt, &p.RequiresReview, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.ForVotes, forStr},
		{&p.AgainstVotes, againstStr},
		{&p.AbstainVotes, abstainStr},
		{&p.TotalVotes, totalStr},
	} {
		value, err := decimal.NewFromString(pair.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vote counter '%s': %w", pair.src, err)
		}
		*pair.dst = value
	}

	if executorId.Valid {
		p.ExecutorId = &executorId.String
	}
	if executedAt.Valid {
		p.ExecutedAt = &executedAt.Time
	}
	return &p, nil
}

func (s *Service) CreateProposal(ctx context.Context, params CreateProposalParams) (*models.Proposal, error) {
	proposal, err := scanProposal(s.db.QueryRowContext(ctx, queryInsertProposal,
		uuid.New().String(), params.ProposerId, params.Category, params.Title,
		params.Description, params.Status, params.StartTime.UTC(), params.EndTime.UTC(),
		params.QuorumRequiredPct, params.VotingThresholdPct, params.RequiresReview))
	if err != nil {
		return nil, fmt.Errorf("unable to insert proposal: %w", err)
	}

	zap.L().Info("Proposal created",
		zap.String("proposal_id", proposal.Id),
		zap.String("proposer_id", proposal.ProposerId),
		zap.String("category", string(proposal.Category)),
		zap.String("status", string(proposal.Status)))
	return proposal, nil
}

func (s *Service) GetProposalById(ctx context.Context, proposalId string) (*models.Proposal, error) {
	proposal, err := scanProposal(s.db.QueryRowContext(ctx, queryGetProposalById, proposalId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proposal %s: %w", proposalId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query proposal by ID: %w", err)
	}
	return proposal, nil
}

// InsertProposalVote atomically records the vote row and adds its power
// snapshot to the running counters. The vote insert and the counter
// update commit or fail together; a duplicate (proposal, voter) pair
// maps to store.ErrDuplicateVote, a proposal that left ACTIVE while the
// vote was in flight maps to store.ErrStateConflict.
func (s *Service) InsertProposalVote(ctx context.Context, params InsertProposalVoteParams) (*models.ProposalVote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Read current counters (with version for optimistic locking)
	var forStr, againstStr, abstainStr, totalStr string
	var version int64
	err = tx.QueryRowContext(ctx, queryGetProposalCounters, params.ProposalId).
		Scan(&forStr, &againstStr, &abstainStr, &totalStr, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("proposal %s is not ACTIVE: %w", params.ProposalId, store.ErrStateConflict)
		}
		return nil, fmt.Errorf("unable to read proposal counters: %w", err)
	}

	counters := map[models.ProposalVoteChoice]decimal.Decimal{}
	for choice, str := range map[models.ProposalVoteChoice]string{
		models.ProposalVoteFor:     forStr,
		models.ProposalVoteAgainst: againstStr,
		models.ProposalVoteAbstain: abstainStr,
	} {
		value, err := decimal.NewFromString(str)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vote counter '%s': %w", str, err)
		}
		counters[choice] = value
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total votes '%s': %w", totalStr, err)
	}

	voteId := uuid.New().String()
	_, err = tx.ExecContext(ctx, queryInsertProposalVote,
		voteId, params.ProposalId, params.VoterId, params.Choice,
		params.Power.String(), params.Reason)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("voter %s on proposal %s: %w", params.VoterId, params.ProposalId, store.ErrDuplicateVote)
		}
		return nil, fmt.Errorf("unable to insert proposal vote: %w", err)
	}

	counters[params.Choice] = counters[params.Choice].Add(params.Power)
	total = total.Add(params.Power)

	result, err := tx.ExecContext(ctx, queryUpdateProposalCounters,
		counters[models.ProposalVoteFor].String(),
		counters[models.ProposalVoteAgainst].String(),
		counters[models.ProposalVoteAbstain].String(),
		total.String(),
		params.ProposalId, version)
	if err != nil {
		return nil, fmt.Errorf("unable to update vote counters: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("counter update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Proposal vote recorded",
		zap.String("proposal_id", params.ProposalId),
		zap.String("voter_id", params.VoterId),
		zap.String("choice", string(params.Choice)),
		zap.String("power", params.Power.String()),
		zap.String("new_total", total.String()))

	return &models.ProposalVote{
		Id:                  voteId,
		ProposalId:          params.ProposalId,
		VoterId:             params.VoterId,
		Choice:              params.Choice,
		VotingPowerSnapshot: params.Power,
		Reason:              params.Reason,
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// ActivateProposal flips a DRAFT proposal to ACTIVE. Returns false when
// some other caller activated (or cancelled) it first.
func (s *Service) ActivateProposal(ctx context.Context, proposalId string) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryActivateProposal, proposalId)
	if err != nil {
		return false, fmt.Errorf("unable to activate proposal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// FinalizeProposal is the exactly-once transition out of ACTIVE. The
// request path and the background sweep both go through this statement,
// so they cannot double-finalize.
func (s *Service) FinalizeProposal(ctx context.Context, proposalId string, outcome models.ProposalStatus, executable bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryFinalizeProposal, outcome, executable, proposalId)
	if err != nil {
		return false, fmt.Errorf("unable to finalize proposal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	zap.L().Info("Proposal finalized",
		zap.String("proposal_id", proposalId),
		zap.String("outcome", string(outcome)),
		zap.Bool("executable", executable))
	return true, nil
}

// ExecuteProposal marks a PASSED, executable proposal EXECUTED.
func (s *Service) ExecuteProposal(ctx context.Context, proposalId, executorId string, executedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, queryExecuteProposal, executorId, executedAt.UTC(), proposalId)
	if err != nil {
		return fmt.Errorf("unable to execute proposal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("proposal %s is not executable: %w", proposalId, store.ErrStateConflict)
	}
	return nil
}

// CancelProposal moves a DRAFT or ACTIVE proposal to CANCELLED.
func (s *Service) CancelProposal(ctx context.Context, proposalId string) error {
	result, err := s.db.ExecContext(ctx, queryCancelProposal, proposalId)
	if err != nil {
		return fmt.Errorf("unable to cancel proposal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("proposal %s cannot be cancelled: %w", proposalId, store.ErrStateConflict)
	}
	return nil
}

// ListDueDraftProposals returns DRAFT proposals whose start time passed.
func (s *Service) ListDueDraftProposals(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	return s.queryProposals(ctx, queryListDueDraftProposals, now.UTC())
}

// ListExpiredActiveProposals returns ACTIVE proposals whose end time passed.
func (s *Service) ListExpiredActiveProposals(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	return s.queryProposals(ctx, queryListExpiredActiveProposals, now.UTC())
}

func (s *Service) queryProposals(ctx context.Context, query string, args ...interface{}) ([]models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query proposals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var proposals []models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan proposal row: %w", err)
		}
		proposals = append(proposals, *proposal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal rows: %w", err)
	}
	return proposals, nil
}
