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

// CreateMemberParams contains the parameters for creating a member.
type CreateMemberParams struct {
	Id               string
	DisplayName      string
	Email            string
	MembershipStatus models.MembershipStatus
	MembershipTier   models.MembershipTier
	TokenBalance     decimal.Decimal
	WalletAddress    string
	JoinedAt         time.Time
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var member models.Member
	var balanceStr string
	err := row.Scan(&member.Id, &member.DisplayName, &member.Email, &member.MembershipStatus,
		&member.MembershipTier, &balanceStr, &member.SuccessfulClaimCount,
		&member.WalletAddress, &member.JoinedAt, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return nil, err
	}

	member.TokenBalance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token balance '%s': %w", balanceStr, err)
	}
	return &member, nil
}

func (s *Service) CreateMember(ctx context.Context, params CreateMemberParams) (*models.Member, error) {
	if params.Id == "" {
		params.Id = uuid.New().String()
	}
	if params.JoinedAt.IsZero() {
		params.JoinedAt = time.Now().UTC()
	}

	member, err := scanMember(s.db.QueryRowContext(ctx, queryInsertMember,
		params.Id, params.DisplayName, params.Email, params.MembershipStatus,
		params.MembershipTier, params.TokenBalance.String(), 0, params.WalletAddress,
		params.JoinedAt.UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("member with email %s already exists: %w", params.Email, err)
		}
		return nil, fmt.Errorf("unable to insert member: %w", err)
	}

	zap.L().Info("Member created",
		zap.String("member_id", member.Id),
		zap.String("tier", string(member.MembershipTier)),
		zap.String("status", string(member.MembershipStatus)))
	return member, nil
}

func (s *Service) GetMemberById(ctx context.Context, memberId string) (*models.Member, error) {
	member, err := scanMember(s.db.QueryRowContext(ctx, queryGetMemberById, memberId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", memberId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query member by ID: %w", err)
	}
	return member, nil
}

func (s *Service) GetMembers(ctx context.Context) ([]models.Member, error) {
	return s.queryMembers(ctx, queryGetMembers)
}

// GetActiveMembers returns all members with ACTIVE status, the population
// that claim thresholds and proposal quorums are computed over.
func (s *Service) GetActiveMembers(ctx context.Context) ([]models.Member, error) {
	return s.queryMembers(ctx, queryGetActiveMembers)
}

func (s *Service) queryMembers(ctx context.Context, query string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unable to query members: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan member row: %w", err)
		}
		members = append(members, *member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

func (s *Service) CountActiveMembers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountActiveMembers).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count active members: %w", err)
	}
	return count, nil
}

// IncrementSuccessfulClaimCount bumps the counter that feeds the
// participation multiplier. Called when a claim reaches APPROVED.
func (s *Service) IncrementSuccessfulClaimCount(ctx context.Context, memberId string) error {
	result, err := s.db.ExecContext(ctx, queryIncrementSuccessfulClaims, memberId)
	if err != nil {
		return fmt.Errorf("unable to increment successful claim count: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberId, store.ErrNotFound)
	}
	return nil
}

func (s *Service) SetMembershipStatus(ctx context.Context, memberId string, status models.MembershipStatus) error {
	result, err := s.db.ExecContext(ctx, querySetMembershipStatus, status, memberId)
	if err != nil {
		return fmt.Errorf("unable to update membership status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberId, store.ErrNotFound)
	}

	zap.L().Info("Membership status updated",
		zap.String("member_id", memberId),
		zap.String("status", string(status)))
	return nil
}

// seedDemoMembers inserts a small roster for local testing. The email
// unique constraint makes reruns harmless.
func (s *Service) seedDemoMembers(ctx context.Context) {
	demo := []CreateMemberParams{
		{DisplayName: "Alice Johnson", Email: "alice.johnson@example.com",
			MembershipStatus: models.MembershipActive, MembershipTier: models.TierFounder,
			TokenBalance: decimal.NewFromInt(10000), JoinedAt: time.Now().UTC().AddDate(-2, 0, 0)},
		{DisplayName: "Bob Smith", Email: "bob.smith@example.com",
			MembershipStatus: models.MembershipActive, MembershipTier: models.TierPremium,
			TokenBalance: decimal.NewFromInt(5000), JoinedAt: time.Now().UTC().AddDate(-1, 0, 0)},
		{DisplayName: "Carol Williams", Email: "carol.williams@example.com",
			MembershipStatus: models.MembershipActive, MembershipTier: models.TierStandard,
			TokenBalance: decimal.NewFromInt(1000), JoinedAt: time.Now().UTC().AddDate(0, -4, 0)},
	}

	for _, params := range demo {
		member, err := s.CreateMember(ctx, params)
		if err != nil {
			zap.L().Warn("Failed to seed demo member", zap.String("email", params.Email), zap.Error(err))
			continue
		}
		zap.L().Info("Demo member created",
			zap.String("id", member.Id),
			zap.String("name", member.DisplayName))
	}
}

// RecordLoginEvent stores a coarse login location for the fraud gate.
// Best-effort: callers treat failures as non-fatal.
func (s *Service) RecordLoginEvent(ctx context.Context, memberId, location, userAgent string) error {
	_, err := s.db.ExecContext(ctx, queryInsertLoginEvent, uuid.New().String(), memberId, location, userAgent)
	if err != nil {
		return fmt.Errorf("unable to record login event: %w", err)
	}
	return nil
}
