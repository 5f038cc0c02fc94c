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

func scanPayout(row rowScanner) (*models.Payout, error) {
	var payout models.Payout
	var amountStr string
	var disbursedAt sql.NullTime
	err := row.Scan(&payout.Id, &payout.SourceType, &payout.SourceId, &payout.MemberId,
		&amountStr, &payout.Status, &payout.DisbursementRef, &payout.CreatedAt, &disbursedAt)
	if err != nil {
		return nil, err
	}

	payout.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payout amount '%s': %w", amountStr, err)
	}
	if disbursedAt.Valid {
		payout.DisbursedAt = &disbursedAt.Time
	}
	return &payout, nil
}

// RecordPayout inserts one treasury payout row. The unique index on
// source_id makes the call idempotent: a second recording for the same
// finalized claim or proposal returns the original payout id without
// writing anything.
func (s *Service) RecordPayout(ctx context.Context, params store.RecordPayoutParams) (string, error) {
	payoutId := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertPayout,
		payoutId, params.SourceType, params.SourceId, params.MemberId, params.Amount.String())
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := scanPayout(s.db.QueryRowContext(ctx, queryGetPayoutBySourceId, params.SourceId))
			if lookupErr != nil {
				return "", fmt.Errorf("unable to load existing payout for %s: %w", params.SourceId, lookupErr)
			}
			zap.L().Warn("Payout already recorded, returning existing reference",
				zap.String("source_id", params.SourceId),
				zap.String("payout_id", existing.Id))
			return existing.Id, nil
		}
		return "", fmt.Errorf("unable to insert payout: %w", err)
	}

	zap.L().Info("Payout recorded",
		zap.String("payout_id", payoutId),
		zap.String("source_type", params.SourceType),
		zap.String("source_id", params.SourceId),
		zap.String("member_id", params.MemberId),
		zap.String("amount", params.Amount.String()))
	return payoutId, nil
}

func (s *Service) GetPayoutBySourceId(ctx context.Context, sourceId string) (*models.Payout, error) {
	payout, err := scanPayout(s.db.QueryRowContext(ctx, queryGetPayoutBySourceId, sourceId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payout for source %s: %w", sourceId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query payout: %w", err)
	}
	return payout, nil
}

func (s *Service) ListPendingPayouts(ctx context.Context) ([]models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingPayouts)
	if err != nil {
		return nil, fmt.Errorf("unable to query pending payouts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var payouts []models.Payout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan payout row: %w", err)
		}
		payouts = append(payouts, *payout)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout rows: %w", err)
	}
	return payouts, nil
}

// MarkPayoutDisbursed records the external disbursement reference.
func (s *Service) MarkPayoutDisbursed(ctx context.Context, payoutId, disbursementRef string) error {
	result, err := s.db.ExecContext(ctx, queryMarkPayoutDisbursed, disbursementRef, time.Now().UTC(), payoutId)
	if err != nil {
		return fmt.Errorf("unable to mark payout disbursed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payout %s is not PENDING: %w", payoutId, store.ErrStateConflict)
	}
	return nil
}

// ListApprovedClaimsWithoutPayout finds claims that finalized APPROVED
// but have no payout row, the leftovers of a failed ledger call. The
// sweeper re-records these.
func (s *Service) ListApprovedClaimsWithoutPayout(ctx context.Context) ([]models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, queryListApprovedClaimsWithoutPayout)
	if err != nil {
		return nil, fmt.Errorf("unable to query unpaid approved claims: %w", err)
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
