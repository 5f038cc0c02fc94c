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

// CreateDelegationParams contains the parameters for storing a delegation.
// SnapshotPower is the delegator's own power frozen by the caller.
type CreateDelegationParams struct {
	DelegatorId   string
	DelegateId    string
	Scope         models.DelegationScope
	SnapshotPower decimal.Decimal
	ExpiresAt     *time.Time
}

func scanDelegation(row rowScanner) (*models.Delegation, error) {
	var d models.Delegation
	var powerStr string
	var expiresAt, revokedAt sql.NullTime
	err := row.Scan(&d.Id, &d.DelegatorId, &d.DelegateId, &d.Scope, &powerStr,
		&expiresAt, &d.Active, &d.CreatedAt, &revokedAt)
	if err != nil {
		return nil, err
	}

	d.SnapshotPower, err = decimal.NewFromString(powerStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot power '%s': %w", powerStr, err)
	}
	if expiresAt.Valid {
		d.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		d.RevokedAt = &revokedAt.Time
	}
	return &d, nil
}

// CreateDelegation atomically deactivates any prior active delegation for
// (delegator, scope) and inserts the new active row. The partial unique
// index on active rows backstops the invariant under concurrent calls.
func (s *Service) CreateDelegation(ctx context.Context, params CreateDelegationParams) (*models.Delegation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, queryDeactivateDelegations, now, params.DelegatorId, params.Scope); err != nil {
		return nil, fmt.Errorf("unable to deactivate prior delegations: %w", err)
	}

	var expiresAt interface{}
	if params.ExpiresAt != nil {
		expiresAt = params.ExpiresAt.UTC()
	}

	delegation, err := scanDelegation(tx.QueryRowContext(ctx, queryInsertDelegation,
		uuid.New().String(), params.DelegatorId, params.DelegateId, params.Scope,
		params.SnapshotPower.String(), expiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("active delegation already exists: %w", store.ErrConcurrentModification)
		}
		return nil, fmt.Errorf("unable to insert delegation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Delegation created",
		zap.String("delegation_id", delegation.Id),
		zap.String("delegator_id", params.DelegatorId),
		zap.String("delegate_id", params.DelegateId),
		zap.String("scope", string(params.Scope)),
		zap.String("snapshot_power", params.SnapshotPower.String()))
	return delegation, nil
}

// DeactivateDelegation marks the active row for (delegator, scope)
// inactive. Votes already cast with that power are untouched.
func (s *Service) DeactivateDelegation(ctx context.Context, delegatorId string, scope models.DelegationScope) error {
	result, err := s.db.ExecContext(ctx, queryDeactivateDelegations, time.Now().UTC(), delegatorId, scope)
	if err != nil {
		return fmt.Errorf("unable to revoke delegation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no active delegation for delegator %s scope %s: %w", delegatorId, scope, store.ErrNotFound)
	}

	zap.L().Info("Delegation revoked",
		zap.String("delegator_id", delegatorId),
		zap.String("scope", string(scope)))
	return nil
}

// GetActiveIncomingDelegations returns unexpired active delegations
// pointing at the delegate, across all scopes.
func (s *Service) GetActiveIncomingDelegations(ctx context.Context, delegateId string) ([]models.Delegation, error) {
	rows, err := s.db.QueryContext(ctx, queryGetActiveIncomingDelegations, delegateId, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to query incoming delegations: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var delegations []models.Delegation
	for rows.Next() {
		delegation, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan delegation row: %w", err)
		}
		delegations = append(delegations, *delegation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delegation rows: %w", err)
	}
	return delegations, nil
}

// GetActiveOutgoingDelegation returns the single active delegation for
// (delegator, scope), or store.ErrNotFound.
func (s *Service) GetActiveOutgoingDelegation(ctx context.Context, delegatorId string, scope models.DelegationScope) (*models.Delegation, error) {
	delegation, err := scanDelegation(s.db.QueryRowContext(ctx, queryGetActiveOutgoingDelegation, delegatorId, scope))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("delegation for %s/%s: %w", delegatorId, scope, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query outgoing delegation: %w", err)
	}
	return delegation, nil
}
