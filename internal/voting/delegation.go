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

package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dao-governance-go/internal/database"
	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"
)

// DelegationStore is the slice of storage the registry needs.
type DelegationStore interface {
	Store
	CreateDelegation(ctx context.Context, params database.CreateDelegationParams) (*models.Delegation, error)
	DeactivateDelegation(ctx context.Context, delegatorId string, scope models.DelegationScope) error
	GetActiveOutgoingDelegation(ctx context.Context, delegatorId string, scope models.DelegationScope) (*models.Delegation, error)
}

// Registry manages delegation lifecycle. A member holds at most one
// active delegation per scope; creating a new one supersedes the old.
type Registry struct {
	store DelegationStore
	calc  *Calculator
	audit governance.AuditTrail
	now   func() time.Time
}

func NewRegistry(delegationStore DelegationStore, calc *Calculator, audit governance.AuditTrail) *Registry {
	return &Registry{store: delegationStore, calc: calc, audit: audit, now: time.Now}
}

// WithClock returns a copy using the given clock.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	return &Registry{store: r.store, calc: r.calc.WithClock(now), audit: r.audit, now: now}
}

// Delegate creates a delegation from delegator to delegate for the given
// scope. The delegated amount is the delegator's own power at this
// moment, frozen until the delegation is revoked or expires; incoming
// delegations the delegator holds are not passed through.
func (r *Registry) Delegate(ctx context.Context, delegatorId, delegateId string, scope models.DelegationScope, expiresAt *time.Time) (*models.Delegation, error) {
	if delegatorId == delegateId {
		return nil, governance.Conflictf("cannot delegate voting power to yourself")
	}
	if !validScope(scope) {
		return nil, governance.Validationf("unknown delegation scope %q", scope)
	}
	if expiresAt != nil && !expiresAt.After(r.now()) {
		return nil, governance.Validationf("delegation expiry must be in the future")
	}

	delegate, err := r.store.GetMemberById(ctx, delegateId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("delegate %s does not exist", delegateId)
		}
		return nil, fmt.Errorf("unable to load delegate: %w", err)
	}
	if delegate.MembershipStatus != models.MembershipActive {
		return nil, governance.Forbiddenf("delegate %s is not an active member", delegateId)
	}

	delegator, err := r.store.GetMemberById(ctx, delegatorId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, governance.NotFoundf("delegator %s does not exist", delegatorId)
		}
		return nil, fmt.Errorf("unable to load delegator: %w", err)
	}

	incoming, err := r.store.GetActiveIncomingDelegations(ctx, delegatorId)
	if err != nil {
		return nil, fmt.Errorf("unable to load delegator power: %w", err)
	}
	power := r.calc.PowerOf(delegator, incoming)
	if !power.Eligible {
		return nil, governance.Forbiddenf("delegator %s is not eligible to vote", delegatorId)
	}

	delegation, err := r.store.CreateDelegation(ctx, database.CreateDelegationParams{
		DelegatorId:   delegatorId,
		DelegateId:    delegateId,
		Scope:         scope,
		SnapshotPower: power.OwnPower,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrConcurrentModification) {
			return nil, governance.Conflictf("delegation for scope %s was modified concurrently", scope)
		}
		return nil, fmt.Errorf("unable to create delegation: %w", err)
	}

	r.audit.Append(ctx, models.AuditEntry{
		ActorId:    delegatorId,
		Action:     "DELEGATE_POWER",
		EntityType: "delegation",
		EntityId:   delegation.Id,
		Detail:     fmt.Sprintf("delegated %s power to %s for scope %s", power.OwnPower.String(), delegateId, scope),
	})
	return delegation, nil
}

// Revoke deactivates the delegator's active delegation for a scope.
func (r *Registry) Revoke(ctx context.Context, delegatorId string, scope models.DelegationScope) error {
	if !validScope(scope) {
		return governance.Validationf("unknown delegation scope %q", scope)
	}

	err := r.store.DeactivateDelegation(ctx, delegatorId, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return governance.NotFoundf("no active delegation for scope %s", scope)
		}
		return fmt.Errorf("unable to revoke delegation: %w", err)
	}

	r.audit.Append(ctx, models.AuditEntry{
		ActorId:    delegatorId,
		Action:     "REVOKE_DELEGATION",
		EntityType: "delegation",
		EntityId:   delegatorId,
		Detail:     fmt.Sprintf("revoked delegation for scope %s", scope),
	})
	return nil
}

func validScope(scope models.DelegationScope) bool {
	switch scope {
	case models.ScopeAll, models.ScopeTreasury, models.ScopeGovernance,
		models.ScopeMembership, models.ScopeClaims, models.ScopeTechnical:
		return true
	}
	return false
}
