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
	"fmt"
	"time"

	"dao-governance-go/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the slice of storage the power calculator needs.
type Store interface {
	GetMemberById(ctx context.Context, memberId string) (*models.Member, error)
	GetActiveIncomingDelegations(ctx context.Context, delegateId string) ([]models.Delegation, error)
	GetActiveMembers(ctx context.Context) ([]models.Member, error)
}

// Multipliers compound multiplicatively, not additively: a founder with
// two years of tenure holds 3.0 x 2.0 = 6.0x their token balance, not
// (3.0 + 2.0)x. Each multiplication floors to an integer before the next
// one is applied, so results are bit-reproducible across platforms.
var (
	multiplierFounder      = decimal.NewFromFloat(3.0)
	multiplierEarlyAdopter = decimal.NewFromFloat(2.0)
	multiplierPremium      = decimal.NewFromFloat(1.5)
	multiplierNone         = decimal.NewFromFloat(1.0)

	tenureSteps = []struct {
		months     int
		multiplier decimal.Decimal
	}{
		{24, decimal.NewFromFloat(2.0)},
		{12, decimal.NewFromFloat(1.5)},
		{6, decimal.NewFromFloat(1.25)},
		{3, decimal.NewFromFloat(1.1)},
	}

	participationSteps = []struct {
		claims     int
		multiplier decimal.Decimal
	}{
		{10, decimal.NewFromFloat(1.3)},
		{5, decimal.NewFromFloat(1.2)},
		{2, decimal.NewFromFloat(1.1)},
	}
)

// Calculator computes effective voting power from token balance,
// tier/tenure/participation multipliers, and incoming delegations.
type Calculator struct {
	store Store
	now   func() time.Time
}

func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store, now: time.Now}
}

// WithClock returns a copy using the given clock. Tests pin time with it.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	return &Calculator{store: c.store, now: now}
}

// ComputePower resolves a member and their incoming delegations and
// returns the full power breakdown.
func (c *Calculator) ComputePower(ctx context.Context, memberId string) (*models.VotingPower, error) {
	member, err := c.store.GetMemberById(ctx, memberId)
	if err != nil {
		return nil, err
	}

	incoming, err := c.store.GetActiveIncomingDelegations(ctx, memberId)
	if err != nil {
		return nil, fmt.Errorf("unable to load incoming delegations: %w", err)
	}

	power := c.PowerOf(member, incoming)
	return &power, nil
}

// PowerOf is the pure computation over an already-loaded member.
func (c *Calculator) PowerOf(member *models.Member, incoming []models.Delegation) models.VotingPower {
	own := c.OwnPower(member)

	// Delegated power is the sum of snapshots frozen at delegation time.
	// Snapshots are never re-multiplied by the delegate's factors and
	// delegation does not chain through the delegate's own incoming edges.
	delegated := decimal.Zero
	for _, d := range incoming {
		delegated = delegated.Add(d.SnapshotPower)
	}

	total := own.Add(delegated)
	return models.VotingPower{
		OwnPower:       own,
		DelegatedPower: delegated,
		TotalPower:     total,
		Eligible:       member.MembershipStatus == models.MembershipActive && total.IsPositive(),
	}
}

// OwnPower applies the three multipliers to the token balance, flooring
// after every multiplication.
func (c *Calculator) OwnPower(member *models.Member) decimal.Decimal {
	power := member.TokenBalance.Floor()
	power = power.Mul(membershipMultiplier(member.MembershipTier)).Floor()
	power = power.Mul(tenureMultiplier(member.JoinedAt, c.now())).Floor()
	power = power.Mul(participationMultiplier(member.SuccessfulClaimCount)).Floor()
	return power
}

// TotalNetworkPower sums the current total power over all eligible
// members. Recomputed live, not snapshotted; proposal quorums move with
// the electorate.
func (c *Calculator) TotalNetworkPower(ctx context.Context) (decimal.Decimal, error) {
	members, err := c.store.GetActiveMembers(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to load active members: %w", err)
	}

	total := decimal.Zero
	for i := range members {
		incoming, err := c.store.GetActiveIncomingDelegations(ctx, members[i].Id)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to load delegations for %s: %w", members[i].Id, err)
		}
		power := c.PowerOf(&members[i], incoming)
		if power.Eligible {
			total = total.Add(power.TotalPower)
		}
	}
	return total, nil
}

func membershipMultiplier(tier models.MembershipTier) decimal.Decimal {
	switch tier {
	case models.TierFounder:
		return multiplierFounder
	case models.TierEarlyAdopter:
		return multiplierEarlyAdopter
	case models.TierPremium:
		return multiplierPremium
	default:
		return multiplierNone
	}
}

func tenureMultiplier(joinedAt, now time.Time) decimal.Decimal {
	months := monthsBetween(joinedAt, now)
	for _, step := range tenureSteps {
		if months >= step.months {
			return step.multiplier
		}
	}
	return multiplierNone
}

func participationMultiplier(successfulClaims int) decimal.Decimal {
	for _, step := range participationSteps {
		if successfulClaims >= step.claims {
			return step.multiplier
		}
	}
	return multiplierNone
}

// monthsBetween counts whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
