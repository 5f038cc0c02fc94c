package voting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dao-governance-go/internal/database"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	members     map[string]*models.Member
	delegations []models.Delegation
	nextId      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: make(map[string]*models.Member)}
}

func (f *fakeStore) addMember(id string, status models.MembershipStatus, tier models.MembershipTier, balance int64, joinedAt time.Time, claims int) {
	f.members[id] = &models.Member{
		Id:                   id,
		DisplayName:          id,
		MembershipStatus:     status,
		MembershipTier:       tier,
		TokenBalance:         decimal.NewFromInt(balance),
		SuccessfulClaimCount: claims,
		JoinedAt:             joinedAt,
	}
}

func (f *fakeStore) GetMemberById(_ context.Context, memberId string) (*models.Member, error) {
	member, ok := f.members[memberId]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberId, store.ErrNotFound)
	}
	copied := *member
	return &copied, nil
}

func (f *fakeStore) GetActiveMembers(_ context.Context) ([]models.Member, error) {
	var out []models.Member
	for _, m := range f.members {
		if m.MembershipStatus == models.MembershipActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetActiveIncomingDelegations(_ context.Context, delegateId string) ([]models.Delegation, error) {
	var out []models.Delegation
	for _, d := range f.delegations {
		if d.Active && d.DelegateId == delegateId {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateDelegation(_ context.Context, params database.CreateDelegationParams) (*models.Delegation, error) {
	for i := range f.delegations {
		if f.delegations[i].Active && f.delegations[i].DelegatorId == params.DelegatorId && f.delegations[i].Scope == params.Scope {
			f.delegations[i].Active = false
		}
	}
	f.nextId++
	d := models.Delegation{
		Id:            fmt.Sprintf("del-%d", f.nextId),
		DelegatorId:   params.DelegatorId,
		DelegateId:    params.DelegateId,
		Scope:         params.Scope,
		SnapshotPower: params.SnapshotPower,
		ExpiresAt:     params.ExpiresAt,
		Active:        true,
	}
	f.delegations = append(f.delegations, d)
	return &d, nil
}

func (f *fakeStore) DeactivateDelegation(_ context.Context, delegatorId string, scope models.DelegationScope) error {
	for i := range f.delegations {
		if f.delegations[i].Active && f.delegations[i].DelegatorId == delegatorId && f.delegations[i].Scope == scope {
			f.delegations[i].Active = false
			return nil
		}
	}
	return fmt.Errorf("delegation for %s/%s: %w", delegatorId, scope, store.ErrNotFound)
}

func (f *fakeStore) GetActiveOutgoingDelegation(_ context.Context, delegatorId string, scope models.DelegationScope) (*models.Delegation, error) {
	for i := range f.delegations {
		if f.delegations[i].Active && f.delegations[i].DelegatorId == delegatorId && f.delegations[i].Scope == scope {
			copied := f.delegations[i]
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("delegation for %s/%s: %w", delegatorId, scope, store.ErrNotFound)
}

type auditRecorder struct {
	entries []models.AuditEntry
}

func (a *auditRecorder) Append(_ context.Context, entry models.AuditEntry) {
	a.entries = append(a.entries, entry)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func TestOwnPower_AllMultipliers(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	// 1000 tokens, premium tier (1.5x), 8 months tenure (1.25x),
	// 7 successful claims (1.2x): 1000 -> 1500 -> 1875 -> 2250.
	fs.addMember("alice", models.MembershipActive, models.TierPremium, 1000, testNow.AddDate(0, -8, 0), 7)

	power, err := calc.ComputePower(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ComputePower failed: %v", err)
	}

	expected := decimal.NewFromInt(2250)
	if !power.OwnPower.Equal(expected) {
		t.Errorf("Expected own power %s, got %s", expected.String(), power.OwnPower.String())
	}
	if !power.Eligible {
		t.Error("Expected member to be eligible")
	}
}

func TestComputePower_WithDelegation(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	fs.addMember("alice", models.MembershipActive, models.TierPremium, 1000, testNow.AddDate(0, -8, 0), 7)
	fs.delegations = append(fs.delegations, models.Delegation{
		Id:            "del-1",
		DelegatorId:   "bob",
		DelegateId:    "alice",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(500),
		Active:        true,
	})

	power, err := calc.ComputePower(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ComputePower failed: %v", err)
	}

	if !power.DelegatedPower.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected delegated power 500, got %s", power.DelegatedPower.String())
	}
	expected := decimal.NewFromInt(2750)
	if !power.TotalPower.Equal(expected) {
		t.Errorf("Expected total power %s, got %s", expected.String(), power.TotalPower.String())
	}
}

func TestOwnPower_FlooringAtEachStep(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	// 101 tokens, premium (1.5x), 4 months (1.1x), no claims:
	// 101 -> floor(151.5)=151 -> floor(166.1)=166.
	member := &models.Member{
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierPremium,
		TokenBalance:     decimal.NewFromInt(101),
		JoinedAt:         testNow.AddDate(0, -4, 0),
	}

	got := calc.OwnPower(member)
	expected := decimal.NewFromInt(166)
	if !got.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected.String(), got.String())
	}
}

func TestOwnPower_TierMultipliers(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	cases := []struct {
		tier     models.MembershipTier
		expected int64
	}{
		{models.TierFounder, 3000},
		{models.TierEarlyAdopter, 2000},
		{models.TierPremium, 1500},
		{models.TierStandard, 1000},
	}

	for _, tc := range cases {
		member := &models.Member{
			MembershipStatus: models.MembershipActive,
			MembershipTier:   tc.tier,
			TokenBalance:     decimal.NewFromInt(1000),
			JoinedAt:         testNow, // no tenure bonus
		}
		got := calc.OwnPower(member)
		if !got.Equal(decimal.NewFromInt(tc.expected)) {
			t.Errorf("Tier %s: expected %d, got %s", tc.tier, tc.expected, got.String())
		}
	}
}

func TestOwnPower_TenureSteps(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	cases := []struct {
		months   int
		expected int64
	}{
		{0, 1000},
		{2, 1000},
		{3, 1100},
		{6, 1250},
		{12, 1500},
		{24, 2000},
		{36, 2000},
	}

	for _, tc := range cases {
		member := &models.Member{
			MembershipStatus: models.MembershipActive,
			MembershipTier:   models.TierStandard,
			TokenBalance:     decimal.NewFromInt(1000),
			JoinedAt:         testNow.AddDate(0, -tc.months, 0),
		}
		got := calc.OwnPower(member)
		if !got.Equal(decimal.NewFromInt(tc.expected)) {
			t.Errorf("Tenure %d months: expected %d, got %s", tc.months, tc.expected, got.String())
		}
	}
}

func TestOwnPower_ParticipationSteps(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	cases := []struct {
		claims   int
		expected int64
	}{
		{0, 1000},
		{1, 1000},
		{2, 1100},
		{5, 1200},
		{10, 1300},
		{25, 1300},
	}

	for _, tc := range cases {
		member := &models.Member{
			MembershipStatus:     models.MembershipActive,
			MembershipTier:       models.TierStandard,
			TokenBalance:         decimal.NewFromInt(1000),
			SuccessfulClaimCount: tc.claims,
			JoinedAt:             testNow,
		}
		got := calc.OwnPower(member)
		if !got.Equal(decimal.NewFromInt(tc.expected)) {
			t.Errorf("Claims %d: expected %d, got %s", tc.claims, tc.expected, got.String())
		}
	}
}

func TestEligibility(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	suspended := &models.Member{
		MembershipStatus: models.MembershipSuspended,
		MembershipTier:   models.TierFounder,
		TokenBalance:     decimal.NewFromInt(1000),
		JoinedAt:         testNow,
	}
	if calc.PowerOf(suspended, nil).Eligible {
		t.Error("Suspended member should not be eligible regardless of power")
	}

	broke := &models.Member{
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierStandard,
		TokenBalance:     decimal.Zero,
		JoinedAt:         testNow,
	}
	if calc.PowerOf(broke, nil).Eligible {
		t.Error("Member with zero power should not be eligible")
	}

	// Zero own power but incoming delegation still counts toward total.
	delegated := []models.Delegation{{SnapshotPower: decimal.NewFromInt(100), Active: true, DelegateId: "broke"}}
	if !calc.PowerOf(broke, delegated).Eligible {
		t.Error("Member with delegated power should be eligible")
	}
}

func TestTotalNetworkPower(t *testing.T) {
	fs := newFakeStore()
	calc := NewCalculator(fs).WithClock(fixedClock)

	fs.addMember("alice", models.MembershipActive, models.TierStandard, 1000, testNow, 0)
	fs.addMember("bob", models.MembershipActive, models.TierStandard, 500, testNow, 0)
	fs.addMember("carol", models.MembershipSuspended, models.TierFounder, 9999, testNow, 0)

	total, err := calc.TotalNetworkPower(context.Background())
	if err != nil {
		t.Fatalf("TotalNetworkPower failed: %v", err)
	}

	expected := decimal.NewFromInt(1500)
	if !total.Equal(expected) {
		t.Errorf("Expected network power %s, got %s", expected.String(), total.String())
	}
}

func TestMonthsBetween_DayBoundary(t *testing.T) {
	joined := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	if got := monthsBetween(joined, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC)); got != 2 {
		t.Errorf("Day before anniversary: expected 2, got %d", got)
	}
	if got := monthsBetween(joined, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)); got != 3 {
		t.Errorf("On anniversary: expected 3, got %d", got)
	}
	if got := monthsBetween(joined, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("Future join date: expected 0, got %d", got)
	}
}
