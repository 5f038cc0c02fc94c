package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateDelegation_SupersedesPriorActive(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	first, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "bob",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(1200),
	})
	if err != nil {
		t.Fatalf("First delegation failed: %v", err)
	}

	second, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "carol",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(1200),
	})
	if err != nil {
		t.Fatalf("Superseding delegation failed: %v", err)
	}
	if second.Id == first.Id {
		t.Fatal("Expected a fresh delegation row")
	}

	active, err := service.GetActiveOutgoingDelegation(ctx, "alice", models.ScopeAll)
	if err != nil {
		t.Fatalf("GetActiveOutgoingDelegation failed: %v", err)
	}
	if active.Id != second.Id {
		t.Errorf("Expected active delegation %s, got %s", second.Id, active.Id)
	}
	if active.DelegateId != "carol" {
		t.Errorf("Expected delegate carol, got %s", active.DelegateId)
	}
}

func TestCreateDelegation_ScopesAreIndependent(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "bob",
		Scope:         models.ScopeClaims,
		SnapshotPower: decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("Claims delegation failed: %v", err)
	}
	if _, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "carol",
		Scope:         models.ScopeTreasury,
		SnapshotPower: decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("Treasury delegation failed: %v", err)
	}

	claimsDel, err := service.GetActiveOutgoingDelegation(ctx, "alice", models.ScopeClaims)
	if err != nil {
		t.Fatalf("GetActiveOutgoingDelegation claims failed: %v", err)
	}
	if claimsDel.DelegateId != "bob" {
		t.Errorf("Expected claims delegate bob, got %s", claimsDel.DelegateId)
	}

	treasuryDel, err := service.GetActiveOutgoingDelegation(ctx, "alice", models.ScopeTreasury)
	if err != nil {
		t.Fatalf("GetActiveOutgoingDelegation treasury failed: %v", err)
	}
	if treasuryDel.DelegateId != "carol" {
		t.Errorf("Expected treasury delegate carol, got %s", treasuryDel.DelegateId)
	}
}

func TestGetActiveIncomingDelegations_SkipsExpired(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	if _, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "bob",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(1000),
		ExpiresAt:     &future,
	}); err != nil {
		t.Fatalf("Live delegation failed: %v", err)
	}
	if _, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "carol",
		DelegateId:    "bob",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(2000),
		ExpiresAt:     &past,
	}); err != nil {
		t.Fatalf("Expired delegation failed: %v", err)
	}

	incoming, err := service.GetActiveIncomingDelegations(ctx, "bob")
	if err != nil {
		t.Fatalf("GetActiveIncomingDelegations failed: %v", err)
	}
	if len(incoming) != 1 {
		t.Fatalf("Expected 1 live incoming delegation, got %d", len(incoming))
	}
	if incoming[0].DelegatorId != "alice" {
		t.Errorf("Expected delegator alice, got %s", incoming[0].DelegatorId)
	}
}

func TestDeactivateDelegation(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.CreateDelegation(ctx, CreateDelegationParams{
		DelegatorId:   "alice",
		DelegateId:    "bob",
		Scope:         models.ScopeAll,
		SnapshotPower: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("Delegation failed: %v", err)
	}

	if err := service.DeactivateDelegation(ctx, "alice", models.ScopeAll); err != nil {
		t.Fatalf("DeactivateDelegation failed: %v", err)
	}

	_, err := service.GetActiveOutgoingDelegation(ctx, "alice", models.ScopeAll)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after revocation, got %v", err)
	}

	err = service.DeactivateDelegation(ctx, "alice", models.ScopeAll)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second revocation, got %v", err)
	}
}
