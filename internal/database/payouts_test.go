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

func TestRecordPayout_IdempotentOnSourceId(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	params := store.RecordPayoutParams{
		SourceType: "claim",
		SourceId:   "claim-42",
		MemberId:   "member-1",
		Amount:     decimal.NewFromInt(750),
	}

	first, err := service.RecordPayout(ctx, params)
	if err != nil {
		t.Fatalf("First RecordPayout failed: %v", err)
	}

	second, err := service.RecordPayout(ctx, params)
	if err != nil {
		t.Fatalf("Second RecordPayout failed: %v", err)
	}
	if second != first {
		t.Errorf("Expected the original payout id %s, got %s", first, second)
	}

	pending, err := service.ListPendingPayouts(ctx)
	if err != nil {
		t.Fatalf("ListPendingPayouts failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected exactly 1 pending payout, got %d", len(pending))
	}
	if pending[0].Id != first {
		t.Errorf("Expected pending payout %s, got %s", first, pending[0].Id)
	}
	if !pending[0].Amount.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected amount 750, got %s", pending[0].Amount.String())
	}
}

func TestMarkPayoutDisbursed(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	payoutId, err := service.RecordPayout(ctx, store.RecordPayoutParams{
		SourceType: "proposal",
		SourceId:   "proposal-7",
		MemberId:   "member-1",
		Amount:     decimal.NewFromInt(2000),
	})
	if err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}

	if err := service.MarkPayoutDisbursed(ctx, payoutId, "activity-abc"); err != nil {
		t.Fatalf("MarkPayoutDisbursed failed: %v", err)
	}

	pending, err := service.ListPendingPayouts(ctx)
	if err != nil {
		t.Fatalf("ListPendingPayouts failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending payouts after disbursement, got %d", len(pending))
	}

	payout, err := service.GetPayoutBySourceId(ctx, "proposal-7")
	if err != nil {
		t.Fatalf("GetPayoutBySourceId failed: %v", err)
	}
	if payout.DisbursementRef != "activity-abc" {
		t.Errorf("Expected disbursement ref activity-abc, got %s", payout.DisbursementRef)
	}
	if payout.DisbursedAt == nil {
		t.Error("Expected disbursed_at to be set")
	}

	// A second mark must hit the PENDING guard.
	err = service.MarkPayoutDisbursed(ctx, payoutId, "activity-def")
	if !errors.Is(err, store.ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict on re-disbursement, got %v", err)
	}
}

func TestGetPayoutBySourceId_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetPayoutBySourceId(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListApprovedClaimsWithoutPayout(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	owner := mustCreateMember(t, service, "dana", "dana@example.com", 1500)
	claim := mustCreateClaim(t, service, owner.Id, models.ClaimCommunityVoting)

	approved := decimal.NewFromInt(600)
	won, err := service.FinalizeClaim(ctx, claim.Id, models.ClaimApproved, &approved, time.Now().UTC())
	if err != nil {
		t.Fatalf("FinalizeClaim failed: %v", err)
	}
	if !won {
		t.Fatal("Expected finalize to win")
	}

	unpaid, err := service.ListApprovedClaimsWithoutPayout(ctx)
	if err != nil {
		t.Fatalf("ListApprovedClaimsWithoutPayout failed: %v", err)
	}
	if len(unpaid) != 1 || unpaid[0].Id != claim.Id {
		t.Fatalf("Expected the approved claim to be unpaid, got %d rows", len(unpaid))
	}

	if _, err := service.RecordPayout(ctx, store.RecordPayoutParams{
		SourceType: "claim",
		SourceId:   claim.Id,
		MemberId:   owner.Id,
		Amount:     approved,
	}); err != nil {
		t.Fatalf("RecordPayout failed: %v", err)
	}

	unpaid, err = service.ListApprovedClaimsWithoutPayout(ctx)
	if err != nil {
		t.Fatalf("ListApprovedClaimsWithoutPayout failed: %v", err)
	}
	if len(unpaid) != 0 {
		t.Errorf("Expected no unpaid approved claims, got %d", len(unpaid))
	}
}
