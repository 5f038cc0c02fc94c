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

func mustCreateClaim(t *testing.T, service *Service, ownerId string, status models.ClaimStatus) *models.Claim {
	t.Helper()

	claim, err := service.CreateClaim(context.Background(), CreateClaimParams{
		OwnerId:         ownerId,
		RequestedAmount: decimal.NewFromInt(750),
		Description:     "emergency vet bill",
		Status:          status,
	})
	if err != nil {
		t.Fatalf("Failed to create claim: %v", err)
	}
	return claim
}

func TestFinalizeClaim_SingleWinner(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	claim := mustCreateClaim(t, service, "owner", models.ClaimCommunityVoting)

	amount := decimal.NewFromInt(750)
	now := time.Now().UTC()

	won, err := service.FinalizeClaim(ctx, claim.Id, models.ClaimApproved, &amount, now)
	if err != nil {
		t.Fatalf("First finalize failed: %v", err)
	}
	if !won {
		t.Fatal("Expected first finalize to win")
	}

	// A losing racer proposes a different outcome; the stored state
	// must not move.
	won, err = service.FinalizeClaim(ctx, claim.Id, models.ClaimRejected, nil, now)
	if err != nil {
		t.Fatalf("Second finalize errored: %v", err)
	}
	if won {
		t.Fatal("Expected second finalize to lose")
	}

	loaded, err := service.GetClaimById(ctx, claim.Id)
	if err != nil {
		t.Fatalf("GetClaimById failed: %v", err)
	}
	if loaded.Status != models.ClaimApproved {
		t.Errorf("Expected status APPROVED, got %s", loaded.Status)
	}
	if loaded.ApprovedAmount == nil || !loaded.ApprovedAmount.Equal(amount) {
		t.Errorf("Expected approved amount %s, got %v", amount, loaded.ApprovedAmount)
	}
	if loaded.VotingClosedAt == nil {
		t.Error("Expected voting_closed_at to be set")
	}
}

func TestInsertClaimVote_DuplicateAndStateConflict(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	voting := mustCreateClaim(t, service, "owner", models.ClaimCommunityVoting)
	draft := mustCreateClaim(t, service, "owner", models.ClaimDraft)

	if _, err := service.InsertClaimVote(ctx, voting.Id, "voter-1", models.ClaimVoteApprove, ""); err != nil {
		t.Fatalf("First vote failed: %v", err)
	}

	_, err := service.InsertClaimVote(ctx, voting.Id, "voter-1", models.ClaimVoteReject, "")
	if !errors.Is(err, store.ErrDuplicateVote) {
		t.Errorf("Expected ErrDuplicateVote, got %v", err)
	}

	_, err = service.InsertClaimVote(ctx, draft.Id, "voter-1", models.ClaimVoteApprove, "")
	if !errors.Is(err, store.ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict for draft claim, got %v", err)
	}
}

func TestCountClaimVotes(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	claim := mustCreateClaim(t, service, "owner", models.ClaimCommunityVoting)

	votes := map[string]models.ClaimVoteChoice{
		"voter-1": models.ClaimVoteApprove,
		"voter-2": models.ClaimVoteApprove,
		"voter-3": models.ClaimVoteReject,
		"voter-4": models.ClaimVoteAbstain,
	}
	for voter, choice := range votes {
		if _, err := service.InsertClaimVote(ctx, claim.Id, voter, choice, ""); err != nil {
			t.Fatalf("Vote by %s failed: %v", voter, err)
		}
	}

	tally, err := service.CountClaimVotes(ctx, claim.Id)
	if err != nil {
		t.Fatalf("CountClaimVotes failed: %v", err)
	}
	if tally.Approve != 2 || tally.Reject != 1 || tally.Abstain != 1 {
		t.Errorf("Unexpected tally: %+v", tally)
	}
	if tally.Total() != 4 {
		t.Errorf("Expected total 4, got %d", tally.Total())
	}
}

func TestOpenClaimVoting_RequiresReviewableState(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	submitted := mustCreateClaim(t, service, "owner", models.ClaimSubmitted)
	draft := mustCreateClaim(t, service, "owner", models.ClaimDraft)

	if err := service.OpenClaimVoting(ctx, submitted.Id, time.Now().UTC()); err != nil {
		t.Fatalf("OpenClaimVoting failed: %v", err)
	}

	loaded, err := service.GetClaimById(ctx, submitted.Id)
	if err != nil {
		t.Fatalf("GetClaimById failed: %v", err)
	}
	if loaded.Status != models.ClaimCommunityVoting {
		t.Errorf("Expected COMMUNITY_VOTING, got %s", loaded.Status)
	}
	if loaded.VotingOpenedAt == nil {
		t.Error("Expected voting_opened_at to be set")
	}

	err = service.OpenClaimVoting(ctx, draft.Id, time.Now().UTC())
	if !errors.Is(err, store.ErrStateConflict) {
		t.Errorf("Expected ErrStateConflict for draft claim, got %v", err)
	}
}

func TestEscalateClaim(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	claim := mustCreateClaim(t, service, "owner", models.ClaimCommunityVoting)

	escalated, err := service.EscalateClaim(ctx, claim.Id)
	if err != nil {
		t.Fatalf("EscalateClaim failed: %v", err)
	}
	if !escalated {
		t.Fatal("Expected escalation to apply")
	}

	loaded, err := service.GetClaimById(ctx, claim.Id)
	if err != nil {
		t.Fatalf("GetClaimById failed: %v", err)
	}
	if loaded.Status != models.ClaimFlagged {
		t.Errorf("Expected FLAGGED, got %s", loaded.Status)
	}
	if !loaded.RequiresReview {
		t.Error("Expected requires_review to be set")
	}

	// Terminal claims cannot be escalated again.
	escalated, err = service.EscalateClaim(ctx, claim.Id)
	if err != nil {
		t.Fatalf("Second EscalateClaim errored: %v", err)
	}
	if escalated {
		t.Error("Expected escalation of flagged claim to no-op")
	}
}

func TestListClaimsInVoting(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "owner", "owner@example.com", 1000)
	mustCreateClaim(t, service, "owner", models.ClaimCommunityVoting)
	mustCreateClaim(t, service, "owner", models.ClaimDraft)
	mustCreateClaim(t, service, "owner", models.ClaimApproved)

	open, err := service.ListClaimsInVoting(ctx)
	if err != nil {
		t.Fatalf("ListClaimsInVoting failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("Expected 1 claim in voting, got %d", len(open))
	}
	if open[0].Status != models.ClaimCommunityVoting {
		t.Errorf("Expected COMMUNITY_VOTING, got %s", open[0].Status)
	}
}
