package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"dao-governance-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Each sqlite :memory: connection is its own database, so the test pool
// is pinned to a single connection.
func setupTestDB(t *testing.T) (*Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func mustCreateMember(t *testing.T, service *Service, id, email string, balance int64) *models.Member {
	t.Helper()

	member, err := service.CreateMember(context.Background(), CreateMemberParams{
		Id:               id,
		DisplayName:      "Member " + id,
		Email:            email,
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierStandard,
		TokenBalance:     decimal.NewFromInt(balance),
		JoinedAt:         time.Now().UTC().AddDate(0, -6, 0),
	})
	if err != nil {
		t.Fatalf("Failed to create member %s: %v", id, err)
	}
	return member
}

func TestCreateMember_DuplicateEmail(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	mustCreateMember(t, service, "m1", "dup@example.com", 1000)

	_, err := service.CreateMember(context.Background(), CreateMemberParams{
		DisplayName:      "Other",
		Email:            "dup@example.com",
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierStandard,
		TokenBalance:     decimal.NewFromInt(500),
	})
	if err == nil {
		t.Fatal("Expected duplicate email to fail")
	}
}

func TestCreateMember_WalletAddressRoundTrip(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	created, err := service.CreateMember(ctx, CreateMemberParams{
		DisplayName:      "Payee",
		Email:            "payee@example.com",
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierPremium,
		TokenBalance:     decimal.NewFromInt(2500),
		WalletAddress:    "0xabc123",
	})
	if err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}

	loaded, err := service.GetMemberById(ctx, created.Id)
	if err != nil {
		t.Fatalf("GetMemberById failed: %v", err)
	}
	if loaded.WalletAddress != "0xabc123" {
		t.Errorf("Expected wallet address 0xabc123, got %q", loaded.WalletAddress)
	}
	if !loaded.TokenBalance.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected balance 2500, got %s", loaded.TokenBalance.String())
	}
}

func TestIncrementSuccessfulClaimCount_MissingMember(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.IncrementSuccessfulClaimCount(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error for missing member")
	}
}

func TestCountActiveMembers(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	mustCreateMember(t, service, "m1", "m1@example.com", 1000)
	mustCreateMember(t, service, "m2", "m2@example.com", 1000)

	if err := service.SetMembershipStatus(ctx, "m2", models.MembershipSuspended); err != nil {
		t.Fatalf("SetMembershipStatus failed: %v", err)
	}

	count, err := service.CountActiveMembers(ctx)
	if err != nil {
		t.Fatalf("CountActiveMembers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 active member, got %d", count)
	}
}
