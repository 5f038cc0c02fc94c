package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dao-governance-go/internal/claims"
	"dao-governance-go/internal/database"
	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/proposals"
	"dao-governance-go/internal/voting"

	"github.com/shopspring/decimal"
)

type allowGate struct{}

func (allowGate) Evaluate(_ context.Context, userId string, action models.FraudActionType, _ models.FraudPayload) models.FraudAssessment {
	return models.FraudAssessment{
		UserId:     userId,
		ActionType: action,
		RiskLevel:  models.RiskLow,
		Decision:   models.DecisionAllow,
	}
}

type nopAudit struct{}

func (nopAudit) Append(_ context.Context, _ models.AuditEntry)                    {}
func (nopAudit) Raise(_ context.Context, _ string, _ string, _ map[string]string) {}

type sweepFixture struct {
	db        *database.Service
	claims    *claims.Service
	proposals *proposals.Service
	sweeper   *Sweeper
	now       time.Time
}

func (f *sweepFixture) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupSweepTest(t *testing.T, cfg models.SweepConfig) *sweepFixture {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	fixture := &sweepFixture{
		db:  db,
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fixture.now }

	security := &governance.SecurityContext{
		Gate:   allowGate{},
		Audit:  nopAudit{},
		Alerts: nopAudit{},
	}
	calc := voting.NewCalculator(db).WithClock(clock)
	fixture.claims = claims.NewService(db, db, security).WithClock(clock)
	fixture.proposals = proposals.NewService(db, calc, security).WithClock(clock)
	fixture.sweeper = NewSweeper(db, fixture.claims, fixture.proposals, db, cfg)
	fixture.sweeper.now = clock
	return fixture
}

func (f *sweepFixture) seedMembers(t *testing.T, count int, balance int64) []models.Actor {
	t.Helper()
	actors := make([]models.Actor, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("member-%d", i)
		_, err := f.db.CreateMember(context.Background(), database.CreateMemberParams{
			Id:               id,
			DisplayName:      id,
			Email:            id + "@dao.example",
			MembershipStatus: models.MembershipActive,
			MembershipTier:   models.TierStandard,
			TokenBalance:     decimal.NewFromInt(balance),
			JoinedAt:         f.now,
		})
		if err != nil {
			t.Fatalf("Failed to seed member %s: %v", id, err)
		}
		actors[i] = models.Actor{UserID: id, Role: models.RoleMember, MembershipStatus: models.MembershipActive}
	}
	return actors
}

func TestSweepOnce_ActivatesAndFinalizesProposal(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: time.Minute})
	ctx := context.Background()
	actors := f.seedMembers(t, 3, 12000)

	proposal, err := f.proposals.Create(ctx, actors[0], proposals.CreateParams{
		Category:           models.CategoryTreasury,
		Title:              "Top up the reserve",
		StartTime:          f.now.Add(time.Hour),
		EndTime:            f.now.Add(25 * time.Hour),
		QuorumRequiredPct:  30,
		VotingThresholdPct: 66,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if proposal.Status != models.ProposalDraft {
		t.Fatalf("Expected DRAFT before start, got %s", proposal.Status)
	}

	// Before the start time the sweep must not touch it.
	f.sweeper.SweepOnce(ctx)
	current, _ := f.proposals.Get(ctx, proposal.Id)
	if current.Status != models.ProposalDraft {
		t.Fatalf("Sweep activated early: %s", current.Status)
	}

	f.Advance(2 * time.Hour)
	f.sweeper.SweepOnce(ctx)
	current, _ = f.proposals.Get(ctx, proposal.Id)
	if current.Status != models.ProposalActive {
		t.Fatalf("Expected ACTIVE after start, got %s", current.Status)
	}

	// 24000 of 36000 network power in favor clears a 30% quorum and a
	// 66% threshold.
	for _, voter := range actors[1:] {
		if _, err := f.proposals.CastVote(ctx, voter, proposal.Id, models.ProposalVoteFor, ""); err != nil {
			t.Fatalf("Vote by %s failed: %v", voter.UserID, err)
		}
	}

	f.Advance(25 * time.Hour)
	f.sweeper.SweepOnce(ctx)
	current, _ = f.proposals.Get(ctx, proposal.Id)
	if current.Status != models.ProposalPassed {
		t.Errorf("Expected PASSED after expiry, got %s", current.Status)
	}
}

func TestSweepOnce_DefeatsProposalMissingQuorum(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: time.Minute})
	ctx := context.Background()
	actors := f.seedMembers(t, 4, 10000)

	proposal, err := f.proposals.Create(ctx, actors[0], proposals.CreateParams{
		Category:           models.CategoryGeneral,
		Title:              "Rename the forum",
		StartTime:          f.now.Add(-time.Minute),
		EndTime:            f.now.Add(24 * time.Hour),
		QuorumRequiredPct:  50,
		VotingThresholdPct: 50,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// One voter of four: 10000 of 40000 misses the 50% quorum.
	if _, err := f.proposals.CastVote(ctx, actors[1], proposal.Id, models.ProposalVoteFor, ""); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	f.Advance(25 * time.Hour)
	f.sweeper.SweepOnce(ctx)
	current, _ := f.proposals.Get(ctx, proposal.Id)
	if current.Status != models.ProposalDefeated {
		t.Errorf("Expected DEFEATED on quorum miss, got %s", current.Status)
	}
}

func TestSweepOnce_ClosesClaimAfterMembershipShrinks(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: time.Minute})
	ctx := context.Background()
	actors := f.seedMembers(t, 10, 1000)

	claim, err := f.claims.Create(ctx, actors[0], decimal.NewFromInt(400), "flood damage repair")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.claims.Submit(ctx, actors[0], claim.Id); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	validator := models.Actor{UserID: "validator-1", Role: models.RoleValidator, MembershipStatus: models.MembershipActive}
	if _, err := f.claims.Review(ctx, validator, claim.Id, claims.ReviewOpenVoting, nil); err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	// Five votes against a threshold of six for ten active members.
	choices := []models.ClaimVoteChoice{
		models.ClaimVoteApprove, models.ClaimVoteApprove, models.ClaimVoteApprove,
		models.ClaimVoteReject, models.ClaimVoteAbstain,
	}
	for i, choice := range choices {
		if _, err := f.claims.CastVote(ctx, actors[i+1], claim.Id, choice, ""); err != nil {
			t.Fatalf("Vote %d failed: %v", i, err)
		}
	}

	f.sweeper.SweepOnce(ctx)
	current, _ := f.claims.Get(ctx, claim.Id)
	if current.Status != models.ClaimCommunityVoting {
		t.Fatalf("Sweep closed the claim below threshold: %s", current.Status)
	}

	// Three suspensions drop the active count to seven, so the threshold
	// falls to five and the existing votes now decide the claim.
	for i := 7; i < 10; i++ {
		if err := f.db.SetMembershipStatus(ctx, actors[i].UserID, models.MembershipSuspended); err != nil {
			t.Fatalf("SetMembershipStatus failed: %v", err)
		}
	}

	f.sweeper.SweepOnce(ctx)
	current, _ = f.claims.Get(ctx, claim.Id)
	if current.Status != models.ClaimApproved {
		t.Fatalf("Expected APPROVED after the threshold dropped, got %s", current.Status)
	}
	if _, err := f.db.GetPayoutBySourceId(ctx, claim.Id); err != nil {
		t.Errorf("Expected a payout for the swept approval: %v", err)
	}
}

func TestSweepOnce_RetriesMissingPayout(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: time.Minute, PayoutRetry: true})
	ctx := context.Background()
	actors := f.seedMembers(t, 2, 1000)

	claim, err := f.claims.Create(ctx, actors[0], decimal.NewFromInt(300), "ambulance fee")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.claims.Submit(ctx, actors[0], claim.Id); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	validator := models.Actor{UserID: "validator-1", Role: models.RoleValidator, MembershipStatus: models.MembershipActive}
	if _, err := f.claims.Review(ctx, validator, claim.Id, claims.ReviewOpenVoting, nil); err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	// Finalize directly in storage, the way a crash between the status
	// flip and the ledger write would leave things.
	approved := decimal.NewFromInt(300)
	won, err := f.db.FinalizeClaim(ctx, claim.Id, models.ClaimApproved, &approved, f.now)
	if err != nil || !won {
		t.Fatalf("FinalizeClaim failed: won=%v err=%v", won, err)
	}

	f.sweeper.SweepOnce(ctx)
	payout, err := f.db.GetPayoutBySourceId(ctx, claim.Id)
	if err != nil {
		t.Fatalf("Expected the sweep to record the missing payout: %v", err)
	}
	if !payout.Amount.Equal(approved) || payout.MemberId != actors[0].UserID {
		t.Errorf("Payout mismatch: %+v", payout)
	}

	// A second pass must not duplicate it.
	f.sweeper.SweepOnce(ctx)
	pending, err := f.db.ListPendingPayouts(ctx)
	if err != nil {
		t.Fatalf("ListPendingPayouts failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected exactly 1 pending payout, got %d", len(pending))
	}
}

func TestSweepOnce_PayoutRetryDisabled(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: time.Minute, PayoutRetry: false})
	ctx := context.Background()
	actors := f.seedMembers(t, 2, 1000)

	claim, err := f.claims.Create(ctx, actors[0], decimal.NewFromInt(300), "ambulance fee")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.claims.Submit(ctx, actors[0], claim.Id); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	validator := models.Actor{UserID: "validator-1", Role: models.RoleValidator, MembershipStatus: models.MembershipActive}
	if _, err := f.claims.Review(ctx, validator, claim.Id, claims.ReviewOpenVoting, nil); err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	approved := decimal.NewFromInt(300)
	if _, err := f.db.FinalizeClaim(ctx, claim.Id, models.ClaimApproved, &approved, f.now); err != nil {
		t.Fatalf("FinalizeClaim failed: %v", err)
	}

	f.sweeper.SweepOnce(ctx)
	if _, err := f.db.GetPayoutBySourceId(ctx, claim.Id); err == nil {
		t.Error("Disabled payout retry must not record payouts")
	}
}

func TestStartStop(t *testing.T) {
	f := setupSweepTest(t, models.SweepConfig{Interval: 10 * time.Millisecond})

	f.sweeper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		f.sweeper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
