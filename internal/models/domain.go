package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipStatus is the lifecycle state of a member account.
type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "PENDING"
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipSuspended MembershipStatus = "SUSPENDED"
	MembershipBanned    MembershipStatus = "BANNED"
)

// MembershipTier maps to the member's NFT token range.
type MembershipTier string

const (
	TierFounder      MembershipTier = "FOUNDER"
	TierEarlyAdopter MembershipTier = "EARLY_ADOPTER"
	TierPremium      MembershipTier = "PREMIUM"
	TierStandard     MembershipTier = "STANDARD"
)

// Role is the closed set of actor roles. String comparisons against
// role literals are confined to Parse/Can helpers.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleValidator Role = "VALIDATOR"
	RoleAdmin     Role = "ADMIN"
)

// CanReview reports whether the role may review submitted claims.
func (r Role) CanReview() bool { return r == RoleAdmin || r == RoleValidator }

// CanExecute reports whether the role may execute passed proposals.
func (r Role) CanExecute() bool { return r == RoleAdmin }

// CanEscalate reports whether the role may flag entities for fraud review.
func (r Role) CanEscalate() bool { return r == RoleAdmin || r == RoleValidator }

// Actor identifies the authenticated caller of a mutating operation.
// Authentication itself happens in the layer above; this core trusts
// the resolved identity.
type Actor struct {
	UserID           string
	Role             Role
	MembershipStatus MembershipStatus
}

// Member represents a DAO member account.
type Member struct {
	Id                   string           `db:"id"`
	DisplayName          string           `db:"display_name"`
	Email                string           `db:"email"`
	MembershipStatus     MembershipStatus `db:"membership_status"`
	MembershipTier       MembershipTier   `db:"membership_tier"`
	TokenBalance         decimal.Decimal  `db:"token_balance"`
	SuccessfulClaimCount int              `db:"successful_claim_count"`
	WalletAddress        string           `db:"wallet_address"`
	JoinedAt             time.Time        `db:"joined_at"`
	CreatedAt            time.Time        `db:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at"`
}

// DelegationScope restricts a delegation to one governance category.
type DelegationScope string

const (
	ScopeAll        DelegationScope = "ALL"
	ScopeTreasury   DelegationScope = "TREASURY"
	ScopeGovernance DelegationScope = "GOVERNANCE"
	ScopeMembership DelegationScope = "MEMBERSHIP"
	ScopeClaims     DelegationScope = "CLAIMS"
	ScopeTechnical  DelegationScope = "TECHNICAL"
)

// Delegation is a frozen assignment of voting power from delegator to
// delegate. At most one active row exists per (delegator, scope).
type Delegation struct {
	Id            string          `db:"id"`
	DelegatorId   string          `db:"delegator_id"`
	DelegateId    string          `db:"delegate_id"`
	Scope         DelegationScope `db:"scope"`
	SnapshotPower decimal.Decimal `db:"snapshot_power"`
	ExpiresAt     *time.Time      `db:"expires_at"`
	Active        bool            `db:"active"`
	CreatedAt     time.Time       `db:"created_at"`
	RevokedAt     *time.Time      `db:"revoked_at"`
}

// VotingPower is the result of a power computation for one member.
type VotingPower struct {
	OwnPower       decimal.Decimal
	DelegatedPower decimal.Decimal
	TotalPower     decimal.Decimal
	Eligible       bool
}

// ClaimStatus is the claim lifecycle state.
type ClaimStatus string

const (
	ClaimDraft           ClaimStatus = "DRAFT"
	ClaimSubmitted       ClaimStatus = "SUBMITTED"
	ClaimUnderReview     ClaimStatus = "UNDER_REVIEW"
	ClaimCommunityVoting ClaimStatus = "COMMUNITY_VOTING"
	ClaimApproved        ClaimStatus = "APPROVED"
	ClaimRejected        ClaimStatus = "REJECTED"
	ClaimPaid            ClaimStatus = "PAID"
	ClaimFlagged         ClaimStatus = "FLAGGED"
)

// Terminal reports whether the status can never be reassigned.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimRejected || s == ClaimPaid || s == ClaimFlagged
}

// Claim is a financial mutual-aid claim. Never deleted once past DRAFT.
type Claim struct {
	Id              string          `db:"id"`
	OwnerId         string          `db:"owner_id"`
	Status          ClaimStatus     `db:"status"`
	RequestedAmount decimal.Decimal `db:"requested_amount"`
	ApprovedAmount  *decimal.Decimal `db:"approved_amount"`
	Description     string          `db:"description"`
	RequiresReview  bool            `db:"requires_review"`
	VotingOpenedAt  *time.Time      `db:"voting_opened_at"`
	VotingClosedAt  *time.Time      `db:"voting_closed_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// ClaimVoteChoice is a community vote on a claim.
type ClaimVoteChoice string

const (
	ClaimVoteApprove ClaimVoteChoice = "APPROVE"
	ClaimVoteReject  ClaimVoteChoice = "REJECT"
	ClaimVoteAbstain ClaimVoteChoice = "ABSTAIN"
)

// ClaimVote is immutable once created; (claim, voter) is unique.
type ClaimVote struct {
	Id            string          `db:"id"`
	ClaimId       string          `db:"claim_id"`
	VoterId       string          `db:"voter_id"`
	Choice        ClaimVoteChoice `db:"choice"`
	Justification string          `db:"justification"`
	CreatedAt     time.Time       `db:"created_at"`
}

// ProposalStatus is the proposal lifecycle state.
type ProposalStatus string

const (
	ProposalDraft     ProposalStatus = "DRAFT"
	ProposalActive    ProposalStatus = "ACTIVE"
	ProposalPassed    ProposalStatus = "PASSED"
	ProposalDefeated  ProposalStatus = "DEFEATED"
	ProposalExecuted  ProposalStatus = "EXECUTED"
	ProposalExpired   ProposalStatus = "EXPIRED"
	ProposalCancelled ProposalStatus = "CANCELLED"
)

// Terminal reports whether the status can never be reassigned.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalExecuted || s == ProposalExpired || s == ProposalCancelled || s == ProposalDefeated
}

// ProposalCategory selects the execution handler for a passed proposal.
type ProposalCategory string

const (
	CategoryTreasury   ProposalCategory = "TREASURY"
	CategoryParameter  ProposalCategory = "PARAMETER"
	CategoryMembership ProposalCategory = "MEMBERSHIP"
	CategoryTechnical  ProposalCategory = "TECHNICAL"
	CategoryGeneral    ProposalCategory = "GENERAL"
)

// Proposal is a token-weighted governance proposal. The vote counters
// are running sums of snapshotted voting power, maintained in the same
// storage transaction as each vote insert.
type Proposal struct {
	Id                 string           `db:"id"`
	ProposerId         string           `db:"proposer_id"`
	Category           ProposalCategory `db:"category"`
	Title              string           `db:"title"`
	Description        string           `db:"description"`
	Status             ProposalStatus   `db:"status"`
	StartTime          time.Time        `db:"start_time"`
	EndTime            time.Time        `db:"end_time"`
	QuorumRequiredPct  int              `db:"quorum_required_pct"`
	VotingThresholdPct int              `db:"voting_threshold_pct"`
	ForVotes           decimal.Decimal  `db:"for_votes"`
	AgainstVotes       decimal.Decimal  `db:"against_votes"`
	AbstainVotes       decimal.Decimal  `db:"abstain_votes"`
	TotalVotes         decimal.Decimal  `db:"total_votes"`
	Executable         bool             `db:"executable"`
	ExecutorId         *string          `db:"executor_id"`
	ExecutedAt         *time.Time       `db:"executed_at"`
	RequiresReview     bool             `db:"requires_review"`
	CreatedAt          time.Time        `db:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at"`
}

// ProposalVoteChoice is a weighted vote on a proposal.
type ProposalVoteChoice string

const (
	ProposalVoteFor     ProposalVoteChoice = "FOR"
	ProposalVoteAgainst ProposalVoteChoice = "AGAINST"
	ProposalVoteAbstain ProposalVoteChoice = "ABSTAIN"
)

// ProposalVote freezes the voter's power at cast time; immutable,
// (proposal, voter) unique.
type ProposalVote struct {
	Id                  string             `db:"id"`
	ProposalId          string             `db:"proposal_id"`
	VoterId             string             `db:"voter_id"`
	Choice              ProposalVoteChoice `db:"choice"`
	VotingPowerSnapshot decimal.Decimal    `db:"voting_power_snapshot"`
	Reason              string             `db:"reason"`
	CreatedAt           time.Time          `db:"created_at"`
}

// PayoutStatus is the state of a recorded treasury payout.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutDisbursed PayoutStatus = "DISBURSED"
)

// Payout is one treasury ledger entry. source_id is unique, which makes
// recording idempotent against finalization races.
type Payout struct {
	Id              string          `db:"id"`
	SourceType      string          `db:"source_type"`
	SourceId        string          `db:"source_id"`
	MemberId        string          `db:"member_id"`
	Amount          decimal.Decimal `db:"amount"`
	Status          PayoutStatus    `db:"status"`
	DisbursementRef string          `db:"disbursement_ref"`
	CreatedAt       time.Time       `db:"created_at"`
	DisbursedAt     *time.Time      `db:"disbursed_at"`
}

// AuditEntry is one row of the append-only audit trail.
type AuditEntry struct {
	Id         string    `db:"id"`
	ActorId    string    `db:"actor_id"`
	Action     string    `db:"action"`
	EntityType string    `db:"entity_type"`
	EntityId   string    `db:"entity_id"`
	Detail     string    `db:"detail"`
	CreatedAt  time.Time `db:"created_at"`
}
