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

package database

const (
	// Member queries
	memberColumns = `id, display_name, email, membership_status, membership_tier,
		token_balance, successful_claim_count, wallet_address, joined_at, created_at, updated_at`

	queryInsertMember = `
		INSERT INTO members (id, display_name, email, membership_status, membership_tier,
			token_balance, successful_claim_count, wallet_address, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + memberColumns

	queryGetMemberById = `
		SELECT ` + memberColumns + `
		FROM members
		WHERE id = ?`

	queryGetMembers = `
		SELECT ` + memberColumns + `
		FROM members
		ORDER BY joined_at`

	queryGetActiveMembers = `
		SELECT ` + memberColumns + `
		FROM members
		WHERE membership_status = 'ACTIVE'
		ORDER BY joined_at`

	queryCountActiveMembers = `
		SELECT COUNT(*) FROM members WHERE membership_status = 'ACTIVE'`

	queryIncrementSuccessfulClaims = `
		UPDATE members
		SET successful_claim_count = successful_claim_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySetMembershipStatus = `
		UPDATE members
		SET membership_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryInsertLoginEvent = `
		INSERT INTO login_events (id, member_id, location, user_agent) VALUES (?, ?, ?, ?)`

	queryCountDistinctLoginLocations = `
		SELECT COUNT(DISTINCT location)
		FROM login_events
		WHERE member_id = ? AND created_at >= ? AND location != ''`

	// Delegation queries
	delegationColumns = `id, delegator_id, delegate_id, scope, snapshot_power,
		expires_at, active, created_at, revoked_at`

	queryDeactivateDelegations = `
		UPDATE delegations
		SET active = 0, revoked_at = ?
		WHERE delegator_id = ? AND scope = ? AND active = 1`

	queryInsertDelegation = `
		INSERT INTO delegations (id, delegator_id, delegate_id, scope, snapshot_power, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + delegationColumns

	queryGetActiveIncomingDelegations = `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegate_id = ? AND active = 1 AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at`

	queryGetActiveOutgoingDelegation = `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegator_id = ? AND scope = ? AND active = 1`

	// Claim queries
	claimColumns = `id, owner_id, status, requested_amount, approved_amount, description,
		requires_review, voting_opened_at, voting_closed_at, created_at, updated_at`

	queryInsertClaim = `
		INSERT INTO claims (id, owner_id, status, requested_amount, description, requires_review)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + claimColumns

	queryGetClaimById = `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE id = ?`

	queryTransitionClaim = `
		UPDATE claims
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	queryOpenClaimVoting = `
		UPDATE claims
		SET status = 'COMMUNITY_VOTING', voting_opened_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('SUBMITTED', 'UNDER_REVIEW')`

	queryReviewClaim = `
		UPDATE claims
		SET status = ?, approved_amount = ?, voting_closed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('SUBMITTED', 'UNDER_REVIEW')`

	// The single compare-and-swap out of COMMUNITY_VOTING. Concurrent
	// finalizers race on this statement; exactly one sees rows affected.
	queryFinalizeClaim = `
		UPDATE claims
		SET status = ?, approved_amount = ?, voting_closed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'COMMUNITY_VOTING'`

	queryRouteClaimToReview = `
		UPDATE claims
		SET status = 'UNDER_REVIEW', requires_review = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'SUBMITTED'`

	queryEscalateClaim = `
		UPDATE claims
		SET status = 'FLAGGED', requires_review = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('DRAFT', 'SUBMITTED', 'UNDER_REVIEW', 'COMMUNITY_VOTING')`

	queryListClaimsInVoting = `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE status = 'COMMUNITY_VOTING'
		ORDER BY voting_opened_at`

	queryMarkClaimPaid = `
		UPDATE claims
		SET status = 'PAID', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'APPROVED'`

	// Vote row only materializes while the claim is still in voting;
	// the unique index on (claim_id, voter_id) rejects duplicates.
	queryInsertClaimVote = `
		INSERT INTO claim_votes (id, claim_id, voter_id, choice, justification)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM claims WHERE id = ? AND status = 'COMMUNITY_VOTING')`

	queryCountClaimVotes = `
		SELECT choice, COUNT(*) AS count
		FROM claim_votes
		WHERE claim_id = ?
		GROUP BY choice`

	// Proposal queries
	proposalColumns = `id, proposer_id, category, title, description, status, start_time, end_time,
		quorum_required_pct, voting_threshold_pct, for_votes, against_votes, abstain_votes,
		total_votes, executable, executor_id, executed_at, requires_review, created_at, updated_at`

	queryInsertProposal = `
		INSERT INTO proposals (id, proposer_id, category, title, description, status, start_time,
			end_time, quorum_required_pct, voting_threshold_pct, requires_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + proposalColumns

	queryGetProposalById = `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE id = ?`

	queryGetProposalCounters = `
		SELECT for_votes, against_votes, abstain_votes, total_votes, version
		FROM proposals
		WHERE id = ? AND status = 'ACTIVE'`

	queryInsertProposalVote = `
		INSERT INTO proposal_votes (id, proposal_id, voter_id, choice, voting_power_snapshot, reason)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryUpdateProposalCounters = `
		UPDATE proposals
		SET for_votes = ?, against_votes = ?, abstain_votes = ?, total_votes = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'ACTIVE' AND version = ?`

	queryActivateProposal = `
		UPDATE proposals
		SET status = 'ACTIVE', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'DRAFT'`

	// The single compare-and-swap out of ACTIVE.
	queryFinalizeProposal = `
		UPDATE proposals
		SET status = ?, executable = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'ACTIVE'`

	queryExecuteProposal = `
		UPDATE proposals
		SET status = 'EXECUTED', executor_id = ?, executed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'PASSED' AND executable = 1`

	queryCancelProposal = `
		UPDATE proposals
		SET status = 'CANCELLED', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN ('DRAFT', 'ACTIVE')`

	queryListDueDraftProposals = `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE status = 'DRAFT' AND start_time <= ?
		ORDER BY start_time`

	queryListExpiredActiveProposals = `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE status = 'ACTIVE' AND end_time <= ?
		ORDER BY end_time`

	// Activity queries feeding the fraud gate
	queryCountClaimsSince = `
		SELECT COUNT(*) FROM claims WHERE owner_id = ? AND created_at >= ?`

	queryAvgClaimAmountSince = `
		SELECT COALESCE(AVG(CAST(requested_amount AS REAL)), 0)
		FROM claims
		WHERE owner_id = ? AND created_at >= ?`

	queryCountVotesSince = `
		SELECT
			(SELECT COUNT(*) FROM claim_votes WHERE voter_id = ? AND created_at >= ?) +
			(SELECT COUNT(*) FROM proposal_votes WHERE voter_id = ? AND created_at >= ?)`

	queryRecentVoteTimes = `
		SELECT created_at FROM (
			SELECT voter_id, created_at FROM claim_votes
			UNION ALL
			SELECT voter_id, created_at FROM proposal_votes
		)
		WHERE voter_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	queryRecentClaimSubmissionTimes = `
		SELECT created_at
		FROM claims
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	// Payout queries
	payoutColumns = `id, source_type, source_id, member_id, amount, status,
		disbursement_ref, created_at, disbursed_at`

	queryInsertPayout = `
		INSERT INTO payouts (id, source_type, source_id, member_id, amount, status)
		VALUES (?, ?, ?, ?, ?, 'PENDING')`

	queryGetPayoutBySourceId = `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE source_id = ?`

	queryListPendingPayouts = `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE status = 'PENDING'
		ORDER BY created_at`

	queryMarkPayoutDisbursed = `
		UPDATE payouts
		SET status = 'DISBURSED', disbursement_ref = ?, disbursed_at = ?
		WHERE id = ? AND status = 'PENDING'`

	queryListApprovedClaimsWithoutPayout = `
		SELECT c.id, c.owner_id, c.status, c.requested_amount, c.approved_amount, c.description,
			c.requires_review, c.voting_opened_at, c.voting_closed_at, c.created_at, c.updated_at
		FROM claims c
		LEFT JOIN payouts p ON p.source_id = c.id
		WHERE c.status = 'APPROVED' AND p.id IS NULL`

	// Audit queries
	queryInsertAuditEntry = `
		INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)`
)
