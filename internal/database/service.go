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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dao-governance-go/internal/models"
	"dao-governance-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.TreasuryLedger.
var _ store.TreasuryLedger = (*Service)(nil)

// Service is the SQLite-backed governance store. All uniqueness and
// exactly-once guarantees live in the schema (unique indexes) and in
// conditional UPDATE statements checked via RowsAffected.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if cfg.SeedMembers {
		service.seedDemoMembers(ctx)
	} else {
		zap.L().Info("Skipping demo member creation (SEED_MEMBERS=false)")
	}

	zap.L().Info("Database service initialized", zap.String("file", cfg.Path))
	return service, nil
}

func (s *Service) InitSchema() error {
	schema := `
	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		membership_status TEXT NOT NULL DEFAULT 'PENDING',
		membership_tier TEXT NOT NULL DEFAULT 'STANDARD',
		token_balance TEXT NOT NULL DEFAULT '0',
		successful_claim_count INTEGER NOT NULL DEFAULT 0,
		wallet_address TEXT NOT NULL DEFAULT '',
		joined_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_members_status ON members(membership_status);

	-- Login events feed the fraud gate's location signal
	CREATE TABLE IF NOT EXISTS login_events (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_login_events_member ON login_events(member_id, created_at);

	-- Delegations: at most one active outgoing edge per (delegator, scope)
	CREATE TABLE IF NOT EXISTS delegations (
		id TEXT PRIMARY KEY,
		delegator_id TEXT NOT NULL,
		delegate_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		snapshot_power TEXT NOT NULL,
		expires_at TIMESTAMP,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		revoked_at TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_delegations_active_edge
		ON delegations(delegator_id, scope) WHERE active = 1;
	CREATE INDEX IF NOT EXISTS idx_delegations_delegate
		ON delegations(delegate_id) WHERE active = 1;

	-- Claims
	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		requested_amount TEXT NOT NULL,
		approved_amount TEXT,
		description TEXT NOT NULL DEFAULT '',
		requires_review INTEGER NOT NULL DEFAULT 0,
		voting_opened_at TIMESTAMP,
		voting_closed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_claims_owner ON claims(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);

	-- Claim votes: the unique index is the duplicate-vote guard
	CREATE TABLE IF NOT EXISTS claim_votes (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL,
		voter_id TEXT NOT NULL,
		choice TEXT NOT NULL,
		justification TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(claim_id, voter_id)
	);

	CREATE INDEX IF NOT EXISTS idx_claim_votes_voter ON claim_votes(voter_id, created_at);

	-- Proposals: vote counters are running sums of snapshotted power,
	-- guarded by the version column (optimistic locking)
	CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		proposer_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'GENERAL',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'DRAFT',
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		quorum_required_pct INTEGER NOT NULL,
		voting_threshold_pct INTEGER NOT NULL,
		for_votes TEXT NOT NULL DEFAULT '0',
		against_votes TEXT NOT NULL DEFAULT '0',
		abstain_votes TEXT NOT NULL DEFAULT '0',
		total_votes TEXT NOT NULL DEFAULT '0',
		executable INTEGER NOT NULL DEFAULT 0,
		executor_id TEXT,
		executed_at TIMESTAMP,
		requires_review INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status, end_time);

	-- Proposal votes
	CREATE TABLE IF NOT EXISTS proposal_votes (
		id TEXT PRIMARY KEY,
		proposal_id TEXT NOT NULL,
		voter_id TEXT NOT NULL,
		choice TEXT NOT NULL,
		voting_power_snapshot TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(proposal_id, voter_id)
	);

	CREATE INDEX IF NOT EXISTS idx_proposal_votes_voter ON proposal_votes(voter_id, created_at);

	-- Treasury payouts: UNIQUE(source_id) makes recording idempotent
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL UNIQUE,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		disbursement_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		disbursed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);

	-- Append-only audit trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database", zap.Error(err))
	}
}

// isUniqueViolation reports whether err is a sqlite unique-constraint
// failure. Optimistic inserts rely on this to translate races into
// domain errors instead of retrying.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
