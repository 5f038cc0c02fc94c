package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateVote          = errors.New("vote already exists for this voter")
	ErrStateConflict          = errors.New("entity is not in the required state")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// RecordPayoutParams captures one treasury payout to record. SourceId is
// the finalized claim or proposal id; recording the same SourceId twice
// must be a no-op that returns the original payout reference.
type RecordPayoutParams struct {
	SourceType string // "claim" or "proposal"
	SourceId   string
	MemberId   string
	Amount     decimal.Decimal
}

// TreasuryLedger defines the contract that every treasury backend
// (SQLite, Formance, ...) must satisfy. RecordPayout is idempotent on
// SourceId as defense in depth against a finalization race bug.
type TreasuryLedger interface {
	RecordPayout(ctx context.Context, params RecordPayoutParams) (string, error)
}
