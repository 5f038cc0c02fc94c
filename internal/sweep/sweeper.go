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

// Package sweep runs the background maintenance loop: activating due
// proposals, finalizing expired ones, closing claims stuck at their vote
// threshold, and re-recording payouts that failed at finalization time.
package sweep

import (
	"context"
	"time"

	"dao-governance-go/internal/claims"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/proposals"
	"dao-governance-go/internal/store"

	"go.uber.org/zap"
)

// SweepStore is the slice of storage the sweeper scans.
type SweepStore interface {
	ListDueDraftProposals(ctx context.Context, now time.Time) ([]models.Proposal, error)
	ListExpiredActiveProposals(ctx context.Context, now time.Time) ([]models.Proposal, error)
	ListClaimsInVoting(ctx context.Context) ([]models.Claim, error)
	ListApprovedClaimsWithoutPayout(ctx context.Context) ([]models.Claim, error)
}

// Sweeper drives time-based transitions that have no request to ride on.
// Every transition it makes goes through the same conditional UPDATEs as
// the request path, so running it concurrently with requests (or with a
// second sweeper) is safe.
type Sweeper struct {
	store     SweepStore
	claims    *claims.Service
	proposals *proposals.Service
	ledger    store.TreasuryLedger
	cfg       models.SweepConfig
	now       func() time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
}

func NewSweeper(sweepStore SweepStore, claimService *claims.Service, proposalService *proposals.Service, ledger store.TreasuryLedger, cfg models.SweepConfig) *Sweeper {
	return &Sweeper{
		store:     sweepStore,
		claims:    claimService,
		proposals: proposalService,
		ledger:    ledger,
		cfg:       cfg,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting governance sweeper",
		zap.Duration("interval", s.cfg.Interval),
		zap.Bool("payout_retry", s.cfg.PayoutRetry))
	go s.loop(ctx)
}

// Stop waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping governance sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Governance sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs one full pass. Exported so CLIs can drive a single
// sweep without the loop.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.activateDueProposals(ctx)
	s.finalizeExpiredProposals(ctx)
	s.finalizeEligibleClaims(ctx)
	if s.cfg.PayoutRetry {
		s.retryMissingPayouts(ctx)
	}
}

func (s *Sweeper) activateDueProposals(ctx context.Context) {
	due, err := s.store.ListDueDraftProposals(ctx, s.now())
	if err != nil {
		zap.L().Error("Failed to list due draft proposals", zap.Error(err))
		return
	}

	for _, proposal := range due {
		activated, err := s.proposals.Activate(ctx, proposal.Id)
		if err != nil {
			zap.L().Error("Failed to activate proposal",
				zap.String("proposal_id", proposal.Id),
				zap.Error(err))
			continue
		}
		if activated {
			zap.L().Info("Proposal activated by sweep",
				zap.String("proposal_id", proposal.Id),
				zap.Time("start_time", proposal.StartTime))
		}
	}
}

func (s *Sweeper) finalizeExpiredProposals(ctx context.Context) {
	expired, err := s.store.ListExpiredActiveProposals(ctx, s.now())
	if err != nil {
		zap.L().Error("Failed to list expired proposals", zap.Error(err))
		return
	}

	for _, proposal := range expired {
		if _, err := s.proposals.TryFinalize(ctx, proposal.Id); err != nil {
			zap.L().Error("Failed to finalize expired proposal",
				zap.String("proposal_id", proposal.Id),
				zap.Error(err))
		}
	}
}

// finalizeEligibleClaims closes claims whose vote count crossed the
// threshold between sweeps, for instance after the active member count
// shrank.
func (s *Sweeper) finalizeEligibleClaims(ctx context.Context) {
	open, err := s.store.ListClaimsInVoting(ctx)
	if err != nil {
		zap.L().Error("Failed to list claims in voting", zap.Error(err))
		return
	}

	for _, claim := range open {
		if _, err := s.claims.TryFinalize(ctx, claim.Id); err != nil {
			zap.L().Error("Failed to finalize claim",
				zap.String("claim_id", claim.Id),
				zap.Error(err))
		}
	}
}

// retryMissingPayouts re-records payouts for approved claims that have
// none. The ledger's idempotency on the claim id makes a lost race with
// a concurrent finalizer harmless.
func (s *Sweeper) retryMissingPayouts(ctx context.Context) {
	missing, err := s.store.ListApprovedClaimsWithoutPayout(ctx)
	if err != nil {
		zap.L().Error("Failed to list approved claims without payout", zap.Error(err))
		return
	}

	for _, claim := range missing {
		if claim.ApprovedAmount == nil {
			zap.L().Warn("Approved claim has no amount, skipping payout retry",
				zap.String("claim_id", claim.Id))
			continue
		}
		payoutId, err := s.ledger.RecordPayout(ctx, store.RecordPayoutParams{
			SourceType: "claim",
			SourceId:   claim.Id,
			MemberId:   claim.OwnerId,
			Amount:     *claim.ApprovedAmount,
		})
		if err != nil {
			zap.L().Error("Payout retry failed",
				zap.String("claim_id", claim.Id),
				zap.Error(err))
			continue
		}
		zap.L().Info("Payout recorded by sweep",
			zap.String("claim_id", claim.Id),
			zap.String("payout_id", payoutId))
	}
}
