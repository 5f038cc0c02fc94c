package custody

import (
	"context"
	"fmt"

	"dao-governance-go/internal/models"

	"go.uber.org/zap"
)

// Store is the subset of the database service the disburser needs.
type Store interface {
	ListPendingPayouts(ctx context.Context) ([]models.Payout, error)
	GetMemberById(ctx context.Context, memberId string) (*models.Member, error)
	MarkPayoutDisbursed(ctx context.Context, payoutId, disbursementRef string) error
	MarkClaimPaid(ctx context.Context, claimId string) error
}

// Disburser pushes PENDING payout rows through the custody wallet and
// marks them disbursed. Safe to rerun: the payout id doubles as the
// withdrawal idempotency key, so a crash between the withdrawal and the
// status update cannot double-pay.
type Disburser struct {
	store       Store
	wallet      *Service
	portfolioId string
	walletId    string
	symbol      string
}

func NewDisburser(store Store, wallet *Service, portfolioId, walletId, symbol string) *Disburser {
	return &Disburser{
		store:       store,
		wallet:      wallet,
		portfolioId: portfolioId,
		walletId:    walletId,
		symbol:      symbol,
	}
}

// Run disburses every pending payout and returns how many went out.
// With dryRun set it only reports what would be sent.
func (d *Disburser) Run(ctx context.Context, dryRun bool) (int, error) {
	pending, err := d.store.ListPendingPayouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to list pending payouts: %w", err)
	}
	if len(pending) == 0 {
		zap.L().Info("No pending payouts to disburse")
		return 0, nil
	}

	disbursed := 0
	for _, payout := range pending {
		member, err := d.store.GetMemberById(ctx, payout.MemberId)
		if err != nil {
			zap.L().Error("Skipping payout, member lookup failed",
				zap.String("payout_id", payout.Id),
				zap.String("member_id", payout.MemberId),
				zap.Error(err))
			continue
		}
		if member.WalletAddress == "" {
			zap.L().Warn("Skipping payout, member has no wallet address",
				zap.String("payout_id", payout.Id),
				zap.String("member_id", payout.MemberId))
			continue
		}

		if dryRun {
			zap.L().Info("Dry run: would disburse payout",
				zap.String("payout_id", payout.Id),
				zap.String("member_id", payout.MemberId),
				zap.String("amount", payout.Amount.String()),
				zap.String("destination", member.WalletAddress))
			disbursed++
			continue
		}

		withdrawal, err := d.wallet.CreateWithdrawal(ctx, CreateWithdrawalParams{
			PortfolioId:        d.portfolioId,
			WalletId:           d.walletId,
			DestinationAddress: member.WalletAddress,
			Amount:             payout.Amount.String(),
			Symbol:             d.symbol,
			IdempotencyKey:     payout.Id,
		})
		if err != nil {
			zap.L().Error("Disbursement failed, payout stays pending",
				zap.String("payout_id", payout.Id),
				zap.Error(err))
			continue
		}

		if err := d.store.MarkPayoutDisbursed(ctx, payout.Id, withdrawal.ActivityId); err != nil {
			// The withdrawal went out. The next run resubmits with the
			// same idempotency key and only repeats this update.
			zap.L().Error("Failed to mark payout disbursed",
				zap.String("payout_id", payout.Id),
				zap.String("activity_id", withdrawal.ActivityId),
				zap.Error(err))
			continue
		}

		if payout.SourceType == "claim" {
			if err := d.store.MarkClaimPaid(ctx, payout.SourceId); err != nil {
				zap.L().Warn("Failed to mark claim paid",
					zap.String("claim_id", payout.SourceId),
					zap.Error(err))
			}
		}

		zap.L().Info("Payout disbursed",
			zap.String("payout_id", payout.Id),
			zap.String("member_id", payout.MemberId),
			zap.String("amount", payout.Amount.String()),
			zap.String("activity_id", withdrawal.ActivityId))
		disbursed++
	}

	return disbursed, nil
}
