package formance

import (
	"context"
	"fmt"

	"dao-governance-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// payoutScript moves an approved payout from the treasury main account to
// the member's account. Metadata ties the ledger entry back to the
// governance decision that produced it.
const numscriptPayout = `vars {
  asset $asset
  number $amount
  account $member_id
  string $source_type
  string $source_id
}

send [$asset $amount] (
  source = @treasury:main allowing unbounded overdraft
  destination = @members:$member_id
)

set_tx_meta("event_type", "governance_payout")
set_tx_meta("source_type", $source_type)
set_tx_meta("source_id", $source_id)
`

// RecordPayout posts the payout transaction. The transaction reference is
// derived from the source id, so Formance rejects a duplicate with a
// CONFLICT that we treat as the payout already being recorded.
func (s *Service) RecordPayout(ctx context.Context, params store.RecordPayoutParams) (string, error) {
	if params.SourceId == "" || params.MemberId == "" {
		return "", fmt.Errorf("payout requires SourceId and MemberId")
	}
	if !params.Amount.IsPositive() {
		return "", fmt.Errorf("payout amount must be positive, got %s", params.Amount)
	}

	reference := fmt.Sprintf("payout-%s-%s", params.SourceType, params.SourceId)
	fAsset := formanceAsset(s.asset)
	smallAmt := params.Amount.Shift(int32(precisionFor(s.asset))).BigInt().String()

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(reference),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptPayout,
				Vars: map[string]string{
					"asset":       fAsset,
					"amount":      smallAmt,
					"member_id":   params.MemberId,
					"source_type": params.SourceType,
					"source_id":   params.SourceId,
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Info("Payout already recorded on ledger",
				zap.String("reference", reference),
				zap.String("source_id", params.SourceId))
			return reference, nil
		}
		return "", fmt.Errorf("failed to post payout transaction: %w", err)
	}

	zap.L().Info("Payout recorded on ledger",
		zap.String("reference", reference),
		zap.String("member_id", params.MemberId),
		zap.String("amount", params.Amount.String()),
		zap.String("asset", s.asset))
	return reference, nil
}
