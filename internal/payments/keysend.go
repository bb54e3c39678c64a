package payments

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

const preimageSize = 32

// PayToPubkey sends a spontaneous payment from the funder wallet. When the
// node has no route with enough liquidity, a channel toward the destination is
// opened before the error is returned. The payment itself is not retried.
func (o *Orchestrator) PayToPubkey(ctx context.Context, req shared.KeysendRequest) (Result, error) {
	if req.Amount <= 0 {
		return Result{}, shared.ErrInvalidAmount
	}
	if req.Destination == "" {
		return Result{}, errors.New("keysend destination is required")
	}

	funder, err := o.wallets.FindByID(ctx, o.funderWalletID)
	if err != nil {
		return Result{}, err
	}

	preimage := make([]byte, preimageSize)
	if _, err := rand.Read(preimage); err != nil {
		return Result{}, fmt.Errorf("failed to generate preimage: %w", err)
	}
	hash := lightning.PaymentID(preimage)
	destination := lightning.Pubkey(req.Destination)

	maxFee := o.fees.Max(req.Amount)
	a := &attempt{
		sender: funder,
		amount: req.Amount,
		maxFee: maxFee,
		record: &lightning.LnPayment{
			ID:              hash,
			PaymentHash:     hash,
			WalletID:        funder.ID,
			Status:          lightning.PaymentStatusPending,
			CreatedAt:       o.now().UTC(),
			Destination:     destination,
			Amount:          req.Amount,
			MilliSatsAmount: req.Amount.ToMilliSats(),
		},
		meta: ledger.Metadata{PaymentHash: string(hash), MemoFromPayer: req.Message},
	}
	if err := o.reserve(ctx, a); err != nil {
		return Result{}, err
	}

	result, err := o.gateway.SendKeysend(ctx, lightning.KeysendArgs{
		Destination: destination,
		Amount:      req.Amount,
		Preimage:    preimage,
		Message:     req.Message,
		MaxFee:      maxFee,
	})
	if errors.Is(err, lightning.ErrNoPayableRoute) && o.opener != nil {
		if _, openErr := o.opener.OpenFor(ctx, destination, req.Amount); openErr != nil {
			o.logger.Error("Failed to open channel after keysend failure",
				"destination", req.Destination,
				"error", openErr,
			)
		}
	}
	return o.complete(ctx, a, result, err)
}
