package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/platform/metrics"
)

// SendIntraLedger moves sats between two wallets without touching the node.
// The ledger rejects the transfer if the sender balance is too low.
func (o *Orchestrator) SendIntraLedger(ctx context.Context, req shared.IntraLedgerSendRequest) (Result, error) {
	if req.Amount <= 0 {
		return Result{}, shared.ErrInvalidAmount
	}
	if req.SenderWalletID == req.RecipientWalletID {
		return Result{}, &SelfPaymentError{WalletID: req.SenderWalletID}
	}

	sender, err := o.wallets.FindByID(ctx, req.SenderWalletID)
	if err != nil {
		return Result{}, err
	}
	recipient, err := o.wallets.FindByID(ctx, req.RecipientWalletID)
	if err != nil {
		return Result{}, err
	}

	txn := ledger.IntraLedgerTransfer(
		ledger.Party{Account: sender.AccountPath(), Username: sender.Username},
		ledger.Party{Account: recipient.AccountPath(), Username: recipient.Username},
		req.Amount,
		"intraledger:"+uuid.NewString(),
		ledger.Metadata{MemoFromPayer: req.Memo},
	)
	if err := o.ledger.Post(ctx, txn); err != nil {
		return Result{}, err
	}

	o.logger.Info("Intraledger transfer posted",
		"sender_wallet_id", sender.ID,
		"recipient_wallet_id", recipient.ID,
		"amount", int64(req.Amount),
	)
	o.metrics.ObservePayment(metrics.OutcomeIntraLedger, 0)
	return Result{Status: StatusSuccess, Amount: req.Amount}, nil
}

// payIntraLedgerInvoice settles an invoice issued by this operator by moving
// the amount between the two wallets. The node invoice is canceled so it can
// no longer be paid from outside.
func (o *Orchestrator) payIntraLedgerInvoice(
	ctx context.Context,
	sender *wallet.Wallet,
	invoice lightning.Invoice,
	amount shared.Satoshis,
	memo string,
) (Result, error) {
	hash := string(invoice.PaymentHash)
	logger := o.logger.With("payment_hash", hash, "wallet_id", sender.ID)

	walletInvoice, err := o.invoices.FindByPaymentHash(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	if walletInvoice.Paid {
		o.metrics.ObservePayment(metrics.OutcomeAlreadyPaid, 0)
		return Result{Status: StatusAlreadyPaid, PaymentHash: invoice.PaymentHash, Amount: amount}, nil
	}
	if walletInvoice.WalletID == sender.ID {
		return Result{}, &SelfPaymentError{WalletID: sender.ID}
	}

	recipient, err := o.wallets.FindByID(ctx, walletInvoice.WalletID)
	if err != nil {
		return Result{}, err
	}

	txn := ledger.IntraLedgerTransfer(
		ledger.Party{Account: sender.AccountPath(), Username: sender.Username},
		ledger.Party{Account: recipient.AccountPath(), Username: recipient.Username},
		amount,
		hash,
		ledger.Metadata{PaymentHash: hash, LnMemo: invoice.Description, MemoFromPayer: memo},
	)
	err = o.ledger.Post(ctx, txn)
	if errors.Is(err, &ledger.DuplicateTransactionError{}) {
		o.metrics.ObservePayment(metrics.OutcomeAlreadyPaid, 0)
		return Result{Status: StatusAlreadyPaid, PaymentHash: invoice.PaymentHash, Amount: amount}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if err := o.invoices.MarkAsPaid(ctx, hash); err != nil {
		logger.Error("Failed to mark intraledger invoice as paid", "error", err)
	}
	if err := o.gateway.CancelInvoice(ctx, lightning.Pubkey(walletInvoice.Pubkey), invoice.PaymentHash); err != nil {
		logger.Warn("Failed to cancel node invoice after intraledger settlement", "error", err)
	}

	logger.Info("Invoice settled intraledger", "recipient_wallet_id", recipient.ID, "amount", int64(amount))
	o.metrics.ObservePayment(metrics.OutcomeIntraLedger, 0)
	return Result{Status: StatusSuccess, PaymentHash: invoice.PaymentHash, Amount: amount}, nil
}
