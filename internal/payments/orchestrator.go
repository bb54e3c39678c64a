// Package payments sends Lightning payments from wallets, settles payments
// between wallets of this operator on the ledger and reconciles payments whose
// outcome was unknown at dispatch time.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	lockstore "github.com/lnwallet-ledger/internal/data/redis"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/platform/metrics"
)

// Status is the outcome reported to the payer.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusPending     Status = "pending"
	StatusAlreadyPaid Status = "already_paid"
)

// Result is returned for every payment that did not fail.
type Result struct {
	Status      Status                `json:"status"`
	PaymentHash lightning.PaymentHash `json:"payment_hash"`
	Amount      shared.Satoshis       `json:"amount"`
	Fee         shared.Satoshis       `json:"fee"`
	Preimage    string                `json:"preimage,omitempty"`
}

// PaymentLock serialises dispatches of one payment hash across processes.
type PaymentLock interface {
	Acquire(ctx context.Context, paymentHash string) (func(), error)
}

// Ledger is the part of the ledger service payments post through.
type Ledger interface {
	Post(ctx context.Context, txn ledger.Transaction, hooks ...ledger_service.Hook) error
	ConfirmPending(ctx context.Context, paymentHash string, fee shared.Satoshis, hooks ...ledger_service.Hook) error
	VoidPending(ctx context.Context, paymentHash string, hooks ...ledger_service.Hook) error
}

// Orchestrator drives a payment from a decoded invoice to a settled, failed or
// unknown outcome. Payments are keyed by payment hash: the lock, the payment
// record and the ledger idempotency key all use it, so a retried request never
// pays twice. Amount and maximum fee are reserved on the ledger before the
// node is asked to pay, so concurrent payments cannot overdraw a wallet.
type Orchestrator struct {
	gateway        lightning.Gateway
	wallets        wallet.Repository
	invoices       wallet.InvoiceRepository
	payments       lightning.LnPaymentRepository
	ledger         Ledger
	lock           PaymentLock
	fees           lightning.FeeCalculator
	opener         *ChannelOpener
	funderWalletID string
	metrics        *metrics.Metrics
	now            func() time.Time
	logger         *slog.Logger
}

func NewOrchestrator(
	logger *slog.Logger,
	gateway lightning.Gateway,
	wallets wallet.Repository,
	invoices wallet.InvoiceRepository,
	payments lightning.LnPaymentRepository,
	ledgerSvc Ledger,
	lock PaymentLock,
	fees lightning.FeeCalculator,
	opener *ChannelOpener,
	funderWalletID string,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		gateway:        gateway,
		wallets:        wallets,
		invoices:       invoices,
		payments:       payments,
		ledger:         ledgerSvc,
		lock:           lock,
		fees:           fees,
		opener:         opener,
		funderWalletID: funderWalletID,
		metrics:        m,
		now:            time.Now,
		logger:         logger.With("component", "payments"),
	}
}

// attempt is one dispatch to the node.
type attempt struct {
	sender *wallet.Wallet
	record *lightning.LnPayment
	amount shared.Satoshis
	maxFee shared.Satoshis
	meta   ledger.Metadata
}

// PayInvoice pays an encoded invoice from req.WalletID.
func (o *Orchestrator) PayInvoice(ctx context.Context, req shared.SendPaymentRequest) (Result, error) {
	sender, err := o.wallets.FindByID(ctx, req.WalletID)
	if err != nil {
		return Result{}, err
	}

	invoice, err := o.gateway.DecodeInvoice(ctx, lightning.EncodedPaymentRequest(req.PaymentRequest))
	if err != nil {
		return Result{}, err
	}
	if invoice.IsExpired(o.now()) {
		return Result{}, &lightning.LnInvoiceDecodeError{Reason: "invoice expired"}
	}

	amount, err := payableAmount(invoice, req.Amount)
	if err != nil {
		return Result{}, err
	}
	maxFee := o.fees.Max(amount)
	if req.MaxFeeOverride > 0 && req.MaxFeeOverride < maxFee {
		maxFee = req.MaxFeeOverride
	}

	if o.gateway.IsLocal(invoice.Destination) {
		return o.payIntraLedgerInvoice(ctx, sender, invoice, amount, req.Memo)
	}

	hash := invoice.PaymentHash
	logger := o.logger.With("payment_hash", string(hash), "wallet_id", sender.ID)

	release, err := o.lock.Acquire(ctx, string(hash))
	if err != nil {
		if errors.Is(err, lockstore.ErrLockHeld) {
			return Result{}, &PaymentInFlightError{PaymentHash: string(hash)}
		}
		return Result{}, err
	}
	defer release()

	if result, done, err := o.checkPrevious(ctx, hash); done || err != nil {
		return result, err
	}

	a := &attempt{
		sender: sender,
		amount: amount,
		maxFee: maxFee,
		record: &lightning.LnPayment{
			ID:              hash,
			PaymentHash:     hash,
			WalletID:        sender.ID,
			Status:          lightning.PaymentStatusPending,
			CreatedAt:       o.now().UTC(),
			Destination:     invoice.Destination,
			PaymentRequest:  invoice.PaymentRequest,
			Amount:          amount,
			MilliSatsAmount: amount.ToMilliSats(),
		},
		meta: ledger.Metadata{
			PaymentHash:   string(hash),
			LnMemo:        invoice.Description,
			MemoFromPayer: req.Memo,
		},
	}
	if err := o.reserve(ctx, a); err != nil {
		return Result{}, err
	}

	logger.Info("Dispatching lightning payment", "amount", int64(amount), "max_fee", int64(maxFee))
	result, err := o.dispatch(ctx, invoice, a)
	return o.complete(ctx, a, result, err)
}

// payableAmount is the invoice amount, or the caller amount for amountless
// invoices.
func payableAmount(invoice lightning.Invoice, requested shared.Satoshis) (shared.Satoshis, error) {
	if invoice.HasAmount() {
		if invoice.Amount > 0 {
			return invoice.Amount, nil
		}
		return invoice.MilliSatsAmount.RoundedUpSats(), nil
	}
	if requested <= 0 {
		return 0, &shared.MissingAmountError{Reason: "invoice has no amount"}
	}
	return requested, nil
}

// checkPrevious reports done when an earlier attempt settled or is still
// unresolved. Failed attempts may be retried.
func (o *Orchestrator) checkPrevious(ctx context.Context, hash lightning.PaymentHash) (Result, bool, error) {
	previous, err := o.payments.FindByPaymentHash(ctx, hash)
	if errors.Is(err, &lightning.PaymentNotFoundError{}) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	switch previous.Status {
	case lightning.PaymentStatusSettled:
		o.metrics.ObservePayment(metrics.OutcomeAlreadyPaid, 0)
		return Result{Status: StatusAlreadyPaid, PaymentHash: hash, Amount: previous.Amount, Fee: previous.RoundedUpFee}, true, nil
	case lightning.PaymentStatusPending:
		o.metrics.ObservePayment(metrics.OutcomePending, 0)
		return Result{Status: StatusPending, PaymentHash: hash, Amount: previous.Amount}, true, nil
	default:
		return Result{}, false, nil
	}
}

// reserve debits amount and maximum fee from the sender as pending legs and
// writes the pending record in the same ledger transaction. The liability
// balance check rejects the reservation when the wallet cannot cover it.
func (o *Orchestrator) reserve(ctx context.Context, a *attempt) error {
	a.record.ReservedFee = a.maxFee
	meta := a.meta
	meta.Pending = true
	txn := ledger.LightningPayment(a.sender.AccountPath(), a.amount, a.maxFee, string(a.record.PaymentHash), meta)
	return o.ledger.Post(ctx, txn, o.saveRecord(a.record))
}

// dispatch prefers a route found under the fee cap and falls back to letting
// the node pathfind with the payment details.
func (o *Orchestrator) dispatch(ctx context.Context, invoice lightning.Invoice, a *attempt) (lightning.PayResult, error) {
	var (
		route lightning.Route
		err   error
	)
	if invoice.HasAmount() {
		route, err = o.gateway.FindRoute(ctx, invoice, a.maxFee)
	} else {
		route, err = o.gateway.FindRouteForAmountlessInvoice(ctx, invoice, a.maxFee, a.amount)
	}

	switch {
	case err == nil:
		return o.gateway.PayViaRoute(ctx, invoice.PaymentHash, route)
	case errors.Is(err, &lightning.RouteNotFoundError{}):
		o.logger.Info("No route under fee cap, paying via payment details", "payment_hash", string(invoice.PaymentHash))
		return o.gateway.PayViaPaymentDetails(ctx, invoice, a.amount.ToMilliSats(), a.maxFee)
	default:
		return lightning.PayResult{}, err
	}
}

// complete books the outcome of a dispatch against the reservation.
func (o *Orchestrator) complete(ctx context.Context, a *attempt, result lightning.PayResult, err error) (Result, error) {
	hash := a.record.PaymentHash
	logger := o.logger.With("payment_hash", string(hash), "wallet_id", a.sender.ID)

	switch {
	case err == nil:
		return o.completeSettled(ctx, a, result)

	case lightning.IsTimeout(err):
		// The reservation stays pending until the reconciler learns the outcome.
		logger.Warn("Payment outcome unknown, left for reconciliation", "reserved_fee", int64(a.maxFee), "error", err)
		o.metrics.ObservePayment(metrics.OutcomePending, 0)
		return Result{Status: StatusPending, PaymentHash: hash, Amount: a.amount}, nil

	default:
		a.record.Status = lightning.PaymentStatusFailed
		a.record.IsCompleteRecord = true
		voidErr := o.ledger.VoidPending(ctx, string(hash), o.saveRecord(a.record))
		if voidErr != nil && !errors.Is(voidErr, &ledger.NoPendingEntriesError{}) {
			// Record and reservation stay pending; the reconciler releases them.
			logger.Error("Failed to release reservation of failed payment", "error", voidErr)
		}
		logger.Warn("Payment failed", "error", err)
		o.metrics.ObservePayment(metrics.OutcomeFailed, 0)
		return Result{}, err
	}
}

func (o *Orchestrator) completeSettled(ctx context.Context, a *attempt, result lightning.PayResult) (Result, error) {
	hash := a.record.PaymentHash
	logger := o.logger.With("payment_hash", string(hash), "wallet_id", a.sender.ID)
	fee := result.RoundedUpFee

	confirmedAt := o.now().UTC()
	a.record.Status = lightning.PaymentStatusSettled
	a.record.ConfirmedAt = &confirmedAt
	a.record.RoundedUpFee = fee
	a.record.MilliSatsFee = fee.ToMilliSats()
	a.record.Secret = lightning.PaymentSecret(result.Preimage)
	a.record.IsCompleteRecord = true

	err := o.ledger.ConfirmPending(ctx, string(hash), fee, o.saveRecord(a.record))
	if errors.Is(err, &ledger.NoPendingEntriesError{}) {
		logger.Info("Payment already confirmed by reconciliation")
		err = nil
	}
	if err != nil {
		// The wallet is already debited by the reservation. The record stays
		// pending so the reconciler confirms it from the node state.
		logger.Error("Payment settled but the ledger confirmation failed", "fee", int64(fee), "error", err)
		return Result{}, &shared.UnknownRepositoryError{Op: "confirm payment", Err: err}
	}

	if fee > a.maxFee {
		logger.Error("Payment settled with a fee above the cap, wallet charged the cap",
			"fee", int64(fee),
			"max_fee", int64(a.maxFee),
			"amount", int64(a.amount),
		)
		o.metrics.ObservePayment(metrics.OutcomeFeeExceeded, int64(fee))
		return Result{}, &lightning.FeeExceedsCapError{Fee: fee, Cap: a.maxFee}
	}

	logger.Info("Payment settled", "amount", int64(a.amount), "fee", int64(fee))
	o.metrics.ObservePayment(metrics.OutcomeSettled, int64(fee))
	return Result{
		Status:      StatusSuccess,
		PaymentHash: hash,
		Amount:      a.amount,
		Fee:         fee,
		Preimage:    result.Preimage,
	}, nil
}

// saveRecord writes the payment record inside the posting transaction.
func (o *Orchestrator) saveRecord(record *lightning.LnPayment) ledger_service.Hook {
	return func(ctx context.Context, tx pgx.Tx) error {
		if _, err := o.payments.WithTx(tx).Update(ctx, record); err != nil {
			return fmt.Errorf("failed to save payment %s: %w", record.PaymentHash, err)
		}
		return nil
	}
}
