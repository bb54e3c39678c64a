package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/lnwallet-ledger/internal/workers"
)

// PaymentTracker reports the node view of an outgoing payment.
type PaymentTracker interface {
	LookupPayment(ctx context.Context, hash lightning.PaymentHash) (lightning.PaymentLookup, error)
}

// Reconciler resolves payments whose outcome was unknown at dispatch. Their
// amount and maximum fee are held by pending ledger legs until the node
// reports a final state. A payment the node still does not know after
// staleAfter never left this operator and is failed.
type Reconciler struct {
	node        PaymentTracker
	payments    lightning.LnPaymentRepository
	ledger      Ledger
	pool        *workers.Pool
	batchSize   int
	concurrency int
	staleAfter  time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

func NewReconciler(
	logger *slog.Logger,
	node PaymentTracker,
	payments lightning.LnPaymentRepository,
	ledgerSvc Ledger,
	pool *workers.Pool,
	batchSize int,
	concurrency int,
	staleAfter time.Duration,
	m *metrics.Metrics,
) *Reconciler {
	return &Reconciler{
		node:        node,
		payments:    payments,
		ledger:      ledgerSvc,
		pool:        pool,
		batchSize:   batchSize,
		concurrency: concurrency,
		staleAfter:  staleAfter,
		metrics:     m,
		now:         time.Now,
		logger:      logger.With("component", "payment_reconciler"),
	}
}

func (r *Reconciler) Name() string {
	return "payment-reconciler"
}

// Run checks one batch of pending payments against the node.
func (r *Reconciler) Run(ctx context.Context) error {
	pending, err := r.payments.ListPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	items := func(yield func(*lightning.LnPayment, error) bool) {
		for _, p := range pending {
			if !yield(p, nil) {
				return
			}
		}
	}
	report := workers.Run(ctx, r.pool, r.logger, items, r.Reconcile, r.concurrency)
	r.logger.Info("Payment reconciliation finished",
		"checked", report.Processed+report.Failed,
		"failed", report.Failed,
	)
	return report.SourceErr
}

// Reconcile moves one pending payment to its final state if the node knows it.
func (r *Reconciler) Reconcile(ctx context.Context, p *lightning.LnPayment) error {
	logger := r.logger.With("payment_hash", string(p.PaymentHash), "wallet_id", p.WalletID)

	lookup, err := r.node.LookupPayment(ctx, p.PaymentHash)
	if errors.Is(err, &lightning.PaymentNotFoundError{}) {
		if age := r.now().Sub(p.CreatedAt); age > r.staleAfter {
			return r.failUnknown(ctx, logger, p, age)
		}
		logger.Debug("Node does not know the payment yet")
		return nil
	}
	if err != nil {
		return err
	}

	switch lookup.Status {
	case lightning.PaymentStatusSettled:
		return r.settle(ctx, logger, p, lookup)
	case lightning.PaymentStatusFailed:
		return r.fail(ctx, logger, p, lookup)
	default:
		return nil
	}
}

func (r *Reconciler) settle(ctx context.Context, logger *slog.Logger, p *lightning.LnPayment, lookup lightning.PaymentLookup) error {
	p.ApplyLookup(lookup)
	fee := p.RoundedUpFee

	err := r.ledger.ConfirmPending(ctx, string(p.PaymentHash), fee, r.saveRecord(p))
	if errors.Is(err, &ledger.NoPendingEntriesError{}) {
		logger.Warn("Settled payment has no pending ledger entries, booking it", "fee", int64(fee))
		err = r.book(ctx, p)
	}
	if err != nil {
		return err
	}

	logger.Info("Reconciled settled payment", "fee", int64(fee))
	r.metrics.ObservePayment(metrics.OutcomeSettled, int64(fee))
	return nil
}

// book debits a settled payment that never got a reservation. An existing
// transaction under the payment hash means it is already booked.
func (r *Reconciler) book(ctx context.Context, p *lightning.LnPayment) error {
	txn := ledger.LightningPayment(
		ledger.CustomerPath(p.WalletID),
		p.Amount,
		p.RoundedUpFee,
		string(p.PaymentHash),
		ledger.Metadata{PaymentHash: string(p.PaymentHash)},
	)
	err := r.ledger.Post(ctx, txn, r.saveRecord(p))
	if errors.Is(err, &ledger.DuplicateTransactionError{}) {
		_, err = r.payments.Update(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("failed to book settled payment %s: %w", p.PaymentHash, err)
	}
	return nil
}

func (r *Reconciler) fail(ctx context.Context, logger *slog.Logger, p *lightning.LnPayment, lookup lightning.PaymentLookup) error {
	p.ApplyLookup(lookup)
	p.IsCompleteRecord = true
	if err := r.release(ctx, p); err != nil {
		return err
	}

	logger.Info("Reconciled failed payment, funds released")
	r.metrics.ObservePayment(metrics.OutcomeFailed, 0)
	return nil
}

func (r *Reconciler) failUnknown(ctx context.Context, logger *slog.Logger, p *lightning.LnPayment, age time.Duration) error {
	p.Status = lightning.PaymentStatusFailed
	p.IsCompleteRecord = true
	if err := r.release(ctx, p); err != nil {
		return err
	}

	logger.Warn("Node never saw the payment, marked failed", "age", age.String())
	r.metrics.ObservePayment(metrics.OutcomeFailed, 0)
	return nil
}

// release voids the reservation and stores the failed record with it.
func (r *Reconciler) release(ctx context.Context, p *lightning.LnPayment) error {
	err := r.ledger.VoidPending(ctx, string(p.PaymentHash), r.saveRecord(p))
	if errors.Is(err, &ledger.NoPendingEntriesError{}) {
		_, err = r.payments.Update(ctx, p)
	}
	return err
}

func (r *Reconciler) saveRecord(p *lightning.LnPayment) ledger_service.Hook {
	return func(ctx context.Context, tx pgx.Tx) error {
		_, err := r.payments.WithTx(tx).Update(ctx, p)
		return err
	}
}
