// Package ledger_service posts balanced transactions to the ledger and answers
// balance queries. A posting writes the journal row, its legs, the running
// account balances and the outbox events in one database transaction.
package ledger_service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/outbox"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/lnwallet-ledger/internal/platform/persistence"
)

const pendingAccountsPageSize = 100

// Hook runs inside the posting transaction after the legs are written, e.g.
// to persist the payment record whose outcome the legs book.
type Hook func(ctx context.Context, tx pgx.Tx) error

// Service is the only writer of the ledger.
type Service struct {
	db                persistence.TxRunner
	accounts          ledger.AccountRepository
	entries           ledger.EntryRepository
	outbox            outbox.Repository
	bankOwnerWalletID string
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

func NewService(
	logger *slog.Logger,
	db persistence.TxRunner,
	accounts ledger.AccountRepository,
	entries ledger.EntryRepository,
	outboxRepo outbox.Repository,
	bankOwnerWalletID string,
	m *metrics.Metrics,
) *Service {
	return &Service{
		db:                db,
		accounts:          accounts,
		entries:           entries,
		outbox:            outboxRepo,
		bankOwnerWalletID: bankOwnerWalletID,
		metrics:           m,
		logger:            logger.With("component", "ledger"),
	}
}

// Post validates and books txn. A liability leg that would overdraw its
// account aborts the whole transaction with InsufficientBalanceError; a
// reused idempotency key returns DuplicateTransactionError.
func (s *Service) Post(ctx context.Context, txn ledger.Transaction, hooks ...Hook) error {
	start := time.Now()
	if err := txn.Validate(); err != nil {
		s.metrics.ObserveLedgerPost(string(txn.Type), err, time.Since(start))
		return err
	}

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.book(ctx, tx, &txn); err != nil {
			return err
		}
		return runHooks(ctx, tx, hooks)
	})
	s.metrics.ObserveLedgerPost(string(txn.Type), err, time.Since(start))

	logger := s.logger.With("transaction_id", txn.ID.String(), "type", txn.Type, "idempotency_key", txn.IdempotencyKey)
	switch {
	case err == nil:
		logger.Info("Posted ledger transaction", "legs", len(txn.Legs))
	case errors.Is(err, &ledger.DuplicateTransactionError{}), errors.Is(err, &ledger.InsufficientBalanceError{}):
		logger.Warn("Ledger transaction rejected", "error", err)
	default:
		logger.Error("Failed to post ledger transaction", "error", err)
	}
	return err
}

// book writes txn with repositories bound to tx.
func (s *Service) book(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction) error {
	if err := s.entries.WithTx(tx).CreateTransaction(ctx, txn); err != nil {
		return err
	}

	accounts := s.accounts.WithTx(tx)
	for _, leg := range txn.Legs {
		if err := accounts.ApplyDelta(ctx, leg.Account, leg.Currency, leg.Delta()); err != nil {
			return err
		}
	}

	return s.enqueueEvents(ctx, tx, *txn)
}

func (s *Service) enqueueEvents(ctx context.Context, tx pgx.Tx, txn ledger.Transaction) error {
	messages, err := outbox.NewMessages(txn)
	if err != nil {
		return fmt.Errorf("failed to build wallet events for %s: %w", txn.ID, err)
	}
	outboxRepo := s.outbox.WithTx(tx)
	for _, msg := range messages {
		if err := outboxRepo.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func runHooks(ctx context.Context, tx pgx.Tx, hooks []Hook) error {
	for _, hook := range hooks {
		if err := hook(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmPending settles the pending legs of a payment whose routing fee
// turned out to be fee. The balances already moved when the legs were posted
// with the reserved fee, so only the flag changes and the unspent part of the
// reservation is credited back in the same transaction.
func (s *Service) ConfirmPending(ctx context.Context, paymentHash string, fee shared.Satoshis, hooks ...Hook) error {
	logger := s.logger.With("payment_hash", paymentHash)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		entries := s.entries.WithTx(tx)
		legs, err := entries.GetByPaymentHash(ctx, paymentHash, true)
		if err != nil {
			return err
		}
		if len(legs) == 0 {
			return &ledger.NoPendingEntriesError{PaymentHash: paymentHash}
		}
		if _, err := entries.ConfirmPending(ctx, paymentHash); err != nil {
			return err
		}

		confirmed := make([]ledger.Entry, len(legs))
		for i, leg := range legs {
			leg.Pending = false
			confirmed[i] = leg
		}
		txn := ledger.Transaction{ID: legs[0].TransactionID, Type: legs[0].Type, Legs: confirmed}
		if err := s.enqueueEvents(ctx, tx, txn); err != nil {
			return err
		}

		payer, reserved := ledger.FeeReservation(legs)
		switch refund := reserved - fee; {
		case refund > 0:
			reimbursement := ledger.FeeReimbursement(payer, refund, "fee:"+paymentHash, paymentHash)
			if err := s.book(ctx, tx, &reimbursement); err != nil {
				return err
			}
		case refund < 0:
			logger.Error("Routing fee above the reserved fee, charged the reservation only",
				"fee", int64(fee),
				"reserved_fee", int64(reserved),
			)
		}
		return runHooks(ctx, tx, hooks)
	})
	if err != nil {
		logger.Error("Failed to confirm pending entries", "error", err)
		return err
	}

	logger.Info("Confirmed pending ledger entries", "fee", int64(fee))
	return nil
}

// VoidPending reverses the pending legs of a payment that failed. The
// reversal restores the balances and both sides are hidden from history. The
// voided journal row gives up its idempotency key so the payment hash can be
// reserved again by a retry.
func (s *Service) VoidPending(ctx context.Context, paymentHash string, hooks ...Hook) error {
	logger := s.logger.With("payment_hash", paymentHash)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		entries := s.entries.WithTx(tx)
		legs, err := entries.GetByPaymentHash(ctx, paymentHash, true)
		if err != nil {
			return err
		}
		if len(legs) == 0 {
			return &ledger.NoPendingEntriesError{PaymentHash: paymentHash}
		}

		reversal := ledger.Reversal(legs, "reversal:"+legs[0].TransactionID.String())
		if err := s.book(ctx, tx, &reversal); err != nil {
			return err
		}
		if err := entries.VoidTransaction(ctx, legs[0].TransactionID); err != nil {
			return err
		}
		return runHooks(ctx, tx, hooks)
	})
	if err != nil {
		logger.Error("Failed to void pending entries", "error", err)
		return err
	}

	logger.Info("Voided pending ledger entries")
	return nil
}

// GetAccountBalance returns credit minus debit of account and every account
// below it, so "Liabilities" sums all customer balances.
func (s *Service) GetAccountBalance(ctx context.Context, account, currency string) (shared.Satoshis, error) {
	return s.accounts.Balance(ctx, account, currency)
}

func (s *Service) ListAccounts(ctx context.Context) ([]string, error) {
	return s.accounts.List(ctx)
}

// AccountsWithPendingEntries streams liability accounts holding pending legs.
// Pages are fetched lazily by keyset on the account path; ranging again starts
// over from the first account.
func (s *Service) AccountsWithPendingEntries(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		after := ""
		for {
			page, err := s.entries.PendingAccounts(ctx, after, pendingAccountsPageSize)
			if err != nil {
				yield("", err)
				return
			}
			for _, account := range page {
				if !yield(account, nil) {
					return
				}
			}
			if len(page) < pendingAccountsPageSize {
				return
			}
			after = page[len(page)-1]
		}
	}
}

// Volume returns the outgoing and incoming traffic of account since the given time.
func (s *Service) Volume(ctx context.Context, account string, since time.Time) (ledger.Volume, error) {
	return s.entries.Volume(ctx, account, since)
}

// EntriesByAccount returns the legs of account, newest first.
func (s *Service) EntriesByAccount(ctx context.Context, account string, limit, offset int) ([]ledger.Entry, error) {
	return s.entries.GetByAccount(ctx, account, limit, offset)
}
