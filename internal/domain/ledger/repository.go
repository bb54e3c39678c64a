package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// AccountRepository maintains the running balance of every ledger account.
type AccountRepository interface {
	// ApplyDelta atomically adds delta to the account balance, creating the
	// account on first use. Liability accounts reject a negative result.
	ApplyDelta(ctx context.Context, path, currency string, delta shared.Satoshis) error
	// Balance sums the balances of path and every account below it.
	Balance(ctx context.Context, path, currency string) (shared.Satoshis, error)
	List(ctx context.Context) ([]string, error)
	WithTx(tx pgx.Tx) AccountRepository
}

// EntryRepository persists journal rows and their legs.
type EntryRepository interface {
	CreateTransaction(ctx context.Context, txn *Transaction) error
	GetByAccount(ctx context.Context, account string, limit, offset int) ([]Entry, error)
	GetByPaymentHash(ctx context.Context, paymentHash string, pendingOnly bool) ([]Entry, error)
	ConfirmPending(ctx context.Context, paymentHash string) (int64, error)
	VoidTransaction(ctx context.Context, transactionID uuid.UUID) error
	// PendingAccounts returns liability accounts with pending legs ordered by
	// path, starting strictly after the given cursor.
	PendingAccounts(ctx context.Context, after string, limit int) ([]string, error)
	Volume(ctx context.Context, account string, since time.Time) (Volume, error)
	WithTx(tx pgx.Tx) EntryRepository
}

// UnbalancedTransactionError is returned when credits and debits differ.
type UnbalancedTransactionError struct {
	Credit shared.Satoshis
	Debit  shared.Satoshis
}

func (e *UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("unbalanced transaction: credit %d, debit %d", e.Credit, e.Debit)
}

// InsufficientBalanceError is returned when a posting would make a liability
// account negative.
type InsufficientBalanceError struct {
	Account string
}

func (e *InsufficientBalanceError) Error() string {
	return "insufficient balance in account " + e.Account
}

// Is matches any InsufficientBalanceError when the target account is empty.
func (e *InsufficientBalanceError) Is(target error) bool {
	t, ok := target.(*InsufficientBalanceError)
	if !ok {
		return false
	}
	return t.Account == "" || t.Account == e.Account
}

// DuplicateTransactionError is returned when the idempotency key was already posted.
type DuplicateTransactionError struct {
	IdempotencyKey string
}

func (e *DuplicateTransactionError) Error() string {
	return "ledger transaction already posted: " + e.IdempotencyKey
}

// Is matches any DuplicateTransactionError when the target key is empty.
func (e *DuplicateTransactionError) Is(target error) bool {
	t, ok := target.(*DuplicateTransactionError)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || t.IdempotencyKey == e.IdempotencyKey
}

// NoPendingEntriesError is returned when a pending payment has nothing to confirm or void.
type NoPendingEntriesError struct {
	PaymentHash string
}

func (e *NoPendingEntriesError) Error() string {
	return "no pending ledger entries for payment " + e.PaymentHash
}

func (e *NoPendingEntriesError) Is(target error) bool {
	_, ok := target.(*NoPendingEntriesError)
	return ok
}
