package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/platform/persistence"
)

const entryColumns = `id, transaction_id, account, currency, credit, debit, fee, type, pending, voided,
		memo_from_payer, ln_memo, payment_hash, username, addresses, tx_hash, fiat_amount, sats_per_unit, created_at`

// LedgerEntryRepository implements ledger.EntryRepository for PostgreSQL
type LedgerEntryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerEntryRepository creates a new PostgreSQL journal repository.
func NewLedgerEntryRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.EntryRepository {
	return &LedgerEntryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *LedgerEntryRepository) WithTx(tx pgx.Tx) ledger.EntryRepository {
	return &LedgerEntryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateTransaction writes the journal row and its legs. The journal row comes
// first so a reused idempotency key fails before any leg is written.
func (r *LedgerEntryRepository) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (id, idempotency_key, type, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.querier.Exec(ctx, query, txn.ID, txn.IdempotencyKey, string(txn.Type), txn.CreatedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return &ledger.DuplicateTransactionError{IdempotencyKey: txn.IdempotencyKey}
		}
		r.logger.Error("Failed to create ledger transaction", "idempotency_key", txn.IdempotencyKey, "error", err)
		return &shared.UnknownRepositoryError{Op: "create ledger transaction", Err: err}
	}

	for i := range txn.Legs {
		if err := r.insertEntry(ctx, &txn.Legs[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *LedgerEntryRepository) insertEntry(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (transaction_id, account, currency, credit, debit, fee, type, pending, voided,
			memo_from_payer, ln_memo, payment_hash, username, addresses, tx_hash, fiat_amount, sats_per_unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`

	addresses := e.Addresses
	if addresses == nil {
		addresses = []string{}
	}

	err := r.querier.QueryRow(ctx, query,
		e.TransactionID,
		e.Account,
		e.Currency,
		int64(e.Credit),
		int64(e.Debit),
		int64(e.Fee),
		string(e.Type),
		e.Pending,
		e.Voided,
		e.MemoFromPayer,
		e.LnMemo,
		e.PaymentHash,
		e.Username,
		addresses,
		e.TxHash,
		e.FiatAmount,
		e.SatsPerUnit,
		e.Timestamp,
	).Scan(&e.ID)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			"transaction_id", e.TransactionID.String(),
			"account", e.Account,
			"error", err,
		)
		return &shared.UnknownRepositoryError{Op: "create ledger entry", Err: err}
	}

	return nil
}

// GetByAccount returns the legs of account, newest first.
func (r *LedgerEntryRepository) GetByAccount(ctx context.Context, account string, limit, offset int) ([]ledger.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE account = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, entryColumns)

	rows, err := r.querier.Query(ctx, query, account, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "account", account, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "get entries by account", Err: err}
	}
	return r.collect(rows)
}

// GetByPaymentHash returns the live legs booked for a payment hash.
func (r *LedgerEntryRepository) GetByPaymentHash(ctx context.Context, paymentHash string, pendingOnly bool) ([]ledger.Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE payment_hash = $1 AND NOT voided AND (pending OR NOT $2)
		ORDER BY id
	`, entryColumns)

	rows, err := r.querier.Query(ctx, query, paymentHash, pendingOnly)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "payment_hash", paymentHash, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "get entries by payment hash", Err: err}
	}
	return r.collect(rows)
}

func (r *LedgerEntryRepository) collect(rows pgx.Rows) ([]ledger.Entry, error) {
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                  ledger.Entry
			credit, debit, fee int64
			kind               string
		)
		err := rows.Scan(
			&e.ID,
			&e.TransactionID,
			&e.Account,
			&e.Currency,
			&credit,
			&debit,
			&fee,
			&kind,
			&e.Pending,
			&e.Voided,
			&e.MemoFromPayer,
			&e.LnMemo,
			&e.PaymentHash,
			&e.Username,
			&e.Addresses,
			&e.TxHash,
			&e.FiatAmount,
			&e.SatsPerUnit,
			&e.Timestamp,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, &shared.UnknownRepositoryError{Op: "scan ledger entry", Err: err}
		}
		e.Credit, e.Debit, e.Fee = shared.Satoshis(credit), shared.Satoshis(debit), shared.Satoshis(fee)
		e.Type = ledger.TransactionType(kind)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, &shared.UnknownRepositoryError{Op: "iterate ledger entries", Err: err}
	}
	return entries, nil
}

// ConfirmPending clears the pending flag on the live legs of a payment.
func (r *LedgerEntryRepository) ConfirmPending(ctx context.Context, paymentHash string) (int64, error) {
	query := `
		UPDATE ledger_entries
		SET pending = FALSE
		WHERE payment_hash = $1 AND pending AND NOT voided
	`

	result, err := r.querier.Exec(ctx, query, paymentHash)
	if err != nil {
		r.logger.Error("Failed to confirm pending entries", "payment_hash", paymentHash, "error", err)
		return 0, &shared.UnknownRepositoryError{Op: "confirm pending entries", Err: err}
	}

	return result.RowsAffected(), nil
}

// VoidTransaction hides every leg of a transaction from the wallet history
// and suffixes its idempotency key, so the key can be used by a new posting.
func (r *LedgerEntryRepository) VoidTransaction(ctx context.Context, transactionID uuid.UUID) error {
	query := `
		UPDATE ledger_entries
		SET voided = TRUE, pending = FALSE
		WHERE transaction_id = $1
	`

	result, err := r.querier.Exec(ctx, query, transactionID)
	if err != nil {
		r.logger.Error("Failed to void ledger transaction", "transaction_id", transactionID.String(), "error", err)
		return &shared.UnknownRepositoryError{Op: "void transaction", Err: err}
	}
	if result.RowsAffected() == 0 {
		return &shared.UnknownRepositoryError{Op: "void transaction", Err: fmt.Errorf("no legs for transaction %s", transactionID)}
	}

	releaseKey := `
		UPDATE ledger_transactions
		SET idempotency_key = idempotency_key || ':voided:' || id::text
		WHERE id = $1
	`

	if _, err := r.querier.Exec(ctx, releaseKey, transactionID); err != nil {
		r.logger.Error("Failed to release idempotency key", "transaction_id", transactionID.String(), "error", err)
		return &shared.UnknownRepositoryError{Op: "release idempotency key", Err: err}
	}

	return nil
}

// PendingAccounts pages through liability accounts holding pending legs in
// path order, starting strictly after the cursor.
func (r *LedgerEntryRepository) PendingAccounts(ctx context.Context, after string, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT account
		FROM ledger_entries
		WHERE pending AND NOT voided AND account LIKE 'Liabilities:%' AND account > $1
		ORDER BY account
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, after, limit)
	if err != nil {
		r.logger.Error("Failed to list accounts with pending entries", "after", after, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "list pending accounts", Err: err}
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, &shared.UnknownRepositoryError{Op: "scan pending account", Err: err}
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, &shared.UnknownRepositoryError{Op: "iterate pending accounts", Err: err}
	}

	return accounts, nil
}

// Volume sums the debits (outgoing) and credits (incoming) of account since
// the given time. Voided legs are excluded.
func (r *LedgerEntryRepository) Volume(ctx context.Context, account string, since time.Time) (ledger.Volume, error) {
	query := `
		SELECT COALESCE(SUM(debit), 0)::BIGINT, COALESCE(SUM(credit), 0)::BIGINT
		FROM ledger_entries
		WHERE account = $1 AND created_at >= $2 AND NOT voided
	`

	var outgoing, incoming int64
	if err := r.querier.QueryRow(ctx, query, account, since).Scan(&outgoing, &incoming); err != nil {
		r.logger.Error("Failed to get account volume", "account", account, "error", err)
		return ledger.Volume{}, &shared.UnknownRepositoryError{Op: "get volume", Err: err}
	}

	return ledger.Volume{Outgoing: shared.Satoshis(outgoing), Incoming: shared.Satoshis(incoming)}, nil
}
