// Package postgres provides PostgreSQL implementations of the ledger, payment
// and outbox repositories. Every repository can be bound to a transaction with
// WithTx so the legs of one posting commit or roll back together.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/platform/persistence"
)

// LedgerAccountRepository implements the ledger.AccountRepository interface for PostgreSQL
type LedgerAccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLedgerAccountRepository creates a new PostgreSQL ledger account repository.
func NewLedgerAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.AccountRepository {
	return &LedgerAccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to tx.
func (r *LedgerAccountRepository) WithTx(tx pgx.Tx) ledger.AccountRepository {
	return &LedgerAccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ApplyDelta adds delta to the running balance in a single statement. The row
// lock taken by the upsert serialises concurrent writers of the same account,
// and the table CHECK rejects a negative liability balance.
func (r *LedgerAccountRepository) ApplyDelta(ctx context.Context, path, currency string, delta shared.Satoshis) error {
	query := `
		INSERT INTO ledger_accounts (path, currency, is_liability, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path, currency) DO UPDATE
		SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query, path, currency, ledger.IsLiability(path), int64(delta))
	if err != nil {
		if persistence.IsCheckViolation(err) {
			return &ledger.InsufficientBalanceError{Account: path}
		}
		r.logger.Error("Failed to apply balance delta", "account", path, "delta", int64(delta), "error", err)
		return &shared.UnknownRepositoryError{Op: "apply balance delta", Err: err}
	}

	return nil
}

// Balance sums path and every account nested below it, so "Liabilities"
// returns the total owed to customers.
func (r *LedgerAccountRepository) Balance(ctx context.Context, path, currency string) (shared.Satoshis, error) {
	query := `
		SELECT COALESCE(SUM(balance), 0)::BIGINT
		FROM ledger_accounts
		WHERE currency = $1 AND (path = $2 OR starts_with(path, $2 || ':'))
	`

	var balance int64
	if err := r.querier.QueryRow(ctx, query, currency, path).Scan(&balance); err != nil {
		r.logger.Error("Failed to get account balance", "account", path, "error", err)
		return 0, &shared.UnknownRepositoryError{Op: "get account balance", Err: err}
	}

	return shared.Satoshis(balance), nil
}

// List returns every account path known to the ledger.
func (r *LedgerAccountRepository) List(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT path
		FROM ledger_accounts
		ORDER BY path
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list ledger accounts", "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "list accounts", Err: err}
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, &shared.UnknownRepositoryError{Op: "scan account", Err: err}
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, &shared.UnknownRepositoryError{Op: "iterate accounts", Err: err}
	}

	return paths, nil
}
