package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/platform/persistence"
)

const lnPaymentColumns = `payment_hash, wallet_id, status, created_at, confirmed_at, destination, payment_request,
		amount, milli_sats_amount, milli_sats_fee, rounded_up_fee, reserved_fee, secret, attempts, is_complete_record`

// LnPaymentRepository implements lightning.LnPaymentRepository for PostgreSQL.
// Records live next to the ledger so a payment transition and its legs commit
// in one transaction.
type LnPaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewLnPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) lightning.LnPaymentRepository {
	return &LnPaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *LnPaymentRepository) WithTx(tx pgx.Tx) lightning.LnPaymentRepository {
	return &LnPaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// FindByID looks a payment up by its id, which is the payment hash.
func (r *LnPaymentRepository) FindByID(ctx context.Context, id lightning.PaymentHash) (*lightning.LnPayment, error) {
	return r.FindByPaymentHash(ctx, id)
}

func (r *LnPaymentRepository) FindByPaymentHash(ctx context.Context, hash lightning.PaymentHash) (*lightning.LnPayment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ln_payments
		WHERE payment_hash = $1
	`, lnPaymentColumns)

	payment, err := scanLnPayment(r.querier.QueryRow(ctx, query, string(hash)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &lightning.PaymentNotFoundError{PaymentHash: hash}
		}
		r.logger.Error("Failed to get ln payment", "payment_hash", string(hash), "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "find ln payment", Err: err}
	}

	return payment, nil
}

// Update inserts the record or replaces the mutable fields of an existing
// one. The creation time of the first write is kept.
func (r *LnPaymentRepository) Update(ctx context.Context, p *lightning.LnPayment) (*lightning.LnPayment, error) {
	query := `
		INSERT INTO ln_payments (payment_hash, wallet_id, status, created_at, confirmed_at, destination, payment_request,
			amount, milli_sats_amount, milli_sats_fee, rounded_up_fee, reserved_fee, secret, attempts, is_complete_record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (payment_hash) DO UPDATE
		SET status = EXCLUDED.status,
			confirmed_at = EXCLUDED.confirmed_at,
			milli_sats_amount = EXCLUDED.milli_sats_amount,
			milli_sats_fee = EXCLUDED.milli_sats_fee,
			rounded_up_fee = EXCLUDED.rounded_up_fee,
			reserved_fee = EXCLUDED.reserved_fee,
			secret = EXCLUDED.secret,
			attempts = EXCLUDED.attempts,
			is_complete_record = EXCLUDED.is_complete_record,
			updated_at = NOW()
		RETURNING created_at
	`

	attempts := p.Attempts
	if attempts == nil {
		attempts = []lightning.PaymentAttempt{}
	}
	attemptsJSON, err := json.Marshal(attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment attempts: %w", err)
	}

	err = r.querier.QueryRow(ctx, query,
		string(p.PaymentHash),
		p.WalletID,
		string(p.Status),
		p.CreatedAt,
		p.ConfirmedAt,
		string(p.Destination),
		string(p.PaymentRequest),
		int64(p.Amount),
		int64(p.MilliSatsAmount),
		int64(p.MilliSatsFee),
		int64(p.RoundedUpFee),
		int64(p.ReservedFee),
		string(p.Secret),
		attemptsJSON,
		p.IsCompleteRecord,
	).Scan(&p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert ln payment",
			"payment_hash", string(p.PaymentHash),
			"status", string(p.Status),
			"error", err,
		)
		return nil, &shared.UnknownRepositoryError{Op: "update ln payment", Err: err}
	}

	p.ID = p.PaymentHash
	return p, nil
}

// ListPending returns the oldest payments whose outcome is still unknown.
func (r *LnPaymentRepository) ListPending(ctx context.Context, limit int) ([]*lightning.LnPayment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ln_payments
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, lnPaymentColumns)

	rows, err := r.querier.Query(ctx, query, string(lightning.PaymentStatusPending), limit)
	if err != nil {
		r.logger.Error("Failed to list pending ln payments", "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "list pending ln payments", Err: err}
	}
	defer rows.Close()

	var payments []*lightning.LnPayment
	for rows.Next() {
		p, err := scanLnPayment(rows)
		if err != nil {
			r.logger.Error("Failed to scan ln payment", "error", err)
			return nil, &shared.UnknownRepositoryError{Op: "scan ln payment", Err: err}
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &shared.UnknownRepositoryError{Op: "iterate ln payments", Err: err}
	}

	return payments, nil
}

func scanLnPayment(row pgx.Row) (*lightning.LnPayment, error) {
	var (
		p                                      lightning.LnPayment
		hash, status, dest, request, secret    string
		amount, msatAmount, msatFee, fee, resv int64
		attempts                               []byte
	)
	err := row.Scan(
		&hash,
		&p.WalletID,
		&status,
		&p.CreatedAt,
		&p.ConfirmedAt,
		&dest,
		&request,
		&amount,
		&msatAmount,
		&msatFee,
		&fee,
		&resv,
		&secret,
		&attempts,
		&p.IsCompleteRecord,
	)
	if err != nil {
		return nil, err
	}

	p.ID = lightning.PaymentHash(hash)
	p.PaymentHash = lightning.PaymentHash(hash)
	p.Status = lightning.PaymentStatus(status)
	p.Destination = lightning.Pubkey(dest)
	p.PaymentRequest = lightning.EncodedPaymentRequest(request)
	p.Secret = lightning.PaymentSecret(secret)
	p.Amount = shared.Satoshis(amount)
	p.MilliSatsAmount = shared.MilliSatoshis(msatAmount)
	p.MilliSatsFee = shared.MilliSatoshis(msatFee)
	p.RoundedUpFee = shared.Satoshis(fee)
	p.ReservedFee = shared.Satoshis(resv)
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &p.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment attempts: %w", err)
		}
	}

	return &p, nil
}
