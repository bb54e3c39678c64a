package lightning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// PaymentStatus is the node reported state of an outgoing payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSettled PaymentStatus = "settled"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsFinal reports whether no further transition is expected.
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSettled || s == PaymentStatusFailed
}

// PaymentID derives the idempotency key of a payment intent from its preimage:
// hex(sha256(preimage)), which is also the payment hash.
func PaymentID(preimage []byte) PaymentHash {
	sum := sha256.Sum256(preimage)
	return PaymentHash(hex.EncodeToString(sum[:]))
}

// PaymentDetails are only present once the node knows the payment outcome.
type PaymentDetails struct {
	ConfirmedAt     *time.Time           `json:"confirmed_at,omitempty"`
	Destination     Pubkey               `json:"destination"`
	MilliSatsFee    shared.MilliSatoshis `json:"milli_sats_fee"`
	MilliSatsAmount shared.MilliSatoshis `json:"milli_sats_amount"`
	RoundedUpFee    shared.Satoshis      `json:"rounded_up_fee"`
	Secret          PaymentSecret        `json:"secret,omitempty"`
	Amount          shared.Satoshis      `json:"amount"`
}

// PaymentAttempt is one HTLC attempt as reported by the node.
type PaymentAttempt struct {
	Status        string    `json:"status"`
	FeeMsat       int64     `json:"fee_msat"`
	HopCount      int       `json:"hop_count"`
	FailureReason string    `json:"failure_reason,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// PaymentLookup is the node view of an outgoing payment.
type PaymentLookup struct {
	CreatedAt      time.Time
	Status         PaymentStatus
	PaymentHash    PaymentHash
	PaymentRequest EncodedPaymentRequest
	Details        *PaymentDetails
	Attempts       []PaymentAttempt
}

// LnPayment is the persisted audit record of a payment attempt. It is created
// on dispatch, updated as the node reports progress and never deleted.
type LnPayment struct {
	ID               PaymentHash
	PaymentHash      PaymentHash
	WalletID         string
	Status           PaymentStatus
	CreatedAt        time.Time
	ConfirmedAt      *time.Time
	Destination      Pubkey
	PaymentRequest   EncodedPaymentRequest
	Amount           shared.Satoshis
	MilliSatsAmount  shared.MilliSatoshis
	MilliSatsFee     shared.MilliSatoshis
	RoundedUpFee     shared.Satoshis
	ReservedFee      shared.Satoshis // fee held on the ledger while the outcome is unknown
	Secret           PaymentSecret
	Attempts         []PaymentAttempt
	IsCompleteRecord bool
}

// ApplyLookup copies the node outcome onto the record.
func (p *LnPayment) ApplyLookup(l PaymentLookup) {
	p.Status = l.Status
	if len(l.Attempts) > 0 {
		p.Attempts = l.Attempts
	}
	if l.Details == nil {
		return
	}
	p.ConfirmedAt = l.Details.ConfirmedAt
	p.MilliSatsFee = l.Details.MilliSatsFee
	p.RoundedUpFee = l.Details.RoundedUpFee
	p.Secret = l.Details.Secret
	if l.Details.MilliSatsAmount > 0 {
		p.MilliSatsAmount = l.Details.MilliSatsAmount
	}
	p.IsCompleteRecord = l.Status.IsFinal()
}

// LnPaymentRepository persists payment attempt records keyed by payment hash.
type LnPaymentRepository interface {
	FindByID(ctx context.Context, id PaymentHash) (*LnPayment, error)
	FindByPaymentHash(ctx context.Context, hash PaymentHash) (*LnPayment, error)
	// Update inserts or replaces the record with the same payment hash.
	Update(ctx context.Context, payment *LnPayment) (*LnPayment, error)
	ListPending(ctx context.Context, limit int) ([]*LnPayment, error)
	WithTx(tx pgx.Tx) LnPaymentRepository
}
