// Package lightning defines the Lightning node contract used by the wallet
// core, the invoice and payment records exchanged with it, and the fee policy
// applied to outgoing payments.
package lightning

import (
	"time"

	"github.com/lnwallet-ledger/internal/domain/shared"
)

// Pubkey is a hex encoded node public key.
type Pubkey string

// PaymentHash is the hex encoded sha256 of a payment preimage.
type PaymentHash string

// PaymentSecret is the hex encoded payment address carried by an invoice.
type PaymentSecret string

// EncodedPaymentRequest is a BOLT11 string.
type EncodedPaymentRequest string

// Hop is a single entry of an invoice route hint.
type Hop struct {
	NodePubkey  Pubkey `json:"node_pubkey"`
	ChannelID   uint64 `json:"channel_id"`
	BaseFeeMsat int64  `json:"base_fee_msat"`
	FeeRate     int64  `json:"fee_rate"` // parts per million
	CltvDelta   uint32 `json:"cltv_delta"`
}

// Feature is a BOLT 09 feature bit advertised by an invoice.
type Feature struct {
	Bit        uint32 `json:"bit"`
	IsRequired bool   `json:"is_required"`
	IsKnown    bool   `json:"is_known"`
	Type       string `json:"type"`
}

// Invoice is a decoded payment request. It is immutable once registered and
// identified by its payment hash. Amount is zero for "any amount" invoices.
type Invoice struct {
	PaymentHash     PaymentHash           `json:"payment_hash"`
	PaymentSecret   PaymentSecret         `json:"payment_secret,omitempty"`
	Destination     Pubkey                `json:"destination"`
	PaymentRequest  EncodedPaymentRequest `json:"payment_request"`
	Amount          shared.Satoshis       `json:"amount"`
	MilliSatsAmount shared.MilliSatoshis  `json:"milli_sats_amount"`
	Description     string                `json:"description"`
	CltvDelta       uint32                `json:"cltv_delta"`
	RouteHints      [][]Hop               `json:"route_hints,omitempty"`
	Features        []Feature             `json:"features,omitempty"`
	ExpiresAt       time.Time             `json:"expires_at"`
}

// HasAmount reports whether the invoice fixes the amount to pay.
func (i Invoice) HasAmount() bool {
	return i.Amount > 0 || i.MilliSatsAmount > 0
}

// IsExpired reports whether the invoice can no longer be paid at now.
func (i Invoice) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// UnsupportedFeatures returns the required feature bits the node does not know.
func (i Invoice) UnsupportedFeatures() []uint32 {
	var bits []uint32
	for _, f := range i.Features {
		if f.IsRequired && !f.IsKnown {
			bits = append(bits, f.Bit)
		}
	}
	return bits
}

// RegisterInvoiceArgs describes an invoice to create on the node. A zero
// ExpiresAt keeps the node default expiry.
type RegisterInvoiceArgs struct {
	Description string
	Amount      shared.Satoshis
	ExpiresAt   time.Time
}

// RegisteredInvoice is an invoice created on the node identified by Pubkey.
type RegisteredInvoice struct {
	Invoice Invoice
	Pubkey  Pubkey
}

// InvoiceLookup is the node view of an invoice created by this operator.
type InvoiceLookup struct {
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	Description    string
	ExpiresAt      time.Time
	IsSettled      bool
	IsCanceled     bool
	Received       shared.Satoshis
	PaymentRequest EncodedPaymentRequest
	Secret         PaymentSecret
}
