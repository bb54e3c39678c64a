package lightning

import (
	"context"

	"github.com/lnwallet-ledger/internal/domain/shared"
)

// Keysend custom record types.
const (
	// KeysendPreimageRecord carries the payment preimage for spontaneous payments.
	KeysendPreimageRecord uint64 = 5482373484
	// KeysendMessageRecord carries an optional message for the recipient.
	KeysendMessageRecord uint64 = 123123
)

// Gateway is the wire boundary to a single Lightning node. Every method is a
// network round-trip; a timeout returns a LightningServiceError with Timeout
// set and must be treated as an unknown outcome, never as a failure.
type Gateway interface {
	DefaultPubkey() Pubkey
	IsLocal(pubkey Pubkey) bool

	DecodeInvoice(ctx context.Context, request EncodedPaymentRequest) (Invoice, error)
	RegisterInvoice(ctx context.Context, args RegisterInvoiceArgs) (RegisteredInvoice, error)
	LookupInvoice(ctx context.Context, pubkey Pubkey, hash PaymentHash) (InvoiceLookup, error)
	CancelInvoice(ctx context.Context, pubkey Pubkey, hash PaymentHash) error
	LookupPayment(ctx context.Context, hash PaymentHash) (PaymentLookup, error)

	FindRoute(ctx context.Context, invoice Invoice, maxFee shared.Satoshis) (Route, error)
	FindRouteForAmountlessInvoice(ctx context.Context, invoice Invoice, maxFee, amount shared.Satoshis) (Route, error)
	PayViaRoute(ctx context.Context, hash PaymentHash, route Route) (PayResult, error)
	PayViaPaymentDetails(ctx context.Context, invoice Invoice, amount shared.MilliSatoshis, maxFee shared.Satoshis) (PayResult, error)
	SendKeysend(ctx context.Context, args KeysendArgs) (PayResult, error)
}

// KeysendArgs describes a spontaneous payment. Preimage is the raw 32 byte
// secret; its sha256 is the payment hash.
type KeysendArgs struct {
	Destination Pubkey
	Amount      shared.Satoshis
	Preimage    []byte
	Message     string
	MaxFee      shared.Satoshis
}

// ChannelManager opens channels when a destination cannot be reached.
type ChannelManager interface {
	ChannelCapacity(ctx context.Context, pubkey Pubkey) (shared.Satoshis, error)
	OpenChannel(ctx context.Context, req OpenChannelRequest) (ChannelPoint, error)
}

// OpenChannelRequest mirrors the node open channel parameters.
type OpenChannelRequest struct {
	Pubkey             Pubkey
	LocalFundingAmount shared.Satoshis
	Private            bool
	MinConfs           int32
	SatPerVbyte        uint64
}

// ChannelPoint identifies the funding output of an opened channel.
type ChannelPoint struct {
	FundingTxID string
	OutputIndex uint32
}
