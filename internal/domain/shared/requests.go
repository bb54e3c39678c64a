package shared

import "github.com/shopspring/decimal"

// AddInvoiceRequest asks a wallet for a new payment request. Amount is in the
// wallet denomination: sats for BTC wallets, fiat units for FIAT wallets.
type AddInvoiceRequest struct {
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo,omitempty"`
}

// SendPaymentRequest pays an encoded Lightning invoice from a wallet. Amount is
// only used for invoices that do not carry one.
type SendPaymentRequest struct {
	WalletID       string   `json:"wallet_id"`
	PaymentRequest string   `json:"payment_request"`
	Amount         Satoshis `json:"amount,omitempty"`
	MaxFeeOverride Satoshis `json:"max_fee_override,omitempty"`
	Memo           string   `json:"memo,omitempty"`
}

// IntraLedgerSendRequest moves sats between two wallets of this operator
// without touching the network.
type IntraLedgerSendRequest struct {
	SenderWalletID    string   `json:"sender_wallet_id"`
	RecipientWalletID string   `json:"recipient_wallet_id"`
	Amount            Satoshis `json:"amount"`
	Memo              string   `json:"memo,omitempty"`
}

// KeysendRequest pays a node directly without an invoice.
type KeysendRequest struct {
	Destination string   `json:"destination"`
	Amount      Satoshis `json:"amount"`
	Message     string   `json:"message,omitempty"`
}
