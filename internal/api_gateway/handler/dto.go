package handler

import (
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest is the body of POST /wallets/:id/invoices. Amount is
// in sats for BTC wallets and in fiat units for fiat wallets; omit it for an
// amountless invoice.
type CreateInvoiceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo" binding:"max=639"`
}

// InvoiceResponse is the part of a registered invoice a payer needs.
type InvoiceResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

// PayInvoiceRequest is the body of POST /wallets/:id/payments.
type PayInvoiceRequest struct {
	PaymentRequest string `json:"payment_request" binding:"required"`
	Amount         int64  `json:"amount" binding:"min=0"`
	MaxFeeOverride int64  `json:"max_fee_override" binding:"min=0"`
	Memo           string `json:"memo"`
}

// IntraLedgerRequest is the body of POST /wallets/:id/intraledger.
type IntraLedgerRequest struct {
	RecipientWalletID string `json:"recipient_wallet_id" binding:"required"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
	Memo              string `json:"memo"`
}

// KeysendRequest is the body of POST /keysend.
type KeysendRequest struct {
	Destination string `json:"destination" binding:"required,hexadecimal,len=66"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Message     string `json:"message"`
}

// AccountBalanceResponse is one ledger account balance.
type AccountBalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func (p PaginationParams) offset() int {
	return (p.Page - 1) * p.PerPage
}
