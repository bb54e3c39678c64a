// Package ledger models the double-entry book every balance-affecting event is
// recorded in, and translates booked legs into the wallet transaction history.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionType tags what produced a ledger transaction.
type TransactionType string

const (
	TypeInvoice            TransactionType = "invoice"
	TypePayment            TransactionType = "payment"
	TypeIntraLedger        TransactionType = "on_us"
	TypeOnChainReceipt     TransactionType = "onchain_receipt"
	TypeOnChainPayment     TransactionType = "onchain_payment"
	TypeOnChainIntraLedger TransactionType = "onchain_on_us"
	TypeFeeReimbursement   TransactionType = "fee_reimbursement"
	TypeReversal           TransactionType = "reversal"
	TypeEscrow             TransactionType = "escrow"
)

// Account paths. Customer accounts live under Liabilities and must never go
// negative; reserve accounts live under Assets.
const (
	LiabilitiesMainAccount = "Liabilities"
	AssetsMainAccount      = "Assets"
	LndAccountingPath      = "Assets:Reserve:Lightning"
	BitcoindAccountingPath = "Assets:Reserve:Bitcoind"
	EscrowAccountingPath   = "Assets:Reserve:Escrow"
	customerPathPrefix     = LiabilitiesMainAccount + ":Customer:"
)

// CustomerPath is the ledger account of a wallet.
func CustomerPath(walletID string) string {
	return customerPathPrefix + walletID
}

// IsLiability reports whether path is a liability account.
func IsLiability(path string) bool {
	return path == LiabilitiesMainAccount || strings.HasPrefix(path, LiabilitiesMainAccount+":")
}

// WalletIDFromPath returns the wallet id of a customer account path.
func WalletIDFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, customerPathPrefix) {
		return "", false
	}
	return strings.TrimPrefix(path, customerPathPrefix), true
}

// Entry is a single leg of a double-entry transaction. Exactly one of Credit
// and Debit is positive.
type Entry struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	Account       string              `json:"account"`
	Currency      string              `json:"currency"`
	Credit        shared.Satoshis     `json:"credit"`
	Debit         shared.Satoshis     `json:"debit"`
	Fee           shared.Satoshis     `json:"fee"`
	Type          TransactionType     `json:"type"`
	Pending       bool                `json:"pending"`
	Voided        bool                `json:"voided"`
	MemoFromPayer string              `json:"memo_from_payer,omitempty"`
	LnMemo        string              `json:"ln_memo,omitempty"`
	PaymentHash   string              `json:"payment_hash,omitempty"`
	Username      string              `json:"username,omitempty"`
	Addresses     []string            `json:"addresses,omitempty"`
	TxHash        string              `json:"tx_hash,omitempty"`
	FiatAmount    decimal.NullDecimal `json:"fiat_amount"`
	SatsPerUnit   decimal.NullDecimal `json:"sats_per_unit"`
	Timestamp     time.Time           `json:"timestamp"`
}

// Delta is the signed effect of the leg on its account balance.
func (e Entry) Delta() shared.Satoshis {
	return e.Credit - e.Debit
}

// Volume is the traffic of an account over a window.
type Volume struct {
	Outgoing shared.Satoshis `json:"outgoing"`
	Incoming shared.Satoshis `json:"incoming"`
}
