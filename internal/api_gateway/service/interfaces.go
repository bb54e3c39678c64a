// Package service declares what the HTTP handlers need from the wallet core.
// The implementations live in the wallets, payments and ledger_service packages.
package service

import (
	"context"
	"iter"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/payments"
	"github.com/lnwallet-ledger/internal/wallets"
)

// WalletService covers the receive side and the read model of a wallet.
type WalletService interface {
	// AddInvoice registers an invoice for the wallet. Fiat wallets convert the
	// amount with the current spot price.
	AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error)

	// Balance returns the sats balance and its fiat equivalent.
	Balance(ctx context.Context, walletID string) (wallet.Balance, error)

	TransactionHistory(ctx context.Context, walletID string, limit, offset int) ([]ledger.WalletTransaction, error)
}

// PaymentService covers outgoing payments.
type PaymentService interface {
	PayInvoice(ctx context.Context, req shared.SendPaymentRequest) (payments.Result, error)
	SendIntraLedger(ctx context.Context, req shared.IntraLedgerSendRequest) (payments.Result, error)

	// PayToPubkey sends a keysend payment from the operator funder wallet.
	PayToPubkey(ctx context.Context, req shared.KeysendRequest) (payments.Result, error)
}

// LedgerQueries exposes read-only operator views of the ledger.
type LedgerQueries interface {
	ListAccounts(ctx context.Context) ([]string, error)
	GetAccountBalance(ctx context.Context, account, currency string) (shared.Satoshis, error)
	Summary(ctx context.Context) (ledger_service.Balances, error)
	AccountsWithPendingEntries(ctx context.Context) iter.Seq2[string, error]
}

var (
	_ WalletService  = (*wallets.Manager)(nil)
	_ PaymentService = (*payments.Orchestrator)(nil)
	_ LedgerQueries  = (*ledger_service.Service)(nil)
)
