package wallets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/workers"
)

// InvoiceNode is the part of the Lightning gateway the manager needs.
type InvoiceNode interface {
	InvoiceRegistrar
	LookupInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) (lightning.InvoiceLookup, error)
}

// Ledger books receipts and answers the wallet balance and history queries.
type Ledger interface {
	Post(ctx context.Context, txn ledger.Transaction, hooks ...ledger_service.Hook) error
	GetAccountBalance(ctx context.Context, account, currency string) (shared.Satoshis, error)
	EntriesByAccount(ctx context.Context, account string, limit, offset int) ([]ledger.Entry, error)
}

// Manager owns the receive side of every wallet.
type Manager struct {
	node        InvoiceNode
	wallets     wallet.Repository
	invoices    wallet.InvoiceRepository
	pending     wallet.PendingOnChainRepository
	ledger      Ledger
	prices      PriceSource
	pool        *workers.Pool
	cfg         *config.WalletConfig
	concurrency int
	translator  ledger.HistoryTranslator
	now         func() time.Time
	logger      *slog.Logger
}

func NewManager(
	logger *slog.Logger,
	node InvoiceNode,
	wallets wallet.Repository,
	invoices wallet.InvoiceRepository,
	pending wallet.PendingOnChainRepository,
	ledgerSvc Ledger,
	prices PriceSource,
	pool *workers.Pool,
	cfg *config.WalletConfig,
	concurrency int,
) *Manager {
	return &Manager{
		node:        node,
		wallets:     wallets,
		invoices:    invoices,
		pending:     pending,
		ledger:      ledgerSvc,
		prices:      prices,
		pool:        pool,
		cfg:         cfg,
		concurrency: concurrency,
		translator:  ledger.HistoryTranslator{MemoSharingThreshold: shared.Satoshis(cfg.MemoSharingThreshold)},
		now:         time.Now,
		logger:      logger.With("component", "wallet_manager"),
	}
}

// For returns the behavior matching the wallet denomination. Anything that is
// not FIAT is treated as BTC.
func (m *Manager) For(w *wallet.Wallet) WalletBehavior {
	maker := invoiceMaker{
		wallet:   w,
		node:     m.node,
		invoices: m.invoices,
		now:      m.now,
		logger:   m.logger,
	}
	if w.Currency == shared.CurrencyFiat {
		return &FiatWallet{invoiceMaker: maker, prices: m.prices, expiry: m.cfg.FiatInvoiceExpiry}
	}
	return &BTCWallet{invoiceMaker: maker, expiry: m.cfg.DefaultInvoiceExpiry}
}

// AddInvoice creates an invoice for the wallet named in req.
func (m *Manager) AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error) {
	w, err := m.wallets.FindByID(ctx, req.WalletID)
	if err != nil {
		return lightning.Invoice{}, err
	}
	return m.For(w).AddInvoice(ctx, req)
}

// SettleInvoice books a settled wallet invoice. It is safe to call any number
// of times for the same hash: an invoice is credited at most once.
func (m *Manager) SettleInvoice(ctx context.Context, paymentHash string) error {
	inv, err := m.invoices.FindByPaymentHash(ctx, paymentHash)
	if err != nil {
		return err
	}
	_, err = m.settle(ctx, inv)
	return err
}

// settle reports whether the invoice is paid after the call.
func (m *Manager) settle(ctx context.Context, inv *wallet.Invoice) (bool, error) {
	if inv.Paid {
		return true, nil
	}
	logger := m.logger.With("payment_hash", inv.PaymentHash, "wallet_id", inv.WalletID)

	lookup, err := m.node.LookupInvoice(ctx, lightning.Pubkey(inv.Pubkey), lightning.PaymentHash(inv.PaymentHash))
	if err != nil {
		return false, err
	}
	if !lookup.IsSettled {
		logger.Debug("Invoice not settled yet", "canceled", lookup.IsCanceled)
		return false, nil
	}

	w, err := m.wallets.FindByID(ctx, inv.WalletID)
	if err != nil {
		return false, err
	}

	received := lookup.Received
	if received <= 0 {
		received = inv.Sats
	}
	fiatAmount, satsPerUnit := inv.FiatSnapshot()
	memo := inv.Memo
	if memo == "" {
		memo = lookup.Description
	}

	txn := ledger.LightningReceipt(w.AccountPath(), received, InvoiceKey(inv.PaymentHash), ledger.Metadata{
		LnMemo:      memo,
		PaymentHash: inv.PaymentHash,
		FiatAmount:  fiatAmount,
		SatsPerUnit: satsPerUnit,
	})
	err = m.ledger.Post(ctx, txn)
	switch {
	case err == nil:
		logger.Info("Credited settled invoice", "sats", int64(received))
	case errors.Is(err, &ledger.DuplicateTransactionError{}):
		logger.Info("Invoice receipt already booked")
	default:
		return false, fmt.Errorf("failed to book invoice %s: %w", inv.PaymentHash, err)
	}

	if err := m.invoices.MarkAsPaid(ctx, inv.PaymentHash); err != nil {
		return false, err
	}
	return true, nil
}

// SweepPendingInvoices checks every unpaid invoice against the node. Invoices
// that fail are retried on the next sweep.
func (m *Manager) SweepPendingInvoices(ctx context.Context) error {
	var settled atomic.Int64
	report := workers.Run(ctx, m.pool, m.logger, m.invoices.ListUnpaid(ctx),
		func(ctx context.Context, inv *wallet.Invoice) error {
			paid, err := m.settle(ctx, inv)
			if errors.Is(err, &lightning.InvoiceNotFoundError{}) {
				m.logger.Warn("Node does not know wallet invoice", "payment_hash", inv.PaymentHash)
				return nil
			}
			if paid {
				settled.Add(1)
			}
			return err
		}, m.concurrency)

	m.logger.Info("Invoice sweep finished",
		"checked", report.Processed+report.Failed,
		"failed", report.Failed,
		"settled", settled.Load(),
	)
	if report.SourceErr != nil {
		return fmt.Errorf("invoice sweep aborted: %w", report.SourceErr)
	}
	return nil
}

// BalanceSummary returns the wallet balance with its fiat equivalent.
func (m *Manager) BalanceSummary(ctx context.Context, w *wallet.Wallet) (wallet.Balance, error) {
	sats, err := m.ledger.GetAccountBalance(ctx, w.AccountPath(), shared.LedgerCurrency)
	if err != nil {
		return wallet.Balance{}, err
	}
	snapshot, err := m.prices.Latest()
	if err != nil {
		return wallet.Balance{}, err
	}
	return wallet.Balance{
		WalletID: w.ID,
		Currency: w.Currency,
		Sats:     sats,
		Fiat:     snapshot.FiatFor(int64(sats)),
	}, nil
}

// Balance is BalanceSummary for a wallet id.
func (m *Manager) Balance(ctx context.Context, walletID string) (wallet.Balance, error) {
	w, err := m.wallets.FindByID(ctx, walletID)
	if err != nil {
		return wallet.Balance{}, err
	}
	return m.BalanceSummary(ctx, w)
}

// TransactionHistory returns the wallet history newest first. Unconfirmed
// incoming on-chain outputs are only merged into the first page.
func (m *Manager) TransactionHistory(ctx context.Context, walletID string, limit, offset int) ([]ledger.WalletTransaction, error) {
	w, err := m.wallets.FindByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	entries, err := m.ledger.EntriesByAccount(ctx, w.AccountPath(), limit, offset)
	if err != nil {
		return nil, err
	}
	confirmed := m.translator.Confirmed(entries)

	addresses := w.Addresses()
	if offset > 0 || len(addresses) == 0 {
		return confirmed.Transactions, nil
	}
	pending, err := m.pending.ListByAddresses(ctx, addresses)
	if err != nil {
		return nil, err
	}
	return confirmed.AddPendingIncoming(pending, addresses), nil
}

// InvoiceKey is the ledger idempotency key of an invoice receipt.
func InvoiceKey(paymentHash string) string {
	return "invoice:" + paymentHash
}

// OnChainKey is the ledger idempotency key of one received on-chain output.
func OnChainKey(txID, address string) string {
	return "onchain:" + txID + ":" + address
}
