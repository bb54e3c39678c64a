package wallets

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/lnwallet-ledger/internal/workers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInvoiceNode struct {
	mock.Mock
}

func (m *MockInvoiceNode) RegisterInvoice(ctx context.Context, args lightning.RegisterInvoiceArgs) (lightning.RegisteredInvoice, error) {
	ret := m.Called(ctx, args)
	return ret.Get(0).(lightning.RegisteredInvoice), ret.Error(1)
}

func (m *MockInvoiceNode) LookupInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) (lightning.InvoiceLookup, error) {
	ret := m.Called(ctx, pubkey, hash)
	return ret.Get(0).(lightning.InvoiceLookup), ret.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) FindByID(ctx context.Context, walletID string) (*wallet.Wallet, error) {
	args := m.Called(ctx, walletID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) FindByAddress(ctx context.Context, address string) (*wallet.Wallet, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) ListByAddresses(ctx context.Context, addresses []string) ([]*wallet.Wallet, error) {
	args := m.Called(ctx, addresses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) All(ctx context.Context) iter.Seq2[*wallet.Wallet, error] {
	args := m.Called(ctx)
	return args.Get(0).(iter.Seq2[*wallet.Wallet, error])
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Persist(ctx context.Context, invoice *wallet.Invoice) error {
	return m.Called(ctx, invoice).Error(0)
}

func (m *MockInvoiceRepository) FindByPaymentHash(ctx context.Context, paymentHash string) (*wallet.Invoice, error) {
	args := m.Called(ctx, paymentHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) MarkAsPaid(ctx context.Context, paymentHash string) error {
	return m.Called(ctx, paymentHash).Error(0)
}

func (m *MockInvoiceRepository) ListUnpaid(ctx context.Context) iter.Seq2[*wallet.Invoice, error] {
	args := m.Called(ctx)
	return args.Get(0).(iter.Seq2[*wallet.Invoice, error])
}

type MockPendingOnChainRepository struct {
	mock.Mock
}

func (m *MockPendingOnChainRepository) Upsert(ctx context.Context, tx ledger.SubmittedTransaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockPendingOnChainRepository) ListByAddresses(ctx context.Context, addresses []string) ([]ledger.SubmittedTransaction, error) {
	args := m.Called(ctx, addresses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.SubmittedTransaction), args.Error(1)
}

func (m *MockPendingOnChainRepository) Delete(ctx context.Context, txID string) error {
	return m.Called(ctx, txID).Error(0)
}

// MockLedger ignores hooks; receipts are posted without any.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Post(ctx context.Context, txn ledger.Transaction, _ ...ledger_service.Hook) error {
	return m.Called(ctx, txn).Error(0)
}

func (m *MockLedger) GetAccountBalance(ctx context.Context, account, currency string) (shared.Satoshis, error) {
	args := m.Called(ctx, account, currency)
	return args.Get(0).(shared.Satoshis), args.Error(1)
}

func (m *MockLedger) EntriesByAccount(ctx context.Context, account string, limit, offset int) ([]ledger.Entry, error) {
	args := m.Called(ctx, account, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

type stubPrices struct {
	snapshot price.Snapshot
	err      error
}

func (s stubPrices) Latest() (price.Snapshot, error) {
	return s.snapshot, s.err
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fiftyThousandSatsPerUnit prices one fiat unit at 50,000 sats.
var fiftyThousandSatsPerUnit = price.Snapshot{SpotSatsPerUnit: decimal.NewFromInt(50_000), ObservedAt: testNow}

type managerDeps struct {
	node     *MockInvoiceNode
	wallets  *MockWalletRepository
	invoices *MockInvoiceRepository
	pending  *MockPendingOnChainRepository
	ledger   *MockLedger
}

func (d managerDeps) assertExpectations(t *testing.T) {
	d.node.AssertExpectations(t)
	d.wallets.AssertExpectations(t)
	d.invoices.AssertExpectations(t)
	d.pending.AssertExpectations(t)
	d.ledger.AssertExpectations(t)
}

func newTestManager(t *testing.T, prices PriceSource) (*Manager, managerDeps) {
	t.Helper()
	d := managerDeps{
		node:     new(MockInvoiceNode),
		wallets:  new(MockWalletRepository),
		invoices: new(MockInvoiceRepository),
		pending:  new(MockPendingOnChainRepository),
		ledger:   new(MockLedger),
	}
	pool, err := workers.NewPool(newTestLogger(), &config.WorkerPoolConfig{Size: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	m := NewManager(newTestLogger(), d.node, d.wallets, d.invoices, d.pending, d.ledger, prices, pool,
		&config.WalletConfig{
			MemoSharingThreshold: 1000,
			FiatInvoiceExpiry:    time.Minute,
		}, 2)
	m.now = func() time.Time { return testNow }
	return m, d
}

func seqOf[T any](items ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
