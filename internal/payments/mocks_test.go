package payments

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	lockstore "github.com/lnwallet-ledger/internal/data/redis"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/ledger_service"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) DefaultPubkey() lightning.Pubkey {
	return m.Called().Get(0).(lightning.Pubkey)
}

func (m *MockGateway) IsLocal(pubkey lightning.Pubkey) bool {
	return m.Called(pubkey).Bool(0)
}

func (m *MockGateway) DecodeInvoice(ctx context.Context, request lightning.EncodedPaymentRequest) (lightning.Invoice, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(lightning.Invoice), args.Error(1)
}

func (m *MockGateway) RegisterInvoice(ctx context.Context, a lightning.RegisterInvoiceArgs) (lightning.RegisteredInvoice, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(lightning.RegisteredInvoice), args.Error(1)
}

func (m *MockGateway) LookupInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) (lightning.InvoiceLookup, error) {
	args := m.Called(ctx, pubkey, hash)
	return args.Get(0).(lightning.InvoiceLookup), args.Error(1)
}

func (m *MockGateway) CancelInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) error {
	return m.Called(ctx, pubkey, hash).Error(0)
}

func (m *MockGateway) LookupPayment(ctx context.Context, hash lightning.PaymentHash) (lightning.PaymentLookup, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(lightning.PaymentLookup), args.Error(1)
}

func (m *MockGateway) FindRoute(ctx context.Context, invoice lightning.Invoice, maxFee shared.Satoshis) (lightning.Route, error) {
	args := m.Called(ctx, invoice, maxFee)
	return args.Get(0).(lightning.Route), args.Error(1)
}

func (m *MockGateway) FindRouteForAmountlessInvoice(ctx context.Context, invoice lightning.Invoice, maxFee, amount shared.Satoshis) (lightning.Route, error) {
	args := m.Called(ctx, invoice, maxFee, amount)
	return args.Get(0).(lightning.Route), args.Error(1)
}

func (m *MockGateway) PayViaRoute(ctx context.Context, hash lightning.PaymentHash, route lightning.Route) (lightning.PayResult, error) {
	args := m.Called(ctx, hash, route)
	return args.Get(0).(lightning.PayResult), args.Error(1)
}

func (m *MockGateway) PayViaPaymentDetails(ctx context.Context, invoice lightning.Invoice, amount shared.MilliSatoshis, maxFee shared.Satoshis) (lightning.PayResult, error) {
	args := m.Called(ctx, invoice, amount, maxFee)
	return args.Get(0).(lightning.PayResult), args.Error(1)
}

func (m *MockGateway) SendKeysend(ctx context.Context, a lightning.KeysendArgs) (lightning.PayResult, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(lightning.PayResult), args.Error(1)
}

type MockChannelManager struct {
	mock.Mock
}

func (m *MockChannelManager) ChannelCapacity(ctx context.Context, pubkey lightning.Pubkey) (shared.Satoshis, error) {
	args := m.Called(ctx, pubkey)
	return args.Get(0).(shared.Satoshis), args.Error(1)
}

func (m *MockChannelManager) OpenChannel(ctx context.Context, req lightning.OpenChannelRequest) (lightning.ChannelPoint, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(lightning.ChannelPoint), args.Error(1)
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
	return m.Called(ctx).Get(0).(iter.Seq2[*wallet.Wallet, error])
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
	return m.Called(ctx).Get(0).(iter.Seq2[*wallet.Invoice, error])
}

// MockLnPaymentRepository records the status of every write so tests can
// check the transitions of a payment record.
type MockLnPaymentRepository struct {
	mock.Mock
	mu       sync.Mutex
	statuses []lightning.PaymentStatus
}

func (m *MockLnPaymentRepository) FindByID(ctx context.Context, id lightning.PaymentHash) (*lightning.LnPayment, error) {
	return m.FindByPaymentHash(ctx, id)
}

func (m *MockLnPaymentRepository) FindByPaymentHash(ctx context.Context, hash lightning.PaymentHash) (*lightning.LnPayment, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lightning.LnPayment), args.Error(1)
}

func (m *MockLnPaymentRepository) Update(ctx context.Context, p *lightning.LnPayment) (*lightning.LnPayment, error) {
	m.mu.Lock()
	m.statuses = append(m.statuses, p.Status)
	m.mu.Unlock()
	args := m.Called(ctx, p)
	return p, args.Error(0)
}

func (m *MockLnPaymentRepository) ListPending(ctx context.Context, limit int) ([]*lightning.LnPayment, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lightning.LnPayment), args.Error(1)
}

func (m *MockLnPaymentRepository) WithTx(pgx.Tx) lightning.LnPaymentRepository {
	return m
}

// MockLedger runs the posting hooks when the posting succeeds, like the real
// service does inside its transaction.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Post(ctx context.Context, txn ledger.Transaction, hooks ...ledger_service.Hook) error {
	if err := m.Called(ctx, txn).Error(0); err != nil {
		return err
	}
	return runHooks(ctx, hooks)
}

func (m *MockLedger) ConfirmPending(ctx context.Context, paymentHash string, fee shared.Satoshis, hooks ...ledger_service.Hook) error {
	if err := m.Called(ctx, paymentHash, fee).Error(0); err != nil {
		return err
	}
	return runHooks(ctx, hooks)
}

func (m *MockLedger) VoidPending(ctx context.Context, paymentHash string, hooks ...ledger_service.Hook) error {
	if err := m.Called(ctx, paymentHash).Error(0); err != nil {
		return err
	}
	return runHooks(ctx, hooks)
}

// balanceLedger keeps account balances in memory and rejects postings that
// take a liability account below zero, like the balance check of the journal.
type balanceLedger struct {
	mu       sync.Mutex
	balances map[string]shared.Satoshis
	pending  map[string]ledger.Transaction
}

func newBalanceLedger(balances map[string]shared.Satoshis) *balanceLedger {
	return &balanceLedger{balances: balances, pending: make(map[string]ledger.Transaction)}
}

func (l *balanceLedger) Post(ctx context.Context, txn ledger.Transaction, hooks ...ledger_service.Hook) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[txn.IdempotencyKey]; ok {
		return &ledger.DuplicateTransactionError{IdempotencyKey: txn.IdempotencyKey}
	}
	for _, leg := range txn.Legs {
		if ledger.IsLiability(leg.Account) && l.balances[leg.Account]+leg.Delta() < 0 {
			return &ledger.InsufficientBalanceError{Account: leg.Account}
		}
	}
	for _, leg := range txn.Legs {
		l.balances[leg.Account] += leg.Delta()
	}
	if txn.Legs[0].Pending {
		l.pending[txn.IdempotencyKey] = txn
	}
	return runHooks(ctx, hooks)
}

func (l *balanceLedger) ConfirmPending(ctx context.Context, paymentHash string, fee shared.Satoshis, hooks ...ledger_service.Hook) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.pending[paymentHash]
	if !ok {
		return &ledger.NoPendingEntriesError{PaymentHash: paymentHash}
	}
	delete(l.pending, paymentHash)
	if payer, reserved := ledger.FeeReservation(txn.Legs); reserved > fee {
		l.balances[payer] += reserved - fee
		l.balances[ledger.LndAccountingPath] -= reserved - fee
	}
	return runHooks(ctx, hooks)
}

func (l *balanceLedger) VoidPending(ctx context.Context, paymentHash string, hooks ...ledger_service.Hook) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.pending[paymentHash]
	if !ok {
		return &ledger.NoPendingEntriesError{PaymentHash: paymentHash}
	}
	delete(l.pending, paymentHash)
	for _, leg := range txn.Legs {
		l.balances[leg.Account] -= leg.Delta()
	}
	return runHooks(ctx, hooks)
}

func (l *balanceLedger) balance(account string) shared.Satoshis {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func runHooks(ctx context.Context, hooks []ledger_service.Hook) error {
	for _, hook := range hooks {
		if err := hook(ctx, nil); err != nil {
			return err
		}
	}
	return nil
}

type stubLock struct {
	mu       sync.Mutex
	held     bool
	acquired []string
	released int
}

func (l *stubLock) Acquire(_ context.Context, paymentHash string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, lockstore.ErrLockHeld
	}
	l.acquired = append(l.acquired, paymentHash)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
