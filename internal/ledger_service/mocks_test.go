package ledger_service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/outbox"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) ApplyDelta(ctx context.Context, path, currency string, delta shared.Satoshis) error {
	args := m.Called(ctx, path, currency, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) Balance(ctx context.Context, path, currency string) (shared.Satoshis, error) {
	args := m.Called(ctx, path, currency)
	return args.Get(0).(shared.Satoshis), args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAccountRepository) WithTx(pgx.Tx) ledger.AccountRepository {
	return m
}

type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByAccount(ctx context.Context, account string, limit, offset int) ([]ledger.Entry, error) {
	args := m.Called(ctx, account, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) GetByPaymentHash(ctx context.Context, paymentHash string, pendingOnly bool) ([]ledger.Entry, error) {
	args := m.Called(ctx, paymentHash, pendingOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) ConfirmPending(ctx context.Context, paymentHash string) (int64, error) {
	args := m.Called(ctx, paymentHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepository) VoidTransaction(ctx context.Context, transactionID uuid.UUID) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

func (m *MockEntryRepository) PendingAccounts(ctx context.Context, after string, limit int) ([]string, error) {
	args := m.Called(ctx, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockEntryRepository) Volume(ctx context.Context, account string, since time.Time) (ledger.Volume, error) {
	args := m.Called(ctx, account, since)
	return args.Get(0).(ledger.Volume), args.Error(1)
}

func (m *MockEntryRepository) WithTx(pgx.Tx) ledger.EntryRepository {
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(pgx.Tx) outbox.Repository {
	return m
}

// fakeTxRunner runs fn without a database and records the outcome.
type fakeTxRunner struct {
	calls      int
	rolledBack bool
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.calls++
	err := fn(nil)
	f.rolledBack = err != nil
	return err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
