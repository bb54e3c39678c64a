package workers

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/stretchr/testify/mock"
)

type MockVolumeReader struct {
	mock.Mock
}

func (m *MockVolumeReader) Volume(ctx context.Context, account string, since time.Time) (ledger.Volume, error) {
	args := m.Called(ctx, account, since)
	return args.Get(0).(ledger.Volume), args.Error(1)
}

type MockBalanceReader struct {
	mock.Mock
}

func (m *MockBalanceReader) BalanceSummary(ctx context.Context, w *wallet.Wallet) (wallet.Balance, error) {
	args := m.Called(ctx, w)
	return args.Get(0).(wallet.Balance), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// stubWallets serves a fixed wallet list; only All is exercised here.
type stubWallets struct {
	wallet.Repository
	wallets []*wallet.Wallet
	err     error
}

func (s *stubWallets) All(context.Context) iter.Seq2[*wallet.Wallet, error] {
	return func(yield func(*wallet.Wallet, error) bool) {
		for _, w := range s.wallets {
			if !yield(w, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
