package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestScanner(volumes VolumeReader) *ActiveUserScanner {
	s := NewActiveUserScanner(newTestLogger(), volumes, &config.WalletConfig{
		ActivityThreshold: 1000,
		ActivityWindow:    30 * 24 * time.Hour,
	})
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestActiveUserScanner_IsActive(t *testing.T) {
	since := fixedNow.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name   string
		volume ledger.Volume
		err    error
		want   bool
	}{
		{name: "busy wallet", volume: ledger.Volume{Outgoing: 50_000, Incoming: 100_000}, want: true},
		{name: "only incoming above threshold", volume: ledger.Volume{Incoming: 1001}, want: true},
		{name: "only outgoing above threshold", volume: ledger.Volume{Outgoing: 1001}, want: true},
		{name: "exactly at threshold", volume: ledger.Volume{Outgoing: 1000, Incoming: 1000}, want: false},
		{name: "idle wallet", volume: ledger.Volume{}, want: false},
		{name: "volume lookup fails", volume: ledger.Volume{}, err: errors.New("db down"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			volumes := new(MockVolumeReader)
			w := &wallet.Wallet{ID: "w1"}
			volumes.On("Volume", mock.Anything, w.AccountPath(), since).Return(tt.volume, tt.err)

			assert.Equal(t, tt.want, newTestScanner(volumes).IsActive(context.Background(), w))
			volumes.AssertExpectations(t)
		})
	}
}

func TestBalanceMessage(t *testing.T) {
	msg := BalanceMessage(wallet.Balance{Sats: 25_000, Fiat: decimal.RequireFromString("12.5")})
	assert.Equal(t, "Your balance is $12.50 (25000 sats)", msg)
}

func TestBalanceNotifier_Run(t *testing.T) {
	active := &wallet.Wallet{ID: "active"}
	idle := &wallet.Wallet{ID: "idle"}
	broken := &wallet.Wallet{ID: "broken"}

	t.Run("notifies only active wallets", func(t *testing.T) {
		volumes := new(MockVolumeReader)
		balances := new(MockBalanceReader)
		publisher := new(MockPublisher)

		volumes.On("Volume", mock.Anything, active.AccountPath(), mock.Anything).
			Return(ledger.Volume{Outgoing: 50_000, Incoming: 100_000}, nil)
		volumes.On("Volume", mock.Anything, idle.AccountPath(), mock.Anything).
			Return(ledger.Volume{}, nil)
		volumes.On("Volume", mock.Anything, broken.AccountPath(), mock.Anything).
			Return(ledger.Volume{Incoming: 5000}, nil)

		balances.On("BalanceSummary", mock.Anything, active).Return(wallet.Balance{
			WalletID: "active",
			Currency: shared.CurrencyBTC,
			Sats:     150_000,
			Fiat:     decimal.RequireFromString("90.1"),
		}, nil)
		balances.On("BalanceSummary", mock.Anything, broken).Return(wallet.Balance{}, errors.New("no price"))

		publisher.On("Publish", mock.Anything, "active", mock.MatchedBy(func(n wallet.Notification) bool {
			return n.WalletID == "active" && n.Body == "Your balance is $90.10 (150000 sats)"
		})).Return(nil).Once()

		notifier := NewBalanceNotifier(newTestLogger(), newTestPool(t, 4),
			&stubWallets{wallets: []*wallet.Wallet{active, idle, broken}},
			newTestScanner(volumes), balances, publisher, 2)

		require.NoError(t, notifier.Run(context.Background()))
		assert.Equal(t, "daily-balance-notification", notifier.Name())

		volumes.AssertExpectations(t)
		balances.AssertExpectations(t)
		publisher.AssertExpectations(t)
		balances.AssertNotCalled(t, "BalanceSummary", mock.Anything, idle)
	})

	t.Run("wallet source failure fails the run", func(t *testing.T) {
		volumes := new(MockVolumeReader)
		volumes.On("Volume", mock.Anything, idle.AccountPath(), mock.Anything).Return(ledger.Volume{}, nil)

		notifier := NewBalanceNotifier(newTestLogger(), newTestPool(t, 2),
			&stubWallets{wallets: []*wallet.Wallet{idle}, err: errors.New("cursor closed")},
			newTestScanner(volumes), new(MockBalanceReader), new(MockPublisher), 1)

		err := notifier.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cursor closed")
	})
}
