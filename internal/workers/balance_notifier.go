package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
)

// BalanceReader returns a wallet balance with its fiat equivalent.
type BalanceReader interface {
	BalanceSummary(ctx context.Context, w *wallet.Wallet) (wallet.Balance, error)
}

// BalanceNotifier sends every active wallet its current balance.
type BalanceNotifier struct {
	pool        *Pool
	wallets     wallet.Repository
	scanner     *ActiveUserScanner
	balances    BalanceReader
	publisher   producers.MessagePublisher
	concurrency int
	logger      *slog.Logger
}

func NewBalanceNotifier(
	logger *slog.Logger,
	pool *Pool,
	wallets wallet.Repository,
	scanner *ActiveUserScanner,
	balances BalanceReader,
	publisher producers.MessagePublisher,
	concurrency int,
) *BalanceNotifier {
	return &BalanceNotifier{
		pool:        pool,
		wallets:     wallets,
		scanner:     scanner,
		balances:    balances,
		publisher:   publisher,
		concurrency: concurrency,
		logger:      logger.With("component", "balance_notifier"),
	}
}

func (n *BalanceNotifier) Name() string {
	return "daily-balance-notification"
}

// Run scans every wallet. Failures of single wallets are logged; only a
// failure of the wallet source fails the run.
func (n *BalanceNotifier) Run(ctx context.Context) error {
	report := Run(ctx, n.pool, n.logger, n.wallets.All(ctx), n.notify, n.concurrency)
	n.logger.Info("Balance notification run finished",
		"processed", report.Processed,
		"failed", report.Failed,
	)
	if report.SourceErr != nil {
		return fmt.Errorf("balance notification scan aborted: %w", report.SourceErr)
	}
	return nil
}

func (n *BalanceNotifier) notify(ctx context.Context, w *wallet.Wallet) error {
	if !n.scanner.IsActive(ctx, w) {
		return nil
	}

	balance, err := n.balances.BalanceSummary(ctx, w)
	if err != nil {
		return fmt.Errorf("failed to read balance of wallet %s: %w", w.ID, err)
	}

	notification := wallet.Notification{
		WalletID:  w.ID,
		Title:     "Balance update",
		Body:      BalanceMessage(balance),
		CreatedAt: time.Now().UTC(),
	}
	if err := n.publisher.Publish(ctx, w.ID, notification); err != nil {
		return fmt.Errorf("failed to publish balance notification for wallet %s: %w", w.ID, err)
	}
	return nil
}

// BalanceMessage renders the notification body.
func BalanceMessage(b wallet.Balance) string {
	return fmt.Sprintf("Your balance is $%s (%d sats)", b.Fiat.StringFixed(2), b.Sats)
}
