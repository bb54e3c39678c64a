package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
)

// VolumeReader reads the ledger traffic of an account.
type VolumeReader interface {
	Volume(ctx context.Context, account string, since time.Time) (ledger.Volume, error)
}

// ActiveUserScanner decides which wallets had meaningful traffic recently.
type ActiveUserScanner struct {
	volumes   VolumeReader
	threshold shared.Satoshis
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewActiveUserScanner(logger *slog.Logger, volumes VolumeReader, cfg *config.WalletConfig) *ActiveUserScanner {
	return &ActiveUserScanner{
		volumes:   volumes,
		threshold: shared.Satoshis(cfg.ActivityThreshold),
		window:    cfg.ActivityWindow,
		now:       time.Now,
		logger:    logger.With("component", "active_user_scanner"),
	}
}

// IsActive is true when either direction moved more than the threshold within
// the window. A volume lookup failure counts as inactive.
func (s *ActiveUserScanner) IsActive(ctx context.Context, w *wallet.Wallet) bool {
	volume, err := s.volumes.Volume(ctx, w.AccountPath(), s.now().Add(-s.window))
	if err != nil {
		s.logger.Warn("Failed to read wallet volume, treating as inactive", "wallet_id", w.ID, "error", err)
		return false
	}
	return volume.Outgoing > s.threshold || volume.Incoming > s.threshold
}
