package payments

import (
	"context"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// ChannelTiers are the channel sizes opened toward unreachable destinations.
var ChannelTiers = []shared.Satoshis{50_000, 1_000_000, 5_000_000, 16_000_000}

const fundingSatPerVbyte = 1

// ChannelOpener opens a private channel large enough for the payment that
// could not be routed.
type ChannelOpener struct {
	channels lightning.ChannelManager
	logger   *slog.Logger
}

func NewChannelOpener(logger *slog.Logger, channels lightning.ChannelManager) *ChannelOpener {
	return &ChannelOpener{channels: channels, logger: logger.With("component", "channel_opener")}
}

// ChannelSize is the first tier strictly above both the existing capacity to
// the peer and the attempted amount, or the largest tier.
func ChannelSize(existing, attempt shared.Satoshis) shared.Satoshis {
	floor := max(existing, attempt)
	for _, tier := range ChannelTiers {
		if tier > floor {
			return tier
		}
	}
	return ChannelTiers[len(ChannelTiers)-1]
}

// OpenFor opens a channel to destination sized for amount.
func (o *ChannelOpener) OpenFor(ctx context.Context, destination lightning.Pubkey, amount shared.Satoshis) (lightning.ChannelPoint, error) {
	existing, err := o.channels.ChannelCapacity(ctx, destination)
	if err != nil {
		return lightning.ChannelPoint{}, err
	}

	size := ChannelSize(existing, amount)
	point, err := o.channels.OpenChannel(ctx, lightning.OpenChannelRequest{
		Pubkey:             destination,
		LocalFundingAmount: size,
		Private:            true,
		MinConfs:           0,
		SatPerVbyte:        fundingSatPerVbyte,
	})
	if err != nil {
		return lightning.ChannelPoint{}, err
	}

	o.logger.Info("Opened channel",
		"destination", string(destination),
		"size", int64(size),
		"existing_capacity", int64(existing),
		"funding_txid", point.FundingTxID,
	)
	return point, nil
}
