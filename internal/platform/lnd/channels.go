package lnd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// ChannelCapacity sums the capacity of every channel with the peer.
func (c *Client) ChannelCapacity(ctx context.Context, pubkey lightning.Pubkey) (shared.Satoshis, error) {
	peer, err := hex.DecodeString(string(pubkey))
	if err != nil {
		return 0, fmt.Errorf("invalid peer pubkey %q: %w", pubkey, err)
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	resp, err := c.lightning.ListChannels(ctx, &lnrpc.ListChannelsRequest{Peer: peer})
	if err != nil {
		return 0, serviceError("list channels", err)
	}

	var total shared.Satoshis
	for _, ch := range resp.Channels {
		total += shared.Satoshis(ch.Capacity)
	}
	return total, nil
}

// OpenChannel opens a channel and waits for the funding transaction to be
// broadcast. It does not wait for confirmations.
func (c *Client) OpenChannel(ctx context.Context, req lightning.OpenChannelRequest) (lightning.ChannelPoint, error) {
	node, err := hex.DecodeString(string(req.Pubkey))
	if err != nil {
		return lightning.ChannelPoint{}, fmt.Errorf("invalid node pubkey %q: %w", req.Pubkey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()

	point, err := c.lightning.OpenChannelSync(ctx, &lnrpc.OpenChannelRequest{
		NodePubkey:         node,
		LocalFundingAmount: int64(req.LocalFundingAmount),
		Private:            req.Private,
		MinConfs:           req.MinConfs,
		SpendUnconfirmed:   req.MinConfs == 0,
		SatPerVbyte:        req.SatPerVbyte,
	})
	if err != nil {
		return lightning.ChannelPoint{}, serviceError("open channel", err)
	}

	c.logger.Info("Opened channel",
		"peer", req.Pubkey,
		"funding_amount", req.LocalFundingAmount,
		"private", req.Private,
	)
	return lightning.ChannelPoint{FundingTxID: fundingTxID(point), OutputIndex: point.OutputIndex}, nil
}

// fundingTxID renders the txid the way block explorers show it; the bytes
// form is in internal (reversed) order.
func fundingTxID(point *lnrpc.ChannelPoint) string {
	if s := point.GetFundingTxidStr(); s != "" {
		return s
	}
	raw := point.GetFundingTxidBytes()
	reversed := make([]byte, len(raw))
	for i, b := range raw {
		reversed[len(raw)-1-i] = b
	}
	return hex.EncodeToString(reversed)
}
