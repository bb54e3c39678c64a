package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
	"github.com/lnwallet-ledger/internal/wallets"
)

// OnChainReceiver records incoming on-chain transactions.
type OnChainReceiver interface {
	IncomingOnChain(ctx context.Context, tx wallets.OnChainTransaction) error
}

// OnChainHandler handles messages from the chain watcher.
type OnChainHandler struct {
	receiver OnChainReceiver
	dlq      producers.DeadLetterPublisher
	logger   *slog.Logger
}

func NewOnChainHandler(logger *slog.Logger, receiver OnChainReceiver, dlq producers.DeadLetterPublisher) *OnChainHandler {
	return &OnChainHandler{
		receiver: receiver,
		dlq:      dlq,
		logger:   logger.With("handler", "onchain"),
	}
}

func (h *OnChainHandler) HandleMessage(ctx context.Context, key, value []byte) error {
	var tx wallets.OnChainTransaction
	if err := json.Unmarshal(value, &tx); err != nil {
		return rejectMessage(ctx, h.logger, h.dlq, key, value, "Failed to unmarshal on-chain transaction", err)
	}
	if tx.TxID == "" || len(tx.Outputs) == 0 {
		return rejectMessage(ctx, h.logger, h.dlq, key, value, "Invalid on-chain transaction", errors.New("tx_id and outputs are required"))
	}

	if err := h.receiver.IncomingOnChain(ctx, tx); err != nil {
		h.logger.Error("Failed to record on-chain transaction", "tx_id", tx.TxID, "error", err)
		return fmt.Errorf("recording on-chain transaction %s failed: %w", tx.TxID, err)
	}

	h.logger.Debug("Processed on-chain transaction", "tx_id", tx.TxID, "confirmations", tx.Confirmations)
	return nil
}
