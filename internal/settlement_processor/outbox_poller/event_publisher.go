package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/outbox"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
)

// EventPublisher publishes one outbox message.
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// WalletEventPublisher sends wallet events to Kafka keyed by wallet id, so the
// events of one wallet stay ordered within a partition.
type WalletEventPublisher struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

func NewWalletEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) *WalletEventPublisher {
	return &WalletEventPublisher{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishEvent publishes the message and marks it processed. A payload that
// cannot be decoded is marked failed straight away.
func (p *WalletEventPublisher) PublishEvent(ctx context.Context, message *outbox.Message) error {
	event, err := message.WalletEvent()
	if err != nil {
		p.logger.Error("Failed to unmarshal wallet event from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "transaction_id", message.TransactionID, "wallet_id", event.WalletID)

	if err := p.producer.Publish(ctx, event.WalletID, event); err != nil {
		logger.Error("Failed to publish wallet event", "error", err)
		return fmt.Errorf("failed to publish wallet event %s: %w", event.EventID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("wallet event %s published, but failed to mark outbox %d as PROCESSED: %w", event.EventID, message.ID, err)
	}

	logger.Debug("Published wallet event", "type", event.Type, "amount", int64(event.Amount))
	return nil
}
