// Package consumer turns node and chain watcher messages into wallet
// settlements. A handler error leaves the offset uncommitted so Kafka
// redelivers the message; messages that can never succeed go to the DLQ.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
)

// rejectMessage publishes an unprocessable message to the DLQ. It returns nil
// when the message was parked so the offset can be committed.
func rejectMessage(
	ctx context.Context,
	logger *slog.Logger,
	dlq producers.DeadLetterPublisher,
	key, value []byte,
	reason string,
	cause error,
) error {
	logger.Error(reason, "error", cause, "message_key", string(key))

	if dlq != nil {
		dlqReason := fmt.Sprintf("%s: %s", reason, cause.Error())
		if dlqErr := dlq.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", reason, cause)
}
