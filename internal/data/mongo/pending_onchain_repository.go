package mongo

import (
	"context"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// PendingOnChainCollectionName holds mempool transactions paying wallet addresses
	PendingOnChainCollectionName = "pending_onchain_transactions"
)

// PendingOnChainRepository implements wallet.PendingOnChainRepository for MongoDB
type PendingOnChainRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewPendingOnChainRepository(logger *slog.Logger, db *mongo.Database) wallet.PendingOnChainRepository {
	return &PendingOnChainRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PendingOnChainRepository) collection() *mongo.Collection {
	return r.db.Collection(PendingOnChainCollectionName)
}

// Upsert stores tx, replacing an earlier sighting of the same transaction.
func (r *PendingOnChainRepository) Upsert(ctx context.Context, tx ledger.SubmittedTransaction) error {
	_, err := r.collection().ReplaceOne(ctx, bson.M{"_id": tx.ID}, tx, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to upsert pending on-chain transaction", "tx_id", tx.ID, "error", err)
		return &shared.UnknownRepositoryError{Op: "upsert pending onchain", Err: err}
	}

	return nil
}

// ListByAddresses returns pending transactions with an output paying one of addresses.
func (r *PendingOnChainRepository) ListByAddresses(ctx context.Context, addresses []string) ([]ledger.SubmittedTransaction, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection().Find(ctx, bson.M{"outputs.address": bson.M{"$in": addresses}}, opts)
	if err != nil {
		r.logger.Error("Failed to list pending on-chain transactions", "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "list pending onchain", Err: err}
	}
	defer cursor.Close(ctx)

	var txs []ledger.SubmittedTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		r.logger.Error("Failed to decode pending on-chain transactions", "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "decode pending onchain", Err: err}
	}

	return txs, nil
}

// Delete removes a transaction once it is confirmed. Deleting an unknown id is not an error.
func (r *PendingOnChainRepository) Delete(ctx context.Context, txID string) error {
	if _, err := r.collection().DeleteOne(ctx, bson.M{"_id": txID}); err != nil {
		r.logger.Error("Failed to delete pending on-chain transaction", "tx_id", txID, "error", err)
		return &shared.UnknownRepositoryError{Op: "delete pending onchain", Err: err}
	}

	return nil
}
