package mongo

import (
	"context"

	"github.com/lnwallet-ledger/internal/platform/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Indexes lists the secondary indexes of every wallet collection.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		WalletsCollectionName: {
			{Keys: bson.D{{Key: "onchain.address", Value: 1}}},
		},
		InvoicesCollectionName: {
			{Keys: bson.D{{Key: "paid", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "wallet_id", Value: 1}}},
		},
		PendingOnChainCollectionName: {
			{Keys: bson.D{{Key: "outputs.address", Value: 1}}},
		},
	}
}

// EnsureIndexes creates the indexes returned by Indexes.
func EnsureIndexes(ctx context.Context, db *persistence.MongoDB) error {
	for collection, models := range Indexes() {
		if err := db.EnsureIndexes(ctx, collection, models); err != nil {
			return err
		}
	}
	return nil
}
