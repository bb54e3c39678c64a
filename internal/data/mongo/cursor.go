// Package mongo provides MongoDB implementations of the wallet stores: wallets,
// the wallet side of Lightning invoices and unconfirmed on-chain transactions.
package mongo

import (
	"context"
	"iter"

	"github.com/lnwallet-ledger/internal/domain/shared"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// stream runs find lazily: the query is only issued when the sequence is
// ranged, and every range issues a fresh query.
func stream[T any](ctx context.Context, coll *mongo.Collection, op string, filter any, opts ...*options.FindOptions) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		cursor, err := coll.Find(ctx, filter, opts...)
		if err != nil {
			yield(nil, &shared.UnknownRepositoryError{Op: op, Err: err})
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc T
			if err := cursor.Decode(&doc); err != nil {
				if !yield(nil, &shared.UnknownRepositoryError{Op: op, Err: err}) {
					return
				}
				continue
			}
			if !yield(&doc, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, &shared.UnknownRepositoryError{Op: op, Err: err})
		}
	}
}
