package mongo

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// WalletsCollectionName is the name of the wallets collection in MongoDB
	WalletsCollectionName = "wallets"
)

// WalletRepository implements the wallet.Repository interface for MongoDB
type WalletRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewWalletRepository creates a new MongoDB wallet repository
func NewWalletRepository(logger *slog.Logger, db *mongo.Database) wallet.Repository {
	return &WalletRepository{
		db:     db,
		logger: logger,
	}
}

func (r *WalletRepository) collection() *mongo.Collection {
	return r.db.Collection(WalletsCollectionName)
}

// FindByID returns CouldNotFindWalletFromIDError when no wallet has the id.
func (r *WalletRepository) FindByID(ctx context.Context, walletID string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.collection().FindOne(ctx, bson.M{"_id": walletID}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &wallet.CouldNotFindWalletFromIDError{WalletID: walletID}
		}
		r.logger.Error("Failed to get wallet", "wallet_id", walletID, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "find wallet by id", Err: err}
	}

	return &w, nil
}

// FindByAddress returns the wallet owning an on-chain receive address.
func (r *WalletRepository) FindByAddress(ctx context.Context, address string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.collection().FindOne(ctx, bson.M{"onchain.address": address}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &wallet.CouldNotFindWalletFromOnChainAddressError{Address: address}
		}
		r.logger.Error("Failed to get wallet by address", "address", address, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "find wallet by address", Err: err}
	}

	return &w, nil
}

// ListByAddresses returns every wallet owning one of addresses.
func (r *WalletRepository) ListByAddresses(ctx context.Context, addresses []string) ([]*wallet.Wallet, error) {
	cursor, err := r.collection().Find(ctx, bson.M{"onchain.address": bson.M{"$in": addresses}})
	if err != nil {
		r.logger.Error("Failed to list wallets by addresses", "count", len(addresses), "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "list wallets by addresses", Err: err}
	}
	defer cursor.Close(ctx)

	var wallets []*wallet.Wallet
	if err := cursor.All(ctx, &wallets); err != nil {
		r.logger.Error("Failed to decode wallets", "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "decode wallets", Err: err}
	}
	if len(wallets) == 0 {
		return nil, &wallet.CouldNotFindWalletFromOnChainAddressesError{}
	}

	return wallets, nil
}

// All streams every wallet ordered by id.
func (r *WalletRepository) All(ctx context.Context) iter.Seq2[*wallet.Wallet, error] {
	return stream[wallet.Wallet](ctx, r.collection(), "list wallets", bson.M{},
		options.Find().SetSort(bson.M{"_id": 1}))
}
