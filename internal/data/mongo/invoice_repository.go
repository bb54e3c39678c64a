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
	// InvoicesCollectionName is the name of the wallet invoices collection in MongoDB
	InvoicesCollectionName = "wallet_invoices"
)

// InvoiceRepository implements the wallet.InvoiceRepository interface for MongoDB
type InvoiceRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewInvoiceRepository(logger *slog.Logger, db *mongo.Database) wallet.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *InvoiceRepository) collection() *mongo.Collection {
	return r.db.Collection(InvoicesCollectionName)
}

// Persist stores the invoice keyed by payment hash.
func (r *InvoiceRepository) Persist(ctx context.Context, invoice *wallet.Invoice) error {
	_, err := r.collection().InsertOne(ctx, invoice)
	if err != nil {
		r.logger.Error("Failed to persist wallet invoice",
			"payment_hash", invoice.PaymentHash,
			"wallet_id", invoice.WalletID,
			"error", err)
		return &shared.UnknownRepositoryError{Op: "persist wallet invoice", Err: err}
	}

	return nil
}

func (r *InvoiceRepository) FindByPaymentHash(ctx context.Context, paymentHash string) (*wallet.Invoice, error) {
	var invoice wallet.Invoice
	err := r.collection().FindOne(ctx, bson.M{"_id": paymentHash}).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &wallet.CouldNotFindInvoiceError{PaymentHash: paymentHash}
		}
		r.logger.Error("Failed to get wallet invoice", "payment_hash", paymentHash, "error", err)
		return nil, &shared.UnknownRepositoryError{Op: "find wallet invoice", Err: err}
	}

	return &invoice, nil
}

// MarkAsPaid flags the invoice as settled on the ledger.
func (r *InvoiceRepository) MarkAsPaid(ctx context.Context, paymentHash string) error {
	result, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": paymentHash},
		bson.M{"$set": bson.M{"paid": true}},
	)
	if err != nil {
		r.logger.Error("Failed to mark wallet invoice as paid", "payment_hash", paymentHash, "error", err)
		return &shared.UnknownRepositoryError{Op: "mark wallet invoice paid", Err: err}
	}
	if result.MatchedCount == 0 {
		return &wallet.CouldNotFindInvoiceError{PaymentHash: paymentHash}
	}

	return nil
}

// ListUnpaid streams unpaid invoices, oldest first.
func (r *InvoiceRepository) ListUnpaid(ctx context.Context) iter.Seq2[*wallet.Invoice, error] {
	return stream[wallet.Invoice](ctx, r.collection(), "list unpaid invoices", bson.M{"paid": false},
		options.Find().SetSort(bson.M{"created_at": 1}))
}
