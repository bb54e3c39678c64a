package wallet

import (
	"context"
	"iter"

	"github.com/lnwallet-ledger/internal/domain/ledger"
)

// Repository is the wallet store. It holds no business logic.
type Repository interface {
	FindByID(ctx context.Context, walletID string) (*Wallet, error)
	FindByAddress(ctx context.Context, address string) (*Wallet, error)
	ListByAddresses(ctx context.Context, addresses []string) ([]*Wallet, error)
	// All streams every wallet. The sequence is lazy and can be ranged again.
	All(ctx context.Context) iter.Seq2[*Wallet, error]
}

// InvoiceRepository stores the wallet side of Lightning invoices.
type InvoiceRepository interface {
	Persist(ctx context.Context, invoice *Invoice) error
	FindByPaymentHash(ctx context.Context, paymentHash string) (*Invoice, error)
	MarkAsPaid(ctx context.Context, paymentHash string) error
	ListUnpaid(ctx context.Context) iter.Seq2[*Invoice, error]
}

// PendingOnChainRepository stores unconfirmed incoming on-chain transactions.
type PendingOnChainRepository interface {
	Upsert(ctx context.Context, tx ledger.SubmittedTransaction) error
	ListByAddresses(ctx context.Context, addresses []string) ([]ledger.SubmittedTransaction, error)
	Delete(ctx context.Context, txID string) error
}

// CouldNotFindWalletFromIDError is returned when no wallet has the id.
type CouldNotFindWalletFromIDError struct {
	WalletID string
}

func (e *CouldNotFindWalletFromIDError) Error() string {
	return "could not find wallet with id " + e.WalletID
}

func (e *CouldNotFindWalletFromIDError) Is(target error) bool {
	_, ok := target.(*CouldNotFindWalletFromIDError)
	return ok
}

// CouldNotFindWalletFromOnChainAddressError is returned when no wallet owns the address.
type CouldNotFindWalletFromOnChainAddressError struct {
	Address string
}

func (e *CouldNotFindWalletFromOnChainAddressError) Error() string {
	return "could not find wallet for on-chain address " + e.Address
}

func (e *CouldNotFindWalletFromOnChainAddressError) Is(target error) bool {
	_, ok := target.(*CouldNotFindWalletFromOnChainAddressError)
	return ok
}

// CouldNotFindWalletFromOnChainAddressesError is returned when none of the
// addresses belongs to a wallet.
type CouldNotFindWalletFromOnChainAddressesError struct{}

func (e *CouldNotFindWalletFromOnChainAddressesError) Error() string {
	return "could not find wallets for on-chain addresses"
}

func (e *CouldNotFindWalletFromOnChainAddressesError) Is(target error) bool {
	_, ok := target.(*CouldNotFindWalletFromOnChainAddressesError)
	return ok
}

// CouldNotFindInvoiceError is returned when the invoice was not created by a wallet.
type CouldNotFindInvoiceError struct {
	PaymentHash string
}

func (e *CouldNotFindInvoiceError) Error() string {
	return "could not find wallet invoice " + e.PaymentHash
}

func (e *CouldNotFindInvoiceError) Is(target error) bool {
	_, ok := target.(*CouldNotFindInvoiceError)
	return ok
}
