// Package wallets creates wallet invoices in the wallet denomination and books
// everything a wallet receives: settled invoices and on-chain outputs.
package wallets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/shopspring/decimal"
)

// WalletBehavior is what differs between wallet denominations.
type WalletBehavior interface {
	Currency() shared.WalletCurrency
	AccountPath() string
	AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error)
}

// InvoiceRegistrar creates invoices on the node.
type InvoiceRegistrar interface {
	RegisterInvoice(ctx context.Context, args lightning.RegisterInvoiceArgs) (lightning.RegisteredInvoice, error)
}

// PriceSource returns the current spot price.
type PriceSource interface {
	Latest() (price.Snapshot, error)
}

// invoiceMaker registers an invoice on the node and records which wallet it
// belongs to. Both denominations share it.
type invoiceMaker struct {
	wallet   *wallet.Wallet
	node     InvoiceRegistrar
	invoices wallet.InvoiceRepository
	now      func() time.Time
	logger   *slog.Logger
}

func (m invoiceMaker) AccountPath() string {
	return m.wallet.AccountPath()
}

func (m invoiceMaker) register(
	ctx context.Context,
	memo string,
	sats shared.Satoshis,
	expiry time.Duration,
	fiat *wallet.Invoice,
) (lightning.Invoice, error) {
	args := lightning.RegisterInvoiceArgs{Description: memo, Amount: sats}
	if expiry > 0 {
		args.ExpiresAt = m.now().Add(expiry)
	}

	registered, err := m.node.RegisterInvoice(ctx, args)
	if err != nil {
		return lightning.Invoice{}, err
	}

	record := &wallet.Invoice{
		PaymentHash:   string(registered.Invoice.PaymentHash),
		WalletID:      m.wallet.ID,
		Pubkey:        string(registered.Pubkey),
		Currency:      m.wallet.Currency,
		Sats:          sats,
		Memo:          memo,
		SelfGenerated: true,
		CreatedAt:     m.now().UTC(),
	}
	if fiat != nil {
		record.FiatAmount = fiat.FiatAmount
		record.SatsPerUnit = fiat.SatsPerUnit
	}
	if err := m.invoices.Persist(ctx, record); err != nil {
		return lightning.Invoice{}, err
	}

	m.logger.Info("Created wallet invoice",
		"wallet_id", m.wallet.ID,
		"payment_hash", record.PaymentHash,
		"sats", int64(sats),
	)
	return registered.Invoice, nil
}

// BTCWallet takes invoice amounts in sats. A zero amount creates an
// amountless invoice.
type BTCWallet struct {
	invoiceMaker
	expiry time.Duration
}

func (w *BTCWallet) Currency() shared.WalletCurrency {
	return shared.CurrencyBTC
}

func (w *BTCWallet) AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error) {
	if req.Amount.IsNegative() {
		return lightning.Invoice{}, shared.ErrInvalidAmount
	}
	if !req.Amount.Equal(req.Amount.Truncate(0)) {
		return lightning.Invoice{}, fmt.Errorf("%w: sats amount must be a whole number", shared.ErrInvalidAmount)
	}
	return w.register(ctx, req.Memo, shared.Satoshis(req.Amount.IntPart()), w.expiry, nil)
}

// FiatWallet takes invoice amounts in fiat units and converts them with the
// spot price current at creation. The invoice keeps the fiat face value and
// the price used so the receipt can be audited.
type FiatWallet struct {
	invoiceMaker
	prices PriceSource
	expiry time.Duration
}

func (w *FiatWallet) Currency() shared.WalletCurrency {
	return shared.CurrencyFiat
}

func (w *FiatWallet) AddInvoice(ctx context.Context, req shared.AddInvoiceRequest) (lightning.Invoice, error) {
	if req.Amount.IsZero() {
		return lightning.Invoice{}, &shared.MissingAmountError{Reason: "fiat invoices need an amount"}
	}
	if req.Amount.IsNegative() {
		return lightning.Invoice{}, shared.ErrInvalidAmount
	}

	snapshot, err := w.prices.Latest()
	if err != nil {
		return lightning.Invoice{}, err
	}
	sats := ToSats(req.Amount, snapshot)
	if sats <= 0 {
		return lightning.Invoice{}, fmt.Errorf("%w: %s converts to %d sats", shared.ErrInvalidAmount, req.Amount, sats)
	}

	return w.register(ctx, req.Memo, sats, w.expiry, &wallet.Invoice{
		FiatAmount:  req.Amount.String(),
		SatsPerUnit: snapshot.SpotSatsPerUnit.String(),
	})
}

// ToSats converts a fiat amount with snapshot, rounding half away from zero.
func ToSats(fiat decimal.Decimal, snapshot price.Snapshot) shared.Satoshis {
	return shared.Satoshis(snapshot.SatsFor(fiat))
}
