package wallets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/wallet"
)

// OnChainTransaction is an incoming transaction reported by the chain watcher.
// Confirmations is zero while the transaction sits in the mempool.
type OnChainTransaction struct {
	TxID          string            `json:"tx_id"`
	Confirmations int               `json:"confirmations"`
	Outputs       []ledger.TxOutput `json:"outputs"`
	SeenAt        time.Time         `json:"seen_at"`
}

// IncomingOnChain records an on-chain transaction paying wallet addresses.
// Unconfirmed transactions are kept as pending for the history; once
// confirmed, every output paying a wallet is credited exactly once and the
// pending record is removed.
func (m *Manager) IncomingOnChain(ctx context.Context, tx OnChainTransaction) error {
	if tx.TxID == "" {
		return errors.New("on-chain transaction without id")
	}
	if tx.Confirmations <= 0 {
		return m.storePending(ctx, tx)
	}

	logger := m.logger.With("tx_id", tx.TxID)
	credited := 0
	for _, out := range tx.Outputs {
		w, err := m.wallets.FindByAddress(ctx, out.Address)
		if errors.Is(err, &wallet.CouldNotFindWalletFromOnChainAddressError{}) {
			continue
		}
		if err != nil {
			return err
		}

		txn := ledger.OnChainReceipt(w.AccountPath(), out.Sats, OnChainKey(tx.TxID, out.Address), ledger.Metadata{
			Addresses: []string{out.Address},
			TxHash:    tx.TxID,
		})
		err = m.ledger.Post(ctx, txn)
		switch {
		case err == nil:
			credited++
		case errors.Is(err, &ledger.DuplicateTransactionError{}):
			logger.Info("On-chain output already credited", "address", out.Address)
		default:
			return fmt.Errorf("failed to credit output %s of %s: %w", out.Address, tx.TxID, err)
		}
	}

	if err := m.pending.Delete(ctx, tx.TxID); err != nil {
		return err
	}
	logger.Info("Processed confirmed on-chain transaction", "outputs", len(tx.Outputs), "credited", credited)
	return nil
}

func (m *Manager) storePending(ctx context.Context, tx OnChainTransaction) error {
	addresses := make([]string, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		addresses = append(addresses, out.Address)
	}

	owners, err := m.wallets.ListByAddresses(ctx, addresses)
	if errors.Is(err, &wallet.CouldNotFindWalletFromOnChainAddressesError{}) {
		return nil
	}
	if err != nil {
		return err
	}

	owned := make(map[string]bool)
	for _, w := range owners {
		for _, address := range w.Addresses() {
			owned[address] = true
		}
	}
	var outputs []ledger.TxOutput
	for _, out := range tx.Outputs {
		if owned[out.Address] {
			outputs = append(outputs, out)
		}
	}
	if len(outputs) == 0 {
		return nil
	}

	seenAt := tx.SeenAt
	if seenAt.IsZero() {
		seenAt = m.now().UTC()
	}
	if err := m.pending.Upsert(ctx, ledger.SubmittedTransaction{ID: tx.TxID, CreatedAt: seenAt, Outputs: outputs}); err != nil {
		return err
	}
	m.logger.Info("Stored pending on-chain transaction", "tx_id", tx.TxID, "outputs", len(outputs))
	return nil
}
