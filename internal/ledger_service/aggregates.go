package ledger_service

import (
	"context"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

func (s *Service) balance(ctx context.Context, path string) (shared.Satoshis, error) {
	return s.accounts.Balance(ctx, path, shared.LedgerCurrency)
}

func (s *Service) AssetsBalance(ctx context.Context) (shared.Satoshis, error) {
	return s.balance(ctx, ledger.AssetsMainAccount)
}

func (s *Service) LiabilitiesBalance(ctx context.Context) (shared.Satoshis, error) {
	return s.balance(ctx, ledger.LiabilitiesMainAccount)
}

func (s *Service) LndBalance(ctx context.Context) (shared.Satoshis, error) {
	return s.balance(ctx, ledger.LndAccountingPath)
}

func (s *Service) LndEscrowBalance(ctx context.Context) (shared.Satoshis, error) {
	return s.balance(ctx, ledger.EscrowAccountingPath)
}

func (s *Service) BitcoindBalance(ctx context.Context) (shared.Satoshis, error) {
	return s.balance(ctx, ledger.BitcoindAccountingPath)
}

// BankOwnerBalance is zero when no bank owner wallet is configured.
func (s *Service) BankOwnerBalance(ctx context.Context) (shared.Satoshis, error) {
	if s.bankOwnerWalletID == "" {
		return 0, nil
	}
	return s.balance(ctx, ledger.CustomerPath(s.bankOwnerWalletID))
}

// Balances is the operator view of the books.
type Balances struct {
	Assets      shared.Satoshis `json:"assets"`
	Liabilities shared.Satoshis `json:"liabilities"`
	Lnd         shared.Satoshis `json:"lnd"`
	LndEscrow   shared.Satoshis `json:"lnd_escrow"`
	Bitcoind    shared.Satoshis `json:"bitcoind"`
	BankOwner   shared.Satoshis `json:"bank_owner"`
}

// Summary reads every aggregate balance.
func (s *Service) Summary(ctx context.Context) (Balances, error) {
	var (
		b   Balances
		err error
	)
	reads := []struct {
		dst  *shared.Satoshis
		read func(context.Context) (shared.Satoshis, error)
	}{
		{&b.Assets, s.AssetsBalance},
		{&b.Liabilities, s.LiabilitiesBalance},
		{&b.Lnd, s.LndBalance},
		{&b.LndEscrow, s.LndEscrowBalance},
		{&b.Bitcoind, s.BitcoindBalance},
		{&b.BankOwner, s.BankOwnerBalance},
	}
	for _, r := range reads {
		if *r.dst, err = r.read(ctx); err != nil {
			return Balances{}, err
		}
	}
	return b, nil
}
