package app

import (
	"context"

	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
)

type lamports interface {
	Balance(ctx context.Context, wallet solana.PublicKey) (uint64, error)
}

type tokenBalances interface {
	GetBalance(ctx context.Context, key solana.PublicKey) (uint64, error)
}

// walletBalances reads lamports for the native mint and the associated token
// account for every other mint.
type walletBalances struct {
	system lamports
	token  tokenBalances
}

func (b *walletBalances) Balance(ctx context.Context, wallet solana.PublicKey, mint solana.PublicKey) (uint64, error) {
	if program.IsNative(mint) {
		return b.system.Balance(ctx, wallet)
	}
	account, err := spltoken.AssociatedAddress(wallet, mint)
	if err != nil {
		return 0, err
	}
	return b.token.GetBalance(ctx, account)
}
