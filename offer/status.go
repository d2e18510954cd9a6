package offer

import (
	"context"
	"errors"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/metadata"
	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
)

type Chain interface {
	Account(ctx context.Context, pubkey solana.PublicKey) (*backend.Account, error)
	Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) ([]*backend.Account, error)
}

// CheckDelegate reports whether account still delegates the offer described by p to
// authority. authority must be derived from the same p.
func CheckDelegate(p Params, authority solana.PublicKey, account *spltoken.UserLayout) bool {
	if account == nil || !account.HasDelegate() {
		return false
	}
	return account.Delegate.Equals(authority) && account.DelegatedAmount >= p.SizeA
}

type Status struct {
	Params    Params
	Authority solana.PublicKey
	BumpSeed  uint8

	MakerAccount       solana.PublicKey
	MakerAccountExists bool
	MakerBalance       uint64
	HasDelegate        bool
	HasValidDelegate   bool
	DelegatedAmount    uint64

	Taker           solana.PublicKey
	TakerBalance    uint64
	TakerSufficient bool

	Royalties []metadata.Royalty
	Height    uint64
}

// Inspect reads the maker's mint A account and, when taker is set, the taker's
// balance of mint B.
func Inspect(ctx context.Context, chain Chain, programID solana.PublicKey, p Params, taker solana.PublicKey) (*Status, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	authority, bump, err := DeriveAuthority(programID, p)
	if err != nil {
		return nil, err
	}
	makerAccount, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	if err != nil {
		return nil, err
	}
	status := &Status{
		Params:       p,
		Authority:    authority,
		BumpSeed:     bump,
		MakerAccount: makerAccount,
		Taker:        taker,
	}
	account, err := chain.Account(ctx, makerAccount)
	if err != nil {
		return nil, err
	}
	status.Height = account.Height
	if account.Exists() {
		user, err := spltoken.ParseUser(account)
		if err != nil {
			return nil, err
		}
		status.MakerAccountExists = true
		status.MakerBalance = user.Amount
		status.HasDelegate = user.HasDelegate()
		status.DelegatedAmount = user.DelegatedAmount
		status.HasValidDelegate = CheckDelegate(p, authority, &user)
	}
	if !taker.IsZero() {
		status.TakerBalance, err = balanceOf(ctx, chain, taker, p.MintB)
		if err != nil {
			return nil, err
		}
		status.TakerSufficient = status.TakerBalance >= p.SizeB
	}
	return status, nil
}

// balanceOf is the lamports of wallet for the native mint and the amount held in the
// wallet's associated account otherwise. A missing account holds nothing.
func balanceOf(ctx context.Context, chain Chain, wallet solana.PublicKey, mint solana.PublicKey) (uint64, error) {
	if program.IsNative(mint) {
		return chain.Balance(ctx, wallet)
	}
	address, err := spltoken.AssociatedAddress(wallet, mint)
	if err != nil {
		return 0, err
	}
	account, err := chain.Account(ctx, address)
	if err != nil {
		return 0, err
	}
	user, err := spltoken.ParseUser(account)
	if errors.Is(err, spltoken.ErrAccountMissing) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.Amount, nil
}
