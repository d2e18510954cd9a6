package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	MultipleAccountSliceSize = 100
)

// Account is an account read at Height. Account is nil when the address holds no data.
type Account struct {
	PubKey  solana.PublicKey
	Account *rpc.Account
	Height  uint64
}

func (a *Account) Exists() bool {
	return a != nil && a.Account != nil
}

// NewAccount wraps raw account data the way an rpc read returns it.
func NewAccount(pubkey solana.PublicKey, owner solana.PublicKey, data []byte, height uint64) *Account {
	return &Account{
		PubKey: pubkey,
		Account: &rpc.Account{
			Owner: owner,
			Data:  rpc.DataBytesOrJSONFromBytes(data),
		},
		Height: height,
	}
}

func (backend *Backend) Accounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*Account, error) {
	return backend.getAccountsFromChain(ctx, pubkeys)
}

func (backend *Backend) getAccountsFromChain(ctx context.Context, pubkeys []solana.PublicKey) ([]*Account, error) {
	accounts := make([]*Account, 0, len(pubkeys))
	index, end := 0, 0
	for index < len(pubkeys) {
		if end = index + MultipleAccountSliceSize; end > len(pubkeys) {
			end = len(pubkeys)
		}
		getMultipleAccountsRsp, err := backend.rpcClient.GetMultipleAccountsWithOpts(ctx, pubkeys[index:end],
			&rpc.GetMultipleAccountsOpts{Encoding: solana.EncodingBase64, Commitment: backend.commitment})
		if err != nil {
			return nil, err
		}
		if len(getMultipleAccountsRsp.Value) != end-index {
			return nil, fmt.Errorf("get accounts err, some account is missing")
		}
		for i, account := range getMultipleAccountsRsp.Value {
			accounts = append(accounts, &Account{
				PubKey:  pubkeys[index+i],
				Height:  getMultipleAccountsRsp.Context.Slot,
				Account: account,
			})
		}
		index = end
	}
	return accounts, nil
}

func (backend *Backend) Account(ctx context.Context, pubkey solana.PublicKey) (*Account, error) {
	return backend.getAccountFromChain(ctx, pubkey)
}

func (backend *Backend) getAccountFromChain(ctx context.Context, pubkey solana.PublicKey) (*Account, error) {
	response, err := backend.rpcClient.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: backend.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return &Account{PubKey: pubkey}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		PubKey:  pubkey,
		Height:  response.Context.Slot,
		Account: response.Value,
	}, nil
}

// Balance returns the lamports held by a wallet.
func (backend *Backend) Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	response, err := backend.rpcClient.GetBalance(ctx, pubkey, backend.commitment)
	if err != nil {
		return 0, err
	}
	return response.Value, nil
}

func (backend *Backend) TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, mint solana.PublicKey) ([]*Account, error) {
	response, err := backend.rpcClient.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: backend.commitment})
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(response.Value))
	for _, item := range response.Value {
		accounts = append(accounts, &Account{
			PubKey:  item.Pubkey,
			Account: &item.Account,
			Height:  response.Context.Slot,
		})
	}
	return accounts, nil
}
