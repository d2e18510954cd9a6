package spltoken

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrAccountMissing = errors.New("account is missing")

type Fetcher interface {
	Accounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*backend.Account, error)
}

type Program struct {
	fetcher Fetcher
	log     zerolog.Logger
	id      solana.PublicKey
	lock    sync.RWMutex
	tokens  map[solana.PublicKey]*KeyedToken
	users   map[solana.PublicKey]*KeyedUser
}

func NewProgram(fetcher Fetcher, log zerolog.Logger) *Program {
	p := &Program{
		fetcher: fetcher,
		log:     log,
		id:      program.Token,
		tokens:  make(map[solana.PublicKey]*KeyedToken),
		users:   make(map[solana.PublicKey]*KeyedUser),
	}
	return p
}

func (p *Program) Name() string {
	return "spl token"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) RetrieveUsers(ctx context.Context, pubkeys []solana.PublicKey) error {
	accounts, err := p.fetcher.Accounts(ctx, pubkeys)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if !account.Exists() {
			p.evictUser(account.PubKey, account.Height)
			continue
		}
		user, err := ParseUser(account)
		if err != nil {
			p.log.Warn().Err(err).Str("account", account.PubKey.String()).Msg("parse user")
			continue
		}
		p.upsertUser(account.PubKey, account.Height, user)
	}
	return nil
}

func (p *Program) GetUser(key solana.PublicKey) *KeyedUser {
	p.lock.RLock()
	defer p.lock.RUnlock()
	user, ok := p.users[key]
	if !ok {
		return nil
	}
	c := *user
	return &c
}

func (p *Program) RetrieveTokens(ctx context.Context, pubkeys []solana.PublicKey) error {
	accounts, err := p.fetcher.Accounts(ctx, pubkeys)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		token, err := ParseToken(account)
		if err != nil {
			p.log.Warn().Err(err).Str("account", account.PubKey.String()).Msg("parse token")
			continue
		}
		p.upsertToken(account.PubKey, account.Height, token)
	}
	return nil
}

func (p *Program) GetToken(key solana.PublicKey) *KeyedToken {
	p.lock.RLock()
	defer p.lock.RUnlock()
	token, ok := p.tokens[key]
	if !ok {
		return nil
	}
	c := *token
	return &c
}

// ParseUser decodes a token account owned by the token program.
func ParseUser(account *backend.Account) (UserLayout, error) {
	user := UserLayout{}
	if !account.Exists() {
		return user, fmt.Errorf("account(%s): %w", account.PubKey, ErrAccountMissing)
	}
	if account.Account.Owner != program.Token {
		return user, fmt.Errorf("account(%s) is not spl token program account, expected: %s, actual: %s", account.PubKey, program.Token, account.Account.Owner)
	}
	userData := account.Account.Data.GetBinary()
	if len(userData) != TokenLayoutSize {
		return user, fmt.Errorf("spl token account(%s) data size is not valid, expected: %d, actual: %d", account.PubKey, TokenLayoutSize, len(userData))
	}
	buf := bytes.NewReader(userData)
	err := binary.Read(buf, binary.LittleEndian, &user)
	if err != nil {
		return user, fmt.Errorf("spl token account(%s) data is not valid, err: %w", account.PubKey, err)
	}
	return user, nil
}

// ParseToken decodes a mint owned by the token program.
func ParseToken(account *backend.Account) (TokenLayout, error) {
	token := TokenLayout{}
	if !account.Exists() {
		return token, fmt.Errorf("account(%s): %w", account.PubKey, ErrAccountMissing)
	}
	if account.Account.Owner != program.Token {
		return token, fmt.Errorf("account(%s) is not spl token program account", account.PubKey)
	}
	tokenData := account.Account.Data.GetBinary()
	if len(tokenData) != MintLayoutSize {
		return token, fmt.Errorf("account(%s) data size is not valid", account.PubKey)
	}
	buf := bytes.NewReader(tokenData)
	err := binary.Read(buf, binary.LittleEndian, &token)
	if err != nil {
		return token, fmt.Errorf("account(%s) data is not valid, err: %w", account.PubKey, err)
	}
	return token, nil
}

func (p *Program) upsertUser(pubkey solana.PublicKey, height uint64, account UserLayout) *KeyedUser {
	p.lock.Lock()
	defer p.lock.Unlock()
	keyedUser, ok := p.users[pubkey]
	if !ok {
		keyedUser = &KeyedUser{
			Key:        pubkey,
			Height:     height,
			UserLayout: account,
		}
		p.users[pubkey] = keyedUser
	} else if height >= keyedUser.Height {
		keyedUser.UserLayout = account
		keyedUser.Height = height
	}
	return keyedUser
}

// evictUser forgets a token account that no longer exists at height.
func (p *Program) evictUser(pubkey solana.PublicKey, height uint64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if keyedUser, ok := p.users[pubkey]; ok && height >= keyedUser.Height {
		delete(p.users, pubkey)
	}
}

func (p *Program) upsertToken(pubkey solana.PublicKey, height uint64, mint TokenLayout) *KeyedToken {
	p.lock.Lock()
	defer p.lock.Unlock()
	keyedMint, ok := p.tokens[pubkey]
	if !ok {
		keyedMint = &KeyedToken{
			Key:         pubkey,
			Height:      height,
			TokenLayout: mint,
		}
		p.tokens[pubkey] = keyedMint
	} else if height >= keyedMint.Height {
		keyedMint.TokenLayout = mint
		keyedMint.Height = height
	}
	return keyedMint
}

func (p *Program) GetBalance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	balances, err := p.GetBalances(ctx, []solana.PublicKey{key})
	if err != nil {
		return 0, err
	}
	return balances[0], nil
}

func (p *Program) GetBalances(ctx context.Context, keys []solana.PublicKey) ([]uint64, error) {
	if err := p.RetrieveUsers(ctx, keys); err != nil {
		return nil, err
	}
	balances := make([]uint64, 0, len(keys))
	for _, key := range keys {
		user := p.GetUser(key)
		if user == nil {
			return nil, fmt.Errorf("account(%s): %w", key, ErrAccountMissing)
		}
		balances = append(balances, user.Amount)
	}
	return balances, nil
}

// Decimals returns the decimals of mint, fetching it once.
func (p *Program) Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if program.IsNative(mint) {
		return 9, nil
	}
	if token := p.GetToken(mint); token != nil {
		return token.Decimals, nil
	}
	if err := p.RetrieveTokens(ctx, []solana.PublicKey{mint}); err != nil {
		return 0, err
	}
	token := p.GetToken(mint)
	if token == nil {
		return 0, fmt.Errorf("mint(%s): %w", mint, ErrAccountMissing)
	}
	return token.Decimals, nil
}

func AmountUi(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}
