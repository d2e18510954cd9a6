package metadata

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/program"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, m *Metadata) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(m))
	return buf.Bytes()
}

func newMetadata(mint solana.PublicKey, creators ...Creator) *Metadata {
	m := &Metadata{
		Key:             KeyMetadataV1,
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            mint,
		Data: Data{
			Name:                 "Degen Ape #1\x00\x00\x00\x00",
			Symbol:               "DAPE\x00\x00",
			Uri:                  "https://arweave.net/x\x00\x00\x00",
			SellerFeeBasisPoints: 500,
		},
		IsMutable: true,
	}
	if creators != nil {
		m.Data.Creators = &creators
	}
	return m
}

type fakeFetcher struct {
	accounts map[solana.PublicKey]*backend.Account
	calls    int
	err      error
}

func (f *fakeFetcher) Account(ctx context.Context, pubkey solana.PublicKey) (*backend.Account, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if account, ok := f.accounts[pubkey]; ok {
		return account, nil
	}
	return &backend.Account{PubKey: pubkey}, nil
}

func TestDecode(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	creator := Creator{Address: solana.NewWallet().PublicKey(), Verified: true, Share: 100}
	// trailing bytes of newer layouts are ignored
	data := append(encode(t, newMetadata(mint, creator)), 1, 254, 0, 0)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KeyMetadataV1, m.Key)
	assert.Equal(t, mint, m.Mint)
	assert.Equal(t, "Degen Ape #1", m.Data.Name)
	assert.Equal(t, "DAPE", m.Data.Symbol)
	assert.Equal(t, "https://arweave.net/x", m.Data.Uri)
	assert.Equal(t, uint16(500), m.Data.SellerFeeBasisPoints)
	assert.Equal(t, []Creator{creator}, m.CreatorList())
	assert.True(t, m.IsMutable)
	assert.True(t, m.ValidCreators())

	_, err = Decode(data[:40])
	assert.Error(t, err)
}

func TestValidCreators(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	m, err := Decode(encode(t, newMetadata(mint)))
	require.NoError(t, err)
	assert.Nil(t, m.CreatorList())
	assert.False(t, m.ValidCreators())

	empty := newMetadata(mint)
	empty.Data.Creators = &[]Creator{}
	assert.False(t, empty.ValidCreators())

	zero := newMetadata(mint, Creator{Share: 100})
	assert.False(t, zero.ValidCreators())

	var missing *Metadata
	assert.False(t, missing.ValidCreators())
}

func TestAddress(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	first, err := Address(mint)
	require.NoError(t, err)
	second, err := Address(mint)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := Address(solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCache_Load(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	address, err := Address(mint)
	require.NoError(t, err)
	creator := Creator{Address: solana.NewWallet().PublicKey(), Share: 100}
	fetcher := &fakeFetcher{accounts: map[solana.PublicKey]*backend.Account{
		address: backend.NewAccount(address, program.TokenMetadata, encode(t, newMetadata(mint, creator)), 1),
	}}
	cache := NewCache(fetcher, zerolog.Nop())

	entry, err := cache.Load(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, address, entry.Address)
	_, err = cache.Load(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	entry, err = cache.Load(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCache_LoadUndecodable(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	address, err := Address(mint)
	require.NoError(t, err)
	fetcher := &fakeFetcher{accounts: map[solana.PublicKey]*backend.Account{
		address: backend.NewAccount(address, program.TokenMetadata, []byte{4, 1, 2}, 1),
	}}
	cache := NewCache(fetcher, zerolog.Nop())

	entry, err := cache.Load(context.Background(), mint)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Nil(t, cache.Get(mint))
}

func TestCache_LoadNetworkFailure(t *testing.T) {
	cache := NewCache(&fakeFetcher{err: errors.New("timeout")}, zerolog.Nop())
	_, err := cache.Load(context.Background(), solana.NewWallet().PublicKey())
	assert.Error(t, err)
}

func TestRoyalties(t *testing.T) {
	first := solana.NewWallet().PublicKey()
	second := solana.NewWallet().PublicKey()
	m := newMetadata(solana.NewWallet().PublicKey(),
		Creator{Address: first, Share: 60},
		Creator{Address: second, Share: 40},
	)
	royalties := Royalties(decimal.NewFromInt(1000), m)
	require.Len(t, royalties, 2)
	assert.Equal(t, first, royalties[0].Creator)
	assert.True(t, royalties[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, royalties[1].Amount.Equal(decimal.NewFromInt(20)))

	assert.Nil(t, Royalties(decimal.NewFromInt(1000), newMetadata(solana.NewWallet().PublicKey())))
}
