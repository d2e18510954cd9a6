package metadata

import (
	"context"
	"sync"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Fetcher interface {
	Account(ctx context.Context, pubkey solana.PublicKey) (*backend.Account, error)
}

// Address is the metadata account of mint.
func Address(mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		program.TokenMetadata.Bytes(),
		mint.Bytes(),
	}, program.TokenMetadata)
	return address, err
}

type Entry struct {
	Address  solana.PublicKey
	Metadata *Metadata
}

// Cache remembers the metadata of every mint it has successfully decoded.
// Mints without metadata are looked up again next time.
type Cache struct {
	fetcher Fetcher
	log     zerolog.Logger
	lock    sync.Mutex
	entries map[solana.PublicKey]*Entry
}

func NewCache(fetcher Fetcher, log zerolog.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		log:     log,
		entries: make(map[solana.PublicKey]*Entry),
	}
}

func (c *Cache) Get(mint solana.PublicKey) *Entry {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.entries[mint]
}

// Load returns the metadata of mint, or nil when it has none or it cannot be decoded.
// Only a failed network request is an error.
func (c *Cache) Load(ctx context.Context, mint solana.PublicKey) (*Entry, error) {
	if entry := c.Get(mint); entry != nil {
		return entry, nil
	}
	address, err := Address(mint)
	if err != nil {
		return nil, err
	}
	account, err := c.fetcher.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if !account.Exists() || account.Account.Owner != program.TokenMetadata {
		return nil, nil
	}
	meta, err := Decode(account.Account.Data.GetBinary())
	if err != nil {
		c.log.Warn().Err(err).Str("mint", mint.String()).Msg("failed to decode metadata")
		return nil, nil
	}
	entry := &Entry{Address: address, Metadata: meta}
	c.lock.Lock()
	c.entries[mint] = entry
	c.lock.Unlock()
	return entry, nil
}

type Royalty struct {
	Creator solana.PublicKey
	Amount  decimal.Decimal
}

// Royalties splits the seller fee of amount between the creators of meta.
func Royalties(amount decimal.Decimal, meta *Metadata) []Royalty {
	creators := meta.CreatorList()
	if len(creators) == 0 {
		return nil
	}
	fee := amount.Mul(decimal.NewFromInt(int64(meta.Data.SellerFeeBasisPoints))).Div(decimal.NewFromInt(10000))
	royalties := make([]Royalty, 0, len(creators))
	for _, creator := range creators {
		royalties = append(royalties, Royalty{
			Creator: creator.Address,
			Amount:  fee.Mul(decimal.NewFromInt(int64(creator.Share))).Div(decimal.NewFromInt(100)),
		})
	}
	return royalties
}
