package offer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

const authoritySeed = "stateless_offer"

var ErrInvalidParams = errors.New("invalid offer params")

// Params identify an offer. Nothing else is stored: the offer exists while the maker's
// mint A account delegates SizeA to the authority derived from these five fields.
type Params struct {
	Maker solana.PublicKey
	MintA solana.PublicKey
	MintB solana.PublicKey
	SizeA uint64
	SizeB uint64
}

func (p Params) Validate() error {
	switch {
	case p.Maker.IsZero():
		return fmt.Errorf("%w: maker is empty", ErrInvalidParams)
	case p.MintA.IsZero() || p.MintB.IsZero():
		return fmt.Errorf("%w: mint is empty", ErrInvalidParams)
	case p.MintA.Equals(p.MintB):
		return fmt.Errorf("%w: mint A and mint B are the same", ErrInvalidParams)
	case p.SizeA == 0 || p.SizeB == 0:
		return fmt.Errorf("%w: size must be positive", ErrInvalidParams)
	}
	return nil
}

func (p Params) seeds() [][]byte {
	sizeA := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeA, p.SizeA)
	sizeB := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeB, p.SizeB)
	return [][]byte{
		[]byte(authoritySeed),
		p.Maker.Bytes(),
		p.MintA.Bytes(),
		p.MintB.Bytes(),
		sizeA,
		sizeB,
	}
}

// DeriveAuthority returns the transfer authority of the offer and its bump seed.
func DeriveAuthority(programID solana.PublicKey, p Params) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(p.seeds(), programID)
}

const (
	queryMaker = "maker"
	queryMintA = "mintA"
	queryMintB = "mintB"
	querySizeA = "sizeA"
	querySizeB = "sizeB"
)

// Query renders the params as the fields of a share link.
func (p Params) Query() url.Values {
	values := url.Values{}
	values.Set(queryMaker, p.Maker.String())
	values.Set(queryMintA, p.MintA.String())
	values.Set(queryMintB, p.MintB.String())
	values.Set(querySizeA, strconv.FormatUint(p.SizeA, 10))
	values.Set(querySizeB, strconv.FormatUint(p.SizeB, 10))
	return values
}

func ParseQuery(values url.Values) (Params, error) {
	var p Params
	var err error
	keys := []struct {
		name string
		dst  *solana.PublicKey
	}{
		{queryMaker, &p.Maker},
		{queryMintA, &p.MintA},
		{queryMintB, &p.MintB},
	}
	for _, key := range keys {
		if *key.dst, err = solana.PublicKeyFromBase58(values.Get(key.name)); err != nil {
			return Params{}, fmt.Errorf("%w: %s: %v", ErrInvalidParams, key.name, err)
		}
	}
	if p.SizeA, err = strconv.ParseUint(values.Get(querySizeA), 10, 64); err != nil {
		return Params{}, fmt.Errorf("%w: %s: %v", ErrInvalidParams, querySizeA, err)
	}
	if p.SizeB, err = strconv.ParseUint(values.Get(querySizeB), 10, 64); err != nil {
		return Params{}, fmt.Errorf("%w: %s: %v", ErrInvalidParams, querySizeB, err)
	}
	return p, p.Validate()
}

// Link appends the share query to base.
func (p Params) Link(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.RawQuery = p.Query().Encode()
	return u.String(), nil
}
