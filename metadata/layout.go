package metadata

import (
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	KeyMetadataV1 uint8 = 4

	maxCreators = 5
)

type Creator struct {
	Address  solana.PublicKey
	Verified bool
	// Share is a percentage; shares of one record add up to 100.
	Share uint8
}

type Data struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator `bin:"optional"`
}

// Metadata is the leading part of a token metadata account. Fields added by later
// versions of the program follow IsMutable and are not decoded.
type Metadata struct {
	Key                 uint8
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                Data
	PrimarySaleHappened bool
	IsMutable           bool
}

func Decode(data []byte) (*Metadata, error) {
	m := new(Metadata)
	if err := bin.NewBorshDecoder(data).Decode(m); err != nil {
		return nil, err
	}
	m.Data.Name = trimPadding(m.Data.Name)
	m.Data.Symbol = trimPadding(m.Data.Symbol)
	m.Data.Uri = trimPadding(m.Data.Uri)
	return m, nil
}

// name, symbol and uri are stored at fixed width and padded with zero bytes.
func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}

func (m *Metadata) CreatorList() []Creator {
	if m == nil || m.Data.Creators == nil {
		return nil
	}
	return *m.Data.Creators
}

// ValidCreators reports whether the creator list can be handed to the swap program.
func (m *Metadata) ValidCreators() bool {
	creators := m.CreatorList()
	if len(creators) == 0 || len(creators) > maxCreators {
		return false
	}
	for _, creator := range creators {
		if creator.Address.IsZero() {
			return false
		}
	}
	return true
}
