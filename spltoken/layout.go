package spltoken

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	TokenLayoutSize = 165
	MintLayoutSize  = 82
)

// UserLayout is a token account: one owner's balance of one mint.
type UserLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

func (u *UserLayout) HasDelegate() bool {
	return u.DelegateOption[0] == 1 && !u.Delegate.IsZero()
}

// Encode is the inverse of ParseUser.
func (u *UserLayout) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(TokenLayoutSize)
	_ = binary.Write(buf, binary.LittleEndian, u)
	return buf.Bytes()
}

// SetDelegate fills the option tag the way the token program does.
func (u *UserLayout) SetDelegate(delegate solana.PublicKey, amount uint64) {
	u.DelegateOption = [4]byte{1, 0, 0, 0}
	u.Delegate = delegate
	u.DelegatedAmount = amount
}

// TokenLayout is a mint.
type TokenLayout struct {
	MintAuthorityOption   [4]byte
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              byte
	IsInitialized         uint8
	FreezeAuthorityOption [4]byte
	FreezeAuthority       solana.PublicKey
}

func (t *TokenLayout) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(MintLayoutSize)
	_ = binary.Write(buf, binary.LittleEndian, t)
	return buf.Bytes()
}

type KeyedUser struct {
	Key    solana.PublicKey
	Height uint64
	UserLayout
}

type KeyedToken struct {
	Key    solana.PublicKey
	Height uint64
	TokenLayout
}
