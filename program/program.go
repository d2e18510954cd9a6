package program

import "github.com/gagliardetto/solana-go"

var (
	Token           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedToken = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	TokenMetadata   = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	System          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
)

// NativeMint is the pseudo-mint standing in for SOL on either side of an offer.
var NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

func IsNative(mint solana.PublicKey) bool {
	return mint.Equals(NativeMint)
}
