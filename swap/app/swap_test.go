package app

import (
	"context"
	"testing"

	"github.com/egaotan/solana-stateless-swap/config"
	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickNode(t *testing.T) {
	cfg := &config.Config{Nodes: []*config.Node{
		{Rpc: "http://a.invalid:8899", Usable: false},
		{Rpc: "http://b.invalid:8899", Usable: true},
		{Rpc: "http://c.invalid:8899", Usable: true},
	}}
	node, err := pickNode(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "http://b.invalid:8899", node.Rpc)

	_, err = pickNode(&config.Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWalletBalances_NativeUsesLamports(t *testing.T) {
	b := &walletBalances{system: fakeLamports(42), token: fakeTokens{}}
	amount, err := b.Balance(context.Background(), solana.NewWallet().PublicKey(), program.NativeMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount)
}
