package system

import (
	"context"

	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

type Balancer interface {
	Balance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}

type Program struct {
	balancer Balancer
	log      zerolog.Logger
	id       solana.PublicKey
}

func NewProgram(balancer Balancer, log zerolog.Logger) *Program {
	p := &Program{
		balancer: balancer,
		log:      log,
		id:       program.System,
	}
	return p
}

func (p *Program) Name() string {
	return "system"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

// Balance returns the lamports of wallet. Used whenever one side of an offer is the native mint.
func (p *Program) Balance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	lamports, err := p.balancer.Balance(ctx, wallet)
	if err != nil {
		p.log.Warn().Err(err).Str("wallet", wallet.String()).Msg("get balance")
		return 0, err
	}
	return lamports, nil
}
