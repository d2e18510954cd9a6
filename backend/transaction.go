package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Simulator is a drop-in for Commit that only simulates the transaction.
type Simulator struct {
	backend *Backend
}

func (backend *Backend) Simulator() *Simulator {
	return &Simulator{backend: backend}
}

func (s *Simulator) Commit(ctx context.Context, payer solana.PublicKey, ins []solana.Instruction) (solana.Signature, error) {
	_, err := s.backend.Simulate(ctx, payer, ins)
	return solana.Signature{}, err
}

// Simulate returns the program logs of a dry run.
func (backend *Backend) Simulate(ctx context.Context, payer solana.PublicKey, ins []solana.Instruction) ([]string, error) {
	if !backend.HasWallet(payer) {
		return nil, fmt.Errorf("%w: %s", ErrWalletMissing, payer)
	}
	trx, err := backend.build(ctx, payer, ins, false)
	if err != nil {
		return nil, err
	}
	response, err := backend.rpcClient.SimulateTransactionWithOpts(ctx, trx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             rpc.CommitmentFinalized,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, err
	}
	simulateTransactionResponse := response.Value
	if simulateTransactionResponse.Logs == nil {
		return nil, fmt.Errorf("log is nil, simulate failed before the transaction was able to executed, such as signature verification failure or invalid blockhash")
	}
	backend.logger.Info().Str("logs", strings.Join(simulateTransactionResponse.Logs, "\n")).Msg("simulate")
	if simulateTransactionResponse.Err != nil {
		return simulateTransactionResponse.Logs, fmt.Errorf("%w: %v", ErrTransactionFailed, simulateTransactionResponse.Err)
	}
	return simulateTransactionResponse.Logs, nil
}
