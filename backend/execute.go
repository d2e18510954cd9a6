package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrTransactionFailed  = errors.New("transaction failed on chain")
	ErrTransactionExpired = errors.New("transaction was not confirmed in time")
)

const confirmPoll = 500 * time.Millisecond

func (backend *Backend) build(ctx context.Context, payer solana.PublicKey, ins []solana.Instruction, force bool) (*solana.Transaction, error) {
	blockHash, err := backend.GetRecentBlockHash(ctx, force)
	if err != nil {
		return nil, err
	}
	trx, err := solana.NewTransaction(ins, blockHash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := trx.Sign(backend.getWallet); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return trx, nil
}

// Commit signs ins with the payer's wallet and sends it, waiting for the configured
// commitment. An expired or unsent try is rebuilt on a fresh block hash until the retry
// budget runs out; a transaction that failed on chain is never resent.
func (backend *Backend) Commit(ctx context.Context, payer solana.PublicKey, ins []solana.Instruction) (solana.Signature, error) {
	if !backend.HasWallet(payer) {
		return solana.Signature{}, fmt.Errorf("%w: %s", ErrWalletMissing, payer)
	}
	var lastErr error
	for try := 1; try <= backend.retries; try++ {
		backend.logger.Info().Int("try", try).Str("payer", payer.String()).Int("instructions", len(ins)).Msg("commit transaction")
		trx, err := backend.build(ctx, payer, ins, try > 1)
		if err != nil {
			return solana.Signature{}, err
		}
		signature, err := backend.rpcClient.SendTransactionWithOpts(ctx, trx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: backend.commitment,
		})
		if err != nil {
			backend.logger.Warn().Err(err).Int("try", try).Msg("SendTransactionWithOpts")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		backend.txLogger.Info().Str("signature", signature.String()).Int("try", try).Msg("sent")
		err = backend.confirm(ctx, signature)
		if err == nil {
			backend.logger.Info().Str("signature", signature.String()).Msg("transaction success")
			return signature, nil
		}
		backend.logger.Warn().Err(err).Str("signature", signature.String()).Msg("confirm")
		if errors.Is(err, ErrTransactionFailed) || ctx.Err() != nil {
			return signature, err
		}
		lastErr = err
	}
	return solana.Signature{}, fmt.Errorf("commit after %d tries: %w", backend.retries, lastErr)
}

func (backend *Backend) confirm(ctx context.Context, signature solana.Signature) error {
	deadline := time.NewTimer(backend.confirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(confirmPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			response, err := backend.rpcClient.GetSignatureStatuses(ctx, false, signature)
			if err != nil {
				backend.logger.Debug().Err(err).Msg("GetSignatureStatuses")
				continue
			}
			if len(response.Value) == 0 || response.Value[0] == nil {
				continue
			}
			status := response.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if reached(status.ConfirmationStatus, backend.commitment) {
				return nil
			}
		case <-deadline.C:
			return ErrTransactionExpired
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func reached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	switch commitment {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusFinalized
	}
}
