package backend

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const blockHashTTL = 10 * time.Second

type cachedBlockHash struct {
	hash    solana.Hash
	fetched time.Time
}

// GetRecentBlockHash returns a finalized block hash, refetched once it is older than
// blockHashTTL. A resend passes force so it never reuses the hash of the expired try.
func (backend *Backend) GetRecentBlockHash(ctx context.Context, force bool) (solana.Hash, error) {
	backend.lock.Lock()
	cached := backend.blockHash
	backend.lock.Unlock()
	if !force && cached != nil && time.Since(cached.fetched) < blockHashTTL {
		return cached.hash, nil
	}
	result, err := backend.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		backend.logger.Warn().Err(err).Msg("GetLatestBlockhash")
		return solana.Hash{}, err
	}
	backend.logger.Debug().Str("hash", result.Value.Blockhash.String()).Uint64("slot", result.Context.Slot).Msg("get recent block hash")
	backend.lock.Lock()
	backend.blockHash = &cachedBlockHash{hash: result.Value.Blockhash, fetched: time.Now()}
	backend.lock.Unlock()
	return result.Value.Blockhash, nil
}
