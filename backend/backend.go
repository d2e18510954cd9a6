package backend

import (
	"context"
	"sync"
	"time"

	"github.com/egaotan/solana-stateless-swap/config"
	"github.com/egaotan/solana-stateless-swap/utils"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"
)

type Backend struct {
	logger         zerolog.Logger
	txLogger       zerolog.Logger
	rpcClient      *rpc.Client
	wsUrl          string
	wsClient       *ws.Client
	ctx            context.Context
	wg             sync.WaitGroup
	lock           sync.Mutex
	accountSubs    map[*ws.AccountSubscription]bool
	wallets        []*Wallet
	commitment     rpc.CommitmentType
	retries        int
	confirmTimeout time.Duration
	blockHash      *cachedBlockHash
}

func NewBackend(ctx context.Context, node *config.Node, cfg *config.Config) *Backend {
	backend := &Backend{
		rpcClient:      rpc.New(node.Rpc),
		wsUrl:          node.Ws,
		ctx:            ctx,
		logger:         utils.NewLog(config.LogPath, config.BackendLog),
		txLogger:       utils.NewLog(config.LogPath, config.SentTxHash),
		accountSubs:    make(map[*ws.AccountSubscription]bool),
		commitment:     cfg.CommitmentType(),
		retries:        cfg.SendRetries,
		confirmTimeout: time.Duration(cfg.ConfirmTimeoutMs) * time.Millisecond,
	}
	return backend
}

func (backend *Backend) Start() {
	backend.logger.Info().Str("commitment", string(backend.commitment)).Msg("start backend......")
}

func (backend *Backend) Stop() {
	backend.lock.Lock()
	for sub := range backend.accountSubs {
		sub.Unsubscribe()
	}
	backend.accountSubs = make(map[*ws.AccountSubscription]bool)
	if backend.wsClient != nil {
		backend.wsClient.Close()
		backend.wsClient = nil
	}
	backend.lock.Unlock()
	backend.wg.Wait()
	backend.logger.Info().Msg("backend has stopped......")
}

func (backend *Backend) Commitment() rpc.CommitmentType {
	return backend.commitment
}
