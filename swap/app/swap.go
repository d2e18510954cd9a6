package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/balancelisten"
	"github.com/egaotan/solana-stateless-swap/config"
	"github.com/egaotan/solana-stateless-swap/dingsdk"
	"github.com/egaotan/solana-stateless-swap/networkdetect"
	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/egaotan/solana-stateless-swap/statelisten"
	"github.com/egaotan/solana-stateless-swap/store"
	"github.com/egaotan/solana-stateless-swap/system"
	"github.com/egaotan/solana-stateless-swap/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

type Swap struct {
	ctx           context.Context
	log           zerolog.Logger
	config        *config.Config
	backend       *backend.Backend
	splToken      *spltoken.Program
	system        *system.Program
	service       *offer.Service
	store         *store.Store
	stateListen   *statelisten.StateListen
	balanceListen *balancelisten.BalanceListen
	nd            *networkdetect.NetworkDetector
	handler       *Handler
	httpServer    *http.Server
}

func pickNode(cfg *config.Config, log zerolog.Logger) (*config.Node, error) {
	nodes := cfg.UsableNodes()
	if len(nodes) == 0 {
		return nil, errors.New("no usable node")
	}
	if !cfg.DetectNodes || len(nodes) == 1 {
		return nodes[0], nil
	}
	peers := make([]string, 0, len(nodes))
	for _, node := range nodes {
		peers = append(peers, node.Rpc)
	}
	index, rtt := networkdetect.DetectPeers(peers, networkdetect.Ping, log)
	if index < 0 {
		log.Warn().Msg("no node answered ping, using the first one")
		return nodes[0], nil
	}
	log.Info().Str("rpc", nodes[index].Rpc).Dur("rtt", rtt).Msg("picked node")
	return nodes[index], nil
}

func NewSwap(ctx context.Context, cfg *config.Config) (*Swap, error) {
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	balanceKeys, err := cfg.BalanceKeys()
	if err != nil {
		return nil, err
	}
	s := &Swap{
		ctx:    ctx,
		config: cfg,
		log:    utils.NewLog(config.LogPath, config.SwapLog),
	}
	node, err := pickNode(cfg, s.log)
	if err != nil {
		return nil, err
	}
	s.backend = backend.NewBackend(ctx, node, cfg)
	for _, key := range cfg.Keys {
		if _, err := s.backend.ImportWallet(key); err != nil {
			return nil, fmt.Errorf("import wallet: %w", err)
		}
	}
	if len(cfg.Keys) == 0 {
		wallet, err := s.backend.LoadWalletFromEnv()
		if err != nil {
			s.log.Warn().Err(err).Msg("no wallet connected")
		} else {
			s.log.Info().Str("wallet", wallet.String()).Msg("wallet loaded from env")
		}
	}
	var notifier dingsdk.Notifier = dingsdk.NewLogNotifier(s.log)
	if cfg.DingUrl != "" {
		notifier = dingsdk.NewDingSdk(cfg.DingUrl, s.log)
	}
	var submitter offer.Submitter = s.backend
	if cfg.Simulate {
		submitter = s.backend.Simulator()
	}
	s.service = offer.NewService(programID, s.backend, s.backend, submitter, notifier,
		utils.NewLog(config.LogPath, config.OfferLog))
	var historian Historian
	if cfg.DBUrl != "" {
		dao, err := store.NewDao(cfg.DBUrl, cfg.DBScheme, cfg.DBUser, cfg.DBPasswd)
		if err != nil {
			return nil, err
		}
		s.store = store.NewStore(ctx, dao, s.log)
		s.service.SetRecorder(s.store)
		historian = s.store
	}
	s.splToken = spltoken.NewProgram(s.backend, s.log)
	s.system = system.NewProgram(s.backend, s.log)
	s.stateListen = statelisten.NewStateListen(ctx, s.service, s.backend,
		time.Duration(cfg.RefreshIntervalMs)*time.Millisecond, utils.NewLog(config.LogPath, config.StateLog))
	s.balanceListen = balancelisten.NewBalanceListen(ctx, s.splToken, balanceKeys,
		time.Duration(cfg.BalanceIntervalMs)*time.Millisecond, notifier, utils.NewLog(config.LogPath, config.BalanceLog))
	if cfg.NetStatus {
		s.nd, err = networkdetect.NewNetworkDetector(node.Rpc, notifier, utils.NewLog(config.LogPath, config.NetworkLog))
		if err != nil {
			return nil, err
		}
	}
	s.handler = &Handler{
		log:      s.log,
		service:  s.service,
		watcher:  s.stateListen,
		decimals: s.splToken,
		balances: &walletBalances{system: s.system, token: s.splToken},
		linkBase: cfg.LinkBase,
	}
	if historian != nil {
		s.handler.history = historian
	}
	return s, nil
}

func (s *Swap) Service() error {
	s.Start()
	if err := s.StartRPC(); err != nil {
		return err
	}
	<-s.ctx.Done()
	s.StopRPC()
	s.Stop()
	return nil
}

func (s *Swap) Start() {
	if s.nd != nil {
		s.nd.Start()
	}
	if s.store != nil {
		s.store.Start()
	}
	s.backend.Start()
	s.balanceListen.Start()
	s.stateListen.Start()
	s.log.Info().Int("wallets", len(s.backend.Wallets())).Msg("swap has started......")
}

func (s *Swap) Stop() {
	if s.nd != nil {
		s.nd.Stop()
	}
	s.stateListen.Stop()
	s.balanceListen.Stop()
	s.backend.Stop()
	if s.store != nil {
		s.store.Stop()
	}
	s.log.Info().Msg("swap has stopped......")
}

func (s *Swap) StartRPC() error {
	gin.SetMode(gin.ReleaseMode)
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	listener = netutil.LimitListener(listener, s.config.MaxConnections)
	s.httpServer = &http.Server{
		Handler:           s.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("listen", s.config.Listen).Msg("start rpc server......")
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("serve")
		}
	}()
	return nil
}

func (s *Swap) StopRPC() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("shutdown rpc server")
		return
	}
	s.log.Info().Msg("rpc server has stopped......")
}
