package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"
)

var (
	LogPath       = "./logs/"
	LogLevel      = "info"
	BackendLog    = "backend"
	OfferLog      = "offer"
	StateLog      = "state_listen"
	BalanceLog    = "balance_listen"
	NetworkLog    = "network"
	SwapLog       = "swap"
	SentTxHash    = "sent_tx"
	DefaultListen = "0.0.0.0:8089"
)

type Node struct {
	Rpc    string `json:"rpc" yaml:"rpc"`
	Ws     string `json:"ws" yaml:"ws"`
	Usable bool   `json:"usable" yaml:"usable"`
}

type Config struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
	// DetectNodes pings every usable node at start-up and keeps the fastest first.
	DetectNodes bool `json:"detect_nodes" yaml:"detect_nodes"`
	NetStatus   bool `json:"net_status" yaml:"net_status"`

	ProgramId  string   `json:"program_id" yaml:"program_id"`
	Commitment string   `json:"commitment" yaml:"commitment"`
	Keys       []string `json:"keys" yaml:"keys"`

	SendRetries int `json:"send_retries" yaml:"send_retries"`
	// Simulate only dry-runs transactions instead of sending them.
	Simulate         bool `json:"simulate" yaml:"simulate"`
	ConfirmTimeoutMs int  `json:"confirm_timeout_ms" yaml:"confirm_timeout_ms"`

	RefreshIntervalMs int      `json:"refresh_interval_ms" yaml:"refresh_interval_ms"`
	BalanceIntervalMs int      `json:"balance_interval_ms" yaml:"balance_interval_ms"`
	BalanceAccounts   []string `json:"balance_accounts" yaml:"balance_accounts"`

	DingUrl  string `json:"ding-url" yaml:"ding-url"`
	DBUrl    string `json:"db_url" yaml:"db_url"`
	DBScheme string `json:"db_scheme" yaml:"db_scheme"`
	DBUser   string `json:"db_user" yaml:"db_user"`
	DBPasswd string `json:"db_passwd" yaml:"db_passwd"`

	Listen         string `json:"listen" yaml:"listen"`
	MaxConnections int    `json:"max_connections" yaml:"max_connections"`
	LinkBase       string `json:"link_base" yaml:"link_base"`

	LogPath  string `json:"log_path" yaml:"log_path"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Load reads a YAML or JSON config file. JSON parses as YAML, so existing
// config.json files keep working.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Commitment == "" {
		cfg.Commitment = "max"
	}
	if cfg.SendRetries <= 0 {
		cfg.SendRetries = 3
	}
	if cfg.ConfirmTimeoutMs <= 0 {
		cfg.ConfirmTimeoutMs = 60000
	}
	if cfg.RefreshIntervalMs <= 0 {
		cfg.RefreshIntervalMs = 5000
	}
	if cfg.BalanceIntervalMs <= 0 {
		cfg.BalanceIntervalMs = 10000
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 256
	}
	if cfg.LogPath == "" {
		cfg.LogPath = LogPath
	}
	if !strings.HasSuffix(cfg.LogPath, "/") {
		cfg.LogPath += "/"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogLevel
	}
}

func (cfg *Config) Validate() error {
	if len(cfg.UsableNodes()) == 0 {
		return fmt.Errorf("config: there is no usable node")
	}
	if _, err := cfg.Program(); err != nil {
		return err
	}
	if _, err := cfg.BalanceKeys(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) UsableNodes() []*Node {
	nodes := make([]*Node, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node.Usable {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func (cfg *Config) Program() (solana.PublicKey, error) {
	if cfg.ProgramId == "" {
		return solana.PublicKey{}, fmt.Errorf("config: program_id is required")
	}
	key, err := solana.PublicKeyFromBase58(cfg.ProgramId)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config: program_id: %w", err)
	}
	return key, nil
}

func (cfg *Config) BalanceKeys() ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(cfg.BalanceAccounts))
	for _, item := range cfg.BalanceAccounts {
		key, err := solana.PublicKeyFromBase58(item)
		if err != nil {
			return nil, fmt.Errorf("config: balance account %s: %w", item, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// CommitmentType maps the configured level to an rpc commitment. "max" and "root" are
// the legacy names of finalized.
func (cfg *Config) CommitmentType() rpc.CommitmentType {
	switch strings.ToLower(cfg.Commitment) {
	case "processed", "recent":
		return rpc.CommitmentProcessed
	case "confirmed", "single", "singlegossip":
		return rpc.CommitmentConfirmed
	default:
		return rpc.CommitmentFinalized
	}
}
