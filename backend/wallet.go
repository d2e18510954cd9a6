package backend

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

const WalletEnv = "SOLANA_PRIVATE_KEY_BASE58"

var ErrWalletMissing = errors.New("wallet is not imported")

type Wallet struct {
	pubkey solana.PublicKey
	prikey solana.PrivateKey
}

func (backend *Backend) ImportWallet(priKey string) (solana.PublicKey, error) {
	pri, err := solana.PrivateKeyFromBase58(priKey)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("import wallet: %w", err)
	}
	pub := pri.PublicKey()
	backend.lock.Lock()
	defer backend.lock.Unlock()
	for _, wallet := range backend.wallets {
		if wallet.pubkey == pub {
			return pub, nil
		}
	}
	backend.wallets = append(backend.wallets, &Wallet{
		pubkey: pub,
		prikey: pri,
	})
	return pub, nil
}

// LoadWalletFromEnv imports the key named by WalletEnv, reading .env when present.
func (backend *Backend) LoadWalletFromEnv() (solana.PublicKey, error) {
	_ = godotenv.Load()
	b58 := os.Getenv(WalletEnv)
	if b58 == "" {
		return solana.PublicKey{}, fmt.Errorf("%s not set", WalletEnv)
	}
	return backend.ImportWallet(b58)
}

func (backend *Backend) HasWallet(key solana.PublicKey) bool {
	return backend.getWallet(key) != nil
}

func (backend *Backend) Wallets() []solana.PublicKey {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	keys := make([]solana.PublicKey, 0, len(backend.wallets))
	for _, wallet := range backend.wallets {
		keys = append(keys, wallet.pubkey)
	}
	return keys
}

func (backend *Backend) getWallet(key solana.PublicKey) *solana.PrivateKey {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	for _, wallet := range backend.wallets {
		if wallet.pubkey == key {
			return &wallet.prikey
		}
	}
	return nil
}
