package backend

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

type AccountCallback interface {
	OnAccountUpdate(account *Account) error
}

func (backend *Backend) ws() (*ws.Client, error) {
	if backend.wsClient != nil {
		return backend.wsClient, nil
	}
	client, err := ws.Connect(backend.ctx, backend.wsUrl)
	if err != nil {
		return nil, err
	}
	backend.wsClient = client
	return client, nil
}

// SubscribeAccount opens one push subscription for pubkey. The returned function
// cancels it.
func (backend *Backend) SubscribeAccount(pubkey solana.PublicKey, cb AccountCallback) (func(), error) {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	client, err := backend.ws()
	if err != nil {
		return nil, err
	}
	sub, err := client.AccountSubscribeWithOpts(pubkey, backend.commitment, solana.EncodingBase64)
	if err != nil {
		return nil, err
	}
	backend.accountSubs[sub] = true
	backend.wg.Add(1)
	go backend.RecvAccount(pubkey, cb, sub)
	unsubscribe := func() {
		backend.lock.Lock()
		defer backend.lock.Unlock()
		if !backend.accountSubs[sub] {
			return
		}
		delete(backend.accountSubs, sub)
		sub.Unsubscribe()
	}
	return unsubscribe, nil
}

func (backend *Backend) RecvAccount(key solana.PublicKey, cb AccountCallback, sub *ws.AccountSubscription) {
	defer backend.wg.Done()
	for {
		got, err := sub.Recv(backend.ctx)
		if err != nil {
			backend.logger.Warn().Err(err).Str("account", key.String()).Msg("RecvAccount exit")
			return
		}
		if got == nil {
			backend.logger.Info().Str("account", key.String()).Msg("RecvAccount exit")
			return
		}
		data := got
		account := &Account{
			PubKey:  key,
			Account: &data.Value.Account,
			Height:  data.Context.Slot,
		}
		backend.logger.Debug().Uint64("slot", account.Height).Str("account", account.PubKey.String()).Msg("receive account")
		if cb != nil {
			if err := cb.OnAccountUpdate(account); err != nil {
				backend.logger.Warn().Err(err).Str("account", key.String()).Msg("OnAccountUpdate")
			}
		}
	}
}
