package statelisten

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	lock    sync.Mutex
	calls   []offer.Params
	started chan offer.Params
	release chan struct{}
	err     error
}

func (f *fakeInspector) Inspect(ctx context.Context, p offer.Params, taker solana.PublicKey) (*offer.Status, error) {
	f.lock.Lock()
	f.calls = append(f.calls, p)
	started, release, err := f.started, f.release, f.err
	f.lock.Unlock()
	if started != nil {
		started <- p
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &offer.Status{Params: p, Taker: taker, HasValidDelegate: true}, nil
}

func (f *fakeInspector) count() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.calls)
}

type fakeSubscriber struct {
	lock         sync.Mutex
	callbacks    map[solana.PublicKey]backend.AccountCallback
	unsubscribed []solana.PublicKey
	err          error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{callbacks: make(map[solana.PublicKey]backend.AccountCallback)}
}

func (f *fakeSubscriber) SubscribeAccount(pubkey solana.PublicKey, cb backend.AccountCallback) (func(), error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.callbacks[pubkey] = cb
	return func() {
		f.lock.Lock()
		defer f.lock.Unlock()
		delete(f.callbacks, pubkey)
		f.unsubscribed = append(f.unsubscribed, pubkey)
	}, nil
}

func (f *fakeSubscriber) callback(pubkey solana.PublicKey) backend.AccountCallback {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.callbacks[pubkey]
}

func newParams() offer.Params {
	return offer.Params{
		Maker: solana.NewWallet().PublicKey(),
		MintA: solana.NewWallet().PublicKey(),
		MintB: solana.NewWallet().PublicKey(),
		SizeA: 1,
		SizeB: 10,
	}
}

func newStateListen(inspector Inspector, subscriber Subscriber) *StateListen {
	return NewStateListen(context.Background(), inspector, subscriber, time.Hour, zerolog.Nop())
}

func TestStateListen_WatchAndRefresh(t *testing.T) {
	inspector := &fakeInspector{}
	subscriber := newFakeSubscriber()
	sl := newStateListen(inspector, subscriber)
	p := newParams()
	taker := solana.NewWallet().PublicKey()

	id, err := sl.Watch(p, taker)
	require.NoError(t, err)
	account, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	require.NoError(t, err)
	require.NotNil(t, subscriber.callback(account))

	next, ok := sl.next()
	require.True(t, ok)
	assert.Equal(t, id, next)
	sl.refresh(next)

	snapshot, err := sl.Status(id)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Status)
	assert.Equal(t, p, snapshot.Status.Params)
	assert.Equal(t, taker, snapshot.Taker)
	assert.Equal(t, uint64(1), snapshot.Generation)

	require.NoError(t, sl.Unwatch(id))
	_, err = sl.Status(id)
	assert.ErrorIs(t, err, ErrWatchMissing)
	assert.Nil(t, subscriber.callback(account))
	assert.ErrorIs(t, sl.Unwatch(id), ErrWatchMissing)
}

func TestStateListen_PendingRefreshesCoalesce(t *testing.T) {
	subscriber := newFakeSubscriber()
	sl := newStateListen(&fakeInspector{}, subscriber)
	first, err := sl.Watch(newParams(), solana.PublicKey{})
	require.NoError(t, err)
	p := newParams()
	second, err := sl.Watch(p, solana.PublicKey{})
	require.NoError(t, err)

	account, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	require.NoError(t, err)
	cb := subscriber.callback(account)
	require.NotNil(t, cb)
	for i := 0; i < 5; i++ {
		require.NoError(t, cb.OnAccountUpdate(&backend.Account{PubKey: account, Height: uint64(i)}))
	}

	// one entry per watch, newest first
	id, ok := sl.next()
	require.True(t, ok)
	assert.Equal(t, second, id)
	id, ok = sl.next()
	require.True(t, ok)
	assert.Equal(t, first, id)
	_, ok = sl.next()
	assert.False(t, ok)
}

func TestStateListen_StaleRefreshDiscarded(t *testing.T) {
	inspector := &fakeInspector{
		started: make(chan offer.Params, 1),
		release: make(chan struct{}),
	}
	sl := newStateListen(inspector, newFakeSubscriber())
	old := newParams()
	id, err := sl.Watch(old, solana.PublicKey{})
	require.NoError(t, err)
	_, _ = sl.next()

	done := make(chan struct{})
	go func() {
		sl.refresh(id)
		close(done)
	}()
	assert.Equal(t, old, <-inspector.started)

	updated := old
	updated.SizeB = 20
	require.NoError(t, sl.Update(id, updated, solana.PublicKey{}))
	close(inspector.release)
	<-done

	snapshot, err := sl.Status(id)
	require.NoError(t, err)
	assert.Nil(t, snapshot.Status)
	assert.Equal(t, uint64(2), snapshot.Generation)
	assert.Equal(t, updated, snapshot.Params)

	inspector.lock.Lock()
	inspector.started = nil
	inspector.lock.Unlock()
	next, ok := sl.next()
	require.True(t, ok)
	sl.refresh(next)
	snapshot, err = sl.Status(id)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Status)
	assert.Equal(t, updated, snapshot.Status.Params)
}

func TestStateListen_UpdateMovesSubscription(t *testing.T) {
	subscriber := newFakeSubscriber()
	sl := newStateListen(&fakeInspector{}, subscriber)
	p := newParams()
	id, err := sl.Watch(p, solana.PublicKey{})
	require.NoError(t, err)
	oldAccount, _ := spltoken.AssociatedAddress(p.Maker, p.MintA)

	sameAccount := p
	sameAccount.SizeA = 5
	require.NoError(t, sl.Update(id, sameAccount, solana.PublicKey{}))
	assert.NotNil(t, subscriber.callback(oldAccount))

	moved := p
	moved.MintA = solana.NewWallet().PublicKey()
	require.NoError(t, sl.Update(id, moved, solana.PublicKey{}))
	newAccount, _ := spltoken.AssociatedAddress(moved.Maker, moved.MintA)
	assert.Nil(t, subscriber.callback(oldAccount))
	assert.NotNil(t, subscriber.callback(newAccount))

	assert.ErrorIs(t, sl.Update("missing", p, solana.PublicKey{}), ErrWatchMissing)
	invalid := p
	invalid.SizeA = 0
	assert.Error(t, sl.Update(id, invalid, solana.PublicKey{}))
}

func TestStateListen_UpdateDropsOldStatus(t *testing.T) {
	sl := newStateListen(&fakeInspector{}, newFakeSubscriber())
	p := newParams()
	id, err := sl.Watch(p, solana.PublicKey{})
	require.NoError(t, err)
	next, ok := sl.next()
	require.True(t, ok)
	sl.refresh(next)
	snapshot, err := sl.Status(id)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Status)
	assert.True(t, snapshot.Status.HasValidDelegate)

	changed := p
	changed.SizeB = 999
	require.NoError(t, sl.Update(id, changed, solana.PublicKey{}))
	snapshot, err = sl.Status(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snapshot.Generation)
	assert.Equal(t, changed, snapshot.Params)
	assert.Nil(t, snapshot.Status)
	assert.Empty(t, snapshot.Error)
	assert.True(t, snapshot.Updated.IsZero())
}

func TestStateListen_UpdateKeepsWatchWhenSubscribeFails(t *testing.T) {
	subscriber := newFakeSubscriber()
	sl := newStateListen(&fakeInspector{}, subscriber)
	p := newParams()
	id, err := sl.Watch(p, solana.PublicKey{})
	require.NoError(t, err)
	next, ok := sl.next()
	require.True(t, ok)
	sl.refresh(next)
	oldAccount, _ := spltoken.AssociatedAddress(p.Maker, p.MintA)

	subscriber.lock.Lock()
	subscriber.err = errors.New("ws down")
	subscriber.lock.Unlock()
	moved := p
	moved.MintA = solana.NewWallet().PublicKey()
	assert.Error(t, sl.Update(id, moved, solana.PublicKey{}))

	snapshot, err := sl.Status(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snapshot.Generation)
	assert.Equal(t, p, snapshot.Params)
	require.NotNil(t, snapshot.Status)
	assert.NotNil(t, subscriber.callback(oldAccount))
	_, ok = sl.next()
	assert.False(t, ok)
}

func TestStateListen_RefreshError(t *testing.T) {
	inspector := &fakeInspector{err: errors.New("rpc down")}
	sl := newStateListen(inspector, newFakeSubscriber())
	id, err := sl.Watch(newParams(), solana.PublicKey{})
	require.NoError(t, err)
	sl.refresh(id)
	snapshot, err := sl.Status(id)
	require.NoError(t, err)
	assert.Equal(t, "rpc down", snapshot.Error)
}

func TestStateListen_Listen(t *testing.T) {
	inspector := &fakeInspector{}
	ctx, cancel := context.WithCancel(context.Background())
	sl := NewStateListen(ctx, inspector, newFakeSubscriber(), 20*time.Millisecond, zerolog.Nop())
	sl.Start()
	id, err := sl.Watch(newParams(), solana.PublicKey{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snapshot, err := sl.Status(id)
		return err == nil && snapshot.Status != nil
	}, time.Second, 5*time.Millisecond)
	// the ticker keeps refreshing
	assert.Eventually(t, func() bool { return inspector.count() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	sl.Stop()
}
