package statelisten

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/badgerodon/collections/stack"
	"github.com/egaotan/solana-stateless-swap/backend"
	"github.com/egaotan/solana-stateless-swap/metrics"
	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrWatchMissing = errors.New("watch not found")

type Inspector interface {
	Inspect(ctx context.Context, p offer.Params, taker solana.PublicKey) (*offer.Status, error)
}

type Subscriber interface {
	SubscribeAccount(pubkey solana.PublicKey, cb backend.AccountCallback) (func(), error)
}

type watch struct {
	id          string
	params      offer.Params
	taker       solana.PublicKey
	generation  uint64
	account     solana.PublicKey
	unsubscribe func()
	status      *offer.Status
	err         error
	updated     time.Time
}

// Snapshot is the last accepted refresh of a watch.
type Snapshot struct {
	Id         string
	Params     offer.Params
	Taker      solana.PublicKey
	Generation uint64
	Status     *offer.Status
	Error      string
	Updated    time.Time
}

// StateListen keeps the status of watched offers current. A refresh runs for every
// change of the maker's mint A account and on every tick.
type StateListen struct {
	ctx        context.Context
	wg         sync.WaitGroup
	log        zerolog.Logger
	inspector  Inspector
	subscriber Subscriber
	interval   time.Duration

	lock    sync.Mutex
	watches map[string]*watch
	// pending holds watch ids, newest on top; queued has the ids already in it.
	pending *stack.Stack
	queued  map[string]bool
	wake    chan struct{}
}

func NewStateListen(ctx context.Context, inspector Inspector, subscriber Subscriber, interval time.Duration, log zerolog.Logger) *StateListen {
	sl := &StateListen{
		ctx:        ctx,
		log:        log,
		inspector:  inspector,
		subscriber: subscriber,
		interval:   interval,
		watches:    make(map[string]*watch),
		pending:    stack.New(),
		queued:     make(map[string]bool),
		wake:       make(chan struct{}, 1),
	}
	return sl
}

func (sl *StateListen) Start() {
	sl.wg.Add(1)
	go sl.listen()
}

func (sl *StateListen) Stop() {
	sl.wg.Wait()
	sl.lock.Lock()
	defer sl.lock.Unlock()
	for _, w := range sl.watches {
		if w.unsubscribe != nil {
			w.unsubscribe()
		}
	}
}

func (sl *StateListen) listen() {
	defer sl.wg.Done()
	ticker := time.NewTicker(sl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sl.enqueueAll()
		case <-sl.wake:
		case <-sl.ctx.Done():
			return
		}
		for {
			id, ok := sl.next()
			if !ok {
				break
			}
			sl.refresh(id)
			if sl.ctx.Err() != nil {
				return
			}
		}
	}
}

// Watch starts tracking the offer p as seen by taker and returns the watch id.
func (sl *StateListen) Watch(p offer.Params, taker solana.PublicKey) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	w := &watch{
		id:         uuid.NewString(),
		params:     p,
		taker:      taker,
		generation: 1,
	}
	sl.lock.Lock()
	sl.watches[w.id] = w
	sl.lock.Unlock()
	if err := sl.subscribe(w.id, p); err != nil {
		sl.Unwatch(w.id)
		return "", err
	}
	sl.enqueue(w.id)
	return w.id, nil
}

// Update replaces the params of a watch and drops the status of the old params.
// Refreshes started before the update are discarded when they finish. Nothing changes
// when the new account cannot be subscribed.
func (sl *StateListen) Update(id string, p offer.Params, taker solana.PublicKey) error {
	if err := p.Validate(); err != nil {
		return err
	}
	account, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	if err != nil {
		return err
	}
	sl.lock.Lock()
	w, ok := sl.watches[id]
	if !ok {
		sl.lock.Unlock()
		return ErrWatchMissing
	}
	moved := w.unsubscribe == nil || !w.account.Equals(account)
	sl.lock.Unlock()

	var unsubscribe func()
	if moved {
		unsubscribe, err = sl.subscriber.SubscribeAccount(account, &accountListener{sl: sl, id: id})
		if err != nil {
			return err
		}
	}

	sl.lock.Lock()
	w, ok = sl.watches[id]
	if !ok {
		sl.lock.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		return ErrWatchMissing
	}
	var old func()
	if unsubscribe != nil {
		old = w.unsubscribe
		w.account = account
		w.unsubscribe = unsubscribe
	}
	w.params = p
	w.taker = taker
	w.generation++
	w.status = nil
	w.err = nil
	w.updated = time.Time{}
	sl.lock.Unlock()
	if old != nil {
		old()
	}
	sl.enqueue(id)
	return nil
}

func (sl *StateListen) Unwatch(id string) error {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	w, ok := sl.watches[id]
	if !ok {
		return ErrWatchMissing
	}
	delete(sl.watches, id)
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	return nil
}

func (sl *StateListen) Status(id string) (*Snapshot, error) {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	w, ok := sl.watches[id]
	if !ok {
		return nil, ErrWatchMissing
	}
	snapshot := &Snapshot{
		Id:         w.id,
		Params:     w.params,
		Taker:      w.taker,
		Generation: w.generation,
		Status:     w.status,
		Updated:    w.updated,
	}
	if w.err != nil {
		snapshot.Error = w.err.Error()
	}
	return snapshot, nil
}

// subscribe follows the maker's mint A account of p for a new watch.
func (sl *StateListen) subscribe(id string, p offer.Params) error {
	account, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	if err != nil {
		return err
	}
	unsubscribe, err := sl.subscriber.SubscribeAccount(account, &accountListener{sl: sl, id: id})
	if err != nil {
		return err
	}
	sl.lock.Lock()
	defer sl.lock.Unlock()
	w, ok := sl.watches[id]
	if !ok {
		unsubscribe()
		return nil
	}
	w.account = account
	w.unsubscribe = unsubscribe
	return nil
}

type accountListener struct {
	sl *StateListen
	id string
}

func (l *accountListener) OnAccountUpdate(account *backend.Account) error {
	metrics.AccountUpdatesTotal.Inc()
	l.sl.log.Debug().Str("watch", l.id).Str("account", account.PubKey.String()).Uint64("slot", account.Height).Msg("account update")
	l.sl.enqueue(l.id)
	return nil
}

// enqueue schedules a refresh of id unless one is already pending.
func (sl *StateListen) enqueue(id string) {
	sl.lock.Lock()
	if !sl.queued[id] {
		sl.queued[id] = true
		sl.pending.Push(id)
	}
	sl.lock.Unlock()
	select {
	case sl.wake <- struct{}{}:
	default:
	}
}

func (sl *StateListen) enqueueAll() {
	sl.lock.Lock()
	ids := make([]string, 0, len(sl.watches))
	for id := range sl.watches {
		ids = append(ids, id)
	}
	sl.lock.Unlock()
	for _, id := range ids {
		sl.enqueue(id)
	}
}

func (sl *StateListen) next() (string, bool) {
	sl.lock.Lock()
	defer sl.lock.Unlock()
	if sl.pending.Len() == 0 {
		return "", false
	}
	id := sl.pending.Pop().(string)
	delete(sl.queued, id)
	return id, true
}

// refresh inspects the current params of id. The result is kept only if the watch is
// still at the generation the inspection started with.
func (sl *StateListen) refresh(id string) {
	sl.lock.Lock()
	w, ok := sl.watches[id]
	if !ok {
		sl.lock.Unlock()
		return
	}
	p, taker, generation := w.params, w.taker, w.generation
	sl.lock.Unlock()

	status, err := sl.inspector.Inspect(sl.ctx, p, taker)

	sl.lock.Lock()
	defer sl.lock.Unlock()
	w, ok = sl.watches[id]
	if !ok || w.generation != generation {
		metrics.RefreshesTotal.WithLabelValues(metrics.ResultDiscarded).Inc()
		sl.log.Debug().Str("watch", id).Uint64("generation", generation).Msg("discard stale refresh")
		return
	}
	w.updated = time.Now()
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		sl.log.Warn().Err(err).Str("watch", id).Msg("refresh")
		w.err = err
		return
	}
	metrics.RefreshesTotal.WithLabelValues(metrics.ResultOk).Inc()
	w.status = status
	w.err = nil
}
