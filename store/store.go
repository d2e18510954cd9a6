package store

import (
	"context"
	"sync"
	"time"

	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

const (
	actionOpen  = "open"
	actionClose = "close"
)

// Store writes records to the dao on its own goroutine.
type Store struct {
	ctx       context.Context
	wg        sync.WaitGroup
	log       zerolog.Logger
	offerChan chan *OfferRecord
	tradeChan chan *TradeRecord
	dao       Dao
	now       func() time.Time
}

func NewStore(ctx context.Context, dao Dao, log zerolog.Logger) *Store {
	s := &Store{
		ctx:       ctx,
		log:       log,
		offerChan: make(chan *OfferRecord, 32),
		tradeChan: make(chan *TradeRecord, 32),
		dao:       dao,
		now:       time.Now,
	}
	return s
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.store()
}

func (s *Store) Stop() {
	s.wg.Wait()
}

func (s *Store) store() {
	defer s.wg.Done()
	for {
		select {
		case record := <-s.offerChan:
			if err := s.dao.SaveOffer(record); err != nil {
				s.log.Warn().Err(err).Str("signature", record.Signature).Msg("save offer")
			}
		case record := <-s.tradeChan:
			if err := s.dao.SaveTrade(record); err != nil {
				s.log.Warn().Err(err).Str("signature", record.Signature).Msg("save trade")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) RecordOffer(p offer.Params, authority solana.PublicKey, approve bool, signature solana.Signature) {
	action := actionOpen
	if !approve {
		action = actionClose
	}
	record := &OfferRecord{
		Maker:     p.Maker.String(),
		MintA:     p.MintA.String(),
		MintB:     p.MintB.String(),
		SizeA:     p.SizeA,
		SizeB:     p.SizeB,
		Authority: authority.String(),
		Action:    action,
		Signature: signature.String(),
		CreatedAt: s.now(),
	}
	select {
	case s.offerChan <- record:
	case <-s.ctx.Done():
	}
}

func (s *Store) RecordTrade(p offer.Params, taker solana.PublicKey, creatorFees bool, signature solana.Signature) {
	record := &TradeRecord{
		Maker:       p.Maker.String(),
		Taker:       taker.String(),
		MintA:       p.MintA.String(),
		MintB:       p.MintB.String(),
		SizeA:       p.SizeA,
		SizeB:       p.SizeB,
		CreatorFees: creatorFees,
		Signature:   signature.String(),
		CreatedAt:   s.now(),
	}
	select {
	case s.tradeChan <- record:
	case <-s.ctx.Done():
	}
}

func (s *Store) History(wallet solana.PublicKey, limit int) (*History, error) {
	return s.dao.SelectHistory(wallet.String(), limit)
}
