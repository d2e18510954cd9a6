package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeDao struct {
	lock   sync.Mutex
	offers []*OfferRecord
	trades []*TradeRecord
	err    error
}

func (f *fakeDao) SaveOffer(record *OfferRecord) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.offers = append(f.offers, record)
	return f.err
}

func (f *fakeDao) SaveTrade(record *TradeRecord) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.trades = append(f.trades, record)
	return f.err
}

func (f *fakeDao) SelectHistory(wallet string, limit int) (*History, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	history := &History{}
	for _, record := range f.offers {
		if record.Maker == wallet {
			history.Offers = append(history.Offers, record)
		}
	}
	for _, record := range f.trades {
		if record.Maker == wallet || record.Taker == wallet {
			history.Trades = append(history.Trades, record)
		}
	}
	return history, nil
}

func (f *fakeDao) counts() (int, int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.offers), len(f.trades)
}

func newParams() offer.Params {
	return offer.Params{
		Maker: solana.NewWallet().PublicKey(),
		MintA: solana.NewWallet().PublicKey(),
		MintB: solana.NewWallet().PublicKey(),
		SizeA: 1,
		SizeB: 2,
	}
}

func TestStore_Record(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dao := &fakeDao{}
	s := NewStore(ctx, dao, zerolog.Nop())
	s.Start()

	p := newParams()
	taker := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()
	s.RecordOffer(p, authority, true, solana.Signature{1})
	s.RecordOffer(p, authority, false, solana.Signature{2})
	s.RecordTrade(p, taker, true, solana.Signature{3})

	assert.Eventually(t, func() bool {
		offers, trades := dao.counts()
		return offers == 2 && trades == 1
	}, time.Second, 5*time.Millisecond)

	history, err := s.History(p.Maker, 10)
	require.NoError(t, err)
	require.Len(t, history.Offers, 2)
	assert.Equal(t, actionOpen, history.Offers[0].Action)
	assert.Equal(t, actionClose, history.Offers[1].Action)
	assert.Equal(t, authority.String(), history.Offers[0].Authority)
	require.Len(t, history.Trades, 1)
	assert.True(t, history.Trades[0].CreatorFees)

	history, err = s.History(taker, 10)
	require.NoError(t, err)
	assert.Empty(t, history.Offers)
	assert.Len(t, history.Trades, 1)

	cancel()
	s.Stop()
}

func TestStore_SaveErrorKeepsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dao := &fakeDao{err: errors.New("duplicate entry")}
	s := NewStore(ctx, dao, zerolog.Nop())
	s.Start()
	s.RecordTrade(newParams(), solana.NewWallet().PublicKey(), false, solana.Signature{})
	s.RecordTrade(newParams(), solana.NewWallet().PublicKey(), false, solana.Signature{})
	assert.Eventually(t, func() bool {
		_, trades := dao.counts()
		return trades == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()

	// recording after shutdown returns instead of blocking
	for i := 0; i < 40; i++ {
		s.RecordOffer(newParams(), solana.PublicKey{}, true, solana.Signature{})
	}
}

func TestDsn(t *testing.T) {
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3306)/swap?charset=utf8mb4&parseTime=True", Dsn("127.0.0.1:3306", "swap", "root", "secret"))
}

func TestMysqlDao_DryRun(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       Dsn("127.0.0.1:3306", "swap", "root", ""),
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)
	dao := &MysqlDao{db: db}

	require.NoError(t, dao.SaveOffer(&OfferRecord{Maker: "maker", Action: actionOpen}))
	history, err := dao.SelectHistory("maker", 5)
	require.NoError(t, err)
	assert.Empty(t, history.Offers)

	stmt := db.Where("maker = ? OR taker = ?", "w", "w").Order("id desc").Limit(5).Find(&[]*TradeRecord{}).Statement
	assert.Contains(t, stmt.SQL.String(), "`trade_records`")
	assert.Contains(t, stmt.SQL.String(), "ORDER BY id desc LIMIT")
}
