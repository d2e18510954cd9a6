package balancelisten

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/egaotan/solana-stateless-swap/dingsdk"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Balances interface {
	GetBalances(ctx context.Context, keys []solana.PublicKey) ([]uint64, error)
	GetUser(key solana.PublicKey) *spltoken.KeyedUser
	Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// BalanceListen polls token accounts and reports every change of their amounts.
type BalanceListen struct {
	ctx      context.Context
	wg       sync.WaitGroup
	log      zerolog.Logger
	balances Balances
	accounts []solana.PublicKey
	interval time.Duration
	notifier dingsdk.Notifier
	last     []uint64
	now      func() time.Time
}

func NewBalanceListen(ctx context.Context, balances Balances, accounts []solana.PublicKey, interval time.Duration, notifier dingsdk.Notifier, log zerolog.Logger) *BalanceListen {
	bl := &BalanceListen{
		ctx:      ctx,
		log:      log,
		balances: balances,
		accounts: accounts,
		interval: interval,
		notifier: notifier,
		now:      time.Now,
	}
	return bl
}

func (bl *BalanceListen) Start() {
	if len(bl.accounts) == 0 {
		return
	}
	bl.wg.Add(1)
	go bl.AccountBalance()
}

func (bl *BalanceListen) Stop() {
	bl.wg.Wait()
}

func (bl *BalanceListen) AccountBalance() {
	defer bl.wg.Done()
	ticker := time.NewTicker(bl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bl.poll()
		case <-bl.ctx.Done():
			return
		}
	}
}

func (bl *BalanceListen) poll() {
	balances, err := bl.balances.GetBalances(bl.ctx, bl.accounts)
	if err != nil {
		bl.log.Warn().Err(err).Msg("get balances")
		return
	}
	bl.notify(balances)
}

func (bl *BalanceListen) decimals(key solana.PublicKey) int32 {
	user := bl.balances.GetUser(key)
	if user == nil {
		return 0
	}
	decimals, err := bl.balances.Decimals(bl.ctx, user.Mint)
	if err != nil {
		bl.log.Warn().Err(err).Str("mint", user.Mint.String()).Msg("get decimals")
		return 0
	}
	return int32(decimals)
}

// notify reports balances when any of them differs from the previous poll. The first
// poll reports without a diff.
func (bl *BalanceListen) notify(balances []uint64) {
	first := bl.last == nil
	for len(bl.last) < len(balances) {
		bl.last = append(bl.last, 0)
	}
	update := first
	for i := range balances {
		if balances[i] != bl.last[i] {
			update = true
			break
		}
	}
	if !update {
		return
	}
	var content strings.Builder
	content.WriteString("account balance update:\n")
	ttStr := bl.now().Format("2006-01-02 15:04:05")
	for i := range balances {
		decimals := bl.decimals(bl.accounts[i])
		oldBalance := spltoken.AmountUi(bl.last[i], uint8(decimals))
		newBalance := spltoken.AmountUi(balances[i], uint8(decimals))
		diff := decimal.Zero
		if !first {
			diff = newBalance.Sub(oldBalance)
		}
		content.WriteString(fmt.Sprintf("%s: %s -> %s (%s);\n", bl.accounts[i],
			oldBalance.StringFixed(decimals), newBalance.StringFixed(decimals), diff.StringFixed(decimals)))
	}
	content.WriteString(fmt.Sprintf("time: %s;", ttStr))
	bl.notifier.Notify(content.String())
	copy(bl.last, balances)
}
