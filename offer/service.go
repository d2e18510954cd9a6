package offer

import (
	"context"
	"errors"
	"fmt"

	"github.com/egaotan/solana-stateless-swap/dingsdk"
	"github.com/egaotan/solana-stateless-swap/metadata"
	"github.com/egaotan/solana-stateless-swap/metrics"
	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

var (
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrMissingTokenAccount = errors.New("missing token account")
	ErrNoValidDelegate     = errors.New("no valid delegate")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidCreators     = errors.New("invalid creators")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrSubmitFailed        = errors.New("submit failed")
)

const (
	actionOpen  = "open"
	actionClose = "close"
)

type Submitter interface {
	Commit(ctx context.Context, payer solana.PublicKey, ins []solana.Instruction) (solana.Signature, error)
}

type Wallets interface {
	HasWallet(key solana.PublicKey) bool
}

// Recorder keeps a history of what the service submitted. Dry runs have no
// signature and are not recorded.
type Recorder interface {
	RecordOffer(p Params, authority solana.PublicKey, approve bool, signature solana.Signature)
	RecordTrade(p Params, taker solana.PublicKey, creatorFees bool, signature solana.Signature)
}

type Receipt struct {
	Params    Params
	Authority solana.PublicKey
	Signature solana.Signature
	Message   string
}

type Service struct {
	programID solana.PublicKey
	chain     Chain
	wallets   Wallets
	submitter Submitter
	notifier  dingsdk.Notifier
	metadata  *metadata.Cache
	recorder  Recorder
	log       zerolog.Logger
}

func NewService(programID solana.PublicKey, chain Chain, wallets Wallets, submitter Submitter, notifier dingsdk.Notifier, log zerolog.Logger) *Service {
	return &Service{
		programID: programID,
		chain:     chain,
		wallets:   wallets,
		submitter: submitter,
		notifier:  notifier,
		metadata:  metadata.NewCache(chain, log),
		log:       log,
	}
}

func (s *Service) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

func (s *Service) ProgramID() solana.PublicKey {
	return s.programID
}

// fail notifies message and returns it wrapping err.
func (s *Service) fail(message string, err error) error {
	s.notifier.Notify(message)
	return fmt.Errorf("%s: %w", message, err)
}

func (s *Service) exists(ctx context.Context, key solana.PublicKey) (bool, error) {
	account, err := s.chain.Account(ctx, key)
	if err != nil {
		return false, s.fail(fmt.Sprintf("Network request to fetch account %s failed", key), err)
	}
	return account.Exists(), nil
}

func (s *Service) connected(wallet solana.PublicKey) error {
	if wallet.IsZero() || !s.wallets.HasWallet(wallet) {
		return s.fail("Wallet not connected!", ErrWalletNotConnected)
	}
	return nil
}

// Inspect is the package level Inspect plus a preview of the creator fees a trade would pay.
func (s *Service) Inspect(ctx context.Context, p Params, taker solana.PublicKey) (*Status, error) {
	status, err := Inspect(ctx, s.chain, s.programID, p, taker)
	if err != nil {
		return nil, err
	}
	for _, side := range []struct {
		mint solana.PublicKey
		fee  uint64
	}{{p.MintA, p.SizeB}, {p.MintB, p.SizeA}} {
		entry, err := s.metadata.Load(ctx, side.mint)
		if err != nil {
			s.log.Warn().Err(err).Str("mint", side.mint.String()).Msg("load metadata")
			break
		}
		if entry != nil {
			status.Royalties = metadata.Royalties(spltoken.AmountUi(side.fee, 0), entry.Metadata)
			break
		}
	}
	return status, nil
}

// ChangeOffer opens (approve) or closes the offer of wallet by setting or revoking the
// delegate of its mint A account.
func (s *Service) ChangeOffer(ctx context.Context, wallet solana.PublicKey, mintA solana.PublicKey, mintB solana.PublicKey, sizeA uint64, sizeB uint64, approve bool) (*Receipt, error) {
	action := actionOpen
	if !approve {
		action = actionClose
	}
	receipt, err := s.changeOffer(ctx, Params{Maker: wallet, MintA: mintA, MintB: mintB, SizeA: sizeA, SizeB: sizeB}, approve)
	if err != nil {
		metrics.OffersTotal.WithLabelValues(action, metrics.ResultFailed).Inc()
		return nil, err
	}
	metrics.OffersTotal.WithLabelValues(action, metrics.ResultOk).Inc()
	return receipt, nil
}

func (s *Service) changeOffer(ctx context.Context, p Params, approve bool) (*Receipt, error) {
	if err := s.connected(p.Maker); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, s.fail(err.Error(), err)
	}
	accountA, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	if err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx, accountA)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.fail("User must have ATA to create offer", ErrMissingTokenAccount)
	}
	accountB, err := spltoken.AssociatedAddress(p.Maker, p.MintB)
	if err != nil {
		return nil, err
	}
	ok, err = s.exists(ctx, accountB)
	if err != nil {
		return nil, err
	}
	ins := make([]solana.Instruction, 0, 2)
	if !ok {
		in, err := spltoken.InstructionCreateAssociated(p.Maker, p.Maker, p.MintB)
		if err != nil {
			return nil, err
		}
		ins = append(ins, in)
	}
	authority, _, err := DeriveAuthority(s.programID, p)
	if err != nil {
		return nil, err
	}
	if approve {
		ins = append(ins, spltoken.InstructionApprove(accountA, authority, p.Maker, p.SizeA))
	} else {
		ins = append(ins, spltoken.InstructionRevoke(accountA, p.Maker))
	}
	s.log.Info().Str("maker", p.Maker.String()).Str("authority", authority.String()).Bool("approve", approve).Msg("change offer")
	signature, err := s.submitter.Commit(ctx, p.Maker, ins)
	if err != nil {
		s.log.Warn().Err(err).Msg("change offer")
		return nil, s.fail("Delegation transaction failed", fmt.Errorf("%w: %v", ErrSubmitFailed, err))
	}
	message := fmt.Sprintf("Successfully assigned delegate (%s)", authority)
	if !approve {
		message = fmt.Sprintf("Successfully removed delegate (%s)", authority)
	}
	s.notifier.Notify(message)
	if s.recorder != nil && !signature.IsZero() {
		s.recorder.RecordOffer(p, authority, approve, signature)
	}
	return &Receipt{Params: p, Authority: authority, Signature: signature, Message: message}, nil
}

// Trade accepts the offer p for taker. Nothing is submitted unless the offer is still
// delegated, the taker can pay SizeB and any metadata involved names its creators.
func (s *Service) Trade(ctx context.Context, taker solana.PublicKey, p Params) (*Receipt, error) {
	receipt, rejected, err := s.trade(ctx, taker, p)
	switch {
	case err == nil:
		metrics.TradesTotal.WithLabelValues(metrics.ResultOk).Inc()
	case rejected:
		metrics.TradesTotal.WithLabelValues(metrics.ResultRejected).Inc()
	default:
		metrics.TradesTotal.WithLabelValues(metrics.ResultFailed).Inc()
	}
	return receipt, err
}

func (s *Service) trade(ctx context.Context, taker solana.PublicKey, p Params) (*Receipt, bool, error) {
	if err := s.connected(taker); err != nil {
		return nil, true, err
	}
	if err := p.Validate(); err != nil {
		return nil, true, s.fail(err.Error(), err)
	}
	entries := make(map[solana.PublicKey]*metadata.Entry, 2)
	for _, mint := range []solana.PublicKey{p.MintA, p.MintB} {
		entry, err := s.metadata.Load(ctx, mint)
		if err != nil {
			return nil, false, s.fail("Network request to fetch mint metadata failed", fmt.Errorf("%w: %v", ErrMetadataUnavailable, err))
		}
		if entry != nil {
			entries[mint] = entry
		}
	}

	native := program.IsNative(p.MintB)
	makerA, err := spltoken.AssociatedAddress(p.Maker, p.MintA)
	if err != nil {
		return nil, false, err
	}
	makerAccount, err := s.chain.Account(ctx, makerA)
	if err != nil {
		return nil, false, s.fail(fmt.Sprintf("Network request to fetch account %s failed", makerA), err)
	}
	if !makerAccount.Exists() {
		return nil, true, s.fail("Maker must have ATA for mint A", ErrMissingTokenAccount)
	}
	makerB, err := spltoken.AssociatedAddress(p.Maker, p.MintB)
	if err != nil {
		return nil, false, err
	}
	if !native {
		ok, err := s.exists(ctx, makerB)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, true, s.fail("Maker must have ATA for mint B", ErrMissingTokenAccount)
		}
	}
	authority, bump, err := DeriveAuthority(s.programID, p)
	if err != nil {
		return nil, false, err
	}
	user, err := spltoken.ParseUser(makerAccount)
	if err != nil {
		return nil, true, s.fail("Maker token account for mint A is invalid", err)
	}
	if !CheckDelegate(p, authority, &user) {
		return nil, true, s.fail("Trade transaction failed: offer has no valid delegate", ErrNoValidDelegate)
	}

	ins := make([]solana.Instruction, 0, 4)
	created := make(map[solana.PublicKey]bool)
	createIfMissing := func(address solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) error {
		if created[address] {
			return nil
		}
		ok, err := s.exists(ctx, address)
		if err != nil {
			return err
		}
		if !ok {
			in, err := spltoken.InstructionCreateAssociated(taker, owner, mint)
			if err != nil {
				return err
			}
			ins = append(ins, in)
			created[address] = true
		}
		return nil
	}

	takerA, err := spltoken.AssociatedAddress(taker, p.MintA)
	if err != nil {
		return nil, false, err
	}
	if err := createIfMissing(takerA, taker, p.MintA); err != nil {
		return nil, false, err
	}
	takerB, err := spltoken.AssociatedAddress(taker, p.MintB)
	if err != nil {
		return nil, false, err
	}
	if !native {
		ok, err := s.exists(ctx, takerB)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, true, s.fail("Taker must have ATA for mint B", ErrMissingTokenAccount)
		}
	}
	available, err := balanceOf(ctx, s.chain, taker, p.MintB)
	if err != nil {
		return nil, false, s.fail(fmt.Sprintf("Network request to fetch balance of %s failed", taker), err)
	}
	if available < p.SizeB {
		return nil, true, s.fail(fmt.Sprintf("Taker balance %d is less than %d", available, p.SizeB), ErrInsufficientBalance)
	}

	accounts := &AcceptOfferAccounts{
		MakerWallet:       p.Maker,
		TakerWallet:       taker,
		MakerSrc:          makerA,
		MakerDst:          makerB,
		TakerSrc:          takerB,
		TakerDst:          takerA,
		MakerSrcMint:      p.MintA,
		TakerSrcMint:      p.MintB,
		TransferAuthority: authority,
	}
	if native {
		accounts.MakerDst = p.Maker
		accounts.TakerSrc = taker
	}

	creatorFees := len(entries) > 0
	if creatorFees {
		nftMint, feeMint := p.MintA, p.MintB
		if _, ok := entries[p.MintA]; !ok {
			nftMint, feeMint = p.MintB, p.MintA
		}
		entry := entries[nftMint]
		if !entry.Metadata.ValidCreators() {
			return nil, true, s.fail("Trade transaction failed: specified metadata has invalid creators", ErrInvalidCreators)
		}
		accounts.Additional = append(accounts.Additional, program.ReadOnly(entry.Address))
		for _, creator := range entry.Metadata.CreatorList() {
			accounts.Additional = append(accounts.Additional, program.Writable(creator.Address))
			if program.IsNative(feeMint) {
				continue
			}
			feeAccount, err := spltoken.AssociatedAddress(creator.Address, feeMint)
			if err != nil {
				return nil, false, err
			}
			if err := createIfMissing(feeAccount, creator.Address, feeMint); err != nil {
				return nil, false, err
			}
			accounts.Additional = append(accounts.Additional, program.Writable(feeAccount))
		}
	}

	in, err := NewAcceptOfferInstruction(s.programID, accounts, AcceptOfferArgs{
		MakerSize: p.SizeA,
		TakerSize: p.SizeB,
		BumpSeed:  bump,
	})
	if err != nil {
		return nil, false, err
	}
	ins = append(ins, in)
	s.log.Info().Str("maker", p.Maker.String()).Str("taker", taker.String()).Bool("creator_fees", creatorFees).Msg("executing trade")
	signature, err := s.submitter.Commit(ctx, taker, ins)
	if err != nil {
		s.log.Warn().Err(err).Msg("trade")
		return nil, false, s.fail("Trade transaction failed", fmt.Errorf("%w: %v", ErrSubmitFailed, err))
	}
	message := "Trade successful"
	if creatorFees {
		message += " (Creator Fees Paid)"
	}
	s.notifier.Notify(message)
	if s.recorder != nil && !signature.IsZero() {
		s.recorder.RecordTrade(p, taker, creatorFees, signature)
	}
	return &Receipt{Params: p, Authority: authority, Signature: signature, Message: message}, false, nil
}

// Consolidate moves the balance of every other token account wallet holds for mint into
// its associated account and closes them.
func (s *Service) Consolidate(ctx context.Context, wallet solana.PublicKey, mint solana.PublicKey) (*Receipt, error) {
	if err := s.connected(wallet); err != nil {
		return nil, err
	}
	associated, err := spltoken.AssociatedAddress(wallet, mint)
	if err != nil {
		return nil, err
	}
	accounts, err := s.chain.TokenAccountsByOwner(ctx, wallet, mint)
	if err != nil {
		return nil, s.fail("Consolidation Failed", err)
	}
	ins := make([]solana.Instruction, 0, 2*len(accounts)+1)
	hasAssociated := false
	for _, account := range accounts {
		if account.PubKey.Equals(associated) {
			hasAssociated = true
			continue
		}
		user, err := spltoken.ParseUser(account)
		if err != nil {
			s.log.Warn().Err(err).Msg("skip token account")
			continue
		}
		if user.Amount > 0 {
			ins = append(ins, spltoken.InstructionTransfer(account.PubKey, associated, wallet, user.Amount))
		}
		ins = append(ins, spltoken.InstructionClose(account.PubKey, wallet, wallet))
	}
	if len(ins) == 0 {
		message := "Nothing to consolidate"
		s.notifier.Notify(message)
		return &Receipt{Message: message}, nil
	}
	if !hasAssociated {
		in, err := spltoken.InstructionCreateAssociated(wallet, wallet, mint)
		if err != nil {
			return nil, err
		}
		ins = append([]solana.Instruction{in}, ins...)
	}
	signature, err := s.submitter.Commit(ctx, wallet, ins)
	if err != nil {
		s.log.Warn().Err(err).Msg("consolidate")
		return nil, s.fail("Consolidation Failed", fmt.Errorf("%w: %v", ErrSubmitFailed, err))
	}
	message := "Successfully merged all token accounts into 1 Associated Token Account"
	s.notifier.Notify(message)
	return &Receipt{Signature: signature, Message: message}, nil
}
